package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.telegram.org"

// Notifier sends run summaries to a Telegram chat. Delivery is best effort, a
// failed send is logged and otherwise ignored.
type Notifier struct {
	BaseURL string
	botID   string
	chatID  string
	client  *http.Client
}

func New(botID, chatID string) *Notifier {
	return &Notifier{
		BaseURL: DefaultBaseURL,
		botID:   botID,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Send(ctx context.Context, lines []string) {
	if n.botID == "" || len(lines) == 0 {
		return
	}

	q := url.Values{}
	q.Set("chat_id", n.chatID)
	q.Set("text", strings.Join(lines, "\n"))
	u := n.BaseURL + "/bot" + n.botID + "/sendMessage?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		logrus.Warnf("error building telegram request: %s", err)
		return
	}
	resp, err := n.client.Do(req)
	if err != nil {
		logrus.Warnf("error sending telegram notification: %s", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logrus.Warnf("telegram returned status %d", resp.StatusCode)
	}
}
