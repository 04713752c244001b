package mqtt

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string
}

// Client publishes the planning status to an external broker so Home
// Assistant can pick it up between runs. Messages are retained, the process
// exits right after publishing.
type Client struct {
	client    mqtt.Client
	baseTopic string
}

func New(cfg Config) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("kiwattctl_%d", rand.Intn(1000)))
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(publishTimeout)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("timeout connecting to mqtt broker %s:%d", cfg.Host, cfg.Port)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("error connecting to mqtt broker: %w", token.Error())
	}
	return &Client{client: c, baseTopic: cfg.BaseTopic}, nil
}

// PublishStatus publishes v as retained JSON on <base>/status.
func (c *Client) PublishStatus(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	topic := c.baseTopic + "/status"
	token := c.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to %s", topic)
	}
	return token.Error()
}

func (c *Client) Close() {
	c.client.Disconnect(250)
}
