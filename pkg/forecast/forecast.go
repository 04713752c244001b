package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/kiwatt-home/controller/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.forecast.solar"

const snapshotName = "forecast.json"

const timeLayout = "2006-01-02 15:04:05"

// Estimate is the part of the solar forecast the planner cares about: when
// meaningful production starts and how much is still expected today.
type Estimate struct {
	StartHour    int
	RemainingKWh float64
}

type Client struct {
	BaseURL     string
	latitude    float64
	longitude   float64
	declination int
	azimuth     int
	kwp         float64
	store       *snapshot.Store
	client      *http.Client
}

func New(latitude, longitude float64, declination, azimuth int, kwp float64, store *snapshot.Store) *Client {
	return &Client{
		BaseURL:     DefaultBaseURL,
		latitude:    latitude,
		longitude:   longitude,
		declination: declination,
		azimuth:     azimuth,
		kwp:         kwp,
		store:       store,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type response struct {
	Result json.RawMessage `json:"result"`
}

type result struct {
	WattHoursPeriod map[string]float64 `json:"watt_hours_period"`
}

// Estimate fetches the production forecast and sums the expected production
// from now until midnight. Falls back to the snapshot when the API is down or
// rate limited.
func (c *Client) Estimate(ctx context.Context, now time.Time) (Estimate, error) {
	body, err := c.fetch(ctx)
	if err != nil || !usable(body) {
		if err != nil {
			logrus.Warnf("forecast.solar request failed: %s", err)
		}
		body, err = c.store.Load(snapshotName)
		if err != nil {
			return Estimate{}, fmt.Errorf("no forecast available and no snapshot: %w", err)
		}
		logrus.Warn("forecast.solar returned no estimate, using snapshot")
	} else {
		err = c.store.Save(snapshotName, body)
		if err != nil {
			logrus.Errorf("error saving forecast snapshot: %s", err)
		}
	}

	return sum(body, now)
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	url := fmt.Sprintf("%s/estimate/%g/%g/%d/%d/%g", c.BaseURL, c.latitude, c.longitude, c.declination, c.azimuth, c.kwp)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// usable reports whether the response carries an estimate. The API answers
// rate limited calls with a string in the result field.
func usable(body []byte) bool {
	r := &response{}
	err := json.Unmarshal(body, r)
	if err != nil {
		return false
	}
	return len(r.Result) > 0 && !bytes.HasPrefix(r.Result, []byte("null")) && r.Result[0] == '{'
}

func sum(body []byte, now time.Time) (Estimate, error) {
	r := &response{}
	err := json.Unmarshal(body, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("error parsing forecast response: %w", err)
	}
	res := &result{}
	err = json.Unmarshal(r.Result, res)
	if err != nil {
		return Estimate{}, fmt.Errorf("error parsing forecast result: %w", err)
	}

	keys := make([]string, 0, len(res.WattHoursPeriod))
	for k := range res.WattHoursPeriod {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	midnight := now.AddDate(0, 0, 1)
	midnight = time.Date(midnight.Year(), midnight.Month(), midnight.Day(), 0, 0, 0, 0, now.Location())

	e := Estimate{}
	for _, k := range keys {
		ts, err := time.ParseInLocation(timeLayout, k, now.Location())
		if err != nil {
			continue
		}
		if !ts.After(now) || !ts.Before(midnight) {
			continue
		}
		wh := res.WattHoursPeriod[k]
		if wh > 1000 && e.StartHour == 0 {
			e.StartHour = ts.Hour()
		}
		e.RemainingKWh += wh / 1000
	}
	return e, nil
}
