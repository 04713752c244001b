package entsoe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/kiwatt-home/controller/pkg/pricetable"
	"github.com/kiwatt-home/controller/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://web-api.tp.entsoe.eu/api"

const snapshotName = "entsoe.xml"

// ErrNoData means the API returned no points and no usable snapshot exists.
var ErrNoData = errors.New("no day-ahead prices available")

type Client struct {
	BaseURL string
	token   string
	area    string
	store   *snapshot.Store
	client  *http.Client
}

func New(token, area string, store *snapshot.Store) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		token:   token,
		area:    area,
		store:   store,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type marketDocument struct {
	TimeSeries []struct {
		Period []struct {
			Point []struct {
				Position int     `xml:"position"`
				Price    float64 `xml:"price.amount"`
			} `xml:"Point"`
		} `xml:"Period"`
	} `xml:"TimeSeries"`
}

// Prices fetches the day-ahead prices as a price table starting at today
// 00:00, or tomorrow 00:00 when hour is 24 or later. The second return value
// reports whether the table came from a stale snapshot instead of the API.
func (c *Client) Prices(ctx context.Context, now time.Time, hour int) (*pricetable.Table, bool, error) {
	day := now
	if hour > 23 {
		day = now.AddDate(0, 0, 1)
	}
	end := now.AddDate(0, 0, 2)

	body, err := c.fetch(ctx, day, end)
	degraded := false
	if err != nil || !hasPoints(body) {
		if err != nil {
			logrus.Warnf("entsoe request failed: %s", err)
		}
		body, err = c.store.Load(snapshotName)
		if err != nil {
			return nil, false, ErrNoData
		}
		logrus.Warn("entsoe returned no prices, using snapshot")
		degraded = true
	} else {
		err = c.store.Save(snapshotName, body)
		if err != nil {
			logrus.Errorf("error saving price snapshot: %s", err)
		}
	}

	table, err := parse(body)
	if err != nil {
		return nil, false, err
	}
	return table, degraded, nil
}

func (c *Client) fetch(ctx context.Context, start, end time.Time) ([]byte, error) {
	q := url.Values{}
	q.Set("documentType", "A44")
	q.Set("in_Domain", c.area)
	q.Set("out_Domain", c.area)
	q.Set("securityToken", c.token)
	q.Set("periodStart", start.Format("20060102")+"0000")
	q.Set("periodEnd", end.Format("20060102")+"0000")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entsoe returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func hasPoints(body []byte) bool {
	doc := &marketDocument{}
	err := xml.Unmarshal(body, doc)
	if err != nil {
		return false
	}
	for _, ts := range doc.TimeSeries {
		for _, p := range ts.Period {
			if len(p.Point) > 0 {
				return true
			}
		}
	}
	return false
}

// parse flattens the document into hour indexed points. Every TimeSeries
// covers one day, so the second one is offset by 24 hours. Positions are
// 1-indexed.
func parse(body []byte) (*pricetable.Table, error) {
	doc := &marketDocument{}
	err := xml.Unmarshal(body, doc)
	if err != nil {
		return nil, fmt.Errorf("error parsing entsoe response: %w", err)
	}

	hours := 24
	if len(doc.TimeSeries) > 1 {
		hours = 48
	}

	points := []pricetable.Point{}
	offset := 0
	for _, ts := range doc.TimeSeries {
		for _, period := range ts.Period {
			for _, p := range period.Point {
				points = append(points, pricetable.Point{
					Hour:  p.Position - 1 + offset,
					Price: p.Price,
				})
			}
		}
		offset += 24
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Hour < points[j].Hour
	})

	return pricetable.New(points, hours), nil
}
