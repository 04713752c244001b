package entsoe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiwatt-home/controller/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoDayDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument>
	<TimeSeries>
		<Period>
			<Point><position>1</position><price.amount>100.0</price.amount></Point>
			<Point><position>2</position><price.amount>90.0</price.amount></Point>
			<Point><position>4</position><price.amount>80.0</price.amount></Point>
		</Period>
	</TimeSeries>
	<TimeSeries>
		<Period>
			<Point><position>1</position><price.amount>60.0</price.amount></Point>
			<Point><position>2</position><price.amount>55.0</price.amount></Point>
		</Period>
	</TimeSeries>
</Publication_MarketDocument>`

const emptyDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Acknowledgement_MarketDocument>
	<Reason><code>999</code><text>No matching data found</text></Reason>
</Acknowledgement_MarketDocument>`

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New("token", "10YNL----------L", snapshot.New(t.TempDir()))
	c.BaseURL = srv.URL
	return c
}

func TestPrices(t *testing.T) {
	var query map[string][]string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(twoDayDocument))
	})

	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	table, degraded, err := c.Prices(context.Background(), now, 9)
	require.NoError(t, err)
	assert.False(t, degraded)

	assert.Equal(t, []string{"A44"}, query["documentType"])
	assert.Equal(t, []string{"202403140000"}, query["periodStart"])
	assert.Equal(t, []string{"202403160000"}, query["periodEnd"])

	assert.Equal(t, 48, table.Hours())
	assert.True(t, table.HasTomorrow())
	assert.Equal(t, 100.0, table.Price(0))
	// position 3 missing, carried forward from position 2
	assert.Equal(t, 90.0, table.Price(2))
	assert.Equal(t, 80.0, table.Price(3))
	assert.Equal(t, 60.0, table.Price(24))
	assert.Equal(t, 55.0, table.Price(25))
	// tomorrow carries forward to the end of the table
	assert.Equal(t, 55.0, table.Price(47))
}

func TestPricesHourPastMidnightShiftsWindow(t *testing.T) {
	var query map[string][]string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(twoDayDocument))
	})

	now := time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC)
	_, _, err := c.Prices(context.Background(), now, 24)
	require.NoError(t, err)
	assert.Equal(t, []string{"202403150000"}, query["periodStart"])
	assert.Equal(t, []string{"202403160000"}, query["periodEnd"])
}

func TestPricesFallsBackToSnapshot(t *testing.T) {
	store := snapshot.New(t.TempDir())
	require.NoError(t, store.Save("entsoe.xml", []byte(twoDayDocument)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyDocument))
	}))
	defer srv.Close()

	c := New("token", "10YNL----------L", store)
	c.BaseURL = srv.URL

	table, degraded, err := c.Prices(context.Background(), time.Now(), 9)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, 48, table.Hours())
	assert.Equal(t, 100.0, table.Price(0))
}

func TestPricesNoDataNoSnapshot(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyDocument))
	})

	_, _, err := c.Prices(context.Background(), time.Now(), 9)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPricesSavesSnapshot(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoDayDocument))
	}))
	defer srv.Close()

	store := snapshot.New(dir)
	c := New("token", "10YNL----------L", store)
	c.BaseURL = srv.URL

	_, _, err := c.Prices(context.Background(), time.Now(), 9)
	require.NoError(t, err)

	saved, err := store.Load("entsoe.xml")
	require.NoError(t, err)
	assert.Equal(t, twoDayDocument, string(saved))
}
