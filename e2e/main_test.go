package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goburrow/modbus"
	"github.com/kiwatt-home/controller/pkg/api/v1/config"
	"github.com/kiwatt-home/controller/pkg/app"
	"github.com/kiwatt-home/controller/pkg/controller/kiwatt"
	"github.com/kiwatt-home/controller/pkg/entsoe"
	"github.com/kiwatt-home/controller/pkg/forecast"
	"github.com/kiwatt-home/controller/pkg/modbusclient"
	"github.com/kiwatt-home/controller/pkg/notify"
	"github.com/kiwatt-home/controller/pkg/snapshot"
	"github.com/kiwatt-home/controller/pkg/state"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"
)

const priceDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument>
	<TimeSeries>
		<Period>
			<Point><position>1</position><price.amount>50.0</price.amount></Point>
			<Point><position>4</position><price.amount>5.0</price.amount></Point>
			<Point><position>5</position><price.amount>50.0</price.amount></Point>
			<Point><position>10</position><price.amount>90.0</price.amount></Point>
			<Point><position>11</position><price.amount>50.0</price.amount></Point>
			<Point><position>14</position><price.amount>8.0</price.amount></Point>
			<Point><position>15</position><price.amount>9.0</price.amount></Point>
			<Point><position>16</position><price.amount>50.0</price.amount></Point>
			<Point><position>20</position><price.amount>95.0</price.amount></Point>
			<Point><position>21</position><price.amount>50.0</price.amount></Point>
		</Period>
	</TimeSeries>
	<TimeSeries>
		<Period>
			<Point><position>1</position><price.amount>60.0</price.amount></Point>
			<Point><position>5</position><price.amount>4.0</price.amount></Point>
			<Point><position>6</position><price.amount>60.0</price.amount></Point>
		</Period>
	</TimeSeries>
</Publication_MarketDocument>`

const forecastDocument = `{
	"result": {
		"watt_hours_period": {
			"2024-03-14 09:00:00": 400,
			"2024-03-14 11:00:00": 1600
		}
	}
}`

type capturingPublisher struct {
	status *state.Status
	closed bool
}

func (p *capturingPublisher) PublishStatus(v any) error {
	p.status = v.(*state.Status)
	return nil
}

func (p *capturingPublisher) Close() {
	p.closed = true
}

func TestPlansAndWritesSchedule(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)

	serv := mbserver.NewServer()
	serv.HoldingRegisters[102] = 200 // 10 kWh capacity
	serv.HoldingRegisters[108] = 50  // 2.5 kW max charge
	serv.HoldingRegisters[588] = 50  // current SOC
	err := serv.ListenTCP("127.0.0.1:1502")
	require.NoError(t, err)
	defer serv.Close()

	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, priceDocument)
	}))
	defer priceSrv.Close()
	forecastSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, forecastDocument)
	}))
	defer forecastSrv.Close()

	var messages []string
	telegramSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		messages = append(messages, r.URL.Query().Get("text"))
	}))
	defer telegramSrv.Close()

	cfg := &config.CliConfig{
		MinPercentage:  10,
		MaxPercentage:  90,
		UnloadPerHour:  5,
		PriceSurcharge: 0.14349,
		PriceVAT:       1.21,
	}

	store := snapshot.New(t.TempDir())
	prices := entsoe.New("token", "10YNL----------L", store)
	prices.BaseURL = priceSrv.URL
	fc := forecast.New(52.1, 5.2, 37, 0, 5.6, store)
	fc.BaseURL = forecastSrv.URL
	notifier := notify.New("bot", "chat")
	notifier.BaseURL = telegramSrv.URL

	handler := modbus.NewTCPClientHandler("127.0.0.1:1502")
	handler.SlaveId = 1
	handler.Timeout = 5 * time.Second
	ctrl := kiwatt.New(modbusclient.New(modbus.NewClient(handler), handler.Close))

	pub := &capturingPublisher{}
	a := app.New(cfg, ctrl, prices, fc, notifier, pub, nil)
	a.Now = func() time.Time {
		return time.Date(2024, 3, 14, 1, 2, 0, 0, time.UTC)
	}

	require.NoError(t, a.Run(context.Background()))

	// charge windows at the three cheapest hours, cheapest straight to the
	// ceiling, committed via the limit control register
	assert.Equal(t, []uint16{300, 400, 1300, 1400, 1400, 1500}, serv.HoldingRegisters[148:154])
	assert.Equal(t, []uint16{90, 10, 90, 10, 90, 10}, serv.HoldingRegisters[166:172])
	assert.Equal(t, []uint16{1, 0, 1, 0, 1, 0}, serv.HoldingRegisters[172:178])
	assert.Equal(t, uint16(1), serv.HoldingRegisters[142])

	require.NotNil(t, pub.status)
	assert.Equal(t, "scheduled", pub.status.Outcome)
	assert.Equal(t, 50, pub.status.Battery.Percentage)
	assert.Equal(t, 2.5, pub.status.Battery.MaxChargeKW)
	assert.Len(t, pub.status.Prices, 24)
	assert.Equal(t, 11, pub.status.ProductionStartHour)
	assert.True(t, pub.closed)

	// the written schedule is reported
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0], "Battery schedule set:")
	assert.Contains(t, messages[0], "0300 charge to 90%")
	assert.Contains(t, messages[0], "1300 charge to 90%")

	saved, err := store.Load("entsoe.xml")
	require.NoError(t, err)
	assert.Equal(t, priceDocument, string(saved))
}

func TestSellFirstAtMorningPeak(t *testing.T) {
	serv := mbserver.NewServer()
	serv.HoldingRegisters[102] = 200
	serv.HoldingRegisters[108] = 50
	serv.HoldingRegisters[588] = 80
	serv.HoldingRegisters[142] = 1
	err := serv.ListenTCP("127.0.0.1:1503")
	require.NoError(t, err)
	defer serv.Close()

	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, priceDocument)
	}))
	defer priceSrv.Close()
	forecastSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, forecastDocument)
	}))
	defer forecastSrv.Close()

	cfg := &config.CliConfig{
		MinPercentage:  10,
		MaxPercentage:  90,
		UnloadPerHour:  5,
		PriceSurcharge: 0.14349,
		PriceVAT:       1.21,
	}

	store := snapshot.New(t.TempDir())
	prices := entsoe.New("token", "10YNL----------L", store)
	prices.BaseURL = priceSrv.URL
	fc := forecast.New(52.1, 5.2, 37, 0, 5.6, store)
	fc.BaseURL = forecastSrv.URL

	handler := modbus.NewTCPClientHandler("127.0.0.1:1503")
	handler.SlaveId = 1
	handler.Timeout = 5 * time.Second
	ctrl := kiwatt.New(modbusclient.New(modbus.NewClient(handler), handler.Close))

	a := app.New(cfg, ctrl, prices, fc, notify.New("", ""), nil, nil)
	// hour 9 is the morning peak in the price document
	a.Now = func() time.Time {
		return time.Date(2024, 3, 14, 9, 2, 0, 0, time.UTC)
	}

	require.NoError(t, a.Run(context.Background()))

	// sell-first clears the limit control register and parks the set-points
	assert.Equal(t, uint16(0), serv.HoldingRegisters[142])
	assert.Equal(t, []uint16{0, 100, 200, 300, 400, 500}, serv.HoldingRegisters[148:154])
	assert.Equal(t, []uint16{17, 17, 17, 17, 17, 17}, serv.HoldingRegisters[166:172])
	assert.Equal(t, []uint16{0, 0, 0, 0, 0, 0}, serv.HoldingRegisters[172:178])
}
