package state

import (
	"testing"
	"time"

	"github.com/kiwatt-home/controller/pkg/controller"
	"github.com/kiwatt-home/controller/pkg/pricetable"
	"github.com/kiwatt-home/controller/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	points := make([]pricetable.Point, 0, 48)
	for h := 0; h < 48; h++ {
		price := 100.0
		switch h {
		case 3, 4, 5:
			price = 10
		case 30:
			price = 200
		case 31:
			price = 5
		}
		points = append(points, pricetable.Point{Hour: h, Price: price})
	}
	table := pricetable.New(points, 48)

	sched := schedule.New()
	sched.AppendPair(3, 90, 10)
	sched.Pad(10)

	info := &controller.BatteryInfo{CapacityKWh: 10, Percentage: 60, MaxChargeKW: 2.5}
	now := time.Date(2024, 3, 14, 9, 2, 0, 0, time.UTC)

	s := Build(table, sched, info, "scheduled", 0.14349, 1.21, now)

	assert.Equal(t, "2024-03-14 09:02:00+00:00", s.Time)
	assert.Equal(t, "scheduled", s.Outcome)
	assert.Equal(t, 60, s.Battery.Percentage)
	require.Len(t, s.SetPoints, schedule.Slots)

	// 3 cheapest hours of today on their own curve
	assert.Len(t, s.Loads, 3)
	assert.Len(t, s.MyPrices, 21)
	assert.Len(t, s.Prices, 24)

	assert.Equal(t, "2024-03-14 03:30:00+00:00", s.Loads[0].Time)
	// (10/1000 + 0.14349) * 1.21
	assert.Equal(t, "0.186", s.Loads[0].Price)
	assert.Equal(t, "2024-03-15 00:30:00+00:00", s.Prices[0].Time)

	assert.Equal(t, 0.186, s.LowToday)
	assert.Equal(t, 0.295, s.HighToday)
	assert.Equal(t, 0.18, s.LowTomorrow)
	assert.Equal(t, 0.416, s.HighTomorrow)
}

func TestBuildTodayOnly(t *testing.T) {
	points := make([]pricetable.Point, 0, 24)
	for h := 0; h < 24; h++ {
		points = append(points, pricetable.Point{Hour: h, Price: 50})
	}
	table := pricetable.New(points, 24)

	sched := schedule.New()
	sched.Pad(10)
	info := &controller.BatteryInfo{CapacityKWh: 10, Percentage: 50, MaxChargeKW: 2.5}

	s := Build(table, sched, info, "sell-first", 0, 1, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))
	assert.Empty(t, s.Prices)
	assert.Zero(t, s.LowTomorrow)
	assert.Zero(t, s.HighTomorrow)
	assert.Equal(t, 0.05, s.LowToday)
}
