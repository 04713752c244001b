package state

import (
	"fmt"
	"math"
	"time"

	"github.com/kiwatt-home/controller/pkg/api/v1/meter"
	"github.com/kiwatt-home/controller/pkg/controller"
	"github.com/kiwatt-home/controller/pkg/pricetable"
	"github.com/kiwatt-home/controller/pkg/schedule"
)

const timeLayout = "2006-01-02 15:04:05-07:00"

// PricePoint is one hour on the published price curve. The timestamp sits at
// half past so charting tools center the bar on the hour.
type PricePoint struct {
	Time  string `json:"time"`
	Price string `json:"price"`
}

type Battery struct {
	CapacityKWh float64 `json:"capacity_kwh"`
	Percentage  int     `json:"percentage"`
	MaxChargeKW float64 `json:"max_charge_kw"`
}

// Status is the retained document describing the last planning run.
type Status struct {
	Time         string              `json:"time"`
	Outcome      string              `json:"outcome"`
	Battery      Battery             `json:"battery"`
	SetPoints    []schedule.SetPoint `json:"set_points"`
	Loads        []PricePoint        `json:"loads"`
	MyPrices     []PricePoint        `json:"myprices"`
	Prices       []PricePoint        `json:"prices"`
	LowToday     float64             `json:"low_today"`
	HighToday    float64             `json:"high_today"`
	LowTomorrow  float64             `json:"low_tomorrow,omitempty"`
	HighTomorrow float64             `json:"high_tomorrow,omitempty"`

	// ProductionStartHour is the first hour today with more than 1 kWh of
	// forecasted solar production, 0 when none is expected.
	ProductionStartHour int         `json:"production_start_hour,omitempty"`
	Meter               *meter.Data `json:"meter,omitempty"`
}

// Build renders the price table into display prices split over three curves:
// the cheapest hours of today (Loads), the rest of today (MyPrices) and
// tomorrow (Prices).
func Build(table *pricetable.Table, sched *schedule.Schedule, info *controller.BatteryInfo, outcome string, surcharge, vat float64, now time.Time) *Status {
	s := &Status{
		Time:    now.Format(timeLayout),
		Outcome: outcome,
		Battery: Battery{
			CapacityKWh: info.CapacityKWh,
			Percentage:  info.Percentage,
			MaxChargeKW: info.MaxChargeKW,
		},
		SetPoints: sched.Points(),
	}

	cheap := map[int]bool{}
	for _, h := range table.CheapestToday().ByHour {
		cheap[h] = true
	}

	lowToday, highToday := math.Inf(1), math.Inf(-1)
	lowTomorrow, highTomorrow := math.Inf(1), math.Inf(-1)

	for x := 0; x < table.Hours(); x++ {
		price := displayPrice(table.Price(x), surcharge, vat)
		day := now
		if x > 23 {
			day = now.AddDate(0, 0, 1)
		}
		stamp := time.Date(day.Year(), day.Month(), day.Day(), x%24, 30, 0, 0, now.Location())
		point := PricePoint{
			Time:  stamp.Format(timeLayout),
			Price: fmt.Sprintf("%.3f", price),
		}

		if x < 24 {
			lowToday = math.Min(lowToday, price)
			highToday = math.Max(highToday, price)
			if cheap[x] {
				s.Loads = append(s.Loads, point)
			} else {
				s.MyPrices = append(s.MyPrices, point)
			}
			continue
		}
		lowTomorrow = math.Min(lowTomorrow, price)
		highTomorrow = math.Max(highTomorrow, price)
		s.Prices = append(s.Prices, point)
	}

	s.LowToday = lowToday
	s.HighToday = highToday
	if table.HasTomorrow() {
		s.LowTomorrow = lowTomorrow
		s.HighTomorrow = highTomorrow
	}
	return s
}

func displayPrice(raw, surcharge, vat float64) float64 {
	return math.Round((raw/1000+surcharge)*vat*1000) / 1000
}
