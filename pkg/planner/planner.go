package planner

import (
	"fmt"
	"math"

	"github.com/kiwatt-home/controller/pkg/pricetable"
	"github.com/kiwatt-home/controller/pkg/schedule"
)

// loadNotNeeded is written as the charge target when a corrective set-point
// is placed but no extra charge turned out to be required.
const loadNotNeeded = 99

// Placeholder targets written with the flat sell-first schedule. The
// inverter ignores them while sell-first mode is active.
const (
	sellFirstMorningTarget   = 17
	sellFirstAfternoonTarget = 40
)

// Battery is the state and configured limits the plan is computed against.
type Battery struct {
	CapacityKWh float64
	Percentage  int
	MaxChargeKW float64

	FloorPercent   int
	CeilingPercent int
	UnloadPerHour  int // discharge in percent per hour
}

// Forecast is the relevant part of the solar production estimate.
type Forecast struct {
	// RemainingKWh is the expected production from now until midnight.
	RemainingKWh float64
}

type Config struct {
	Hour     int
	Battery  Battery
	Forecast Forecast

	// PriceSurcharge and PriceVAT turn raw market prices (currency/MWh)
	// into consumer prices for display.
	PriceSurcharge float64
	PriceVAT       float64
}

type OutcomeKind int

const (
	// OutcomeScheduled carries a full 6 slot charge schedule.
	OutcomeScheduled OutcomeKind = iota
	// OutcomeSellFirst means the inverter should be switched to sell-first
	// mode with the flat placeholder schedule; no further planning applies
	// this run.
	OutcomeSellFirst
)

func (k OutcomeKind) String() string {
	if k == OutcomeSellFirst {
		return "sell-first"
	}
	return "scheduled"
}

// Outcome is the planning decision. Notes are human readable messages the
// caller forwards to the notification sink.
type Outcome struct {
	Kind     OutcomeKind
	Schedule *schedule.Schedule
	Notes    []string
}

type Planner struct {
	table    *pricetable.Table
	today    *pricetable.Ranking
	tomorrow *pricetable.Ranking
	extremes pricetable.Extremes
	cfg      Config
}

func New(table *pricetable.Table, cfg Config) *Planner {
	return &Planner{
		table:    table,
		today:    table.CheapestToday(),
		tomorrow: table.CheapestTomorrow(),
		extremes: table.Extremes(),
		cfg:      cfg,
	}
}

// EmptyHour projects the hour at which the battery reaches its floor
// percentage without any charging. The result can be beyond 23, meaning
// tomorrow.
func (p *Planner) EmptyHour() int {
	b := p.cfg.Battery
	if b.UnloadPerHour <= 0 {
		return p.cfg.Hour + 24
	}
	return int(math.Floor(float64(b.Percentage-b.FloorPercent)/float64(b.UnloadPerHour))) + p.cfg.Hour
}

// Plan runs the sell-peak decision and, unless it fires, the full gap-fill
// and charge-window planning.
func (p *Planner) Plan() *Outcome {
	var notes []string

	if o := p.checkSell(&notes); o != nil {
		return o
	}

	sched := schedule.New()
	p.afterGapCheck(sched, &notes)
	p.beforeGapCheck(sched, &notes)
	p.chargeWindows(sched)
	sched.Pad(p.cfg.Battery.FloorPercent)

	return &Outcome{Kind: OutcomeScheduled, Schedule: sched, Notes: notes}
}

// checkSell decides at the two daily peak hours whether to switch the
// inverter to sell-first mode. At the morning peak it always sells; at the
// afternoon peak only when today's peak beats tomorrow's.
func (p *Planner) checkSell(notes *[]string) *Outcome {
	hour := p.cfg.Hour

	if hm := p.extremes.HighMorning; hm != nil && hour == *hm {
		return &Outcome{
			Kind:     OutcomeSellFirst,
			Schedule: schedule.SellFirst(sellFirstMorningTarget),
			Notes: append(*notes,
				fmt.Sprintf("Battery percentage: %d%%", p.cfg.Battery.Percentage),
				"Sell first ON"),
		}
	}

	ha := p.extremes.HighAfternoon
	if ha == nil || hour != *ha {
		return nil
	}
	*notes = append(*notes, fmt.Sprintf("High afternoon: %d:00", *ha))

	ht := p.extremes.HighTomorrow
	if ht == nil {
		*notes = append(*notes, "Not selling, no prices for tomorrow morning yet")
		return nil
	}
	if p.table.Price(*ha) > p.table.Price(*ht) {
		return &Outcome{
			Kind:     OutcomeSellFirst,
			Schedule: schedule.SellFirst(sellFirstAfternoonTarget),
			Notes:    append(*notes, "Sell first ON"),
		}
	}
	*notes = append(*notes, fmt.Sprintf("Not selling because price is lower than tomorrow morning (%s/%s)",
		p.DisplayPrice(p.table.Price(*ha)), p.DisplayPrice(p.table.Price(*ht))))
	return nil
}

// DisplayPrice converts a raw market price to the consumer price string
// used in notifications and the published status.
func (p *Planner) DisplayPrice(raw float64) string {
	return fmt.Sprintf("%.3f", (raw/1000+p.cfg.PriceSurcharge)*p.cfg.PriceVAT)
}

// afterGapCheck inserts a corrective charge window when the battery would
// run empty before the next planned cheap hour. It scans forward for the
// first local price minimum before prices rise again.
func (p *Planner) afterGapCheck(sched *schedule.Schedule, notes *[]string) {
	b := p.cfg.Battery
	hour := p.cfg.Hour

	checkLoad := -1
	for _, h := range p.today.ByHour {
		if h > hour {
			checkLoad = h
			break
		}
	}
	if checkLoad == -1 {
		checkLoad = 23
		if p.tomorrow != nil && len(p.tomorrow.ByHour) > 0 {
			checkLoad = p.tomorrow.ByHour[0]
		}
	}

	if p.EmptyHour() >= checkLoad {
		return
	}

	lowPrice := math.Inf(1)
	highCount := 0
	next := -1
	for x := hour; x < checkLoad && x < p.table.Hours(); x++ {
		if p.table.Price(x) < lowPrice {
			if highCount > 0 {
				break
			}
			next = x
			lowPrice = p.table.Price(x)
		} else {
			highCount++
		}
	}
	if next < 0 || next >= 24 {
		return
	}

	loadNeeded := loadNotNeeded
	if highCount > 0 {
		loadNeeded = b.FloorPercent + 10 + highCount*b.UnloadPerHour
	}
	if loadNeeded > loadNotNeeded {
		loadNeeded = loadNotNeeded
	}
	// When every cheap hour of today has passed and the found hour is still
	// cheaper than tomorrow's cheapest, postpone charging to tomorrow.
	if lt := p.extremes.LowTomorrow; lt != nil {
		lastLow := p.today.ByHour[len(p.today.ByHour)-1]
		if p.table.Price(next) < p.table.Price(*lt) && lastLow < hour {
			loadNeeded = loadNotNeeded
		}
	}

	*notes = append(*notes,
		fmt.Sprintf("Additional after loadpoint found: %d", next),
		fmt.Sprintf("%%: %d", loadNeeded),
		fmt.Sprintf("Empty: %d", p.EmptyHour()))
	sched.AppendPair(next, loadNeeded, b.FloorPercent)
}

// beforeGapCheck inserts a corrective charge window when the battery would
// run empty before today's first planned cheap hour. It scans for the
// cheapest reachable hour, follows falling prices, then counts the rising
// hours worth pre-charging through.
func (p *Planner) beforeGapCheck(sched *schedule.Schedule, notes *[]string) {
	b := p.cfg.Battery
	hour := p.cfg.Hour

	firstLow := -1
	for _, h := range p.today.ByHour {
		if h > hour {
			firstLow = h
			break
		}
	}
	if firstLow == -1 || p.EmptyHour() >= firstLow {
		return
	}

	next := hour
	for x := hour; x < p.EmptyHour() && x < p.table.Hours(); x++ {
		if p.table.Price(next) > p.table.Price(x) {
			next = x
		}
	}
	for x := next + 1; x < firstLow; x++ {
		if p.table.Price(next) > p.table.Price(x) {
			next = x
		} else {
			break
		}
	}

	count := 0
	for x := next + 1; x < firstLow; x++ {
		if p.table.Price(next) < p.table.Price(x) {
			count++
		} else {
			break
		}
	}
	if count == 0 {
		return
	}

	loadNeeded := b.Percentage + count*b.UnloadPerHour + 10
	if loadNeeded > 100 {
		loadNeeded = 100
	}
	*notes = append(*notes,
		fmt.Sprintf("Additional before loadpoint found: %d", next),
		fmt.Sprintf("%%: %d", loadNeeded),
		fmt.Sprintf("Empty: %d", p.EmptyHour()))
	sched.AppendPair(next, loadNeeded, b.FloorPercent)
}

// chargeWindows allocates charge amounts over today's three cheapest hours
// so the battery reaches the configured ceiling by evening, taking expected
// solar production and already planned load into account.
func (p *Planner) chargeWindows(sched *schedule.Schedule) {
	b := p.cfg.Battery
	hour := p.cfg.Hour

	batLoad := float64(b.Percentage) * b.CapacityKWh / 100
	loadToday := float64(18-hour) * b.CapacityKWh * float64(b.UnloadPerHour) / 100

	count := 0
	calcLoad := 0.0
	prevRank := 0
	ranking := append([]int(nil), p.today.ByPrice...)

	for _, setpoint := range p.today.ByHour {
		if setpoint < hour {
			ranking = removeHour(ranking, setpoint)
			continue
		}

		rank := indexOf(ranking, setpoint)
		toLoad := b.CapacityKWh*float64(b.CeilingPercent)/100 -
			(batLoad + p.cfg.Forecast.RemainingKWh - loadToday + calcLoad)

		// Damp charging at hours that rank cheap but come late: earlier
		// hours of worse rank already covered part of the need.
		correct := 0
		if rank == 1 && prevRank == 2 {
			correct = 1
		}
		if correct == 0 && rank-count >= 0 {
			correct = rank - count
		}

		loadHours := toLoad/b.MaxChargeKW - float64(correct)
		prevRank = rank

		if loadHours > 0 {
			if loadHours > 1 {
				loadHours = 1
			}
			target := b.CeilingPercent
			if rank != 0 {
				target = int(math.Round(float64(b.Percentage) +
					(loadHours*b.MaxChargeKW+calcLoad)/(b.CapacityKWh/100)))
				if target > b.CeilingPercent {
					target = b.CeilingPercent
				}
			}
			calcLoad += loadHours * b.MaxChargeKW

			if sched.Contains(setpoint * 100) {
				sched.RemovePair(setpoint * 100)
			}
			sched.AppendPair(setpoint, target, b.FloorPercent)
		}

		// Leave room for the trailing off entry of one more window.
		if sched.Len() >= schedule.Slots-1 {
			break
		}
		count++
	}
}

func removeHour(hours []int, hour int) []int {
	for i, h := range hours {
		if h == hour {
			return append(hours[:i], hours[i+1:]...)
		}
	}
	return hours
}

func indexOf(hours []int, hour int) int {
	for i, h := range hours {
		if h == hour {
			return i
		}
	}
	return -1
}
