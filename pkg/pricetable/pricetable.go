package pricetable

import "sort"

// Point is a single raw price sample. Hour is the absolute hour index where
// 0 is today 00:00 and 24 is tomorrow 00:00.
type Point struct {
	Hour  int
	Price float64
}

// Table holds a normalized hour-indexed day-ahead price series covering
// today (24 hours) or today and tomorrow (48 hours).
type Table struct {
	prices []float64
}

// New normalizes raw points into a contiguous series of the given length
// (24 or 48). Hours without a sample carry the previous hour's price
// forward; a missing hour 0 becomes 0.
func New(points []Point, hours int) *Table {
	known := make(map[int]float64, len(points))
	for _, p := range points {
		if p.Hour >= 0 && p.Hour < hours {
			known[p.Hour] = p.Price
		}
	}
	t := &Table{prices: make([]float64, hours)}
	for i := 0; i < hours; i++ {
		if v, ok := known[i]; ok {
			t.prices[i] = v
		} else if i > 0 {
			t.prices[i] = t.prices[i-1]
		}
	}
	return t
}

func (t *Table) Hours() int {
	return len(t.prices)
}

func (t *Table) HasTomorrow() bool {
	return len(t.prices) > 24
}

func (t *Table) Price(hour int) float64 {
	return t.prices[hour]
}

func (t *Table) Prices() []float64 {
	return t.prices
}

// Ranking is the result of extracting the cheapest hours of a day range.
type Ranking struct {
	// ByPrice holds the hours cheapest first.
	ByPrice []int
	// ByHour holds the same hours in chronological order.
	ByHour []int
}

// CheapestToday returns the 3 cheapest hours of today. Ties are broken on
// the earlier hour.
func (t *Table) CheapestToday() *Ranking {
	return t.cheapest(0, 24)
}

// CheapestTomorrow returns the 3 cheapest hours of tomorrow, or nil when
// the table only covers today.
func (t *Table) CheapestTomorrow() *Ranking {
	if !t.HasTomorrow() {
		return nil
	}
	return t.cheapest(24, len(t.prices))
}

func (t *Table) cheapest(from, to int) *Ranking {
	type pair struct {
		hour  int
		price float64
	}
	pairs := make([]pair, 0, to-from)
	for h := from; h < to && h < len(t.prices); h++ {
		pairs = append(pairs, pair{hour: h, price: t.prices[h]})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].price != pairs[j].price {
			return pairs[i].price < pairs[j].price
		}
		return pairs[i].hour < pairs[j].hour
	})
	n := 3
	if len(pairs) < n {
		n = len(pairs)
	}
	r := &Ranking{}
	for _, p := range pairs[:n] {
		r.ByPrice = append(r.ByPrice, p.hour)
	}
	r.ByHour = append([]int(nil), r.ByPrice...)
	sort.Ints(r.ByHour)
	return r
}

// Extremes holds the price peaks per daypart and tomorrow's cheapest hour.
// A nil field means the range had no data left when the sweep ended.
type Extremes struct {
	HighMorning   *int
	HighAfternoon *int
	HighTomorrow  *int
	LowTomorrow   *int
}

// Extremes sweeps the table extracting maxima (and, while unresolved, the
// minimum among tomorrow's hours) from a shrinking working set, so every
// hour is assigned to at most one slot. Ties are broken on the earlier hour.
func (t *Table) Extremes() Extremes {
	type pair struct {
		hour  int
		price float64
	}
	work := make([]pair, len(t.prices))
	for h, p := range t.prices {
		work[h] = pair{hour: h, price: p}
	}

	remove := func(i int) {
		work = append(work[:i], work[i+1:]...)
	}

	var ex Extremes
	for len(work) > 0 {
		if ex.HighMorning != nil && ex.HighAfternoon != nil && ex.HighTomorrow != nil && ex.LowTomorrow != nil {
			break
		}

		if ex.LowTomorrow == nil && len(work) > 24 {
			min := 0
			for i := range work {
				if work[i].price < work[min].price {
					min = i
				}
			}
			if work[min].hour >= 24 {
				h := work[min].hour
				ex.LowTomorrow = &h
			}
			remove(min)
			if len(work) == 0 {
				break
			}
		}

		max := 0
		for i := range work {
			if work[i].price > work[max].price {
				max = i
			}
		}
		h := work[max].hour
		switch {
		case h <= 12 && ex.HighMorning == nil:
			ex.HighMorning = &h
		case h > 12 && h < 24 && ex.HighAfternoon == nil:
			ex.HighAfternoon = &h
		case h >= 24 && h <= 36 && ex.HighTomorrow == nil:
			ex.HighTomorrow = &h
		}
		remove(max)
	}
	return ex
}
