package schedule

// SetPoint is one timer slot in the inverter: a time encoded as
// hour*100+minute, whether grid charging is enabled from that time on and the
// SOC target in percent.
type SetPoint struct {
	Time     int  `json:"time"`
	Charging bool `json:"charging"`
	Target   int  `json:"target"`
}

// Slots is the number of timer slots the inverter has.
const Slots = 6

// Schedule is an ordered list of at most Slots set-points. Charge windows are
// appended as on/off pairs in discovery order, not chronological order.
type Schedule struct {
	points []SetPoint
}

func New() *Schedule {
	return &Schedule{}
}

// SellFirst returns the flat all-off schedule that is programmed together
// with sell-first mode. target is a placeholder percentage only.
func SellFirst(target int) *Schedule {
	s := New()
	for i := 0; i < Slots; i++ {
		s.points = append(s.points, SetPoint{Time: i * 100, Charging: false, Target: target})
	}
	return s
}

func (s *Schedule) Points() []SetPoint {
	return s.points
}

func (s *Schedule) Len() int {
	return len(s.points)
}

// AppendPair adds a charge window: charging on at hour with the given target
// and off again one hour later at the floor percentage. The off entry wraps
// to 00:00 after 23:00.
func (s *Schedule) AppendPair(hour, target, floor int) {
	s.points = append(s.points, SetPoint{Time: hour * 100, Charging: true, Target: target})
	off := 0
	if hour+1 < 24 {
		off = (hour + 1) * 100
	}
	s.points = append(s.points, SetPoint{Time: off, Charging: false, Target: floor})
}

// Contains reports whether a charging set-point exists at the given
// hour*100+minute time.
func (s *Schedule) Contains(t int) bool {
	for _, p := range s.points {
		if p.Time == t && p.Charging {
			return true
		}
	}
	return false
}

// RemovePair removes the charging set-point at time t together with the off
// entry that follows it.
func (s *Schedule) RemovePair(t int) {
	for i, p := range s.points {
		if p.Time != t || !p.Charging {
			continue
		}
		end := i + 2
		if end > len(s.points) {
			end = len(s.points)
		}
		s.points = append(s.points[:i], s.points[end:]...)
		return
	}
}

// Pad fills the schedule up to Slots entries with no-op set-points, each one
// hour after the previous entry and wrapping to 00:00 after 23:00.
func (s *Schedule) Pad(floor int) {
	for len(s.points) < Slots {
		last := 2300
		if len(s.points) > 0 {
			last = s.points[len(s.points)-1].Time
		}
		next := 0
		if last <= 2259 {
			next = last + 100
		}
		s.points = append(s.points, SetPoint{Time: next, Charging: false, Target: floor})
	}
}

func (s *Schedule) Equal(other *Schedule) bool {
	if other == nil || len(s.points) != len(other.points) {
		return false
	}
	for i, p := range s.points {
		if p != other.points[i] {
			return false
		}
	}
	return true
}

// Registers encodes the schedule as the three holding register groups the
// inverter stores it in.
func (s *Schedule) Registers() (times, targets, charge []uint16) {
	for _, p := range s.points {
		times = append(times, uint16(p.Time))
		targets = append(targets, uint16(p.Target))
		if p.Charging {
			charge = append(charge, 1)
		} else {
			charge = append(charge, 0)
		}
	}
	return times, targets, charge
}

// FromRegisters decodes the three register groups read back from the
// inverter.
func FromRegisters(times, targets, charge []uint16) *Schedule {
	s := New()
	for i := range times {
		p := SetPoint{Time: int(times[i])}
		if i < len(targets) {
			p.Target = int(targets[i])
		}
		if i < len(charge) {
			p.Charging = charge[i] == 1
		}
		s.points = append(s.points, p)
	}
	return s
}
