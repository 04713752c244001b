package controller

import (
	"github.com/kiwatt-home/controller/pkg/schedule"
)

// Controller is the register level interface to a battery inverter.
type Controller interface {
	// Battery reads capacity, charge rate and current percentage.
	Battery() (*BatteryInfo, error)

	// Schedule reads the currently programmed set-point table. Used for
	// the write-only-on-change diff.
	Schedule() (*schedule.Schedule, error)

	// WriteSchedule programs the set-point table and commits it.
	WriteSchedule(*schedule.Schedule) error

	// SellFirst programs the given placeholder schedule and switches the
	// inverter into sell-first mode.
	SellFirst(*schedule.Schedule) error
}

type BatteryInfo struct {
	CapacityKWh float64
	Percentage  int
	MaxChargeKW float64
}

// Scale50itokwh converts a register value in units of 50 Wh to kWh.
func Scale50itokwh(i int, err error) (float64, error) {
	return float64(i) * 50 / 1000, err
}
