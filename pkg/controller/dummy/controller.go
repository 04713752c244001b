package dummy

import (
	"github.com/kiwatt-home/controller/pkg/controller"
	"github.com/kiwatt-home/controller/pkg/schedule"
	"github.com/sirupsen/logrus"
)

// Dummy logs every operation instead of talking to an inverter. Useful for
// dry runs against live price data.
type Dummy struct{}

func New() *Dummy {
	return &Dummy{}
}

func (d *Dummy) Battery() (*controller.BatteryInfo, error) {
	return &controller.BatteryInfo{
		CapacityKWh: 10,
		Percentage:  50,
		MaxChargeKW: 5,
	}, nil
}

func (d *Dummy) Schedule() (*schedule.Schedule, error) {
	return schedule.New(), nil
}

func (d *Dummy) WriteSchedule(s *schedule.Schedule) error {
	for _, sp := range s.Points() {
		logrus.Infof("dummy: set-point %04d charging=%t target=%d", sp.Time, sp.Charging, sp.Target)
	}
	logrus.Info("dummy: commit schedule")
	return nil
}

func (d *Dummy) SellFirst(s *schedule.Schedule) error {
	logrus.Info("dummy: sell first mode")
	return nil
}
