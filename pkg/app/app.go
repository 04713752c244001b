package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kiwatt-home/controller/pkg/api/v1/config"
	"github.com/kiwatt-home/controller/pkg/api/v1/meter"
	"github.com/kiwatt-home/controller/pkg/controller"
	"github.com/kiwatt-home/controller/pkg/entsoe"
	"github.com/kiwatt-home/controller/pkg/forecast"
	"github.com/kiwatt-home/controller/pkg/notify"
	"github.com/kiwatt-home/controller/pkg/planner"
	"github.com/kiwatt-home/controller/pkg/pricetable"
	"github.com/kiwatt-home/controller/pkg/state"
	"github.com/sirupsen/logrus"
)

// StatusPublisher pushes the run status document somewhere visible.
type StatusPublisher interface {
	PublishStatus(v any) error
	Close()
}

// MeterReader reads the household energy meter.
type MeterReader interface {
	ReadValues(model, id string) (*meter.Data, error)
	Close() error
}

// App runs one planning cycle: fetch prices and forecast, read the battery,
// plan and program the schedule, then report. It is meant to be started from
// cron once an hour.
type App struct {
	config     *config.CliConfig
	controller controller.Controller
	prices     *entsoe.Client
	forecast   *forecast.Client
	notifier   *notify.Notifier
	publisher  StatusPublisher
	meter      MeterReader

	// Now is the clock the run plans against.
	Now func() time.Time
}

func New(cfg *config.CliConfig, ctrl controller.Controller, prices *entsoe.Client, fc *forecast.Client, notifier *notify.Notifier, publisher StatusPublisher, meterReader MeterReader) *App {
	return &App{
		config:     cfg,
		controller: ctrl,
		prices:     prices,
		forecast:   fc,
		notifier:   notifier,
		publisher:  publisher,
		meter:      meterReader,
		Now:        time.Now,
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	now := a.Now()
	hour := currentHour(now)
	logrus.Debugf("planning hour %d", hour)

	table, degraded, err := a.prices.Prices(ctx, now, hour)
	if err != nil {
		a.notifier.Send(ctx, []string{"No result from entsoe and no cached prices, aborting"})
		return fmt.Errorf("error fetching prices: %w", err)
	}
	if degraded {
		logrus.Warn("planning on cached prices")
		a.notifier.Send(ctx, []string{"No result from entsoe, using cached prices"})
	}

	est, err := a.forecast.Estimate(ctx, now)
	if err != nil {
		logrus.Warnf("no solar forecast, assuming zero production: %s", err)
		a.notifier.Send(ctx, []string{"No result from forecast.solar, assuming zero production"})
		est = forecast.Estimate{}
	}

	info, err := a.controller.Battery()
	if err != nil {
		a.notifier.Send(ctx, []string{"Battery unreachable, aborting"})
		return fmt.Errorf("error reading battery: %w", err)
	}
	logrus.Infof("battery %d%% of %.1f kWh", info.Percentage, info.CapacityKWh)

	outcome := planner.New(table, planner.Config{
		Hour: hour,
		Battery: planner.Battery{
			CapacityKWh:    info.CapacityKWh,
			Percentage:     info.Percentage,
			MaxChargeKW:    info.MaxChargeKW,
			FloorPercent:   a.config.MinPercentage,
			CeilingPercent: a.config.MaxPercentage,
			UnloadPerHour:  a.config.UnloadPerHour,
		},
		Forecast: planner.Forecast{
			RemainingKWh: est.RemainingKWh,
		},
		PriceSurcharge: a.config.PriceSurcharge,
		PriceVAT:       a.config.PriceVAT,
	}).Plan()

	err = a.apply(ctx, outcome)
	if err != nil {
		a.notifier.Send(ctx, []string{"Error writing schedule to battery"})
		return err
	}

	a.notifier.Send(ctx, outcome.Notes)
	a.publishStatus(table, outcome, info, est, now)
	return nil
}

// apply programs the outcome into the inverter. A regular schedule is only
// written when it differs from what the inverter already holds.
func (a *App) apply(ctx context.Context, outcome *planner.Outcome) error {
	if outcome.Kind == planner.OutcomeSellFirst {
		return a.controller.SellFirst(outcome.Schedule)
	}

	current, err := a.controller.Schedule()
	if err != nil {
		return fmt.Errorf("error reading current schedule: %w", err)
	}
	if outcome.Schedule.Equal(current) {
		logrus.Info("schedule unchanged, skipping write")
		return nil
	}

	lines := []string{"Battery schedule set:"}
	for _, sp := range outcome.Schedule.Points() {
		logrus.Infof("set-point %04d charging=%t target=%d%%", sp.Time, sp.Charging, sp.Target)
		if sp.Charging {
			lines = append(lines, fmt.Sprintf("%04d charge to %d%%", sp.Time, sp.Target))
		} else {
			lines = append(lines, fmt.Sprintf("%04d off", sp.Time))
		}
	}

	err = a.controller.WriteSchedule(outcome.Schedule)
	if err != nil {
		return err
	}
	a.notifier.Send(ctx, lines)
	return nil
}

func (a *App) close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.meter != nil {
		err := a.meter.Close()
		if err != nil {
			logrus.Errorf("error closing meter: %s", err)
		}
	}
}

func (a *App) publishStatus(table *pricetable.Table, outcome *planner.Outcome, info *controller.BatteryInfo, est forecast.Estimate, now time.Time) {
	if a.publisher == nil {
		return
	}

	status := state.Build(table, outcome.Schedule, info, outcome.Kind.String(), a.config.PriceSurcharge, a.config.PriceVAT, now)
	status.ProductionStartHour = est.StartHour
	if a.meter != nil && a.config.MeterModel != "" {
		data, err := a.meter.ReadValues(a.config.MeterModel, a.config.MeterID)
		if err != nil {
			logrus.Warnf("error reading meter: %s", err)
		} else {
			status.Meter = data
		}
	}

	err := a.publisher.PublishStatus(status)
	if err != nil {
		logrus.Errorf("error publishing status: %s", err)
	}
}
