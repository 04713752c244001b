package app

import (
	"fmt"
	"time"

	"github.com/goburrow/modbus"
	"github.com/kiwatt-home/controller/pkg/api/v1/config"
	"github.com/kiwatt-home/controller/pkg/controller"
	"github.com/kiwatt-home/controller/pkg/controller/dummy"
	"github.com/kiwatt-home/controller/pkg/controller/kiwatt"
	"github.com/kiwatt-home/controller/pkg/entsoe"
	"github.com/kiwatt-home/controller/pkg/forecast"
	"github.com/kiwatt-home/controller/pkg/mbus"
	"github.com/kiwatt-home/controller/pkg/modbusclient"
	"github.com/kiwatt-home/controller/pkg/mqtt"
	"github.com/kiwatt-home/controller/pkg/notify"
	"github.com/kiwatt-home/controller/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

// Setup wires an App from configuration alone.
func Setup(cfg *config.CliConfig) (*App, error) {
	ctrl, err := setupController(cfg)
	if err != nil {
		return nil, err
	}

	store := snapshot.New(cfg.CacheDir)
	prices := entsoe.New(cfg.EntsoeToken, cfg.EntsoeArea, store)
	fc := forecast.New(cfg.ForecastLatitude, cfg.ForecastLongitude, cfg.ForecastDeclination, cfg.ForecastAzimuth, cfg.ForecastKWP, store)
	notifier := notify.New(cfg.TelegramBotID, cfg.TelegramChatID)

	var publisher StatusPublisher
	if cfg.MQTTHost != "" {
		publisher, err = mqtt.New(mqtt.Config{
			Host:      cfg.MQTTHost,
			Port:      cfg.MQTTPort,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			BaseTopic: cfg.MQTTBaseTopic,
		})
		if err != nil {
			// status reporting is optional, the schedule still gets written
			logrus.Errorf("error connecting to mqtt: %s", err)
			publisher = nil
		}
	}

	var meterReader MeterReader
	if cfg.MeterModel != "" {
		meterReader = mbus.New(cfg.MeterDevice)
	}

	return New(cfg, ctrl, prices, fc, notifier, publisher, meterReader), nil
}

func setupController(cfg *config.CliConfig) (controller.Controller, error) {
	switch cfg.ControllerType {
	case "kiwatt":
		handler := modbus.NewTCPClientHandler(cfg.BatteryAddress)
		handler.SlaveId = byte(cfg.BatterySlaveID)
		handler.Timeout = 10 * time.Second
		client := modbusclient.New(modbus.NewClient(handler), handler.Close)
		return kiwatt.New(client), nil
	case "dummy":
		return dummy.New(), nil
	}
	return nil, fmt.Errorf("unknown controller type: %s", cfg.ControllerType)
}
