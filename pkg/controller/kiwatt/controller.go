package kiwatt

import (
	"fmt"

	"github.com/kiwatt-home/controller/pkg/controller"
	"github.com/kiwatt-home/controller/pkg/modbusclient"
	"github.com/kiwatt-home/controller/pkg/schedule"
	"github.com/sirupsen/logrus"
)

// Deye/Sunsynk style hybrid inverter register map.
const (
	regBatteryCapacity = 102 // unit 50 Wh
	regMaxChargePower  = 108 // unit 50 W
	regLimitControl    = 142 // 0 = selling first, 1 = zero export / schedule active
	regSetPointTime    = 148 // 6 regs, hour*100+minute
	regSetPointTarget  = 166 // 6 regs, SOC target %
	regSetPointCharge  = 172 // 6 regs, bit0 = grid charge enabled
	regBatterySOC      = 588 // current %
)

const (
	modeSellingFirst   = 0
	modeScheduleCommit = 1
)

type Kiwatt struct {
	client modbusclient.Client
}

func New(client modbusclient.Client) *Kiwatt {
	return &Kiwatt{
		client: client,
	}
}

func (k *Kiwatt) Battery() (*controller.BatteryInfo, error) {
	info := &controller.BatteryInfo{}
	var err error

	info.CapacityKWh, err = controller.Scale50itokwh(k.client.ReadHoldingRegister16(regBatteryCapacity))
	if err != nil {
		return nil, err
	}
	info.MaxChargeKW, err = controller.Scale50itokwh(k.client.ReadHoldingRegister16(regMaxChargePower))
	if err != nil {
		return nil, err
	}
	info.Percentage, err = k.client.ReadHoldingRegister16(regBatterySOC)
	if err != nil {
		return nil, err
	}
	if info.Percentage < 0 || info.Percentage > 100 {
		return nil, fmt.Errorf("implausible battery percentage %d", info.Percentage)
	}
	return info, nil
}

func (k *Kiwatt) Schedule() (*schedule.Schedule, error) {
	times, err := k.client.ReadHoldingRegisters(regSetPointTime, schedule.Slots)
	if err != nil {
		return nil, err
	}
	targets, err := k.client.ReadHoldingRegisters(regSetPointTarget, schedule.Slots)
	if err != nil {
		return nil, err
	}
	charge, err := k.client.ReadHoldingRegisters(regSetPointCharge, schedule.Slots)
	if err != nil {
		return nil, err
	}
	return schedule.FromRegisters(times, targets, charge), nil
}

func (k *Kiwatt) WriteSchedule(s *schedule.Schedule) error {
	err := k.writeGroups(s)
	if err != nil {
		return err
	}
	_, err = k.client.WriteSingleRegister(regLimitControl, modeScheduleCommit)
	return err
}

func (k *Kiwatt) SellFirst(s *schedule.Schedule) error {
	err := k.writeGroups(s)
	if err != nil {
		return err
	}
	logrus.Info("switching inverter to sell-first mode")
	_, err = k.client.WriteSingleRegister(regLimitControl, modeSellingFirst)
	return err
}

// writeGroups programs the three register groups. Each group write is atomic
// on the wire but there is no transaction across groups.
func (k *Kiwatt) writeGroups(s *schedule.Schedule) error {
	times, targets, charge := s.Registers()
	err := k.client.WriteMultipleRegisters(regSetPointTime, times)
	if err != nil {
		return err
	}
	err = k.client.WriteMultipleRegisters(regSetPointTarget, targets)
	if err != nil {
		return err
	}
	return k.client.WriteMultipleRegisters(regSetPointCharge, charge)
}
