package measure

import (
	"context"
	"fmt"

	"cohesivm/internal/datastream"
	"cohesivm/internal/device"
	"cohesivm/internal/iface"
	"cohesivm/internal/metadata"
)

// CurrentVoltage obtains the current-voltage characteristic: an inclusive
// voltage ladder from start to end, optionally walked back for hysteresis.
type CurrentVoltage struct {
	startVoltage float64
	endVoltage   float64
	voltageStep  float64
	hysteresis   bool
}

// NewCurrentVoltage validates the sweep parameters. The step must be positive
// regardless of sweep direction.
func NewCurrentVoltage(startVoltage, endVoltage, voltageStep float64, hysteresis bool) (*CurrentVoltage, error) {
	if voltageStep <= 0 {
		return nil, fmt.Errorf("%w: voltage step must be larger than 0, got %v", ErrSettings, voltageStep)
	}
	return &CurrentVoltage{
		startVoltage: startVoltage,
		endVoltage:   endVoltage,
		voltageStep:  voltageStep,
		hysteresis:   hysteresis,
	}, nil
}

func (m *CurrentVoltage) Name() string { return "CurrentVoltageCharacteristic" }

func (m *CurrentVoltage) InterfaceType() iface.Type { return iface.HILO }

func (m *CurrentVoltage) RequiredChannels() [][]device.Capability {
	return [][]device.Capability{{device.SourceMeasureUnit}}
}

func (m *CurrentVoltage) Settings() metadata.Settings {
	settings := metadata.NewSettings()
	_ = settings.Set("start_voltage", metadata.Float(m.startVoltage))
	_ = settings.Set("end_voltage", metadata.Float(m.endVoltage))
	_ = settings.Set("voltage_step", metadata.Float(m.voltageStep))
	_ = settings.Set("hysteresis", metadata.Bool(m.hysteresis))
	return settings
}

func (m *CurrentVoltage) Columns() []string {
	return []string{"Voltage (V)", "Current (A)"}
}

func (m *CurrentVoltage) Run(ctx context.Context, dev device.Device, relay datastream.Relay) (Result, error) {
	channel, ok := device.FindChannel(dev, device.SourceMeasureUnit)
	if !ok {
		return Result{}, fmt.Errorf("%w: device %s has no source-measure channel", ErrSettings, dev.Name())
	}
	smu, ok := channel.(device.SourceMeasurer)
	if !ok {
		return Result{}, fmt.Errorf("%w: channel %s does not implement SourceMeasurer", ErrSettings, channel.Name())
	}

	release, err := dev.Connect(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("connect %s: %w", dev.Name(), err)
	}
	defer release()

	points := sweepPoints(m.startVoltage, m.endVoltage, m.voltageStep)
	if m.hysteresis {
		points = append(points, reversed(points)...)
	}

	result := NewResult(m.Columns()...)
	for _, setpoint := range points {
		if err := smu.SourceVoltage(ctx, setpoint); err != nil {
			return Result{}, fmt.Errorf("source %v V: %w", setpoint, err)
		}
		voltage, err := smu.MeasureVoltage(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("measure voltage: %w", err)
		}
		current, err := smu.MeasureCurrent(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("measure current: %w", err)
		}
		if err := result.Append(voltage, current); err != nil {
			return Result{}, err
		}
		relay.Publish(datastream.Datapoint{Values: []float64{voltage, current}})
	}
	return result, nil
}
