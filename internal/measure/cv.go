package measure

import (
	"context"
	"fmt"

	"cohesivm/internal/datastream"
	"cohesivm/internal/device"
	"cohesivm/internal/iface"
	"cohesivm/internal/metadata"
)

// CapacitanceVoltage obtains the capacitance-voltage profile: an AC
// oscillator on a swept DC bias, recording impedance magnitude and phase per
// bias point.
type CapacitanceVoltage struct {
	frequency           float64
	startVoltage        float64
	endVoltage          float64
	voltageStep         float64
	oscillatorAmplitude float64
}

// NewCapacitanceVoltage validates the profile parameters. Frequency and
// oscillator amplitude must be positive; the step must be positive regardless
// of sweep direction.
func NewCapacitanceVoltage(frequency, startVoltage, endVoltage, voltageStep, oscillatorAmplitude float64) (*CapacitanceVoltage, error) {
	if voltageStep <= 0 {
		return nil, fmt.Errorf("%w: voltage step must be larger than 0, got %v", ErrSettings, voltageStep)
	}
	if frequency <= 0 {
		return nil, fmt.Errorf("%w: frequency must be larger than 0, got %v", ErrSettings, frequency)
	}
	if oscillatorAmplitude <= 0 {
		return nil, fmt.Errorf("%w: oscillator amplitude must be larger than 0, got %v", ErrSettings, oscillatorAmplitude)
	}
	return &CapacitanceVoltage{
		frequency:           frequency,
		startVoltage:        startVoltage,
		endVoltage:          endVoltage,
		voltageStep:         voltageStep,
		oscillatorAmplitude: oscillatorAmplitude,
	}, nil
}

func (m *CapacitanceVoltage) Name() string { return "CapacitanceVoltageProfiling" }

func (m *CapacitanceVoltage) InterfaceType() iface.Type { return iface.HILO }

func (m *CapacitanceVoltage) RequiredChannels() [][]device.Capability {
	return [][]device.Capability{{device.LCRMeter}}
}

func (m *CapacitanceVoltage) Settings() metadata.Settings {
	settings := metadata.NewSettings()
	_ = settings.Set("frequency", metadata.Float(m.frequency))
	_ = settings.Set("start_voltage", metadata.Float(m.startVoltage))
	_ = settings.Set("end_voltage", metadata.Float(m.endVoltage))
	_ = settings.Set("voltage_step", metadata.Float(m.voltageStep))
	_ = settings.Set("oscillator_amplitude", metadata.Float(m.oscillatorAmplitude))
	return settings
}

func (m *CapacitanceVoltage) Columns() []string {
	return []string{"Voltage (V)", "Magnitude (Ohm)", "Phase (rad)"}
}

func (m *CapacitanceVoltage) Run(ctx context.Context, dev device.Device, relay datastream.Relay) (Result, error) {
	channel, ok := device.FindChannel(dev, device.LCRMeter)
	if !ok {
		return Result{}, fmt.Errorf("%w: device %s has no LCR channel", ErrSettings, dev.Name())
	}
	lcr, ok := channel.(device.ImpedanceMeasurer)
	if !ok {
		return Result{}, fmt.Errorf("%w: channel %s does not implement ImpedanceMeasurer", ErrSettings, channel.Name())
	}

	release, err := dev.Connect(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("connect %s: %w", dev.Name(), err)
	}
	defer release()

	if err := lcr.SetOscillator(ctx, m.frequency, m.oscillatorAmplitude); err != nil {
		return Result{}, fmt.Errorf("set oscillator: %w", err)
	}

	result := NewResult(m.Columns()...)
	for _, bias := range sweepPoints(m.startVoltage, m.endVoltage, m.voltageStep) {
		if err := lcr.SourceVoltage(ctx, bias); err != nil {
			return Result{}, fmt.Errorf("source bias %v V: %w", bias, err)
		}
		magnitude, phase, err := lcr.MeasureImpedance(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("measure impedance: %w", err)
		}
		if err := result.Append(bias, magnitude, phase); err != nil {
			return Result{}, err
		}
		relay.Publish(datastream.Datapoint{Values: []float64{bias, magnitude, phase}})
	}
	return result, nil
}
