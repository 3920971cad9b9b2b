package testsupport

import (
	"context"

	"cohesivm/internal/datastream"
	"cohesivm/internal/device"
	"cohesivm/internal/iface"
	"cohesivm/internal/measure"
	"cohesivm/internal/metadata"
)

// StubMeasurement is a scripted measurement procedure. The zero value is a
// HI-LO single-SMU-channel procedure returning no rows; set Rows for fixed
// output, Block to hang until cancellation, or PanicMessage to crash.
type StubMeasurement struct {
	MeasurementName string
	Interface       iface.Type
	Required        [][]device.Capability
	Rows            [][]float64
	Block           bool
	PanicMessage    string
	// Calls counts completed Run invocations.
	Calls int
}

func (s *StubMeasurement) Name() string {
	if s.MeasurementName == "" {
		return "StubMeasurement"
	}
	return s.MeasurementName
}

func (s *StubMeasurement) InterfaceType() iface.Type {
	if s.Interface == "" {
		return iface.HILO
	}
	return s.Interface
}

func (s *StubMeasurement) RequiredChannels() [][]device.Capability {
	if s.Required == nil {
		return [][]device.Capability{{device.SourceMeasureUnit}}
	}
	return s.Required
}

func (s *StubMeasurement) Settings() metadata.Settings {
	settings := metadata.NewSettings()
	_ = settings.Set("stub", metadata.Bool(true))
	return settings
}

func (s *StubMeasurement) Columns() []string {
	return []string{"Voltage (V)", "Current (A)"}
}

func (s *StubMeasurement) Run(ctx context.Context, _ device.Device, relay datastream.Relay) (measure.Result, error) {
	if s.PanicMessage != "" {
		panic(s.PanicMessage)
	}
	if s.Block {
		<-ctx.Done()
		return measure.Result{}, ctx.Err()
	}
	result := measure.NewResult(s.Columns()...)
	for _, row := range s.Rows {
		if err := result.Append(row...); err != nil {
			return measure.Result{}, err
		}
		relay.Publish(datastream.Datapoint{Values: row})
	}
	s.Calls++
	return result, nil
}

// VoltmeterDevice is a device whose single channel only measures voltage.
// Used to provoke capability mismatches.
type VoltmeterDevice struct{}

func (VoltmeterDevice) Name() string { return "StubVoltmeter" }

func (VoltmeterDevice) Channels() []device.Channel {
	return []device.Channel{voltmeterChannel{}}
}

func (VoltmeterDevice) Connect(ctx context.Context) (func(), error) {
	return func() {}, ctx.Err()
}

type voltmeterChannel struct{}

func (voltmeterChannel) Name() string { return "vm1" }

func (voltmeterChannel) Capabilities() []device.Capability {
	return []device.Capability{device.Voltmeter}
}

func (voltmeterChannel) Settings() metadata.Settings { return metadata.NewSettings() }

func (voltmeterChannel) MeasureVoltage(ctx context.Context) (float64, error) {
	return 0, ctx.Err()
}

// ChannellessDevice has no channels at all.
type ChannellessDevice struct{}

func (ChannellessDevice) Name() string { return "StubEmpty" }

func (ChannellessDevice) Channels() []device.Channel { return nil }

func (ChannellessDevice) Connect(ctx context.Context) (func(), error) {
	return func() {}, ctx.Err()
}
