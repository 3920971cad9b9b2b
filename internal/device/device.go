// Package device models measurement hardware as devices exposing channels.
// Channels advertise capability tags; measurement procedures state the
// capabilities they need and the compatibility check matches the two without
// knowing concrete types.
package device

import (
	"context"

	"cohesivm/internal/metadata"
)

// Capability tags what a channel can do.
type Capability string

const (
	// SourceMeasureUnit channels source a voltage and measure voltage and
	// current at the same terminals.
	SourceMeasureUnit Capability = "SourceMeasureUnit"
	// LCRMeter channels apply an AC oscillator on a DC bias and measure
	// complex impedance.
	LCRMeter Capability = "LCRMeter"
	// Voltmeter channels measure a voltage.
	Voltmeter Capability = "Voltmeter"
)

// Channel is one independently controllable terminal set of a device.
// Concrete channels additionally implement the method interface of each
// capability they advertise (SourceMeasurer, ImpedanceMeasurer, VoltageMeasurer).
type Channel interface {
	Name() string
	Capabilities() []Capability
	// Settings returns the channel configuration applied on connect. The
	// values become part of the stored dataset metadata.
	Settings() metadata.Settings
}

// SourceMeasurer is the method surface of the SourceMeasureUnit capability.
type SourceMeasurer interface {
	Channel
	SourceVoltage(ctx context.Context, voltage float64) error
	MeasureVoltage(ctx context.Context) (float64, error)
	MeasureCurrent(ctx context.Context) (float64, error)
}

// ImpedanceMeasurer is the method surface of the LCRMeter capability.
type ImpedanceMeasurer interface {
	Channel
	SetOscillator(ctx context.Context, frequency, amplitude float64) error
	SourceVoltage(ctx context.Context, bias float64) error
	// MeasureImpedance returns the impedance magnitude in ohm and the phase
	// angle in radians.
	MeasureImpedance(ctx context.Context) (magnitude, phase float64, err error)
}

// VoltageMeasurer is the method surface of the Voltmeter capability.
type VoltageMeasurer interface {
	Channel
	MeasureVoltage(ctx context.Context) (float64, error)
}

// Device is a piece of measurement hardware with a fixed channel list.
type Device interface {
	Name() string
	Channels() []Channel
	// Connect establishes the hardware session and applies the channel
	// settings. The returned release func tears the session down; callers
	// defer it so channels are disabled on every exit path.
	Connect(ctx context.Context) (release func(), err error)
}

// HasCapability reports whether the channel advertises the capability.
func HasCapability(ch Channel, capability Capability) bool {
	for _, c := range ch.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}

// FindChannel returns the first device channel advertising the capability.
func FindChannel(dev Device, capability Capability) (Channel, bool) {
	for _, ch := range dev.Channels() {
		if HasCapability(ch, capability) {
			return ch, true
		}
	}
	return nil, false
}
