package device

import (
	"context"
	"math"
	"sync"

	"cohesivm/internal/metadata"
)

// Simulated is a software device with one channel that behaves like a linear
// resistor with a parallel capacitance. It backs the CLI demo mode and the
// end-to-end tests, so no call touches hardware and every reading is
// deterministic.
type Simulated struct {
	channel *simChannel
}

// NewSimulated builds a simulated device. Resistance is in ohm, capacitance
// in farad; non-positive values fall back to 1 kOhm and 1 nF.
func NewSimulated(resistance, capacitance float64) *Simulated {
	if resistance <= 0 {
		resistance = 1e3
	}
	if capacitance <= 0 {
		capacitance = 1e-9
	}
	return &Simulated{channel: &simChannel{resistance: resistance, capacitance: capacitance}}
}

func (s *Simulated) Name() string { return "SimulatedRC" }

func (s *Simulated) Channels() []Channel { return []Channel{s.channel} }

// Connect arms the channel; release grounds the output.
func (s *Simulated) Connect(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.channel.mu.Lock()
	s.channel.connected = true
	s.channel.mu.Unlock()
	return func() {
		s.channel.mu.Lock()
		s.channel.connected = false
		s.channel.voltage = 0
		s.channel.mu.Unlock()
	}, nil
}

type simChannel struct {
	resistance  float64
	capacitance float64

	mu        sync.Mutex
	connected bool
	voltage   float64
	frequency float64
	amplitude float64
}

func (c *simChannel) Name() string { return "ch1" }

func (c *simChannel) Capabilities() []Capability {
	return []Capability{SourceMeasureUnit, LCRMeter, Voltmeter}
}

func (c *simChannel) Settings() metadata.Settings {
	settings := metadata.NewSettings()
	_ = settings.Set("resistance", metadata.Float(c.resistance))
	_ = settings.Set("capacitance", metadata.Float(c.capacitance))
	return settings
}

func (c *simChannel) SourceVoltage(ctx context.Context, voltage float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.voltage = voltage
	c.mu.Unlock()
	return nil
}

func (c *simChannel) MeasureVoltage(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voltage, nil
}

func (c *simChannel) MeasureCurrent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voltage / c.resistance, nil
}

func (c *simChannel) SetOscillator(ctx context.Context, frequency, amplitude float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.frequency = frequency
	c.amplitude = amplitude
	c.mu.Unlock()
	return nil
}

// MeasureImpedance reports the parallel RC impedance at the configured
// oscillator frequency: |Z| = R/sqrt(1+(wRC)^2), phase = -atan(wRC).
func (c *simChannel) MeasureImpedance(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	omega := 2 * math.Pi * c.frequency
	wrc := omega * c.resistance * c.capacitance
	magnitude := c.resistance / math.Sqrt(1+wrc*wrc)
	phase := -math.Atan(wrc)
	return magnitude, phase, nil
}
