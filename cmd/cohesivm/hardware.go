package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"cohesivm/internal/config"
	"cohesivm/internal/device"
	"cohesivm/internal/iface"
	"cohesivm/internal/measure"
)

// measurementFlags collects the sweep parameters shared by run and preview.
type measurementFlags struct {
	name       string
	start      float64
	end        float64
	step       float64
	hysteresis bool
	frequency  float64
	amplitude  float64
}

func (f *measurementFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.name, "measurement", "m", "iv", "Measurement to run (iv or cv)")
	flags.Float64Var(&f.start, "start", -1.0, "Sweep start voltage in volts")
	flags.Float64Var(&f.end, "end", 1.0, "Sweep end voltage in volts")
	flags.Float64Var(&f.step, "step", 0.1, "Sweep step size in volts")
	flags.BoolVar(&f.hysteresis, "hysteresis", false, "Sweep back to the start voltage (iv only)")
	flags.Float64Var(&f.frequency, "frequency", 1e5, "Oscillator frequency in hertz (cv only)")
	flags.Float64Var(&f.amplitude, "amplitude", 0.1, "Oscillator amplitude in volts (cv only)")
}

func (f *measurementFlags) build() (measure.Measurement, error) {
	switch strings.ToLower(strings.TrimSpace(f.name)) {
	case "iv":
		return measure.NewCurrentVoltage(f.start, f.end, f.step, f.hysteresis)
	case "cv":
		return measure.NewCapacitanceVoltage(f.frequency, f.start, f.end, f.step, f.amplitude)
	default:
		return nil, fmt.Errorf("unknown measurement %q (expected iv or cv)", f.name)
	}
}

func buildInterface(name string, cfg *config.Config) (iface.Interface, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trivial":
		return iface.NewTrivialHILO(nil, nil), nil
	case "ma8x8":
		if cfg.Hardware.MA8X8Port == "" {
			return nil, fmt.Errorf("interface ma8x8 needs hardware.ma8x8_port in the configuration")
		}
		return iface.NewMA8X8(cfg.Hardware.MA8X8Port), nil
	default:
		return nil, fmt.Errorf("unknown interface %q (expected trivial or ma8x8)", name)
	}
}

func buildDevice(cfg *config.Config) device.Device {
	return device.NewSimulated(cfg.Simulation.ResistanceOhm, cfg.Simulation.CapacitanceFarad)
}

// settleDelay maps the configured milliseconds onto experiment.Params
// semantics, where zero means the built-in default and negative disables the
// wait. A configured 0 therefore becomes a negative duration.
func settleDelay(cfg *config.Config) time.Duration {
	if cfg.Workflow.PixelSettleMillis == 0 {
		return -1
	}
	return time.Duration(cfg.Workflow.PixelSettleMillis) * time.Millisecond
}

func splitPixels(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	pixels := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			pixels = append(pixels, trimmed)
		}
	}
	return pixels
}
