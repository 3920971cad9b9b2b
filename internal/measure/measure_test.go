package measure_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"cohesivm/internal/datastream"
	"cohesivm/internal/device"
	"cohesivm/internal/measure"
)

func TestNewCurrentVoltageValidation(t *testing.T) {
	if _, err := measure.NewCurrentVoltage(0, 1, 0, false); !errors.Is(err, measure.ErrSettings) {
		t.Fatalf("expected ErrSettings for zero step, got %v", err)
	}
	if _, err := measure.NewCurrentVoltage(0, 1, -0.1, false); !errors.Is(err, measure.ErrSettings) {
		t.Fatalf("expected ErrSettings for negative step, got %v", err)
	}
}

func TestCurrentVoltageRun(t *testing.T) {
	ctx := context.Background()
	iv, err := measure.NewCurrentVoltage(0, 1, 0.5, false)
	if err != nil {
		t.Fatalf("NewCurrentVoltage: %v", err)
	}
	dev := device.NewSimulated(1e3, 1e-9)
	relay := datastream.NewBuffer()

	result, err := iv.Run(ctx, dev, relay)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Len() != 3 {
		t.Fatalf("expected 3 datapoints, got %d", result.Len())
	}
	if relay.Len() != 3 {
		t.Fatalf("relay received %d points", relay.Len())
	}
	last := result.Rows[2]
	if last[0] != 1 || math.Abs(last[1]-1e-3) > 1e-12 {
		t.Fatalf("unexpected final datapoint %v", last)
	}
}

func TestCurrentVoltageHysteresis(t *testing.T) {
	ctx := context.Background()
	iv, err := measure.NewCurrentVoltage(0, 1, 0.5, true)
	if err != nil {
		t.Fatalf("NewCurrentVoltage: %v", err)
	}
	result, err := iv.Run(ctx, device.NewSimulated(1e3, 1e-9), datastream.Null{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// forward 0, 0.5, 1 then back 0.5, 0
	if result.Len() != 5 {
		t.Fatalf("expected 5 datapoints, got %d", result.Len())
	}
	if result.Rows[3][0] != 0.5 || result.Rows[4][0] != 0 {
		t.Fatalf("unexpected return branch %v", result.Rows[3:])
	}
}

func TestCurrentVoltageDescendingSweep(t *testing.T) {
	ctx := context.Background()
	iv, err := measure.NewCurrentVoltage(1, -1, 1, false)
	if err != nil {
		t.Fatalf("NewCurrentVoltage: %v", err)
	}
	result, err := iv.Run(ctx, device.NewSimulated(1e3, 1e-9), datastream.Null{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	voltages := []float64{1, 0, -1}
	if result.Len() != len(voltages) {
		t.Fatalf("expected %d datapoints, got %d", len(voltages), result.Len())
	}
	for i, want := range voltages {
		if result.Rows[i][0] != want {
			t.Fatalf("datapoint %d at %v V, want %v", i, result.Rows[i][0], want)
		}
	}
}

func TestCurrentVoltageAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	iv, err := measure.NewCurrentVoltage(0, 1, 0.1, false)
	if err != nil {
		t.Fatalf("NewCurrentVoltage: %v", err)
	}
	if _, err := iv.Run(ctx, device.NewSimulated(1e3, 1e-9), datastream.Null{}); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestCapacitanceVoltageRun(t *testing.T) {
	ctx := context.Background()
	cv, err := measure.NewCapacitanceVoltage(1e5, -1, 1, 1, 0.05)
	if err != nil {
		t.Fatalf("NewCapacitanceVoltage: %v", err)
	}
	dev := device.NewSimulated(1e3, 1e-9)

	result, err := cv.Run(ctx, dev, datastream.Null{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Len() != 3 {
		t.Fatalf("expected 3 datapoints, got %d", result.Len())
	}
	wrc := 2 * math.Pi * 1e5 * 1e3 * 1e-9
	wantMagnitude := 1e3 / math.Sqrt(1+wrc*wrc)
	for i, row := range result.Rows {
		if math.Abs(row[1]-wantMagnitude) > 1e-9 {
			t.Fatalf("row %d magnitude %v, want %v", i, row[1], wantMagnitude)
		}
		if row[2] >= 0 {
			t.Fatalf("row %d phase %v, want negative", i, row[2])
		}
	}
}

func TestCapacitanceVoltageValidation(t *testing.T) {
	if _, err := measure.NewCapacitanceVoltage(0, 0, 1, 0.1, 0.05); !errors.Is(err, measure.ErrSettings) {
		t.Fatalf("expected ErrSettings for zero frequency, got %v", err)
	}
	if _, err := measure.NewCapacitanceVoltage(1e5, 0, 1, 0.1, 0); !errors.Is(err, measure.ErrSettings) {
		t.Fatalf("expected ErrSettings for zero amplitude, got %v", err)
	}
}

func TestMeasurementContracts(t *testing.T) {
	iv, err := measure.NewCurrentVoltage(0, 1, 0.1, true)
	if err != nil {
		t.Fatalf("NewCurrentVoltage: %v", err)
	}
	settings := iv.Settings()
	for _, name := range []string{"start_voltage", "end_voltage", "voltage_step", "hysteresis"} {
		if _, ok := settings.Get(name); !ok {
			t.Fatalf("IV settings missing %q", name)
		}
	}
	if len(iv.RequiredChannels()) != 1 {
		t.Fatal("IV must require exactly one channel")
	}

	cv, err := measure.NewCapacitanceVoltage(1e5, 0, 1, 0.1, 0.05)
	if err != nil {
		t.Fatalf("NewCapacitanceVoltage: %v", err)
	}
	if cv.InterfaceType() != iv.InterfaceType() {
		t.Fatal("both procedures use the HI-LO arrangement")
	}
	if len(cv.Columns()) != 3 {
		t.Fatalf("unexpected CV columns %v", cv.Columns())
	}
}
