package device_test

import (
	"context"
	"math"
	"testing"

	"cohesivm/internal/device"
)

func TestSimulatedCapabilities(t *testing.T) {
	dev := device.NewSimulated(1e3, 1e-9)
	channels := dev.Channels()
	if len(channels) != 1 {
		t.Fatalf("expected one channel, got %d", len(channels))
	}
	for _, capability := range []device.Capability{device.SourceMeasureUnit, device.LCRMeter, device.Voltmeter} {
		if !device.HasCapability(channels[0], capability) {
			t.Fatalf("channel missing %s", capability)
		}
		if _, ok := device.FindChannel(dev, capability); !ok {
			t.Fatalf("FindChannel failed for %s", capability)
		}
	}
}

func TestSimulatedOhmicResponse(t *testing.T) {
	ctx := context.Background()
	dev := device.NewSimulated(2e3, 1e-9)
	release, err := dev.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer release()

	smu, ok := device.FindChannel(dev, device.SourceMeasureUnit)
	if !ok {
		t.Fatal("no source-measure channel")
	}
	channel := smu.(device.SourceMeasurer)
	if err := channel.SourceVoltage(ctx, 1.0); err != nil {
		t.Fatalf("SourceVoltage: %v", err)
	}
	voltage, err := channel.MeasureVoltage(ctx)
	if err != nil {
		t.Fatalf("MeasureVoltage: %v", err)
	}
	current, err := channel.MeasureCurrent(ctx)
	if err != nil {
		t.Fatalf("MeasureCurrent: %v", err)
	}
	if voltage != 1.0 {
		t.Fatalf("voltage readback %v", voltage)
	}
	if math.Abs(current-5e-4) > 1e-12 {
		t.Fatalf("current %v, want 5e-4", current)
	}
}

func TestSimulatedImpedance(t *testing.T) {
	ctx := context.Background()
	dev := device.NewSimulated(1e3, 1e-9)
	lcr, ok := device.FindChannel(dev, device.LCRMeter)
	if !ok {
		t.Fatal("no LCR channel")
	}
	channel := lcr.(device.ImpedanceMeasurer)
	if err := channel.SetOscillator(ctx, 1e5, 0.05); err != nil {
		t.Fatalf("SetOscillator: %v", err)
	}
	magnitude, phase, err := channel.MeasureImpedance(ctx)
	if err != nil {
		t.Fatalf("MeasureImpedance: %v", err)
	}
	wrc := 2 * math.Pi * 1e5 * 1e3 * 1e-9
	wantMagnitude := 1e3 / math.Sqrt(1+wrc*wrc)
	if math.Abs(magnitude-wantMagnitude) > 1e-9 {
		t.Fatalf("magnitude %v, want %v", magnitude, wantMagnitude)
	}
	if phase >= 0 {
		t.Fatalf("phase %v, want negative (capacitive)", phase)
	}
}

func TestSimulatedHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dev := device.NewSimulated(1e3, 1e-9)
	if _, err := dev.Connect(ctx); err == nil {
		t.Fatal("expected context error from Connect")
	}
	smu, _ := device.FindChannel(dev, device.SourceMeasureUnit)
	if err := smu.(device.SourceMeasurer).SourceVoltage(ctx, 1); err == nil {
		t.Fatal("expected context error from SourceVoltage")
	}
}

func TestReleaseGroundsOutput(t *testing.T) {
	ctx := context.Background()
	dev := device.NewSimulated(1e3, 1e-9)
	release, err := dev.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	smu, _ := device.FindChannel(dev, device.SourceMeasureUnit)
	channel := smu.(device.SourceMeasurer)
	if err := channel.SourceVoltage(ctx, 3); err != nil {
		t.Fatalf("SourceVoltage: %v", err)
	}
	release()
	voltage, err := channel.MeasureVoltage(ctx)
	if err != nil {
		t.Fatalf("MeasureVoltage: %v", err)
	}
	if voltage != 0 {
		t.Fatalf("output not grounded after release: %v", voltage)
	}
}
