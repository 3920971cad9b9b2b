package iface

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.bug.st/serial"

	"cohesivm/internal/dimensions"
)

// mockSerialPort is a scripted serial.Port implementation.
type mockSerialPort struct {
	readData    []byte
	writtenData []byte
	closed      bool
}

func (m *mockSerialPort) Break(time.Duration) error                            { return nil }
func (m *mockSerialPort) Drain() error                                         { return nil }
func (m *mockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *mockSerialPort) ResetInputBuffer() error                              { return nil }
func (m *mockSerialPort) ResetOutputBuffer() error                             { return nil }
func (m *mockSerialPort) SetDTR(bool) error                                    { return nil }
func (m *mockSerialPort) SetMode(*serial.Mode) error                           { return nil }
func (m *mockSerialPort) SetReadTimeout(time.Duration) error                   { return nil }
func (m *mockSerialPort) SetRTS(bool) error                                    { return nil }

func (m *mockSerialPort) Read(p []byte) (int, error) {
	if len(m.readData) == 0 {
		return 0, nil // emulates a read timeout
	}
	n := copy(p, m.readData)
	m.readData = m.readData[n:]
	return n, nil
}

func (m *mockSerialPort) Write(p []byte) (int, error) {
	m.writtenData = append(m.writtenData, p...)
	return len(p), nil
}

func (m *mockSerialPort) Close() error {
	m.closed = true
	return nil
}

func TestTrivialHILO(t *testing.T) {
	ctx := context.Background()
	hilo := NewTrivialHILO(dimensions.NewRectangle(1, 1, "cm"), nil)

	if hilo.Type() != HILO {
		t.Fatalf("unexpected type %q", hilo.Type())
	}
	pixels := hilo.Pixels()
	if len(pixels) != 1 || pixels[0] != "0" {
		t.Fatalf("unexpected pixels %v", pixels)
	}
	if err := hilo.SelectPixel(ctx, "0"); err != nil {
		t.Fatalf("SelectPixel: %v", err)
	}
	if err := hilo.SelectPixel(ctx, "1"); !errors.Is(err, ErrPixel) {
		t.Fatalf("expected ErrPixel, got %v", err)
	}
	if hilo.PixelDimensions()["0"].String() != "Point:" {
		t.Fatal("pixel shape default is not Point")
	}
}

func TestMA8X8Layout(t *testing.T) {
	m := NewMA8X8("/dev/ttyACM0")

	pixels := m.Pixels()
	if len(pixels) != 64 {
		t.Fatalf("expected 64 pixels, got %d", len(pixels))
	}
	if pixels[0] != "11" || pixels[7] != "18" || pixels[63] != "88" {
		t.Fatalf("unexpected pixel ids %v", pixels[:8])
	}

	layout := m.Layout()
	first := layout["11"]
	if first[0] != 2.7 || first[1] != 25.0-2.7 {
		t.Fatalf("unexpected position for pixel 11: %v", first)
	}
	second := layout["12"]
	if second[0]-first[0] != 2.8 {
		t.Fatalf("unexpected column pitch: %v vs %v", first, second)
	}
	lowerRow := layout["21"]
	if math.Abs(first[1]-lowerRow[1]-2.8) > 1e-9 {
		t.Fatalf("unexpected row pitch: %v vs %v", first, lowerRow)
	}

	if m.SampleDimensions().String() != "Rectangle:width=25,height=25,unit=mm" {
		t.Fatalf("unexpected sample dimensions %q", m.SampleDimensions())
	}
}

func TestMA8X8SelectPixel(t *testing.T) {
	ctx := context.Background()
	port := &mockSerialPort{readData: []byte("1\n")}
	m := NewMA8X8("/dev/ttyACM0")
	m.openPort = func(string) (serial.Port, error) { return port, nil }

	if err := m.SelectPixel(ctx, "42"); err != nil {
		t.Fatalf("SelectPixel: %v", err)
	}
	if string(port.writtenData) != "42" {
		t.Fatalf("board received %q", port.writtenData)
	}
	if !port.closed {
		t.Fatal("port not closed after selection")
	}
}

func TestMA8X8SelectPixelRejections(t *testing.T) {
	ctx := context.Background()
	m := NewMA8X8("/dev/ttyACM0")
	m.openPort = func(string) (serial.Port, error) {
		t.Fatal("port must not be opened for an invalid pixel")
		return nil, nil
	}
	if err := m.SelectPixel(ctx, "99"); !errors.Is(err, ErrPixel) {
		t.Fatalf("expected ErrPixel, got %v", err)
	}

	m.openPort = func(string) (serial.Port, error) {
		return &mockSerialPort{readData: []byte("0\n")}, nil
	}
	if err := m.SelectPixel(ctx, "42"); err == nil {
		t.Fatal("expected error for negative acknowledgement")
	}

	m.openPort = func(string) (serial.Port, error) {
		return &mockSerialPort{}, nil
	}
	if err := m.SelectPixel(ctx, "42"); err == nil {
		t.Fatal("expected error for timed out acknowledgement")
	}
}
