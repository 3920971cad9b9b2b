package iface

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.bug.st/serial"

	"cohesivm/internal/dimensions"
)

// MA8X8 drives the Measurement Array 8x8: 64 front contact pixels and a
// common back contact on a 25 mm x 25 mm sample, switched by a
// serial-attached controller board. Pixel ids encode the grid position as
// row*10+column with 1-based indices ("11".."88").
type MA8X8 struct {
	port     string
	openPort func(string) (serial.Port, error)
	pixels   []string
	layout   map[string][2]float64
}

const (
	ma8x8BaudRate    = 9600
	ma8x8ReadTimeout = 2 * time.Second
	ma8x8EdgeLength  = 25.0 // mm
	ma8x8Pitch       = 2.8  // mm, pixel center spacing
	ma8x8Margin      = 2.7  // mm, first pixel center offset
)

// NewMA8X8 builds the interface for the controller board on the given serial
// port. The port is opened per pixel selection, not held: the board resets on
// open and that matches its protocol.
func NewMA8X8(port string) *MA8X8 {
	m := &MA8X8{
		port: port,
		openPort: func(name string) (serial.Port, error) {
			return serial.Open(name, &serial.Mode{BaudRate: ma8x8BaudRate})
		},
		layout: make(map[string][2]float64, 64),
	}
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			pixel := strconv.Itoa(row*10 + col)
			m.pixels = append(m.pixels, pixel)
			m.layout[pixel] = [2]float64{
				ma8x8Margin + float64(col-1)*ma8x8Pitch,
				ma8x8EdgeLength - ma8x8Margin - float64(row-1)*ma8x8Pitch,
			}
		}
	}
	return m
}

func (m *MA8X8) Name() string { return "MA8X8" }

func (m *MA8X8) Type() Type { return HILO }

func (m *MA8X8) Pixels() []string { return append([]string(nil), m.pixels...) }

func (m *MA8X8) Layout() map[string][2]float64 {
	layout := make(map[string][2]float64, len(m.layout))
	for pixel, position := range m.layout {
		layout[pixel] = position
	}
	return layout
}

func (m *MA8X8) SampleDimensions() dimensions.Shape {
	return dimensions.NewRectangle(ma8x8EdgeLength, ma8x8EdgeLength, "mm")
}

func (m *MA8X8) PixelDimensions() map[string]dimensions.Shape {
	shapes := make(map[string]dimensions.Shape, len(m.pixels))
	for _, pixel := range m.pixels {
		shapes[pixel] = dimensions.NewCircle(1, "mm")
	}
	return shapes
}

// SelectPixel writes the pixel id as ASCII and expects a "1" acknowledgement
// line from the board.
func (m *MA8X8) SelectPixel(ctx context.Context, pixel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPixel(m.pixels, pixel); err != nil {
		return err
	}

	port, err := m.openPort(m.port)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", m.port, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(ma8x8ReadTimeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	if _, err := port.Write([]byte(pixel)); err != nil {
		return fmt.Errorf("send pixel %s: %w", pixel, err)
	}

	response, err := readLine(port)
	if err != nil {
		return fmt.Errorf("read acknowledgement for pixel %s: %w", pixel, err)
	}
	if response != "1" {
		return fmt.Errorf("activate pixel %s: board answered %q", pixel, response)
	}
	return nil
}

func readLine(port serial.Port) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 { // read timeout
			break
		}
		if buf[0] == '\n' {
			break
		}
		if buf[0] != '\r' {
			line = append(line, buf[0])
		}
	}
	return string(line), nil
}
