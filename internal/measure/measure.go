// Package measure defines the measurement procedure contract and the
// implemented procedures. A procedure declares what it needs (interface type,
// channel capabilities) and produces a structured Result; routing pixels and
// persisting data is the orchestration layer's job.
package measure

import (
	"context"
	"errors"
	"math"

	"cohesivm/internal/datastream"
	"cohesivm/internal/device"
	"cohesivm/internal/iface"
	"cohesivm/internal/metadata"
)

// ErrSettings marks invalid measurement construction parameters.
var ErrSettings = errors.New("measurement settings error")

// Measurement is one self-contained measurement procedure. Settings are fixed
// at construction; the same instance runs once per pixel.
type Measurement interface {
	// Name identifies the procedure in the database.
	Name() string
	// InterfaceType is the terminal arrangement the procedure needs.
	InterfaceType() iface.Type
	// RequiredChannels lists one capability alternative set per needed
	// channel. A device channel satisfies a slot when it advertises any of
	// the slot's capabilities.
	RequiredChannels() [][]device.Capability
	// Settings returns the procedure parameters for metadata construction.
	Settings() metadata.Settings
	// Columns returns the output column names of Run.
	Columns() []string
	// Run executes the procedure against a connected device and returns the
	// measured rows. Each row is also published to the relay.
	Run(ctx context.Context, dev device.Device, relay datastream.Relay) (Result, error)
}

// sweepPoints returns the inclusive voltage ladder from start to end.
// Values are generated from the index so float drift cannot shift the
// endpoint. Descending ranges work with a positive step.
func sweepPoints(start, end, step float64) []float64 {
	direction := 1.0
	if end < start {
		direction = -1
	}
	count := int(math.Floor(math.Abs(end-start)/step+1e-9)) + 1
	points := make([]float64, count)
	for i := range points {
		points[i] = start + float64(i)*step*direction
	}
	return points
}

// reversed returns the sweep ladder minus its last point, walked backwards.
// Appending it to the forward ladder gives the hysteresis loop.
func reversed(points []float64) []float64 {
	if len(points) < 2 {
		return nil
	}
	back := make([]float64, 0, len(points)-1)
	for i := len(points) - 2; i >= 0; i-- {
		back = append(back, points[i])
	}
	return back
}
