// Package iface models the physical contacting of a sample: which pixels
// exist, where they sit, and how one of them gets routed to the device
// terminals.
package iface

import (
	"context"
	"errors"
	"fmt"

	"cohesivm/internal/dimensions"
)

// ErrPixel marks a pixel id that is not available on an interface.
var ErrPixel = errors.New("pixel not available")

// Type tags the terminal arrangement an interface provides. Measurements
// declare the type they need; the compatibility check compares the tags.
type Type string

// HILO is a two-terminal arrangement with one high and one low contact.
const HILO Type = "HI-LO"

// Interface is the contract for sample contacting hardware.
type Interface interface {
	Name() string
	Type() Type
	// Pixels returns the available pixel ids in layout order.
	Pixels() []string
	// Layout maps pixel ids to their (x, y) position on the sample.
	Layout() map[string][2]float64
	SampleDimensions() dimensions.Shape
	PixelDimensions() map[string]dimensions.Shape
	// SelectPixel routes the pixel to the device terminals.
	SelectPixel(ctx context.Context, pixel string) error
}

func checkPixel(pixels []string, pixel string) error {
	for _, candidate := range pixels {
		if candidate == pixel {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrPixel, pixel)
}
