package iface

import (
	"context"

	"cohesivm/internal/dimensions"
)

// TrivialHILO is the conventional single-point contact: one high and one low
// terminal clipped to the sample, a single pixel "0". Selecting the pixel is
// a no-op, which also covers setups where contacting happens by hand.
type TrivialHILO struct {
	sample dimensions.Shape
	pixel  dimensions.Shape
}

// NewTrivialHILO builds the interface. Nil shapes default to Point.
func NewTrivialHILO(sample, pixel dimensions.Shape) *TrivialHILO {
	if sample == nil {
		sample = dimensions.Point{}
	}
	if pixel == nil {
		pixel = dimensions.Point{}
	}
	return &TrivialHILO{sample: sample, pixel: pixel}
}

func (t *TrivialHILO) Name() string { return "TrivialHILO" }

func (t *TrivialHILO) Type() Type { return HILO }

func (t *TrivialHILO) Pixels() []string { return []string{"0"} }

func (t *TrivialHILO) Layout() map[string][2]float64 {
	return map[string][2]float64{"0": {0, 0}}
}

func (t *TrivialHILO) SampleDimensions() dimensions.Shape { return t.sample }

func (t *TrivialHILO) PixelDimensions() map[string]dimensions.Shape {
	return map[string]dimensions.Shape{"0": t.pixel}
}

func (t *TrivialHILO) SelectPixel(ctx context.Context, pixel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return checkPixel(t.Pixels(), pixel)
}
