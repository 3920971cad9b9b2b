// Package dimensions models the physical geometry of samples and pixels as
// small value types with an exact canonical string form.
//
// The canonical form is "Name:field=value,..." with fields in declaration
// order, e.g. "Rectangle:width=2.8,height=2.8,unit=mm". Parse reconstructs a
// value that compares equal to the original.
package dimensions

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrParse marks a dimensions string that cannot be decoded.
var ErrParse = errors.New("dimensions parse error")

// Shape describes the dimensions of a physical object.
type Shape interface {
	// Area returns the area of the shape, 0 for a point.
	Area() float64
	// String returns the canonical encoding understood by Parse.
	String() string
}

// Point is a dimensionless contact.
type Point struct{}

func (Point) Area() float64 { return 0 }

func (Point) String() string { return "Point:" }

// Rectangle is an axis-aligned rectangle with its origin in the bottom left
// corner.
type Rectangle struct {
	Width  float64
	Height float64
	Unit   string
}

// NewRectangle builds a rectangle; pass height 0 for a square.
func NewRectangle(width, height float64, unit string) Rectangle {
	if height == 0 {
		height = width
	}
	if unit == "" {
		unit = "mm"
	}
	return Rectangle{Width: width, Height: height, Unit: unit}
}

func (r Rectangle) Area() float64 { return r.Width * r.Height }

func (r Rectangle) String() string {
	return fmt.Sprintf("Rectangle:width=%s,height=%s,unit=%s",
		formatFloat(r.Width), formatFloat(r.Height), r.Unit)
}

// Circle has its origin in the center.
type Circle struct {
	Radius float64
	Unit   string
}

// NewCircle builds a circle with a default unit of millimeters.
func NewCircle(radius float64, unit string) Circle {
	if unit == "" {
		unit = "mm"
	}
	return Circle{Radius: radius, Unit: unit}
}

func (c Circle) Area() float64 { return c.Radius * c.Radius * math.Pi }

func (c Circle) String() string {
	return fmt.Sprintf("Circle:radius=%s,unit=%s", formatFloat(c.Radius), c.Unit)
}

// Parse decodes the canonical string form of a Shape.
func Parse(value string) (Shape, error) {
	name, rawFields, ok := strings.Cut(value, ":")
	if !ok {
		return nil, fmt.Errorf("%w: missing shape name in %q", ErrParse, value)
	}

	fields := map[string]string{}
	if rawFields != "" {
		for _, pair := range strings.Split(rawFields, ",") {
			key, val, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("%w: malformed field %q in %q", ErrParse, pair, value)
			}
			fields[key] = val
		}
	}

	switch name {
	case "Point":
		return Point{}, nil
	case "Rectangle":
		width, err := floatField(fields, "width")
		if err != nil {
			return nil, err
		}
		height, err := floatField(fields, "height")
		if err != nil {
			return nil, err
		}
		return Rectangle{Width: width, Height: height, Unit: fields["unit"]}, nil
	case "Circle":
		radius, err := floatField(fields, "radius")
		if err != nil {
			return nil, err
		}
		return Circle{Radius: radius, Unit: fields["unit"]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown shape %q", ErrParse, name)
	}
}

func floatField(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrParse, key)
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q: %q is not numeric", ErrParse, key, raw)
	}
	return parsed, nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}
