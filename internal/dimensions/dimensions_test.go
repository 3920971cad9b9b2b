package dimensions_test

import (
	"errors"
	"math"
	"testing"

	"cohesivm/internal/dimensions"
)

func TestRoundTrip(t *testing.T) {
	shapes := []dimensions.Shape{
		dimensions.Point{},
		dimensions.NewRectangle(2.8, 0, "mm"),
		dimensions.NewRectangle(1.5, 3.25, "um"),
		dimensions.NewCircle(0.75, "mm"),
	}
	for _, shape := range shapes {
		parsed, err := dimensions.Parse(shape.String())
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", shape.String(), err)
		}
		if parsed != shape {
			t.Fatalf("round trip mismatch: got %#v, want %#v", parsed, shape)
		}
	}
}

func TestArea(t *testing.T) {
	if area := (dimensions.Point{}).Area(); area != 0 {
		t.Fatalf("point area = %v, want 0", area)
	}
	if area := dimensions.NewRectangle(2, 3, "mm").Area(); area != 6 {
		t.Fatalf("rectangle area = %v, want 6", area)
	}
	want := math.Pi * 4
	if area := dimensions.NewCircle(2, "mm").Area(); area != want {
		t.Fatalf("circle area = %v, want %v", area, want)
	}
}

func TestSquareDefault(t *testing.T) {
	square := dimensions.NewRectangle(2.5, 0, "")
	if square.Height != 2.5 || square.Unit != "mm" {
		t.Fatalf("unexpected square: %#v", square)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"no-separator",
		"Triangle:side=1",
		"Rectangle:width=abc,height=1,unit=mm",
		"Rectangle:height=1,unit=mm",
		"Circle:radius",
	}
	for _, raw := range cases {
		if _, err := dimensions.Parse(raw); !errors.Is(err, dimensions.ErrParse) {
			t.Fatalf("Parse(%q) = %v, want ErrParse", raw, err)
		}
	}
}
