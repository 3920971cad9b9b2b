package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the value types a measurement setting can carry.
type Kind int

const (
	KindBool Kind = iota
	KindFloat
	KindString
	KindFloats
)

// Value is a setting value: a scalar or a one-dimensional numeric array.
// Numeric values are carried as float64; nested arrays cannot be represented.
type Value struct {
	kind   Kind
	scalar float64
	str    string
	flag   bool
	array  []float64
}

// Bool wraps a boolean setting value.
func Bool(value bool) Value { return Value{kind: KindBool, flag: value} }

// Float wraps a numeric setting value.
func Float(value float64) Value { return Value{kind: KindFloat, scalar: value} }

// Int wraps an integral setting value. Stored as float64.
func Int(value int) Value { return Value{kind: KindFloat, scalar: float64(value)} }

// String wraps a textual setting value.
func String(value string) Value { return Value{kind: KindString, str: value} }

// Floats wraps a one-dimensional numeric array setting value.
func Floats(values ...float64) Value {
	cp := make([]float64, len(values))
	copy(cp, values)
	return Value{kind: KindFloats, array: cp}
}

// Kind returns the value type tag.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload; false for other kinds.
func (v Value) AsBool() bool { return v.flag }

// AsFloat returns the numeric payload; 0 for other kinds.
func (v Value) AsFloat() float64 { return v.scalar }

// AsString returns the textual payload; "" for other kinds.
func (v Value) AsString() string { return v.str }

// AsFloats returns a copy of the array payload; nil for other kinds.
func (v Value) AsFloats() []float64 {
	if v.kind != KindFloats {
		return nil
	}
	cp := make([]float64, len(v.array))
	copy(cp, v.array)
	return cp
}

// Equal compares kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.flag == other.flag
	case KindFloat:
		return v.scalar == other.scalar
	case KindString:
		return v.str == other.str
	case KindFloats:
		if len(v.array) != len(other.array) {
			return false
		}
		for i := range v.array {
			if v.array[i] != other.array[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Literal returns the deterministic textual encoding used for key hashing.
func (v Value) Literal() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindFloat:
		return strconv.FormatFloat(v.scalar, 'g', -1, 64)
	case KindString:
		return v.str
	case KindFloats:
		parts := make([]string, len(v.array))
		for i, f := range v.array {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ""
}

// MarshalJSON encodes the payload as its natural JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.flag)
	case KindFloat:
		return json.Marshal(v.scalar)
	case KindString:
		return json.Marshal(v.str)
	case KindFloats:
		if v.array == nil {
			return json.Marshal([]float64{})
		}
		return json.Marshal(v.array)
	}
	return nil, fmt.Errorf("%w: unknown value kind %d", ErrValidation, v.kind)
}

// UnmarshalJSON decodes a bool, number, string, or flat numeric array.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "true" || trimmed == "false":
		var flag bool
		if err := json.Unmarshal(data, &flag); err != nil {
			return err
		}
		*v = Bool(flag)
	case strings.HasPrefix(trimmed, `"`):
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = String(str)
	case strings.HasPrefix(trimmed, "["):
		var array []float64
		if err := json.Unmarshal(data, &array); err != nil {
			return fmt.Errorf("%w: setting arrays must be one-dimensional and numeric: %v", ErrValidation, err)
		}
		*v = Value{kind: KindFloats, array: array}
	default:
		var scalar float64
		if err := json.Unmarshal(data, &scalar); err != nil {
			return fmt.Errorf("%w: unsupported setting value %s", ErrValidation, trimmed)
		}
		*v = Float(scalar)
	}
	return nil
}
