package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Settings is an ordered mapping from setting names to values. Iteration
// follows insertion order; the derived settings key does not (see Key).
type Settings struct {
	keys   []string
	values map[string]Value
}

// NewSettings builds an empty settings mapping.
func NewSettings() Settings {
	return Settings{values: make(map[string]Value)}
}

// Set inserts or replaces a setting. Inserting preserves order of first
// insertion. An empty name is rejected.
func (s *Settings) Set(name string, value Value) error {
	if name == "" {
		return fmt.Errorf("%w: setting name must not be empty", ErrValidation)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: setting name must not contain NUL", ErrValidation)
	}
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	if _, ok := s.values[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.values[name] = value
	return nil
}

// Get looks up a setting by name.
func (s Settings) Get(name string) (Value, bool) {
	value, ok := s.values[name]
	return value, ok
}

// Keys returns the setting names in insertion order.
func (s Settings) Keys() []string {
	cp := make([]string, len(s.keys))
	copy(cp, s.keys)
	return cp
}

// Len returns the number of settings.
func (s Settings) Len() int { return len(s.keys) }

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	cp := NewSettings()
	for _, key := range s.keys {
		cp.keys = append(cp.keys, key)
		cp.values[key] = s.values[key]
	}
	return cp
}

// Equal reports whether both mappings hold the same key/value pairs,
// regardless of insertion order.
func (s Settings) Equal(other Settings) bool {
	if len(s.keys) != len(other.keys) {
		return false
	}
	for key, value := range s.values {
		theirs, ok := other.values[key]
		if !ok || !value.Equal(theirs) {
			return false
		}
	}
	return true
}

type settingsPair struct {
	Name  string `json:"k"`
	Value Value  `json:"v"`
}

// MarshalJSON encodes the mapping as an ordered pair list so insertion order
// survives storage.
func (s Settings) MarshalJSON() ([]byte, error) {
	pairs := make([]settingsPair, 0, len(s.keys))
	for _, key := range s.keys {
		pairs = append(pairs, settingsPair{Name: key, Value: s.values[key]})
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes the ordered pair list produced by MarshalJSON.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var pairs []settingsPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	decoded := NewSettings()
	for _, pair := range pairs {
		if err := decoded.Set(pair.Name, pair.Value); err != nil {
			return err
		}
	}
	*s = decoded
	return nil
}
