// Package metadata defines the immutable description of one measurement run
// and the settings-derived key under which its dataset is stored.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrValidation marks malformed metadata construction input.
var ErrValidation = errors.New("metadata validation error")

// DCMI carries the Dublin-Core-style descriptive fields stored with a
// dataset. Publisher, Creator, Rights and Subject usually come from
// configuration; Identifier, Title and Date are resolved by the database at
// registration time when left empty.
type DCMI struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Publisher   string `json:"publisher"`
	Creator     string `json:"creator"`
	Type        string `json:"type"`
	Rights      string `json:"rights"`
	Subject     string `json:"subject"`
}

// Params is the construction input for a Metadata value.
type Params struct {
	Measurement      string
	Settings         Settings
	SampleID         string
	Device           string
	Channels         []string
	ChannelSettings  []Settings
	Interface        string
	SampleDimensions string
	PixelIDs         []string
	PixelPositions   map[string][2]float64
	PixelDimensions  map[string]string
	DCMI             DCMI
}

// Metadata describes one planned or executed measurement run. Construct it
// with New; it is immutable afterwards. Changing settings means building a
// new Metadata, which changes the key and therefore the storage path.
type Metadata struct {
	measurement      string
	settings         Settings
	settingsKey      string
	sampleID         string
	device           string
	channels         []string
	channelSettings  []Settings
	iface            string
	sampleDimensions string
	pixelIDs         []string
	pixelPositions   map[string][2]float64
	pixelDimensions  map[string]string
	dcmi             DCMI
}

// New validates the parameters and derives the settings key.
func New(p Params) (*Metadata, error) {
	if p.Measurement == "" {
		return nil, fmt.Errorf("%w: measurement name must not be empty", ErrValidation)
	}
	if p.SampleID == "" {
		return nil, fmt.Errorf("%w: sample id must not be empty", ErrValidation)
	}
	if p.Settings.Len() == 0 {
		return nil, fmt.Errorf("%w: measurement settings must not be empty", ErrValidation)
	}
	if len(p.Channels) != len(p.ChannelSettings) {
		return nil, fmt.Errorf("%w: %d channels but %d channel settings",
			ErrValidation, len(p.Channels), len(p.ChannelSettings))
	}
	for _, pixel := range p.PixelIDs {
		if _, ok := p.PixelPositions[pixel]; !ok {
			return nil, fmt.Errorf("%w: pixel %q has no position", ErrValidation, pixel)
		}
		if _, ok := p.PixelDimensions[pixel]; !ok {
			return nil, fmt.Errorf("%w: pixel %q has no dimensions", ErrValidation, pixel)
		}
	}

	dcmi := p.DCMI
	if dcmi.Type == "" {
		dcmi.Type = "dctype:Dataset"
	}
	if dcmi.Description == "" {
		dcmi.Description = "No description"
	}

	m := &Metadata{
		measurement:      p.Measurement,
		settings:         p.Settings.Clone(),
		settingsKey:      Key(p.Settings),
		sampleID:         p.SampleID,
		device:           p.Device,
		channels:         append([]string(nil), p.Channels...),
		channelSettings:  cloneSettingsList(p.ChannelSettings),
		iface:            p.Interface,
		sampleDimensions: p.SampleDimensions,
		pixelIDs:         append([]string(nil), p.PixelIDs...),
		pixelPositions:   clonePositions(p.PixelPositions),
		pixelDimensions:  cloneStringMap(p.PixelDimensions),
		dcmi:             dcmi,
	}
	return m, nil
}

// Measurement returns the measurement procedure name.
func (m *Metadata) Measurement() string { return m.measurement }

// Settings returns a copy of the measurement settings.
func (m *Metadata) Settings() Settings { return m.settings.Clone() }

// SettingsKey returns the key derived from the settings mapping.
func (m *Metadata) SettingsKey() string { return m.settingsKey }

// SampleID returns the sample identifier.
func (m *Metadata) SampleID() string { return m.sampleID }

// Device returns the device name.
func (m *Metadata) Device() string { return m.device }

// Channels returns the channel names in device order.
func (m *Metadata) Channels() []string { return append([]string(nil), m.channels...) }

// ChannelSettings returns the per-channel settings in device order.
func (m *Metadata) ChannelSettings() []Settings { return cloneSettingsList(m.channelSettings) }

// Interface returns the interface name.
func (m *Metadata) Interface() string { return m.iface }

// SampleDimensions returns the canonical string of the sample shape.
func (m *Metadata) SampleDimensions() string { return m.sampleDimensions }

// PixelIDs returns the interface pixel ids in layout order.
func (m *Metadata) PixelIDs() []string { return append([]string(nil), m.pixelIDs...) }

// PixelPositions returns the pixel layout.
func (m *Metadata) PixelPositions() map[string][2]float64 { return clonePositions(m.pixelPositions) }

// PixelDimensions returns the canonical shape string per pixel.
func (m *Metadata) PixelDimensions() map[string]string { return cloneStringMap(m.pixelDimensions) }

// DCMI returns the descriptive fields.
func (m *Metadata) DCMI() DCMI { return m.dcmi }

// WithResolvedDCMI returns a copy whose empty Identifier, Title and Date
// fields are filled with the given values. The database calls this at dataset
// registration time; explicitly provided fields win.
func (m *Metadata) WithResolvedDCMI(identifier, title, date string) *Metadata {
	cp := m.Copy()
	if cp.dcmi.Identifier == "" {
		cp.dcmi.Identifier = identifier
	}
	if cp.dcmi.Title == "" {
		cp.dcmi.Title = title
	}
	if cp.dcmi.Date == "" {
		cp.dcmi.Date = date
	}
	return cp
}

// Copy returns a deep, independent copy.
func (m *Metadata) Copy() *Metadata {
	cp := *m
	cp.settings = m.settings.Clone()
	cp.channels = append([]string(nil), m.channels...)
	cp.channelSettings = cloneSettingsList(m.channelSettings)
	cp.pixelIDs = append([]string(nil), m.pixelIDs...)
	cp.pixelPositions = clonePositions(m.pixelPositions)
	cp.pixelDimensions = cloneStringMap(m.pixelDimensions)
	return &cp
}

// Equal compares all observable fields.
func (m *Metadata) Equal(other *Metadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.measurement != other.measurement ||
		m.sampleID != other.sampleID ||
		m.device != other.device ||
		m.iface != other.iface ||
		m.sampleDimensions != other.sampleDimensions ||
		m.dcmi != other.dcmi ||
		!m.settings.Equal(other.settings) ||
		len(m.channels) != len(other.channels) ||
		len(m.pixelIDs) != len(other.pixelIDs) {
		return false
	}
	for i := range m.channels {
		if m.channels[i] != other.channels[i] || !m.channelSettings[i].Equal(other.channelSettings[i]) {
			return false
		}
	}
	for i := range m.pixelIDs {
		pixel := m.pixelIDs[i]
		if pixel != other.pixelIDs[i] ||
			m.pixelPositions[pixel] != other.pixelPositions[pixel] ||
			m.pixelDimensions[pixel] != other.pixelDimensions[pixel] {
			return false
		}
	}
	return true
}

type metadataJSON struct {
	Measurement      string                `json:"measurement"`
	Settings         Settings              `json:"measurement_settings"`
	SampleID         string                `json:"sample_id"`
	Device           string                `json:"device"`
	Channels         []string              `json:"channels"`
	ChannelSettings  []Settings            `json:"channels_settings"`
	Interface        string                `json:"interface"`
	SampleDimensions string                `json:"sample_dimensions"`
	PixelIDs         []string              `json:"pixel_ids"`
	PixelPositions   map[string][2]float64 `json:"pixel_positions"`
	PixelDimensions  map[string]string     `json:"pixel_dimensions"`
	DCMI             DCMI                  `json:"dcmi"`
}

// MarshalJSON encodes all observable fields for storage.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataJSON{
		Measurement:      m.measurement,
		Settings:         m.settings,
		SampleID:         m.sampleID,
		Device:           m.device,
		Channels:         m.channels,
		ChannelSettings:  m.channelSettings,
		Interface:        m.iface,
		SampleDimensions: m.sampleDimensions,
		PixelIDs:         m.pixelIDs,
		PixelPositions:   m.pixelPositions,
		PixelDimensions:  m.pixelDimensions,
		DCMI:             m.dcmi,
	})
}

// UnmarshalJSON decodes a stored metadata record, re-deriving the settings key.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var decoded metadataJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	rebuilt, err := New(Params{
		Measurement:      decoded.Measurement,
		Settings:         decoded.Settings,
		SampleID:         decoded.SampleID,
		Device:           decoded.Device,
		Channels:         decoded.Channels,
		ChannelSettings:  decoded.ChannelSettings,
		Interface:        decoded.Interface,
		SampleDimensions: decoded.SampleDimensions,
		PixelIDs:         decoded.PixelIDs,
		PixelPositions:   decoded.PixelPositions,
		PixelDimensions:  decoded.PixelDimensions,
		DCMI:             decoded.DCMI,
	})
	if err != nil {
		return err
	}
	*m = *rebuilt
	return nil
}

func cloneSettingsList(list []Settings) []Settings {
	cp := make([]Settings, len(list))
	for i, settings := range list {
		cp[i] = settings.Clone()
	}
	return cp
}

func clonePositions(positions map[string][2]float64) map[string][2]float64 {
	cp := make(map[string][2]float64, len(positions))
	for key, value := range positions {
		cp[key] = value
	}
	return cp
}

func cloneStringMap(values map[string]string) map[string]string {
	cp := make(map[string]string, len(values))
	for key, value := range values {
		cp[key] = value
	}
	return cp
}
