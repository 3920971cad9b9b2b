package experiment

import (
	"errors"
	"fmt"

	"cohesivm/internal/device"
	"cohesivm/internal/iface"
	"cohesivm/internal/measure"
)

// ErrCompatibility marks a measurement/device/interface/pixel mismatch found
// before anything runs.
var ErrCompatibility = errors.New("compatibility error")

// checkCompatibility validates the collaborator combination. Checks run in a
// fixed order and the first failure is returned; nothing is mutated.
func checkCompatibility(m measure.Measurement, dev device.Device, contact iface.Interface, pixels []string) error {
	if m.InterfaceType() != contact.Type() {
		return fmt.Errorf("%w: measurement %s needs interface type %q, %s provides %q",
			ErrCompatibility, m.Name(), m.InterfaceType(), contact.Name(), contact.Type())
	}

	required := m.RequiredChannels()
	channels := dev.Channels()
	if len(channels) < len(required) {
		return fmt.Errorf("%w: measurement %s needs %d channels, device %s has %d",
			ErrCompatibility, m.Name(), len(required), dev.Name(), len(channels))
	}

	// Positional matching: channel i must advertise one of slot i's
	// capability alternatives.
	for i, alternatives := range required {
		if !satisfiesAny(channels[i], alternatives) {
			return fmt.Errorf("%w: channel %d (%s) advertises %v, measurement %s accepts %v",
				ErrCompatibility, i, channels[i].Name(), channels[i].Capabilities(), m.Name(), alternatives)
		}
	}

	available := contact.Pixels()
	for _, pixel := range pixels {
		if !containsPixel(available, pixel) {
			return fmt.Errorf("%w: pixel %q is not available on interface %s",
				ErrCompatibility, pixel, contact.Name())
		}
	}
	return nil
}

func satisfiesAny(ch device.Channel, alternatives []device.Capability) bool {
	for _, capability := range alternatives {
		if device.HasCapability(ch, capability) {
			return true
		}
	}
	return false
}

func containsPixel(pixels []string, pixel string) bool {
	for _, candidate := range pixels {
		if candidate == pixel {
			return true
		}
	}
	return false
}
