// Package trip defines the travel records the engine works on: transport
// modes, paths and the routing context attached to rail journeys.
package trip

import (
	"fmt"
	"strings"
)

// Mode is a transport mode.
type Mode string

const (
	Train      Mode = "train"
	Bus        Mode = "bus"
	Air        Mode = "air"
	Helicopter Mode = "helicopter"
	Ferry      Mode = "ferry"
	Car        Mode = "car"
	Metro      Mode = "metro"
	Tram       Mode = "tram"
	Aerialway  Mode = "aerialway"
	Cycle      Mode = "cycle"
	Walk       Mode = "walk"
)

// Modes lists every supported mode.
var Modes = []Mode{Train, Bus, Air, Helicopter, Ferry, Car, Metro, Tram, Aerialway, Cycle, Walk}

// ParseMode normalises s and reports whether it names a supported mode.
// Unsupported strings are still returned as a Mode so callers can carry
// them through attribution.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Supported()
}

// MustMode is ParseMode for callers that require a supported mode.
func MustMode(s string) (Mode, error) {
	m, ok := ParseMode(s)
	if !ok {
		return m, fmt.Errorf("unsupported mode %q, must be one of: %s", s, modeList())
	}
	return m, nil
}

// Supported reports whether m is one of Modes.
func (m Mode) Supported() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// IsAerial reports whether m travels through the air between endpoints.
func (m Mode) IsAerial() bool {
	return m == Air || m == Helicopter
}

// IsRail reports whether m belongs to the rail family.
func (m Mode) IsRail() bool {
	switch m {
	case Train, Metro, Tram, Aerialway:
		return true
	}
	return false
}

// ForcedElectric reports whether the mode always runs on electricity.
func (m Mode) ForcedElectric() bool {
	return m == Metro || m == Tram || m == Aerialway
}

func modeList() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
