package trip

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NERVsystems/tripmcp/pkg/geo"
)

// Path is an ordered sequence of points, latitude first.
type Path []geo.Location

// Length returns the haversine length of the path in meters.
func (p Path) Length() float64 {
	return geo.PathLength(p, geo.Haversine)
}

// Trip carries the context the emission model needs about a journey.
// Field names follow the wire format of the trip-tracking application.
type Trip struct {
	Mode         Mode            `json:"type"`
	DistanceM    float64         `json:"trip_length,omitempty"`
	DurationS    float64         `json:"estimated_trip_duration,omitempty"`
	MaterialType string          `json:"material_type,omitempty"`
	Passengers   int             `json:"passengers,omitempty"`
	Details      *RoutingDetails `json:"details,omitempty"`
}

// PassengerCount returns the number of passengers, treating anything below
// one as a single traveller.
func (t Trip) PassengerCount() int {
	if t.Passengers < 1 {
		return 1
	}
	return t.Passengers
}

// PowerType is the traction a rail routing engine reported for a route.
type PowerType string

const (
	PowerAuto     PowerType = "auto"
	PowerElectric PowerType = "electric"
	PowerThermic  PowerType = "thermic"
)

// RoutingDetails is the per-route metadata returned by the rail router.
type RoutingDetails struct {
	PowerType PowerType `json:"powerType,omitempty"`
	// Electrified is nil when the router did not report electrification.
	Electrified []ElectrifiedSegment `json:"electrified,omitempty"`
}

// Power returns the reported power type, defaulting to auto.
func (d *RoutingDetails) Power() PowerType {
	if d == nil || d.PowerType == "" {
		return PowerAuto
	}
	return PowerType(strings.ToLower(string(d.PowerType)))
}

// HasElectrification reports whether the router sent an electrified list.
func (d *RoutingDetails) HasElectrification() bool {
	return d != nil && d.Electrified != nil
}

// StatusBySegment expands the electrified ranges into a map from segment
// index to status. Ranges are half-open: [Start, End).
func (d *RoutingDetails) StatusBySegment() map[int]string {
	statuses := make(map[int]string)
	if d == nil {
		return statuses
	}
	for _, seg := range d.Electrified {
		for i := seg.Start; i < seg.End; i++ {
			statuses[i] = seg.Status
		}
	}
	return statuses
}

// ElectrifiedSegment marks path segments [Start, End) with an OSM
// electrification status such as "contact_line", "rail" or "no".
// On the wire it is a [start, end, status] triplet.
type ElectrifiedSegment struct {
	Start  int
	End    int
	Status string
}

// Electrified reports whether the status means the line carries power.
func (s ElectrifiedSegment) Electrified() bool {
	return IsElectrifiedStatus(s.Status)
}

// IsElectrifiedStatus reports whether an OSM electrified value denotes an
// electrified line.
func IsElectrifiedStatus(status string) bool {
	switch status {
	case "contact_line", "rail", "yes":
		return true
	}
	return false
}

func (s ElectrifiedSegment) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Start, s.End, s.Status})
}

func (s *ElectrifiedSegment) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("electrified segment must be [start, end, status]: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("electrified segment must have 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &s.Start); err != nil {
		return fmt.Errorf("electrified segment start: %w", err)
	}
	if err := json.Unmarshal(raw[1], &s.End); err != nil {
		return fmt.Errorf("electrified segment end: %w", err)
	}
	if err := json.Unmarshal(raw[2], &s.Status); err != nil {
		return fmt.Errorf("electrified segment status: %w", err)
	}
	return nil
}
