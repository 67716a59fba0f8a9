// Package attribution apportions the distance of a travel path among the
// countries it crosses.
package attribution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Value is the distance attributed to one country, in meters. It is either
// a flat total or, for rail journeys with electrification data, a split
// between electrified and non-electrified track.
type Value struct {
	split   bool
	meters  float64
	elec    float64
	nonelec float64
}

// Flat returns an unsplit distance.
func Flat(meters float64) Value {
	return Value{meters: meters}
}

// Split returns a distance divided into electrified and non-electrified track.
func Split(elec, nonelec float64) Value {
	return Value{split: true, elec: elec, nonelec: nonelec}
}

// IsSplit reports whether v carries an electrification split.
func (v Value) IsSplit() bool { return v.split }

// Meters returns the total distance regardless of the split.
func (v Value) Meters() float64 {
	if v.split {
		return v.elec + v.nonelec
	}
	return v.meters
}

// Parts returns the electrified and non-electrified meters. ok is false for
// flat values.
func (v Value) Parts() (elec, nonelec float64, ok bool) {
	return v.elec, v.nonelec, v.split
}

// Add combines two values. Adding a flat value to a split one counts the
// flat meters as non-electrified.
func (v Value) Add(o Value) Value {
	switch {
	case !v.split && !o.split:
		return Flat(v.meters + o.meters)
	case v.split && o.split:
		return Split(v.elec+o.elec, v.nonelec+o.nonelec)
	case v.split:
		return Split(v.elec, v.nonelec+o.meters)
	default:
		return Split(o.elec, o.nonelec+v.meters)
	}
}

type splitJSON struct {
	Elec    float64 `json:"elec"`
	NonElec float64 `json:"nonelec"`
}

// legacy rows stored the split under these keys
type legacySplitJSON struct {
	Elec     *float64 `json:"elec"`
	NonElec  *float64 `json:"nonelec"`
	Electric *float64 `json:"electric_m"`
	Diesel   *float64 `json:"diesel_m"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.split {
		return json.Marshal(splitJSON{Elec: v.elec, NonElec: v.nonelec})
	}
	return json.Marshal(v.meters)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var raw legacySplitJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid split distance: %w", err)
		}
		*v = Split(pick(raw.Elec, raw.Electric), pick(raw.NonElec, raw.Diesel))
		return nil
	}
	var m float64
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("distance must be a number or an {elec, nonelec} object: %w", err)
	}
	*v = Flat(m)
	return nil
}

func pick(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

// DistanceMap maps ISO 3166-1 alpha-2 codes (or "UN") to attributed
// distance.
type DistanceMap map[string]Value

// Total returns the summed meters over every country.
func (m DistanceMap) Total() float64 {
	if len(m) == 0 {
		return 0
	}
	vals := make([]float64, 0, len(m))
	for _, v := range m {
		vals = append(vals, v.Meters())
	}
	return floats.Sum(vals)
}

// Codes returns the country codes in lexical order.
func (m DistanceMap) Codes() []string {
	codes := make([]string, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Add accumulates v under code.
func (m DistanceMap) Add(code string, v Value) {
	if cur, ok := m[code]; ok {
		m[code] = cur.Add(v)
		return
	}
	m[code] = v
}

// Merge returns a new map holding the sum of m and other.
func (m DistanceMap) Merge(other DistanceMap) DistanceMap {
	out := make(DistanceMap, len(m)+len(other))
	for c, v := range m {
		out[c] = v
	}
	for c, v := range other {
		out.Add(c, v)
	}
	return out
}

// Scale returns a copy of m with every distance multiplied by f.
func (m DistanceMap) Scale(f float64) DistanceMap {
	out := make(DistanceMap, len(m))
	for c, v := range m {
		if v.split {
			out[c] = Split(v.elec*f, v.nonelec*f)
		} else {
			out[c] = Flat(v.meters * f)
		}
	}
	return out
}
