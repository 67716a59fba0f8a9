// Package geo provides the geographic primitives used by the trip tools:
// locations, distances, great-circle interpolation and polylines.
package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Location is a WGS84 point in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Pt is shorthand for a Location literal.
func Pt(lat, lng float64) Location {
	return Location{Latitude: lat, Longitude: lng}
}

// UnmarshalJSON accepts the shapes clients send paths in:
// {"latitude":..,"longitude":..}, {"lat":..,"lng":..}, {"lat":..,"lon":..},
// a [lat, lng] pair, or a coordinate string understood by ParsePoint.
func (l *Location) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty location")
	}

	switch data[0] {
	case '[':
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("decoding coordinate pair: %w", err)
		}
		if len(pair) < 2 {
			return fmt.Errorf("coordinate pair needs 2 values, got %d", len(pair))
		}
		l.Latitude, l.Longitude = pair[0], pair[1]
		return nil

	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		p, err := ParsePoint(s)
		if err != nil {
			return err
		}
		*l = p
		return nil

	case '{':
		var obj struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			Lat       *float64 `json:"lat"`
			Lng       *float64 `json:"lng"`
			Lon       *float64 `json:"lon"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decoding location object: %w", err)
		}
		lat := firstSet(obj.Latitude, obj.Lat)
		lng := firstSet(obj.Longitude, obj.Lng, obj.Lon)
		if lat == nil || lng == nil {
			return fmt.Errorf("location object needs latitude and longitude")
		}
		l.Latitude, l.Longitude = *lat, *lng
		return nil
	}

	return fmt.Errorf("unsupported location encoding: %s", string(data))
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// BoundingBox is the smallest lat/lng rectangle around a set of points.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// Bounds returns the bounding box of points. The zero box is returned for an
// empty slice.
func Bounds(points []Location) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	bb := BoundingBox{
		MinLat: points[0].Latitude, MaxLat: points[0].Latitude,
		MinLon: points[0].Longitude, MaxLon: points[0].Longitude,
	}
	for _, p := range points[1:] {
		bb.MinLat = min(bb.MinLat, p.Latitude)
		bb.MaxLat = max(bb.MaxLat, p.Latitude)
		bb.MinLon = min(bb.MinLon, p.Longitude)
		bb.MaxLon = max(bb.MaxLon, p.Longitude)
	}
	return bb
}
