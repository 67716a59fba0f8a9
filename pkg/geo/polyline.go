package geo

import (
	"errors"
	"math"
)

// Polyline precisions. Routing engines emit precision 5 (Google) or 6 (OSRM,
// Valhalla).
const (
	Polyline5 = 5
	Polyline6 = 6
)

var errTruncatedPolyline = errors.New("invalid polyline: unexpected end of string")

func polylineFactor(precision int) float64 {
	if precision == Polyline6 {
		return 1e6
	}
	return 1e5
}

// EncodePolyline encodes points with the Encoded Polyline Algorithm at the
// given precision (5 or 6).
func EncodePolyline(points []Location, precision int) string {
	if len(points) == 0 {
		return ""
	}
	factor := polylineFactor(precision)

	buf := make([]byte, 0, len(points)*12)
	prevLat, prevLng := 0, 0
	for _, p := range points {
		lat := int(math.Round(p.Latitude * factor))
		lng := int(math.Round(p.Longitude * factor))
		buf = appendSigned(buf, lat-prevLat)
		buf = appendSigned(buf, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return string(buf)
}

// DecodePolyline decodes an encoded polyline at the given precision.
func DecodePolyline(encoded string, precision int) ([]Location, error) {
	factor := polylineFactor(precision)
	points := make([]Location, 0, len(encoded)/4+1)

	idx, lat, lng := 0, 0, 0
	for idx < len(encoded) {
		dLat, next, err := decodeSigned(encoded, idx)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, errTruncatedPolyline
		}
		dLng, next, err := decodeSigned(encoded, next)
		if err != nil {
			return nil, err
		}
		idx = next
		lat += dLat
		lng += dLng
		points = append(points, Location{
			Latitude:  float64(lat) / factor,
			Longitude: float64(lng) / factor,
		})
	}
	return points, nil
}

func decodeSigned(s string, idx int) (int, int, error) {
	result, shift := 0, 0
	for {
		if idx >= len(s) {
			return 0, 0, errTruncatedPolyline
		}
		b := int(s[idx]) - 63
		idx++
		if b < 0 || b > 0x3f {
			return 0, 0, errors.New("invalid polyline: character out of range")
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	return (result >> 1) ^ -(result & 1), idx, nil
}

func appendSigned(buf []byte, v int) []byte {
	s := v << 1
	if v < 0 {
		s = ^s
	}
	for s >= 0x20 {
		buf = append(buf, byte((0x20|(s&0x1f))+63))
		s >>= 5
	}
	return append(buf, byte(s+63))
}
