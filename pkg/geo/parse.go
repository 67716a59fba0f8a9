package geo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/akhenakh/mgrs"
)

var (
	// grid zone + latitude band + 100km square + even-length numeric part
	mgrsPattern = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})(\d{2,10})$`)

	// 48°51'24"N 2°21'08"E, 48d51m24sN 2d21m8sE, 48 51 24 N 2 21 8 E
	dmsPattern = regexp.MustCompile(`(?i)^(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([NS])[\s,]+(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([EW])$`)

	// "48.8566, 2.3522" or "48.8566 2.3522"
	decimalPattern = regexp.MustCompile(`^(-?\d+(?:\.\d*)?)[,\s]+(-?\d+(?:\.\d*)?)$`)
)

// ParsePoint converts a textual coordinate into a Location. Decimal degree
// pairs (latitude first), degrees-minutes-seconds and MGRS grid references
// are recognised.
func ParsePoint(input string) (Location, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Location{}, fmt.Errorf("empty coordinate string")
	}

	var (
		loc Location
		err error
	)
	switch {
	case mgrsPattern.MatchString(input):
		loc, err = parseMGRS(input)
	case dmsPattern.MatchString(input):
		loc, err = parseDMS(input)
	case decimalPattern.MatchString(input):
		loc, err = parseDecimal(input)
	default:
		return Location{}, fmt.Errorf("unrecognized coordinate format: %q", input)
	}
	if err != nil {
		return Location{}, err
	}

	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return Location{}, fmt.Errorf("coordinate out of range: %q", input)
	}
	return loc, nil
}

func parseMGRS(input string) (Location, error) {
	lat, lng, err := mgrs.MGRSToLatLng(strings.ToUpper(input))
	if err != nil {
		return Location{}, fmt.Errorf("MGRS conversion failed: %w", err)
	}
	return Location{Latitude: lat, Longitude: lng}, nil
}

func parseDMS(input string) (Location, error) {
	m := dmsPattern.FindStringSubmatch(input)

	lat, err := dmsToDecimal(m[1], m[2], m[3], 90)
	if err != nil {
		return Location{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := dmsToDecimal(m[5], m[6], m[7], 180)
	if err != nil {
		return Location{}, fmt.Errorf("longitude: %w", err)
	}
	if strings.EqualFold(m[4], "S") {
		lat = -lat
	}
	if strings.EqualFold(m[8], "W") {
		lng = -lng
	}
	return Location{Latitude: lat, Longitude: lng}, nil
}

func dmsToDecimal(degStr, minStr, secStr string, maxDeg float64) (float64, error) {
	deg, _ := strconv.ParseFloat(degStr, 64)
	minutes, _ := strconv.ParseFloat(minStr, 64)
	sec, _ := strconv.ParseFloat(secStr, 64)
	if deg > maxDeg || minutes >= 60 || sec >= 60 {
		return 0, fmt.Errorf("invalid value %s°%s'%s\"", degStr, minStr, secStr)
	}
	return deg + minutes/60 + sec/3600, nil
}

func parseDecimal(input string) (Location, error) {
	m := decimalPattern.FindStringSubmatch(input)
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Location{}, fmt.Errorf("invalid latitude %q", m[1])
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Location{}, fmt.Errorf("invalid longitude %q", m[2])
	}
	return Location{Latitude: lat, Longitude: lng}, nil
}

// ToMGRS formats loc as an MGRS reference. Precision ranges from 1 (10 km)
// to 5 (1 m); out-of-range values use 5.
func ToMGRS(loc Location, precision int) (string, error) {
	if precision < 1 || precision > 5 {
		precision = 5
	}
	ref, err := mgrs.LatLngToMGRS(loc.Latitude, loc.Longitude, precision)
	if err != nil {
		return "", fmt.Errorf("MGRS conversion failed: %w", err)
	}
	return ref, nil
}
