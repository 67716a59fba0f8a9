package core

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/geo"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// ValidationError represents a validation error for coordinates or other values
type ValidationError struct {
	Code     string
	Message  string
	Guidance string
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return ValidationError{
			Code:     string(ErrInvalidLatitude),
			Message:  fmt.Sprintf("Latitude must be between -90 and 90, got %f", lat),
			Guidance: "Ensure latitude is in decimal degrees",
		}
	}
	if lon < -180 || lon > 180 {
		return ValidationError{
			Code:     string(ErrInvalidLongitude),
			Message:  fmt.Sprintf("Longitude must be between -180 and 180, got %f", lon),
			Guidance: "Ensure longitude is in decimal degrees",
		}
	}
	return nil
}

// ValidatePoints checks a path has at least minPoints valid coordinates.
func ValidatePoints(points []geo.Location, minPoints int) error {
	if len(points) < minPoints {
		return ValidationError{
			Code:     string(ErrInvalidPath),
			Message:  fmt.Sprintf("Path needs at least %d points, got %d", minPoints, len(points)),
			Guidance: "Send the path as an array of [latitude, longitude] pairs",
		}
	}
	for i, p := range points {
		if err := ValidateCoords(p.Latitude, p.Longitude); err != nil {
			verr := err.(ValidationError)
			verr.Message = fmt.Sprintf("point %d: %s", i, verr.Message)
			return verr
		}
	}
	return nil
}

// ParseCoords extracts and validates latitude and longitude from a CallToolRequest
// It allows specifying alternative key names for latitude and longitude
func ParseCoords(req mcp.CallToolRequest, latKey, lonKey string) (float64, float64, error) {
	if latKey == "" {
		latKey = "latitude"
	}
	if lonKey == "" {
		lonKey = "longitude"
	}

	lat := mcp.ParseFloat64(req, latKey, 0)
	lon := mcp.ParseFloat64(req, lonKey, 0)

	if err := ValidateCoords(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// ParseMode reads and validates a transport mode argument.
func ParseMode(req mcp.CallToolRequest, key string) (trip.Mode, error) {
	raw := mcp.ParseString(req, key, "")
	if raw == "" {
		return "", NewValidationError(ErrMissingParameter, fmt.Sprintf("%s is required", key)).
			WithSuggestions(modeNames()...)
	}
	mode, ok := trip.ParseMode(raw)
	if !ok {
		return "", NewValidationError(ErrUnsupportedMode, fmt.Sprintf("unsupported mode %q", raw)).
			WithSuggestions(modeNames()...)
	}
	return mode, nil
}

// ParseModeWithLog parses a mode and logs any errors
func ParseModeWithLog(req mcp.CallToolRequest, logger *slog.Logger, key string) (trip.Mode, error) {
	mode, err := ParseMode(req, key)
	if err != nil {
		logger.Error("invalid mode", "error", err)
	}
	return mode, err
}

func modeNames() []string {
	names := make([]string, len(trip.Modes))
	for i, m := range trip.Modes {
		names[i] = string(m)
	}
	return names
}
