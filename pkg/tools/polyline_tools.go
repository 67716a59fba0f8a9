package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/core"
	"github.com/NERVsystems/tripmcp/pkg/geo"
)

// PolylineDecodeInput defines the input parameters for decoding a polyline
type PolylineDecodeInput struct {
	Polyline  string `json:"polyline"`
	Precision int    `json:"precision,omitempty"`
}

// PolylineDecodeOutput holds the decoded points and the geodesic length of
// the path they trace.
type PolylineDecodeOutput struct {
	Points     []geo.Location  `json:"points"`
	DistanceKm float64         `json:"distance_km"`
	Bounds     geo.BoundingBox `json:"bounds"`
}

// PolylineDecodeTool returns a tool definition for decoding polylines
func PolylineDecodeTool() mcp.Tool {
	return mcp.NewTool("polyline_decode",
		mcp.WithDescription("Decode an encoded polyline into coordinates, with the path length in km"),
		mcp.WithString("polyline",
			mcp.Required(),
			mcp.Description("The encoded polyline string to decode"),
		),
		mcp.WithNumber("precision",
			mcp.Description("5 (Google, default) or 6 (OSRM, Valhalla)"),
		),
	)
}

// HandlePolylineDecode implements polyline decoding
func HandlePolylineDecode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("polyline_decode", func(_ context.Context, input PolylineDecodeInput, _ *slog.Logger) (any, error) {
		if input.Polyline == "" {
			return nil, core.NewValidationError(core.ErrMissingParameter, "Polyline string is required")
		}
		// Basic validation - ensure the string has at least 2 characters and only printable ASCII
		if len(input.Polyline) < 2 || !isPrintableASCII(input.Polyline) {
			return nil, core.NewValidationError(core.ErrInvalidInput, "Failed to decode polyline: malformed input")
		}
		if err := validatePrecision(input.Precision); err != nil {
			return nil, err
		}

		points, err := geo.DecodePolyline(input.Polyline, input.Precision)
		if err != nil {
			return nil, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("Failed to decode polyline: %v", err))
		}
		return PolylineDecodeOutput{
			Points:     points,
			DistanceKm: geo.PathLength(points, geo.Geodesic) / 1000,
			Bounds:     geo.Bounds(points),
		}, nil
	})(ctx, req)
}

// isPrintableASCII checks if a string contains only printable ASCII characters
func isPrintableASCII(s string) bool {
	for _, c := range s {
		if c < 32 || c > 126 {
			return false
		}
	}
	return true
}

// PolylineEncodeInput defines the input parameters for encoding points to a polyline
type PolylineEncodeInput struct {
	Points    []geo.Location `json:"points"`
	Precision int            `json:"precision,omitempty"`
}

// PolylineEncodeOutput defines the output for an encoded polyline
type PolylineEncodeOutput struct {
	Polyline string `json:"polyline"`
}

// PolylineEncodeTool returns a tool definition for encoding points to a polyline
func PolylineEncodeTool() mcp.Tool {
	return mcp.NewTool("polyline_encode",
		mcp.WithDescription("Encode a series of geographic coordinates into a polyline string"),
		mcp.WithArray("points",
			mcp.Required(),
			mcp.Description("Array of latitude/longitude points to encode"),
		),
		mcp.WithNumber("precision",
			mcp.Description("5 (Google, default) or 6 (OSRM, Valhalla)"),
		),
	)
}

// HandlePolylineEncode implements polyline encoding
func HandlePolylineEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("polyline_encode", func(_ context.Context, input PolylineEncodeInput, _ *slog.Logger) (any, error) {
		if err := core.ValidatePoints(input.Points, 1); err != nil {
			return nil, err
		}
		if err := validatePrecision(input.Precision); err != nil {
			return nil, err
		}
		return PolylineEncodeOutput{Polyline: geo.EncodePolyline(input.Points, input.Precision)}, nil
	})(ctx, req)
}

func validatePrecision(p int) error {
	switch p {
	case 0, geo.Polyline5, geo.Polyline6:
		return nil
	}
	return core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("precision must be 5 or 6, got %d", p))
}
