package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/core"
	"github.com/NERVsystems/tripmcp/pkg/geo"
)

// MaxInterpolatedPoints bounds the output of the interpolation tools.
const MaxInterpolatedPoints = 100000

// GeoDistanceInput defines the input parameters for calculating distance
type GeoDistanceInput struct {
	From geo.Location `json:"from"`
	To   geo.Location `json:"to"`
}

// GeoDistanceOutput defines the output for distance calculation
type GeoDistanceOutput struct {
	Distance         float64 `json:"distance"`          // haversine, meters
	GeodesicDistance float64 `json:"geodesic_distance"` // WGS84 ellipsoid, meters
}

// GeoDistanceTool returns a tool definition for calculating geographic distance
func GeoDistanceTool() mcp.Tool {
	return mcp.NewTool("geo_distance",
		mcp.WithDescription("Calculate the distance between two coordinates, both with the Haversine formula and on the WGS84 ellipsoid"),
		mcp.WithObject("from",
			mcp.Required(),
			mcp.Description("The starting point as {latitude, longitude}"),
		),
		mcp.WithObject("to",
			mcp.Required(),
			mcp.Description("The ending point as {latitude, longitude}"),
		),
	)
}

// HandleGeoDistance implements geographic distance calculation
func HandleGeoDistance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("geo_distance", func(_ context.Context, input GeoDistanceInput, _ *slog.Logger) (any, error) {
		if err := core.ValidatePoints([]geo.Location{input.From, input.To}, 2); err != nil {
			return nil, err
		}
		return GeoDistanceOutput{
			Distance:         geo.Haversine(input.From, input.To),
			GeodesicDistance: geo.Geodesic(input.From, input.To),
		}, nil
	})(ctx, req)
}

// InterpolateInput defines the input parameters for great-circle interpolation
type InterpolateInput struct {
	From          geo.Location `json:"from"`
	To            geo.Location `json:"to"`
	MaxDistanceKm float64      `json:"max_distance_km"`
}

// PointsOutput is a list of points
type PointsOutput struct {
	Points []geo.Location `json:"points"`
	Count  int            `json:"count"`
}

// GreatCircleInterpolateTool returns a tool definition for great-circle interpolation
func GreatCircleInterpolateTool() mcp.Tool {
	return mcp.NewTool("great_circle_interpolate",
		mcp.WithDescription("Insert points along the great circle between two coordinates so neighbours are at most max_distance_km apart. Endpoints are not included"),
		mcp.WithObject("from",
			mcp.Required(),
			mcp.Description("The starting point as {latitude, longitude}"),
		),
		mcp.WithObject("to",
			mcp.Required(),
			mcp.Description("The ending point as {latitude, longitude}"),
		),
		mcp.WithNumber("max_distance_km",
			mcp.Required(),
			mcp.Description("Maximum spacing between points in kilometers"),
		),
	)
}

// HandleGreatCircleInterpolate implements great-circle interpolation
func HandleGreatCircleInterpolate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("great_circle_interpolate", func(_ context.Context, input InterpolateInput, _ *slog.Logger) (any, error) {
		if err := core.ValidatePoints([]geo.Location{input.From, input.To}, 2); err != nil {
			return nil, err
		}
		if err := validateSpacing(input.MaxDistanceKm, geo.ArcBound(input.From, input.To)/1000); err != nil {
			return nil, err
		}
		points := geo.Interpolate(input.From, input.To, input.MaxDistanceKm)
		if points == nil {
			points = []geo.Location{}
		}
		return PointsOutput{Points: points, Count: len(points)}, nil
	})(ctx, req)
}

// DensifyInput defines the input parameters for path densification
type DensifyInput struct {
	Points        []geo.Location `json:"points"`
	MaxDistanceKm float64        `json:"max_distance_km"`
}

// DensifyPathTool returns a tool definition for path densification
func DensifyPathTool() mcp.Tool {
	return mcp.NewTool("densify_path",
		mcp.WithDescription("Fill gaps in a path with great-circle points so no two neighbours are more than max_distance_km apart"),
		mcp.WithArray("points",
			mcp.Required(),
			mcp.Description("Array of latitude/longitude points"),
		),
		mcp.WithNumber("max_distance_km",
			mcp.Required(),
			mcp.Description("Maximum spacing between points in kilometers"),
		),
	)
}

// HandleDensifyPath implements path densification
func HandleDensifyPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("densify_path", func(_ context.Context, input DensifyInput, _ *slog.Logger) (any, error) {
		if err := core.ValidatePoints(input.Points, 1); err != nil {
			return nil, err
		}
		if err := validateSpacing(input.MaxDistanceKm, geo.PathLength(input.Points, geo.ArcBound)/1000); err != nil {
			return nil, err
		}
		points := geo.Densify(input.Points, input.MaxDistanceKm)
		return PointsOutput{Points: points, Count: len(points)}, nil
	})(ctx, req)
}

// validateSpacing rejects non-positive spacings and ones that would
// produce an unreasonable number of points over totalKm.
func validateSpacing(maxKm, totalKm float64) error {
	if maxKm <= 0 {
		return core.NewValidationError(core.ErrInvalidInput,
			fmt.Sprintf("max_distance_km must be greater than 0, got %f", maxKm))
	}
	if totalKm/maxKm > MaxInterpolatedPoints {
		return core.NewValidationError(core.ErrInvalidInput,
			fmt.Sprintf("max_distance_km %.3f would produce more than %d points", maxKm, MaxInterpolatedPoints)).
			WithGuidance("Use a larger spacing")
	}
	return nil
}
