package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/attribution"
	"github.com/NERVsystems/tripmcp/pkg/core"
	"github.com/NERVsystems/tripmcp/pkg/engine"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// MaxBatchSegments caps a single batch request.
const MaxBatchSegments = 1000

// CalculateCarbonTool returns a tool definition for estimating trip emissions
func CalculateCarbonTool() mcp.Tool {
	return mcp.NewTool("calculate_carbon",
		mcp.WithDescription("Estimate the CO2-equivalent emissions of a trip in kg, with a per-country breakdown for flights and rail"),
		mcp.WithObject("trip",
			mcp.Required(),
			mcp.Description("Trip context: {type, trip_length (m), estimated_trip_duration (s), material_type (aircraft code), passengers, details, countries}"),
		),
		mcp.WithArray("path",
			mcp.Description("Route as [latitude, longitude] pairs, origin first"),
		),
		mcp.WithString("polyline",
			mcp.Description("Encoded polyline, used when path is omitted"),
		),
		mcp.WithNumber("polyline_precision",
			mcp.Description("Polyline precision, 5 (default) or 6"),
		),
		mcp.WithBoolean("detect_countries",
			mcp.Description("Attribute the path to countries even for surface modes"),
		),
	)
}

// HandleCalculateCarbon implements single-trip emissions estimation
func (r *Registry) HandleCalculateCarbon(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("calculate_carbon", func(ctx context.Context, input engine.Request, logger *slog.Logger) (any, error) {
		res, err := r.engine.Calculate(ctx, input)
		if err != nil {
			return nil, err
		}
		logger.Debug("calculated carbon", "mode", res.TripType, "kg", res.Carbon)
		return res, nil
	})(ctx, req)
}

// BatchCalculateInput defines the input parameters for a batch calculation
type BatchCalculateInput struct {
	Segments []engine.Request `json:"segments"`
}

// BatchCalculateCarbonTool returns a tool definition for multi-segment emissions
func BatchCalculateCarbonTool() mcp.Tool {
	return mcp.NewTool("batch_calculate_carbon",
		mcp.WithDescription("Estimate emissions for several trip segments at once and total them"),
		mcp.WithArray("segments",
			mcp.Required(),
			mcp.Description("Array of calculate_carbon inputs"),
		),
	)
}

// HandleBatchCalculateCarbon implements batch emissions estimation
func (r *Registry) HandleBatchCalculateCarbon(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("batch_calculate_carbon", func(ctx context.Context, input BatchCalculateInput, logger *slog.Logger) (any, error) {
		if len(input.Segments) == 0 {
			return nil, core.NewValidationError(core.ErrMissingParameter, "segments must not be empty")
		}
		if len(input.Segments) > MaxBatchSegments {
			return nil, core.NewValidationError(core.ErrInvalidInput, "too many segments").
				WithGuidance("Split the request into batches of at most 1000 segments.")
		}
		return r.engine.CalculateBatch(ctx, input.Segments)
	})(ctx, req)
}

// CountryBreakdownInput defines the input parameters for country attribution
type CountryBreakdownInput struct {
	Path    trip.Path            `json:"path"`
	Mode    string               `json:"type"`
	Details *trip.RoutingDetails `json:"details,omitempty"`
}

// CountryBreakdownOutput is the distance travelled in each country
type CountryBreakdownOutput struct {
	Countries attribution.DistanceMap `json:"countries"`
	TotalKm   float64                 `json:"total_km"`
}

// CountryBreakdownTool returns a tool definition for per-country distances
func CountryBreakdownTool() mcp.Tool {
	return mcp.NewTool("country_breakdown",
		mcp.WithDescription("Split a path's distance among the countries it crosses. Rail paths with routing details are split into electrified and non-electrified meters"),
		mcp.WithArray("path",
			mcp.Required(),
			mcp.Description("Route as [latitude, longitude] pairs"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Transport mode"),
			mcp.Enum(modeEnum()...),
		),
		mcp.WithObject("details",
			mcp.Description("Rail routing details: {powerType, electrified: [[start, end, status], ...]}"),
		),
	)
}

// HandleCountryBreakdown implements country attribution
func (r *Registry) HandleCountryBreakdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("country_breakdown", func(ctx context.Context, input CountryBreakdownInput, logger *slog.Logger) (any, error) {
		mode, err := trip.MustMode(input.Mode)
		if err != nil {
			return nil, core.NewValidationError(core.ErrUnsupportedMode, err.Error())
		}
		if err := core.ValidatePoints(input.Path, 1); err != nil {
			return nil, err
		}
		countries, err := r.engine.Countries(ctx, input.Path, mode, input.Details)
		if err != nil {
			return nil, err
		}
		return CountryBreakdownOutput{
			Countries: countries,
			TotalKm:   engine.Round(countries.Total()/1000, 3),
		}, nil
	})(ctx, req)
}

// CountryStatsInput defines the input parameters for per-country statistics
type CountryStatsInput struct {
	Trips []attribution.TripCountries `json:"trips"`
}

// CountryStatsTool returns a tool definition for aggregating country visits
func CountryStatsTool() mcp.Tool {
	return mcp.NewTool("country_stats",
		mcp.WithDescription("Aggregate trip country breakdowns into per-country trip counts and kilometers, past and planned"),
		mcp.WithArray("trips",
			mcp.Required(),
			mcp.Description("Array of {countries, past} where countries is a country_breakdown result"),
		),
	)
}

// HandleCountryStats implements country statistics aggregation
func HandleCountryStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("country_stats", func(_ context.Context, input CountryStatsInput, _ *slog.Logger) (any, error) {
		return map[string]any{"countries": attribution.Aggregate(input.Trips)}, nil
	})(ctx, req)
}

func modeEnum() []string {
	names := make([]string, len(trip.Modes))
	for i, m := range trip.Modes {
		names[i] = string(m)
	}
	return names
}
