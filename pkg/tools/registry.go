package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/tripmcp/pkg/engine"
	"github.com/NERVsystems/tripmcp/pkg/monitoring"
	"github.com/NERVsystems/tripmcp/pkg/tracing"
)

// Handler is the signature shared by every tool handler.
type Handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Registry contains all tool definitions and handlers
type Registry struct {
	logger *slog.Logger
	engine *engine.Engine
}

// NewRegistry creates a new tool registry backed by eng
func NewRegistry(logger *slog.Logger, eng *engine.Engine) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		engine: eng,
	}
}

// ToolDefinition represents a trip MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     Handler
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version information for this trip MCP",
			Tool:        GetVersionTool(),
			Handler:     HandleGetVersion,
		},

		// Emissions
		{
			Name:        "calculate_carbon",
			Description: "Estimate trip emissions. Parameters: trip (object with type, trip_length, material_type, passengers), path (array of [lat, lng]), detect_countries (boolean)",
			Tool:        CalculateCarbonTool(),
			Handler:     r.HandleCalculateCarbon,
		},
		{
			Name:        "batch_calculate_carbon",
			Description: "Estimate emissions for several segments. Parameters: segments (array of calculate_carbon inputs)",
			Tool:        BatchCalculateCarbonTool(),
			Handler:     r.HandleBatchCalculateCarbon,
		},

		// Countries
		{
			Name:        "country_breakdown",
			Description: "Per-country distance of a path. Parameters: path (array of [lat, lng]), type (string), details (object)",
			Tool:        CountryBreakdownTool(),
			Handler:     r.HandleCountryBreakdown,
		},
		{
			Name:        "country_stats",
			Description: "Aggregate country breakdowns. Parameters: trips (array of {countries, past})",
			Tool:        CountryStatsTool(),
			Handler:     HandleCountryStats,
		},

		// Geo utilities
		{
			Name:        "geo_distance",
			Description: "Calculate distance between two points. Parameters: from (object with latitude/longitude), to (object with latitude/longitude)",
			Tool:        GeoDistanceTool(),
			Handler:     HandleGeoDistance,
		},
		{
			Name:        "great_circle_interpolate",
			Description: "Points along the great circle between two coordinates. Parameters: from, to, max_distance_km",
			Tool:        GreatCircleInterpolateTool(),
			Handler:     HandleGreatCircleInterpolate,
		},
		{
			Name:        "densify_path",
			Description: "Fill gaps in a path. Parameters: points (array), max_distance_km (number)",
			Tool:        DensifyPathTool(),
			Handler:     HandleDensifyPath,
		},

		// Visited grid
		{
			Name:        "grid_update",
			Description: "Fold trips into the visited-world grid. Parameters: grid (object), trips (array of {path, type, created_at})",
			Tool:        GridUpdateTool(),
			Handler:     r.HandleGridUpdate,
		},
		{
			Name:        "grid_coverage",
			Description: "World coverage of a visited grid. Parameters: grid (object)",
			Tool:        GridCoverageTool(),
			Handler:     HandleGridCoverage,
		},

		// Polyline utilities
		{
			Name:        "polyline_decode",
			Description: "Decode a polyline string into a series of coordinates. Parameters: polyline (string), precision (number)",
			Tool:        PolylineDecodeTool(),
			Handler:     HandlePolylineDecode,
		},
		{
			Name:        "polyline_encode",
			Description: "Encode a series of coordinates into a polyline string. Parameters: points (array of latitude/longitude objects), precision (number)",
			Tool:        PolylineEncodeTool(),
			Handler:     HandlePolylineEncode,
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, server.ToolHandlerFunc(r.wrapWithTracing(def.Name, def.Handler)))
	}
}

// Handler returns the traced handler for a tool.
func (r *Registry) Handler(name string) (Handler, bool) {
	for _, def := range r.GetToolDefinitions() {
		if def.Name == name {
			return r.wrapWithTracing(def.Name, def.Handler), true
		}
	}
	return nil, false
}

// wrapWithTracing wraps a tool handler with a span and request metrics
func (r *Registry) wrapWithTracing(toolName string, handler Handler) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", toolName),
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)

		// tool errors come back as error results, not Go errors
		failed := err != nil || (result != nil && result.IsError)
		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case failed:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		monitoring.RecordMCPRequest(toolName, duration, !failed)

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(
			attribute.String(tracing.AttrMCPToolStatus, status),
			attribute.Int64(tracing.AttrMCPToolDuration, duration.Milliseconds()),
			attribute.Int(tracing.AttrMCPResultSize, resultSize),
		)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}
