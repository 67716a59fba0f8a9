package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/grid"
)

// GridUpdateInput defines the input parameters for folding trips into a grid
type GridUpdateInput struct {
	Grid  grid.Grid     `json:"grid"`
	Trips []grid.Record `json:"trips"`
}

// CoverageOutput summarises a grid
type CoverageOutput struct {
	LandPercent float64 `json:"land_percent"`
	AirPercent  float64 `json:"air_percent"`
	LandCells   int     `json:"land_cells"`
	AirCells    int     `json:"air_cells"`
}

// GridUpdateOutput is the updated grid and its coverage
type GridUpdateOutput struct {
	Grid grid.Grid `json:"grid"`
	CoverageOutput
}

func coverageOf(g grid.Grid) CoverageOutput {
	land, air := g.Counts()
	landPct, airPct := grid.Coverage(g)
	return CoverageOutput{
		LandPercent: grid.Round(landPct),
		AirPercent:  grid.Round(airPct),
		LandCells:   land,
		AirCells:    air,
	}
}

// GridUpdateTool returns a tool definition for updating a visited grid
func GridUpdateTool() mcp.Tool {
	return mcp.NewTool("grid_update",
		mcp.WithDescription("Fold trips into a 1x1 degree visited-world grid, oldest first. Cells are stopped, passed or air"),
		mcp.WithObject("grid",
			mcp.Description("Existing grid as returned by a previous call; omit to start empty"),
		),
		mcp.WithArray("trips",
			mcp.Required(),
			mcp.Description("Array of {path, type, created_at}"),
		),
	)
}

// HandleGridUpdate implements the visited grid update
func (r *Registry) HandleGridUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("grid_update", func(ctx context.Context, input GridUpdateInput, logger *slog.Logger) (any, error) {
		g, err := r.engine.UpdateGrid(ctx, input.Grid, input.Trips)
		if err != nil {
			return nil, err
		}
		logger.Debug("grid updated", "trips", len(input.Trips), "cells", g.Len())
		return GridUpdateOutput{Grid: g, CoverageOutput: coverageOf(g)}, nil
	})(ctx, req)
}

// GridCoverageInput defines the input parameters for grid coverage
type GridCoverageInput struct {
	Grid grid.Grid `json:"grid"`
}

// GridCoverageTool returns a tool definition for grid coverage percentages
func GridCoverageTool() mcp.Tool {
	return mcp.NewTool("grid_coverage",
		mcp.WithDescription("Percentage of the world's 64800 grid cells visited on land and seen only from the air"),
		mcp.WithObject("grid",
			mcp.Required(),
			mcp.Description("Grid as returned by grid_update"),
		),
	)
}

// HandleGridCoverage implements grid coverage
func HandleGridCoverage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("grid_coverage", func(_ context.Context, input GridCoverageInput, _ *slog.Logger) (any, error) {
		return coverageOf(input.Grid), nil
	})(ctx, req)
}
