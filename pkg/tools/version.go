package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/trip"
	"github.com/NERVsystems/tripmcp/pkg/version"
)

// VersionInfo represents version information for the service
type VersionInfo struct {
	Version   string      `json:"version"`
	GoVersion string      `json:"go_version,omitempty"`
	Commit    string      `json:"commit,omitempty"`
	BuildDate string      `json:"build_date,omitempty"`
	Modes     []trip.Mode `json:"modes"`
}

// GetVersionTool returns a tool definition for retrieving version information
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the trip MCP service and the transport modes it supports"),
	)
}

// HandleGetVersion implements version information retrieval
func HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "get_version")

	info := version.Info()
	return jsonResult(logger, VersionInfo{
		Version:   info["version"],
		GoVersion: info["go_version"],
		Commit:    info["commit"],
		BuildDate: info["build_date"],
		Modes:     trip.Modes,
	}), nil
}
