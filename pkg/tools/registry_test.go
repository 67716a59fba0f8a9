package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NERVsystems/tripmcp/pkg/monitoring"
)

func TestToolDefinitions(t *testing.T) {
	r := newTestRegistry(t)

	want := []string{
		"get_version", "calculate_carbon", "batch_calculate_carbon",
		"country_breakdown", "country_stats", "geo_distance",
		"great_circle_interpolate", "densify_path", "grid_update",
		"grid_coverage", "polyline_decode", "polyline_encode",
	}
	names := r.GetToolNames()
	if len(names) != len(want) {
		t.Fatalf("Expected %d tools, got %d: %v", len(want), len(names), names)
	}

	seen := make(map[string]bool)
	for _, def := range r.GetToolDefinitions() {
		if def.Tool.Name != def.Name {
			t.Errorf("definition %s wraps tool %s", def.Name, def.Tool.Name)
		}
		if def.Handler == nil {
			t.Errorf("tool %s has no handler", def.Name)
		}
		seen[def.Name] = true
	}
	for _, name := range want {
		if !seen[name] {
			t.Errorf("missing tool %s", name)
		}
	}

	// registration must not panic
	r.RegisterTools(server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(false)))
}

func TestWrapWithTracingRecordsOutcome(t *testing.T) {
	r := newTestRegistry(t)

	ok := r.wrapWithTracing("wrap_ok", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("{}"), nil
	})
	failed := r.wrapWithTracing("wrap_failed", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return ErrorResponse("nope"), nil
	})
	broken := r.wrapWithTracing("wrap_broken", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("boom")
	})

	call(t, ok, "wrap_ok", nil)
	call(t, failed, "wrap_failed", nil)
	if _, err := broken(context.Background(), newRequest("wrap_broken", nil)); err == nil {
		t.Error("expected the handler error to pass through")
	}

	checks := []struct {
		tool   string
		status string
	}{
		{"wrap_ok", "success"},
		{"wrap_failed", "error"},
		{"wrap_broken", "error"},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(monitoring.MCPRequestsTotal.WithLabelValues(c.tool, c.status)); got != 1 {
			t.Errorf("%s/%s = %f, want 1", c.tool, c.status, got)
		}
	}
}

func TestHandleGetVersion(t *testing.T) {
	result := call(t, HandleGetVersion, "get_version", nil)
	AssertSuccessResult(t, result, "Expected success result, but got error")

	var info VersionInfo
	if err := ParseResultJSON(result, &info); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if info.Version == "" || len(info.Modes) != 11 {
		t.Errorf("unexpected version info %+v", info)
	}
}
