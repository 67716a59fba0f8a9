package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/attribution"
	"github.com/NERVsystems/tripmcp/pkg/core"
	"github.com/NERVsystems/tripmcp/pkg/country"
	"github.com/NERVsystems/tripmcp/pkg/emissions"
	"github.com/NERVsystems/tripmcp/pkg/engine"
)

// stripLocator resolves by longitude: [0,5) is FR, [5,10) is DE.
var stripLocator = country.LocatorFunc(func(_ context.Context, _, lng float64) (string, bool) {
	switch {
	case lng >= 0 && lng < 5:
		return "FR", true
	case lng >= 5 && lng < 10:
		return "DE", true
	}
	return "", false
})

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	tables, err := emissions.DefaultTables()
	if err != nil {
		t.Fatalf("loading tables: %v", err)
	}
	eng := engine.New(attribution.New(stripLocator, nil), emissions.NewModel(tables))
	return NewRegistry(nil, eng)
}

func newRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// call runs handler and fails the test on a Go error.
func call(t *testing.T, handler Handler, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), newRequest(name, args))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("nil result")
	}
	return result
}

// IsErrorResult checks if a CallToolResult represents an error
func IsErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// AssertErrorResult checks that a result is an error result and fails the test if not
func AssertErrorResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if !IsErrorResult(result) {
		t.Error(message)
	}
}

// AssertErrorCode checks that a result is an error result carrying code
func AssertErrorCode(t *testing.T, result *mcp.CallToolResult, code core.ErrorCode) {
	t.Helper()
	if !IsErrorResult(result) {
		t.Fatalf("expected %s error, got success", code)
	}
	var body core.MCPError
	if err := ParseResultJSON(result, &body); err != nil {
		t.Fatalf("error result is not JSON: %v", err)
	}
	if body.Code != string(code) {
		t.Errorf("expected code %s, got %s (%s)", code, body.Code, body.Message)
	}
}

// AssertSuccessResult checks that a result is a success result and fails the test if not
func AssertSuccessResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if IsErrorResult(result) {
		var errorText string
		for _, content := range result.Content {
			if text, ok := content.(mcp.TextContent); ok {
				errorText = text.Text
				break
			}
		}
		t.Fatalf("%s. Got error: %s", message, errorText)
	}
}

// ParseResultJSON parses the JSON content from a CallToolResult
func ParseResultJSON(result *mcp.CallToolResult, out any) error {
	var content string
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			content = text.Text
			break
		}
	}
	return json.Unmarshal([]byte(content), out)
}
