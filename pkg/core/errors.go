// Package core provides the error and validation helpers shared by the trip
// MCP tools and the REST API.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/engine"
)

// ErrorCode defines standard error codes for MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidPath      ErrorCode = "INVALID_PATH"
	ErrUnsupportedMode  ErrorCode = "UNSUPPORTED_MODE"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"

	// Service errors
	ErrRateLimit     ErrorCode = "RATE_LIMIT"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// MCPError represents a detailed error structure for MCP tool responses
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}
	return mcp.NewToolResultError(string(errorJSON))
}

// HTTPStatus maps the error code to a response status for the REST API.
func (e *MCPError) HTTPStatus() int {
	switch ErrorCode(e.Code) {
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrInternalError:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// FromError classifies an engine or validation error. Errors it does not
// recognise become INTERNAL_ERROR.
func FromError(err error) *MCPError {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	var verr ValidationError
	if errors.As(err, &verr) {
		return NewError(ErrorCode(verr.Code), verr.Message).WithGuidance(verr.Guidance)
	}

	switch {
	case errors.Is(err, engine.ErrUnsupportedMode):
		return NewValidationError(ErrUnsupportedMode, err.Error()).
			WithSuggestions(modeNames()...)
	case errors.Is(err, engine.ErrInvalidPath):
		return NewValidationError(ErrInvalidPath, err.Error())
	}
	return NewError(ErrInternalError, err.Error()).
		WithGuidance("The server encountered an error. This is likely temporary, please try again later.")
}
