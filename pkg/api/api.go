// Package api serves the carbon calculations as a small JSON REST API. Each
// route runs the matching MCP tool so both surfaces share validation,
// metrics and tracing.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripmcp/pkg/core"
	"github.com/NERVsystems/tripmcp/pkg/emissions"
	"github.com/NERVsystems/tripmcp/pkg/tools"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// Prefix is where the API is mounted.
const Prefix = "/api/"

// toolRoutes maps POST routes to the tool that serves them.
var toolRoutes = map[string]string{
	"/api/calculate-carbon":       "calculate_carbon",
	"/api/batch-calculate-carbon": "batch_calculate_carbon",
	"/api/countries":              "country_breakdown",
	"/api/country-stats":          "country_stats",
	"/api/grid-update":            "grid_update",
	"/api/grid-coverage":          "grid_coverage",
}

// Handler is the REST API.
type Handler struct {
	registry *tools.Registry
	tables   *emissions.Tables
	logger   *slog.Logger
	router   *httprouter.Router
}

// NewHandler builds the API router. tables may be nil, which disables the
// aircraft lookup.
func NewHandler(registry *tools.Registry, tables *emissions.Tables, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		registry: registry,
		tables:   tables,
		logger:   logger.With("component", "api"),
		router:   httprouter.New(),
	}

	for path, name := range toolRoutes {
		toolHandler, ok := registry.Handler(name)
		if !ok {
			panic(fmt.Sprintf("api: no tool %q for %s", name, path))
		}
		h.router.Handler(http.MethodPost, path, h.toolHandler(name, toolHandler))
	}
	h.router.GET("/api/modes", h.handleModes)
	h.router.GET("/api/aircraft/:code", h.handleAircraft)

	h.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, core.NewError(core.ErrInvalidInput, "no such endpoint: "+r.URL.Path))
	})
	h.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, core.NewError(core.ErrInvalidInput, r.Method+" not allowed on "+r.URL.Path))
	})
	h.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		h.logger.Error("panic serving request", "path", r.URL.Path, "panic", v)
		writeJSON(w, http.StatusInternalServerError, core.NewError(core.ErrInternalError, "internal error"))
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) toolHandler(name string, handler tools.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args map[string]any
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				writeJSON(w, http.StatusRequestEntityTooLarge,
					core.NewError(core.ErrInvalidInput, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
			case errors.Is(err, io.EOF):
				writeJSON(w, http.StatusBadRequest, core.NewError(core.ErrMissingParameter, "request body is required").
					WithGuidance("Example: "+tools.GetToolUsageExample(name)))
			default:
				writeJSON(w, http.StatusBadRequest, core.NewError(core.ErrInvalidInput, "malformed JSON body: "+err.Error()))
			}
			return
		}

		result, err := handler(r.Context(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: name, Arguments: args},
		})
		if err != nil {
			h.logger.Error("tool failed", "tool", name, "error", err)
			writeJSON(w, http.StatusInternalServerError, core.FromError(err))
			return
		}

		body := resultText(result)
		status := http.StatusOK
		if result.IsError {
			var toolErr core.MCPError
			if err := json.Unmarshal([]byte(body), &toolErr); err == nil && toolErr.Code != "" {
				status = toolErr.HTTPStatus()
			} else {
				status = http.StatusInternalServerError
				body = mustJSON(core.NewError(core.ErrInternalError, body))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if _, err := io.WriteString(w, body); err != nil {
			h.logger.Warn("failed to write response", "tool", name, "error", err)
		}
	}
}

// ModesResponse lists the supported transport modes.
type ModesResponse struct {
	Modes []trip.Mode `json:"modes"`
}

func (h *Handler) handleModes(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, ModesResponse{Modes: trip.Modes})
}

// AircraftResponse holds the per-category factors for one aircraft type.
type AircraftResponse struct {
	Code    string             `json:"code"`
	Factors map[string]float64 `json:"factors"`
}

func (h *Handler) handleAircraft(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	code := strings.ToUpper(strings.TrimSuffix(ps.ByName("code"), ".json"))
	if h.tables == nil {
		writeJSON(w, http.StatusNotFound, core.NewError(core.ErrInvalidInput, "aircraft tables not loaded"))
		return
	}
	factors, ok := h.tables.Aircraft[code]
	if !ok {
		known := make([]string, 0, len(h.tables.Aircraft))
		for k := range h.tables.Aircraft {
			known = append(known, k)
		}
		sort.Strings(known)
		if len(known) > 10 {
			known = known[:10]
		}
		writeJSON(w, http.StatusNotFound, core.NewError(core.ErrInvalidInput, "unknown aircraft type "+code).
			WithSuggestions(known...))
		return
	}
	writeJSON(w, http.StatusOK, AircraftResponse{Code: code, Factors: factors})
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if t, ok := c.(mcp.TextContent); ok {
			return t.Text
		}
	}
	return ""
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"code":"INTERNAL_ERROR","message":"encoding failed"}`
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
