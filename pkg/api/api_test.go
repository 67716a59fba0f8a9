package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/tripmcp/pkg/attribution"
	"github.com/NERVsystems/tripmcp/pkg/core"
	"github.com/NERVsystems/tripmcp/pkg/country"
	"github.com/NERVsystems/tripmcp/pkg/emissions"
	"github.com/NERVsystems/tripmcp/pkg/engine"
	"github.com/NERVsystems/tripmcp/pkg/tools"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	tables, err := emissions.DefaultTables()
	require.NoError(t, err)

	locator := country.LocatorFunc(func(_ context.Context, _, lng float64) (string, bool) {
		if lng >= 0 && lng < 5 {
			return "FR", true
		}
		return "", false
	})
	eng := engine.New(attribution.New(locator, nil), emissions.NewModel(tables))
	return NewHandler(tools.NewRegistry(nil, eng), tables, nil)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCalculateCarbonEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := post(t, h, "/api/calculate-carbon", `{"trip":{"type":"car","trip_length":100000}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "car", string(res.TripType))
	assert.InDelta(t, emissions.Car(100, 1), res.Carbon, 1e-6)
	assert.Equal(t, 100.0, res.DistanceKm)
}

func TestCalculateCarbonErrors(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   core.ErrorCode
	}{
		{"unsupported mode", `{"trip":{"type":"teleport"}}`, http.StatusBadRequest, core.ErrUnsupportedMode},
		{"bad latitude", `{"trip":{"type":"car"},"path":[[95,0],[0,0]]}`, http.StatusBadRequest, core.ErrInvalidPath},
		{"malformed json", `{"trip":`, http.StatusBadRequest, core.ErrInvalidInput},
		{"empty body", ``, http.StatusBadRequest, core.ErrMissingParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/api/calculate-carbon", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body core.MCPError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tt.code), body.Code)
		})
	}
}

func TestBatchEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := post(t, h, "/api/batch-calculate-carbon", `{"segments":[
		{"trip":{"type":"bus","trip_length":10000}},
		{"trip":{"type":"car"},"path":[[95,1],[45,2]]},
		{"trip":{"type":"walk","trip_length":2000}},
		{"trip":{"type":"teleport","trip_length":5000}}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res engine.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Segments, 4)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.Segments[1].Error)
	assert.Empty(t, res.Segments[3].Error)
	assert.Equal(t, "teleport", string(res.Segments[3].TripType))
	assert.Zero(t, res.Segments[3].Carbon)
	assert.Equal(t, 12.0, res.TotalDistanceKm)
}

func TestCountriesEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := post(t, h, "/api/countries", `{"path":[[45,1],[45,2]],"type":"car"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out tools.CountryBreakdownOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Contains(t, out.Countries, "FR")
	assert.Greater(t, out.TotalKm, 70.0)
}

func TestGridEndpoints(t *testing.T) {
	h := newTestHandler(t)

	rec := post(t, h, "/api/grid-update", `{"trips":[{"path":[[48.5,2.5],[48.6,2.6]],"type":"train","created_at":"2024-01-01T00:00:00Z"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated tools.GridUpdateOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 1, updated.LandCells)

	gridJSON, err := json.Marshal(map[string]any{"grid": updated.Grid})
	require.NoError(t, err)
	rec = post(t, h, "/api/grid-coverage", string(gridJSON))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cov tools.CoverageOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cov))
	assert.Equal(t, 1, cov.LandCells)
	assert.Zero(t, cov.AirCells)
}

func TestModesAndAircraft(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/modes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var modes ModesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &modes))
	assert.Len(t, modes.Modes, 11)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aircraft/a320.json", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var aircraft AircraftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &aircraft))
	assert.Equal(t, "A320", aircraft.Code)
	assert.NotEmpty(t, aircraft.Factors)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aircraft/XXXX", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutingErrors(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calculate-carbon", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = post(t, h, "/api/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBodyTooLarge(t *testing.T) {
	h := newTestHandler(t)

	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 32)
		h.ServeHTTP(w, r)
	})
	body := bytes.Repeat([]byte(" "), 64)
	body = append(body, []byte(`{"trip":{"type":"car"}}`)...)
	rec := post(t, limited, "/api/calculate-carbon", string(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
