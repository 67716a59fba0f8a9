package tools

import (
	"math"
	"testing"

	"github.com/NERVsystems/tripmcp/pkg/core"
	"github.com/NERVsystems/tripmcp/pkg/engine"
)

func TestHandleCalculateCarbon(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name      string
		args      map[string]any
		errorCode core.ErrorCode
		wantKg    float64
		countries int
	}{
		{
			name: "car along the equator",
			args: map[string]any{
				"trip": map[string]any{"type": "car", "passengers": 1},
				"path": [][]float64{{0, 0}, {0, 1}},
			},
			wantKg: 24.3,
		},
		{
			name: "flight split between endpoint countries",
			args: map[string]any{
				"trip": map[string]any{"type": "air"},
				"path": [][]float64{{0, 1}, {0, 8}},
			},
			wantKg:    -1,
			countries: 2,
		},
		{
			name: "train with detection",
			args: map[string]any{
				"trip":             map[string]any{"type": "train"},
				"path":             [][]float64{{0, 1}, {0, 4}, {0, 8}},
				"detect_countries": true,
			},
			wantKg:    -1,
			countries: 2,
		},
		{
			name: "unsupported mode",
			args: map[string]any{
				"trip": map[string]any{"type": "spaceship"},
				"path": [][]float64{{0, 0}, {0, 1}},
			},
			errorCode: core.ErrUnsupportedMode,
		},
		{
			name: "latitude out of range",
			args: map[string]any{
				"trip": map[string]any{"type": "car"},
				"path": [][]float64{{100, 0}, {0, 1}},
			},
			errorCode: core.ErrInvalidPath,
		},
		{
			name:      "malformed trip",
			args:      map[string]any{"trip": "car"},
			errorCode: core.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, r.HandleCalculateCarbon, "calculate_carbon", tt.args)
			if tt.errorCode != "" {
				AssertErrorCode(t, result, tt.errorCode)
				return
			}
			AssertSuccessResult(t, result, "Expected success result, but got error")

			var out engine.Result
			if err := ParseResultJSON(result, &out); err != nil {
				t.Fatalf("Failed to unmarshal result: %v", err)
			}
			if tt.wantKg >= 0 && math.Abs(out.Carbon-tt.wantKg) > 0.2 {
				t.Errorf("Expected about %.1f kg, got %f", tt.wantKg, out.Carbon)
			}
			if out.Carbon <= 0 {
				t.Errorf("Expected positive emissions, got %f", out.Carbon)
			}
			if len(out.Countries) != tt.countries {
				t.Errorf("Expected %d countries, got %v", tt.countries, out.Countries)
			}
		})
	}
}

func TestHandleBatchCalculateCarbon(t *testing.T) {
	r := newTestRegistry(t)

	result := call(t, r.HandleBatchCalculateCarbon, "batch_calculate_carbon", map[string]any{
		"segments": []map[string]any{
			{"trip": map[string]any{"type": "bus", "trip_length": 10000}},
			{"trip": map[string]any{"type": "car"}, "path": [][]float64{{95, 1}, {45, 2}}},
			{"trip": map[string]any{"type": "ferry", "trip_length": 20000}},
			{"trip": map[string]any{"type": "zeppelin", "trip_length": 10000}},
		},
	})
	AssertSuccessResult(t, result, "Expected success result, but got error")

	var out engine.BatchResult
	if err := ParseResultJSON(result, &out); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if len(out.Segments) != 4 {
		t.Fatalf("Expected 4 segments, got %d", len(out.Segments))
	}
	if out.Segments[1].Error == "" || out.Failed != 1 {
		t.Errorf("Expected the second segment to fail, got %+v", out.Segments[1])
	}
	if zep := out.Segments[3]; zep.Error != "" || zep.Carbon != 0 || zep.TripType != "zeppelin" {
		t.Errorf("Expected a zero-emission zeppelin segment, got %+v", zep)
	}
	if out.TotalDistanceKm != 30 {
		t.Errorf("Expected 30 km in total, got %f", out.TotalDistanceKm)
	}

	empty := call(t, r.HandleBatchCalculateCarbon, "batch_calculate_carbon", map[string]any{"segments": []any{}})
	AssertErrorCode(t, empty, core.ErrMissingParameter)
}

func TestHandleCountryBreakdown(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("rail electrification", func(t *testing.T) {
		result := call(t, r.HandleCountryBreakdown, "country_breakdown", map[string]any{
			"path": [][]float64{{0, 1}, {0, 2}, {0, 6}},
			"type": "train",
			"details": map[string]any{
				"powerType":   "auto",
				"electrified": []any{[]any{0, 1, "contact_line"}, []any{1, 2, "no"}},
			},
		})
		AssertSuccessResult(t, result, "Expected success result, but got error")

		var out struct {
			Countries map[string]map[string]float64 `json:"countries"`
			TotalKm   float64                       `json:"total_km"`
		}
		if err := ParseResultJSON(result, &out); err != nil {
			t.Fatalf("Failed to unmarshal result: %v", err)
		}
		if out.Countries["FR"]["elec"] <= 0 || out.Countries["FR"]["nonelec"] != 0 {
			t.Errorf("Expected FR to be electrified, got %v", out.Countries["FR"])
		}
		if out.Countries["DE"]["nonelec"] <= 0 || out.Countries["DE"]["elec"] != 0 {
			t.Errorf("Expected DE to be diesel, got %v", out.Countries["DE"])
		}
		if math.Abs(out.TotalKm-556.1) > 1 {
			t.Errorf("Expected about 556.1 km, got %f", out.TotalKm)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		result := call(t, r.HandleCountryBreakdown, "country_breakdown", map[string]any{
			"path": [][]float64{{0, 1}, {0, 2}},
			"type": "jetpack",
		})
		AssertErrorCode(t, result, core.ErrUnsupportedMode)
	})

	t.Run("empty path", func(t *testing.T) {
		result := call(t, r.HandleCountryBreakdown, "country_breakdown", map[string]any{"type": "car"})
		AssertErrorCode(t, result, core.ErrInvalidPath)
	})
}

func TestHandleCountryStats(t *testing.T) {
	result := call(t, HandleCountryStats, "country_stats", map[string]any{
		"trips": []map[string]any{
			{"countries": map[string]any{"FR": 100000, "DE": map[string]float64{"elec": 1000, "nonelec": 2000}}, "past": true},
			{"countries": map[string]any{"FR": 50000}, "past": false},
		},
	})
	AssertSuccessResult(t, result, "Expected success result, but got error")

	var out struct {
		Countries []struct {
			Country            string  `json:"country"`
			PastTrips          int     `json:"pastTrips"`
			PlannedFutureTrips int     `json:"plannedFutureTrips"`
			PastKm             float64 `json:"pastKm"`
		} `json:"countries"`
	}
	if err := ParseResultJSON(result, &out); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if len(out.Countries) != 2 || out.Countries[0].Country != "FR" {
		t.Fatalf("Expected FR first, got %+v", out.Countries)
	}
	if out.Countries[0].PastTrips != 1 || out.Countries[0].PlannedFutureTrips != 1 {
		t.Errorf("Unexpected FR counts %+v", out.Countries[0])
	}
	if out.Countries[1].PastKm != 3 {
		t.Errorf("Expected DE past km 3, got %f", out.Countries[1].PastKm)
	}
}
