package attribution

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/tripmcp/pkg/country"
	"github.com/NERVsystems/tripmcp/pkg/geo"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// bandLocator resolves by longitude: [0,5) is FR, [5,10) is DE, anything
// else is open water.
func bandLocator(calls *atomic.Int32) country.Locator {
	return country.LocatorFunc(func(_ context.Context, _, lng float64) (string, bool) {
		if calls != nil {
			calls.Add(1)
		}
		switch {
		case lng >= 0 && lng < 5:
			return "FR", true
		case lng >= 5 && lng < 10:
			return "DE", true
		}
		return "", false
	})
}

func equator(lngs ...float64) trip.Path {
	p := make(trip.Path, len(lngs))
	for i, lng := range lngs {
		p[i] = geo.Pt(0, lng)
	}
	return p
}

func TestAttributeAir(t *testing.T) {
	a := New(bandLocator(nil), nil)
	ctx := context.Background()

	t.Run("split between endpoints", func(t *testing.T) {
		path := equator(1, 3, 6)
		got, err := a.Attribute(ctx, path, trip.Air, nil)
		require.NoError(t, err)

		total := path.Length()
		require.Len(t, got, 2)
		assert.InDelta(t, total/2, got["FR"].Meters(), 1e-6)
		assert.InDelta(t, total/2, got["DE"].Meters(), 1e-6)
	})

	t.Run("same country keeps full distance", func(t *testing.T) {
		path := equator(1, 4)
		got, err := a.Attribute(ctx, path, trip.Helicopter, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, path.Length(), got["FR"].Meters(), 1e-6)
	})

	t.Run("unresolved endpoint", func(t *testing.T) {
		path := equator(20, 1)
		got, err := a.Attribute(ctx, path, trip.Air, nil)
		require.NoError(t, err)
		assert.InDelta(t, path.Length()/2, got[country.Unknown].Meters(), 1e-6)
		assert.InDelta(t, path.Length()/2, got["FR"].Meters(), 1e-6)
	})
}

func TestAttributeSurfaceConservation(t *testing.T) {
	a := New(bandLocator(nil), nil)
	path := equator(1, 3, 6, 8)

	got, err := a.Attribute(context.Background(), path, trip.Car, nil)
	require.NoError(t, err)

	assert.InDelta(t, path.Length(), got.Total(), 1e-6)
	assert.InDelta(t, geo.Haversine(path[0], path[1]), got["FR"].Meters(), 1e-6)
	assert.InDelta(t, geo.Haversine(path[1], path[2])+geo.Haversine(path[2], path[3]), got["DE"].Meters(), 1e-6)
	assert.False(t, got["FR"].IsSplit())
}

func TestAttributeCarryForward(t *testing.T) {
	a := New(bandLocator(nil), nil)
	ctx := context.Background()

	t.Run("unresolved points reuse previous country", func(t *testing.T) {
		path := equator(1, 3, 20, 21)
		got, err := a.Attribute(ctx, path, trip.Bus, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, path.Length(), got["FR"].Meters(), 1e-6)
	})

	t.Run("unknown until first resolution", func(t *testing.T) {
		path := equator(20, 21, 3)
		got, err := a.Attribute(ctx, path, trip.Train, nil)
		require.NoError(t, err)
		assert.InDelta(t, geo.Haversine(path[0], path[1]), got[country.Unknown].Meters(), 1e-6)
		assert.InDelta(t, geo.Haversine(path[1], path[2]), got["FR"].Meters(), 1e-6)
	})

	t.Run("walk state", func(t *testing.T) {
		var s walkState
		s = s.next("", false, trip.Car)
		assert.Equal(t, country.Unknown, s.lastResolved)
		s = s.next("FR", true, trip.Car)
		s = s.next("", false, trip.Car)
		assert.Equal(t, "FR", s.lastResolved)
		s = s.next("", false, trip.Ferry)
		assert.Equal(t, country.Unknown, s.lastResolved)
	})
}

func TestAttributeFerry(t *testing.T) {
	ctx := context.Background()

	t.Run("long segment is sampled every 10 km", func(t *testing.T) {
		var calls atomic.Int32
		loc := country.LocatorFunc(func(_ context.Context, _, lng float64) (string, bool) {
			calls.Add(1)
			if lng < 5.25 {
				return "DZ", true
			}
			return "", false
		})
		a := New(loc, nil)

		path := trip.Path{geo.Pt(36.0, 5.0), geo.Pt(36.0, 5.5)}
		segment := path.Length()
		require.InDelta(t, 45000, segment, 500)

		got, err := a.Attribute(ctx, path, trip.Ferry, nil)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, int(calls.Load()), 4)
		assert.InDelta(t, segment/2, got["DZ"].Meters(), 1e-6)
		assert.InDelta(t, segment/2, got[country.Unknown].Meters(), 1e-6)
	})

	t.Run("short segment samples the end point", func(t *testing.T) {
		var calls atomic.Int32
		a := New(bandLocator(&calls), nil)
		path := trip.Path{geo.Pt(0, 1.00), geo.Pt(0, 1.05)}

		got, err := a.Attribute(ctx, path, trip.Ferry, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
		assert.InDelta(t, path.Length(), got["FR"].Meters(), 1e-6)
	})
}

func TestAttributeRailElectrification(t *testing.T) {
	a := New(bandLocator(nil), nil)
	ctx := context.Background()
	path := equator(1, 2, 4)
	seg0 := geo.Haversine(path[0], path[1])
	seg1 := geo.Haversine(path[1], path[2])

	tests := []struct {
		name        string
		mode        trip.Mode
		details     *trip.RoutingDetails
		wantSplit   bool
		wantElec    float64
		wantNonElec float64
	}{
		{
			name: "auto uses electrified ranges",
			mode: trip.Train,
			details: &trip.RoutingDetails{Electrified: []trip.ElectrifiedSegment{
				{Start: 0, End: 1, Status: "contact_line"},
				{Start: 1, End: 2, Status: "no"},
			}},
			wantSplit:   true,
			wantElec:    seg0,
			wantNonElec: seg1,
		},
		{
			name:        "electric power type",
			mode:        trip.Train,
			details:     &trip.RoutingDetails{PowerType: trip.PowerElectric},
			wantSplit:   true,
			wantElec:    seg0 + seg1,
			wantNonElec: 0,
		},
		{
			name:        "thermic power type",
			mode:        trip.Train,
			details:     &trip.RoutingDetails{PowerType: trip.PowerThermic},
			wantSplit:   true,
			wantElec:    0,
			wantNonElec: seg0 + seg1,
		},
		{
			name:        "empty electrified list counts as reported",
			mode:        trip.Train,
			details:     &trip.RoutingDetails{Electrified: []trip.ElectrifiedSegment{}},
			wantSplit:   true,
			wantNonElec: seg0 + seg1,
		},
		{
			name:    "auto without data stays flat",
			mode:    trip.Train,
			details: &trip.RoutingDetails{PowerType: trip.PowerAuto},
		},
		{
			name:    "only trains are split",
			mode:    trip.Tram,
			details: &trip.RoutingDetails{PowerType: trip.PowerElectric},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Attribute(ctx, path, tt.mode, tt.details)
			require.NoError(t, err)
			require.Len(t, got, 1)

			v := got["FR"]
			assert.Equal(t, tt.wantSplit, v.IsSplit())
			assert.InDelta(t, seg0+seg1, v.Meters(), 1e-6)
			if tt.wantSplit {
				elec, nonelec, ok := v.Parts()
				require.True(t, ok)
				assert.InDelta(t, tt.wantElec, elec, 1e-6)
				assert.InDelta(t, tt.wantNonElec, nonelec, 1e-6)
			}
		})
	}
}

func TestAttributeDegenerate(t *testing.T) {
	a := New(bandLocator(nil), nil)
	ctx := context.Background()

	got, err := a.Attribute(ctx, equator(6), trip.Car, nil)
	require.NoError(t, err)
	assert.Equal(t, DistanceMap{"DE": Flat(0)}, got)

	got, err = a.Attribute(ctx, equator(30), trip.Train, &trip.RoutingDetails{PowerType: trip.PowerElectric})
	require.NoError(t, err)
	assert.Equal(t, DistanceMap{country.Unknown: Split(0, 0)}, got)

	got, err = a.Attribute(ctx, nil, trip.Car, nil)
	require.NoError(t, err)
	assert.Equal(t, DistanceMap{country.Unknown: Flat(0)}, got)
}

func TestAttributeCancelled(t *testing.T) {
	a := New(bandLocator(nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Attribute(ctx, equator(1, 2, 3), trip.Car, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValueJSON(t *testing.T) {
	m := DistanceMap{"FR": Flat(1500), "DE": Split(1000, 250)}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"FR":1500,"DE":{"elec":1000,"nonelec":250}}`, string(data))

	var decoded DistanceMap
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m, decoded)

	t.Run("legacy split keys", func(t *testing.T) {
		var legacy DistanceMap
		require.NoError(t, json.Unmarshal([]byte(`{"CH":{"electric_m":800,"diesel_m":200}}`), &legacy))
		elec, nonelec, ok := legacy["CH"].Parts()
		require.True(t, ok)
		assert.Equal(t, 800.0, elec)
		assert.Equal(t, 200.0, nonelec)
	})

	t.Run("rejects strings", func(t *testing.T) {
		var bad DistanceMap
		assert.Error(t, json.Unmarshal([]byte(`{"FR":"far"}`), &bad))
	})
}

func TestDistanceMapHelpers(t *testing.T) {
	a := DistanceMap{"FR": Flat(100), "DE": Split(50, 50)}
	b := DistanceMap{"FR": Split(10, 0), "IT": Flat(5)}

	merged := a.Merge(b)
	assert.InDelta(t, 215, merged.Total(), 1e-9)
	assert.Equal(t, Split(10, 100), merged["FR"])
	assert.Equal(t, []string{"DE", "FR", "IT"}, merged.Codes())

	// inputs untouched
	assert.Equal(t, Flat(100), a["FR"])

	half := a.Scale(0.5)
	assert.Equal(t, Flat(50), half["FR"])
	assert.Equal(t, Split(25, 25), half["DE"])

	assert.Zero(t, DistanceMap{}.Total())
}

func TestAggregate(t *testing.T) {
	stats := Aggregate([]TripCountries{
		{Countries: DistanceMap{"FR": Flat(100000), "DE": Flat(50000)}, Past: true},
		{Countries: DistanceMap{"FR": Split(20000, 10000)}, Past: false},
		{Countries: DistanceMap{"IT": Flat(1000)}, Past: true},
	})

	require.Len(t, stats, 3)
	assert.Equal(t, "FR", stats[0].Country)
	assert.Equal(t, 1, stats[0].PastTrips)
	assert.Equal(t, 1, stats[0].PlannedFutureTrips)
	assert.InDelta(t, 100, stats[0].PastKm, 1e-9)
	assert.InDelta(t, 30, stats[0].PlannedFutureKm, 1e-9)
	assert.Equal(t, "DE", stats[1].Country)
	assert.Equal(t, "IT", stats[2].Country)
}
