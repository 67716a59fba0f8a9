package attribution

import (
	"context"
	"log/slog"
	"time"

	"github.com/NERVsystems/tripmcp/pkg/country"
	"github.com/NERVsystems/tripmcp/pkg/geo"
	"github.com/NERVsystems/tripmcp/pkg/monitoring"
	"github.com/NERVsystems/tripmcp/pkg/tracing"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// FerrySampleMeters is the spacing of extra lookups along long ferry
// segments, which mostly cross open water.
const FerrySampleMeters = 10000

// Attributor splits path distance among countries using a Locator.
type Attributor struct {
	locator country.Locator
	logger  *slog.Logger
}

// New returns an Attributor. A nil logger uses slog.Default.
func New(locator country.Locator, logger *slog.Logger) *Attributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Attributor{
		locator: locator,
		logger:  logger.With("component", "attribution"),
	}
}

// walkState is the country unresolved points fall back to while walking a
// path. It starts empty and becomes Unknown if the first samples resolve to
// nothing.
type walkState struct {
	lastResolved string
}

// next folds one lookup result into the state. Ferries never carry a
// country over water: a miss is recorded as Unknown.
func (s walkState) next(code string, ok bool, mode trip.Mode) walkState {
	switch {
	case ok:
		return walkState{lastResolved: code}
	case mode == trip.Ferry || s.lastResolved == "":
		return walkState{lastResolved: country.Unknown}
	default:
		return s
	}
}

// Attribute returns the distance in meters travelled in each country. The
// only error is the context's; failed lookups become Unknown or reuse the
// previous country.
func (a *Attributor) Attribute(ctx context.Context, path trip.Path, mode trip.Mode, details *trip.RoutingDetails) (DistanceMap, error) {
	ctx, span := tracing.StartSpan(ctx, "attribution.attribute")
	defer span.End()
	span.SetAttributes(tracing.TripAttributes(string(mode), len(path))...)

	start := time.Now()
	defer func() { monitoring.RecordAttribution(string(mode), time.Since(start)) }()

	if len(path) == 0 {
		return DistanceMap{country.Unknown: Flat(0)}, nil
	}

	if mode.IsAerial() {
		return a.attributeEndpoints(ctx, path), nil
	}

	result, err := a.walk(ctx, path, mode, details)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return result, nil
}

// attributeEndpoints splits the whole path length evenly between the
// departure and arrival countries.
func (a *Attributor) attributeEndpoints(ctx context.Context, path trip.Path) DistanceMap {
	half := path.Length() / 2
	first, last := path[0], path[len(path)-1]

	out := DistanceMap{}
	out.Add(country.CodeOrUnknown(ctx, a.locator, first.Latitude, first.Longitude), Flat(half))
	out.Add(country.CodeOrUnknown(ctx, a.locator, last.Latitude, last.Longitude), Flat(half))
	return out
}

func (a *Attributor) walk(ctx context.Context, path trip.Path, mode trip.Mode, details *trip.RoutingDetails) (DistanceMap, error) {
	power := details.Power()
	split := mode == trip.Train && details != nil && (power != trip.PowerAuto || details.HasElectrification())

	var statuses map[int]string
	if split && power == trip.PowerAuto {
		statuses = details.StatusBySegment()
	}

	out := DistanceMap{}
	var state walkState

	for i := 1; i < len(path); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prev, curr := path[i-1], path[i]
		segment := geo.Haversine(prev, curr)

		samples := []geo.Location{curr}
		if mode == trip.Ferry && segment > FerrySampleMeters {
			samples = geo.Lerp(prev, curr, int(segment/FerrySampleMeters))
		}

		counts := make(map[string]int, 1)
		for _, p := range samples {
			code, ok := a.locator.Lookup(ctx, p.Latitude, p.Longitude)
			state = state.next(code, ok, mode)
			counts[state.lastResolved]++
		}

		electric := split && segmentElectrified(power, statuses, i-1)
		for code, n := range counts {
			share := segment * float64(n) / float64(len(samples))
			switch {
			case !split:
				out.Add(code, Flat(share))
			case electric:
				out.Add(code, Split(share, 0))
			default:
				out.Add(code, Split(0, share))
			}
		}
	}

	if len(out) == 0 {
		code := country.CodeOrUnknown(ctx, a.locator, path[0].Latitude, path[0].Longitude)
		if split {
			return DistanceMap{code: Split(0, 0)}, nil
		}
		return DistanceMap{code: Flat(0)}, nil
	}

	a.logger.Debug("attributed path",
		"mode", mode,
		"points", len(path),
		"countries", len(out),
		"split", split)
	return out, nil
}

func segmentElectrified(power trip.PowerType, statuses map[int]string, segment int) bool {
	switch power {
	case trip.PowerElectric:
		return true
	case trip.PowerThermic:
		return false
	}
	status, ok := statuses[segment]
	return ok && trip.IsElectrifiedStatus(status)
}
