// Package engine ties country attribution and the emission model together
// into the calculations exposed by the MCP tools and the REST API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/tripmcp/pkg/attribution"
	"github.com/NERVsystems/tripmcp/pkg/emissions"
	"github.com/NERVsystems/tripmcp/pkg/geo"
	"github.com/NERVsystems/tripmcp/pkg/grid"
	"github.com/NERVsystems/tripmcp/pkg/monitoring"
	"github.com/NERVsystems/tripmcp/pkg/tracing"
	"github.com/NERVsystems/tripmcp/pkg/trip"
)

// Comparison reference values.
const (
	DailyAverageKg   = 2.4
	TreeKgPerYear    = 21.0
	CarKgPerKm       = 0.192
	DefaultBatchSize = 8
)

var (
	// ErrUnsupportedMode is returned for trip types the model does not know.
	ErrUnsupportedMode = errors.New("unsupported mode")
	// ErrInvalidPath is returned for paths with out-of-range coordinates or
	// an undecodable polyline.
	ErrInvalidPath = errors.New("invalid path")
)

// Publisher receives every successful single-trip result.
type Publisher interface {
	PublishResult(ctx context.Context, mode string, v any) error
}

// TripInput is a trip as sent by clients, optionally with a precomputed
// country attribution.
type TripInput struct {
	trip.Trip
	Countries attribution.DistanceMap `json:"countries,omitempty"`
}

// Request is one carbon calculation. Path may instead be given as an
// encoded polyline.
type Request struct {
	Trip              TripInput `json:"trip"`
	Path              trip.Path `json:"path,omitempty"`
	Polyline          string    `json:"polyline,omitempty"`
	PolylinePrecision int       `json:"polyline_precision,omitempty"`
	DetectCountries   bool      `json:"detect_countries,omitempty"`
}

// Comparison puts an emission figure in everyday terms.
type Comparison struct {
	DailyAverage    float64 `json:"daily_average"`
	TreesNeeded     float64 `json:"trees_needed"`
	CarKmEquivalent float64 `json:"car_km_equivalent"`
}

// Result is the outcome of a single calculation.
type Result struct {
	Carbon          float64                 `json:"carbon"`
	CarbonTons      float64                 `json:"carbon_tons"`
	TripType        trip.Mode               `json:"trip_type"`
	DistanceKm      float64                 `json:"distance_km"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Countries       attribution.DistanceMap `json:"countries,omitempty"`
	Comparison      Comparison              `json:"comparison"`
}

// SegmentResult is one entry of a batch. Error is set when the segment
// could not be calculated; the rest of the batch is unaffected.
type SegmentResult struct {
	Carbon     float64                 `json:"carbon"`
	TripType   trip.Mode               `json:"trip_type"`
	DistanceKm float64                 `json:"distance_km"`
	Countries  attribution.DistanceMap `json:"countries,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// BatchResult holds per-segment results in request order plus totals over
// the successful segments.
type BatchResult struct {
	Segments        []SegmentResult `json:"segments"`
	TotalCarbon     float64         `json:"total_carbon"`
	TotalDistanceKm float64         `json:"total_distance_km"`
	Failed          int             `json:"failed,omitempty"`
	Comparison      Comparison      `json:"comparison"`
}

// Engine runs calculations. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	attributor  *attribution.Attributor
	model       *emissions.Model
	publisher   Publisher
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher publishes every single-trip result.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBatchConcurrency bounds how many batch segments run at once.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the time source used for grid updates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine.
func New(attributor *attribution.Attributor, model *emissions.Model, opts ...Option) *Engine {
	e := &Engine{
		attributor:  attributor,
		model:       model,
		logger:      slog.Default(),
		concurrency: DefaultBatchSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// Model returns the emission model.
func (e *Engine) Model() *emissions.Model { return e.model }

// Calculate estimates the emissions of one trip and publishes the result.
// Publication failures are logged and do not fail the calculation.
func (e *Engine) Calculate(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.calculate")
	defer span.End()
	span.SetAttributes(tracing.TripAttributes(string(req.Trip.Mode), len(req.Path))...)

	res, err := e.calculate(ctx, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		monitoring.RecordCalculation(string(req.Trip.Mode), 0, false)
		return Result{}, err
	}
	monitoring.RecordCalculation(string(res.TripType), res.Carbon, true)
	span.SetAttributes(tracing.ResultAttributes(res.DistanceKm, res.Carbon, res.Countries.Codes())...)

	if e.publisher != nil {
		if err := e.publisher.PublishResult(ctx, string(res.TripType), res); err != nil {
			e.logger.Warn("publishing result failed", "mode", res.TripType, "error", err)
		}
	}
	return res, nil
}

func (e *Engine) calculate(ctx context.Context, req Request) (Result, error) {
	mode, err := trip.MustMode(string(req.Trip.Mode))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedMode, err)
	}
	path, err := resolvePath(req)
	if err != nil {
		return Result{}, err
	}

	t := req.Trip.Trip
	t.Mode = mode

	countries := req.Trip.Countries
	if len(countries) == 0 && len(path) > 0 && (req.DetectCountries || mode.IsAerial()) {
		countries, err = e.attributor.Attribute(ctx, path, mode, t.Details)
		if err != nil {
			return Result{}, fmt.Errorf("attributing countries: %w", err)
		}
	}

	kg := e.model.Estimate(t, path, countries)
	return Result{
		Carbon:          Round(kg, 6),
		CarbonTons:      Round(kg/1000, 6),
		TripType:        mode,
		DistanceKm:      Round(emissions.DistanceKm(mode, t.DistanceM, path), 2),
		DurationSeconds: t.DurationS,
		Countries:       countries,
		Comparison:      Compare(kg),
	}, nil
}

// CalculateBatch evaluates every request concurrently. Segments with an
// unsupported mode are zero-emission segments rather than failures. The only
// error is the context's.
func (e *Engine) CalculateBatch(ctx context.Context, reqs []Request) (BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.calculate_batch")
	defer span.End()
	monitoring.RecordBatch(len(reqs))

	segments := make([]SegmentResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if mode, ok := trip.ParseMode(string(req.Trip.Mode)); !ok {
				monitoring.RecordCalculation(string(mode), 0, true)
				segments[i] = SegmentResult{TripType: mode}
				return nil
			}
			res, err := e.calculate(gctx, req)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				monitoring.RecordCalculation(string(req.Trip.Mode), 0, false)
				segments[i] = SegmentResult{TripType: req.Trip.Mode, Error: err.Error()}
				return nil
			}
			monitoring.RecordCalculation(string(res.TripType), res.Carbon, true)
			segments[i] = SegmentResult{
				Carbon:     res.Carbon,
				TripType:   res.TripType,
				DistanceKm: res.DistanceKm,
				Countries:  res.Countries,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(ctx, err)
		return BatchResult{}, err
	}

	out := BatchResult{Segments: segments}
	for _, s := range segments {
		if s.Error != "" {
			out.Failed++
			continue
		}
		out.TotalCarbon += s.Carbon
		out.TotalDistanceKm += s.DistanceKm
	}
	out.Comparison = Compare(out.TotalCarbon)
	out.TotalCarbon = Round(out.TotalCarbon, 6)
	out.TotalDistanceKm = Round(out.TotalDistanceKm, 2)

	span.SetAttributes(
		attribute.Int(tracing.AttrBatchSize, len(reqs)),
		attribute.Int(tracing.AttrBatchFailed, out.Failed),
	)
	if out.Failed > 0 {
		e.logger.Info("batch finished with failures", "segments", len(reqs), "failed", out.Failed)
	}
	return out, nil
}

// Countries attributes a path to countries.
func (e *Engine) Countries(ctx context.Context, path trip.Path, mode trip.Mode, details *trip.RoutingDetails) (attribution.DistanceMap, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return e.attributor.Attribute(ctx, path, mode, details)
}

// UpdateGrid folds trips into g in creation order.
func (e *Engine) UpdateGrid(ctx context.Context, g grid.Grid, records []grid.Record) (grid.Grid, error) {
	_, span := tracing.StartSpan(ctx, "engine.update_grid")
	defer span.End()

	normalized := make([]grid.Record, len(records))
	for i, r := range records {
		if err := ValidatePath(r.Path); err != nil {
			return grid.Grid{}, fmt.Errorf("trip %d: %w", i, err)
		}
		r.Mode, _ = trip.ParseMode(string(r.Mode))
		normalized[i] = r
		monitoring.RecordGridUpdate(string(r.Mode))
	}
	return grid.Fold(g, normalized, e.now()), nil
}

// Compare builds the comparison figures for kg CO2e.
func Compare(kg float64) Comparison {
	return Comparison{
		DailyAverage:    Round(kg/DailyAverageKg, 1),
		TreesNeeded:     Round(kg/TreeKgPerYear, 1),
		CarKmEquivalent: Round(kg/CarKgPerKm, 1),
	}
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// ValidatePath checks every point is a valid WGS84 coordinate.
func ValidatePath(path trip.Path) error {
	for i, p := range path {
		if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
			return fmt.Errorf("%w: point %d latitude %v out of range", ErrInvalidPath, i, p.Latitude)
		}
		if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
			return fmt.Errorf("%w: point %d longitude %v out of range", ErrInvalidPath, i, p.Longitude)
		}
	}
	return nil
}

func resolvePath(req Request) (trip.Path, error) {
	path := req.Path
	if len(path) == 0 && req.Polyline != "" {
		points, err := geo.DecodePolyline(req.Polyline, req.PolylinePrecision)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		path = points
	}
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return path, nil
}
