package country

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// codeProperties are the feature properties checked, in order, for the
// country code. Natural Earth uses ISO_A2; pre-processed exports use the
// others.
var codeProperties = []string{"ISO_A2", "iso_a2", "ISO3166-1-Alpha-2", "countryCode", "code"}

// codePattern matches an ISO 3166-1 alpha-2 code, optionally with an ISO
// 3166-2 subdivision suffix such as ES-CN.
var codePattern = regexp.MustCompile(`^[A-Z]{2}(-[A-Z0-9]{1,3})?$`)

type shape struct {
	code  string
	bound orb.Bound
	geom  orb.Geometry
}

// GeoJSONLocator answers lookups with point-in-polygon tests against
// country boundaries loaded from a GeoJSON FeatureCollection.
type GeoJSONLocator struct {
	shapes []shape
	codes  map[string]struct{}
}

// LoadGeoJSONFile reads country boundaries from a GeoJSON file.
func LoadGeoJSONFile(path string) (*GeoJSONLocator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening country boundaries: %w", err)
	}
	defer f.Close()

	loc, err := NewGeoJSONLocator(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return loc, nil
}

// NewGeoJSONLocator indexes the polygons and multipolygons of a GeoJSON
// FeatureCollection. Features without a usable code or polygonal geometry
// are skipped. An error is returned when nothing usable remains.
func NewGeoJSONLocator(r io.Reader) (*GeoJSONLocator, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading country boundaries: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing country boundaries: %w", err)
	}

	loc := &GeoJSONLocator{codes: make(map[string]struct{})}
	skipped := 0
	for _, f := range fc.Features {
		code := featureCode(f)
		if code == "" {
			skipped++
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			skipped++
			continue
		}
		loc.shapes = append(loc.shapes, shape{
			code:  code,
			bound: f.Geometry.Bound(),
			geom:  f.Geometry,
		})
		loc.codes[code] = struct{}{}
	}

	if len(loc.shapes) == 0 {
		return nil, fmt.Errorf("no country polygons found in %d features", len(fc.Features))
	}

	// smaller shapes first so enclaves win over the country surrounding them
	sort.SliceStable(loc.shapes, func(i, j int) bool {
		return boundArea(loc.shapes[i].bound) < boundArea(loc.shapes[j].bound)
	})

	slog.Default().Debug("country boundaries indexed",
		"shapes", len(loc.shapes),
		"countries", len(loc.codes),
		"skipped", skipped)

	return loc, nil
}

func featureCode(f *geojson.Feature) string {
	for _, key := range codeProperties {
		code := strings.ToUpper(strings.TrimSpace(f.Properties.MustString(key, "")))
		if codePattern.MatchString(code) {
			return code
		}
	}
	return ""
}

func boundArea(b orb.Bound) float64 {
	return (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
}

// Lookup returns the code of the first indexed shape containing the point.
func (l *GeoJSONLocator) Lookup(_ context.Context, lat, lng float64) (string, bool) {
	pt := orb.Point{lng, lat}
	for _, s := range l.shapes {
		if !s.bound.Contains(pt) {
			continue
		}
		switch g := s.geom.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, pt) {
				return s.code, true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, pt) {
				return s.code, true
			}
		}
	}
	return "", false
}

// Countries returns the sorted list of indexed country codes.
func (l *GeoJSONLocator) Countries() []string {
	codes := make([]string, 0, len(l.codes))
	for c := range l.codes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
