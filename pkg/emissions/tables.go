package emissions

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"strings"
)

const (
	aircraftFile = "aircraft_emissions.json"
	trainFile    = "train_emissions.json"

	// DefaultCountry is the train table entry used for unknown countries.
	DefaultCountry = "default"

	// AllCategories keys an aircraft factor that applies at any distance.
	AllCategories = "all"
)

//go:embed base_data/*.json
var baseData embed.FS

// FlightCategory is a distance band with its fallback per-km factor.
// A missing bound is open.
type FlightCategory struct {
	DistanceKmMin *float64 `json:"distance_km_min,omitempty"`
	DistanceKmMax *float64 `json:"distance_km_max,omitempty"`
	BaseCO2PerKm  float64  `json:"base_co2_per_km"`
}

func (c FlightCategory) bounds() (float64, float64) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if c.DistanceKmMin != nil {
		lo = *c.DistanceKmMin
	}
	if c.DistanceKmMax != nil {
		hi = *c.DistanceKmMax
	}
	return lo, hi
}

// Contains reports whether km falls in [min, max).
func (c FlightCategory) Contains(km float64) bool {
	lo, hi := c.bounds()
	return lo <= km && km < hi
}

// CountryFactors describes a national rail network.
type CountryFactors struct {
	DieselShare          float64 `json:"diesel_share"`
	GridIntensityGPerKWh float64 `json:"grid_intensity_g_per_kwh"`
}

// Tables holds the static emission factors. Tables are read-only once
// loaded and safe to share between goroutines.
type Tables struct {
	FlightCategories map[string]FlightCategory     `json:"flight_categories"`
	Aircraft         map[string]map[string]float64 `json:"aircraft"`
	Countries        map[string]CountryFactors     `json:"countries"`
}

// DefaultTables returns the factor tables compiled into the binary.
func DefaultTables() (*Tables, error) {
	sub, err := fs.Sub(baseData, "base_data")
	if err != nil {
		return nil, err
	}
	return loadTables(sub)
}

// LoadTables reads aircraft_emissions.json and train_emissions.json from dir.
func LoadTables(dir string) (*Tables, error) {
	return loadTables(os.DirFS(dir))
}

func loadTables(fsys fs.FS) (*Tables, error) {
	var aircraft struct {
		FlightCategories map[string]FlightCategory     `json:"flight_categories"`
		Aircraft         map[string]map[string]float64 `json:"aircraft"`
	}
	if err := readJSON(fsys, aircraftFile, &aircraft); err != nil {
		return nil, err
	}

	var countries map[string]CountryFactors
	if err := readJSON(fsys, trainFile, &countries); err != nil {
		return nil, err
	}

	t := &Tables{
		FlightCategories: aircraft.FlightCategories,
		Aircraft:         aircraft.Aircraft,
		Countries:        countries,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// Validate checks the tables are usable. Every problem found is reported.
func (t *Tables) Validate() error {
	var errs []error

	if _, ok := t.Countries[DefaultCountry]; !ok {
		errs = append(errs, fmt.Errorf("train table has no %q entry", DefaultCountry))
	}
	for _, code := range sortedKeys(t.Countries) {
		f := t.Countries[code]
		if f.DieselShare < 0 || f.DieselShare > 1 {
			errs = append(errs, fmt.Errorf("country %s: diesel_share %v outside [0,1]", code, f.DieselShare))
		}
		if f.GridIntensityGPerKWh < 0 {
			errs = append(errs, fmt.Errorf("country %s: negative grid intensity", code))
		}
	}

	if len(t.FlightCategories) == 0 {
		errs = append(errs, errors.New("no flight categories"))
	}
	for _, name := range sortedKeys(t.FlightCategories) {
		c := t.FlightCategories[name]
		if c.BaseCO2PerKm <= 0 {
			errs = append(errs, fmt.Errorf("flight category %s: missing base_co2_per_km", name))
		}
		if lo, hi := c.bounds(); lo >= hi {
			errs = append(errs, fmt.Errorf("flight category %s: empty distance range", name))
		}
	}

	for _, code := range sortedKeys(t.Aircraft) {
		for cat, v := range t.Aircraft[code] {
			if _, ok := t.FlightCategories[cat]; !ok && cat != AllCategories {
				errs = append(errs, fmt.Errorf("aircraft %s: unknown category %q", code, cat))
			}
			if v < 0 {
				errs = append(errs, fmt.Errorf("aircraft %s: negative factor for %s", code, cat))
			}
		}
	}

	return errors.Join(errs...)
}

// Country returns the factors for code, then for the country part of a
// subdivision code like ES-CN, then the default entry.
func (t *Tables) Country(code string) CountryFactors {
	if f, ok := t.Countries[code]; ok {
		return f
	}
	if parent, _, ok := strings.Cut(code, "-"); ok {
		if f, ok := t.Countries[parent]; ok {
			return f
		}
	}
	return t.Countries[DefaultCountry]
}

// Category returns the flight category for a distance. When bands overlap
// the narrowest wins, then the one starting lowest.
func (t *Tables) Category(km float64) (string, bool) {
	best := ""
	bestSpan, bestMin := math.Inf(1), math.Inf(1)
	found := false

	for _, name := range sortedKeys(t.FlightCategories) {
		c := t.FlightCategories[name]
		if !c.Contains(km) {
			continue
		}
		lo, hi := c.bounds()
		span := hi - lo
		if math.IsNaN(span) {
			span = math.Inf(1)
		}
		if !found || span < bestSpan || (span == bestSpan && lo < bestMin) {
			best, bestSpan, bestMin, found = name, span, lo, true
		}
	}
	return best, found
}

// AircraftFactor returns the kg CO2 per passenger-km for an aircraft type at
// the given distance: the category entry if present, else the "all" entry.
func (t *Tables) AircraftFactor(code string, km float64) (float64, bool) {
	perCategory, ok := t.Aircraft[code]
	if !ok || len(perCategory) == 0 {
		return 0, false
	}
	if cat, ok := t.Category(km); ok {
		if v, ok := perCategory[cat]; ok {
			return v, true
		}
	}
	v, ok := perCategory[AllCategories]
	return v, ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
