// Package config reads service settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings. Command-line flags in main override
// the values loaded here.
type Config struct {
	// TablesDir holds aircraft_emissions.json and train_emissions.json.
	// Empty uses the tables compiled into the binary.
	TablesDir string
	// CountriesGeoJSON is a FeatureCollection of country boundaries.
	CountriesGeoJSON string
	LocatorCacheSize int

	BatchConcurrency int

	// NATSURL enables result publication when set.
	NATSURL           string
	NATSSubjectPrefix string
	NATSName          string

	HTTPAddr        string
	MonitoringAddr  string
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxRequestBytes int64
	ShutdownTimeout time.Duration

	OTLPEndpoint     string
	Environment      string
	TraceSampleRatio float64

	RegistryURL string
	ServiceURL  string
}

// Load reads the given env files (or ./.env if none are named and it
// exists) into the environment and builds a Config from it. Variables
// already set in the environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		// ignore a missing .env
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg := &Config{
		TablesDir:         os.Getenv("TABLES_DIR"),
		CountriesGeoJSON:  firstNonEmpty(os.Getenv("COUNTRIES_GEOJSON"), os.Getenv("COUNTRIES_FILE")),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "trips.carbon"),
		NATSName:          getenvDefault("NATS_CLIENT_NAME", "tripmcp"),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":7082"),
		MonitoringAddr:    getenvDefault("MONITORING_ADDR", ":9090"),
		OTLPEndpoint:      firstNonEmpty(os.Getenv("OTLP_ENDPOINT"), os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Environment:       getenvDefault("ENVIRONMENT", "development"),
		RegistryURL:       os.Getenv("REGISTRY_URL"),
		ServiceURL:        os.Getenv("SERVICE_URL"),
	}

	var errs []error
	var err error

	if cfg.LocatorCacheSize, err = intEnv("LOCATOR_CACHE_SIZE", 100000, 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.BatchConcurrency, err = intEnv("BATCH_CONCURRENCY", 8, 1); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 20, 1); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitRPS, err = floatEnv("RATE_LIMIT_RPS", 10, 0, 1e6); err != nil {
		errs = append(errs, err)
	}
	if cfg.TraceSampleRatio, err = floatEnv("TRACE_SAMPLE_RATIO", 1, 0, 1); err != nil {
		errs = append(errs, err)
	}

	maxBytes, err := intEnv("MAX_REQUEST_BYTES", 10<<20, 1024)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MaxRequestBytes = int64(maxBytes)

	cfg.ShutdownTimeout = 30 * time.Second
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %q", v))
		} else {
			cfg.ShutdownTimeout = d
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if c.CountriesGeoJSON == "" {
		return errors.New("COUNTRIES_GEOJSON must point to a country boundaries FeatureCollection")
	}
	if c.NATSURL != "" && strings.TrimSpace(c.NATSSubjectPrefix) == "" {
		return errors.New("NATS_SUBJECT_PREFIX cannot be empty when NATS_URL is set")
	}
	return nil
}

func intEnv(key string, def, minimum int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func floatEnv(key string, def, lo, hi float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < lo || f > hi {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
