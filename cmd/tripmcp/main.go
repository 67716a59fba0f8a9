package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/tripmcp/pkg/api"
	"github.com/NERVsystems/tripmcp/pkg/attribution"
	"github.com/NERVsystems/tripmcp/pkg/config"
	"github.com/NERVsystems/tripmcp/pkg/country"
	"github.com/NERVsystems/tripmcp/pkg/emissions"
	"github.com/NERVsystems/tripmcp/pkg/engine"
	"github.com/NERVsystems/tripmcp/pkg/monitoring"
	"github.com/NERVsystems/tripmcp/pkg/publisher"
	"github.com/NERVsystems/tripmcp/pkg/registration"
	"github.com/NERVsystems/tripmcp/pkg/server"
	"github.com/NERVsystems/tripmcp/pkg/tools"
	"github.com/NERVsystems/tripmcp/pkg/tracing"
	"github.com/NERVsystems/tripmcp/pkg/trip"
	ver "github.com/NERVsystems/tripmcp/pkg/version"
)

// options are the command-line flags. Flags left unset keep the value from
// the environment.
type options struct {
	showVersion    bool
	debug          bool
	envFile        string
	generateConfig string
	mergeOnly      bool

	tablesDir string
	countries string

	enableHTTP  bool
	httpOnly    bool
	httpAddr    string
	httpBaseURL string

	enableMonitoring bool
	monitoringAddr   string

	natsURL     string
	registryURL string
	serviceURL  string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("tripmcp", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&opts.showVersion, "version", false, "Display version information")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&opts.envFile, "env-file", "", "Load settings from this env file instead of ./.env")
	fs.StringVar(&opts.generateConfig, "generate-config", "", "Write an MCP client config file at the specified path")
	fs.BoolVar(&opts.mergeOnly, "merge-only", false, "Merge into an existing client config instead of overwriting it")

	fs.StringVar(&opts.tablesDir, "tables-dir", "", "Directory with aircraft_emissions.json and train_emissions.json (default: built-in tables)")
	fs.StringVar(&opts.countries, "countries", "", "Country boundaries GeoJSON FeatureCollection")

	fs.BoolVar(&opts.enableHTTP, "enable-http", false, "Enable HTTP+SSE transport and the REST API (in addition to stdio)")
	fs.BoolVar(&opts.httpOnly, "http-only", false, "Run HTTP transport only, skip stdio (requires --enable-http)")
	fs.StringVar(&opts.httpAddr, "http-addr", "", "HTTP server address")
	fs.StringVar(&opts.httpBaseURL, "http-base-url", "", "Base URL for HTTP transport (auto-detected if empty)")

	fs.BoolVar(&opts.enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health endpoints")
	fs.StringVar(&opts.monitoringAddr, "monitoring-addr", "", "Monitoring server address")

	fs.StringVar(&opts.natsURL, "nats-url", "", "Publish results to this NATS server")
	fs.StringVar(&opts.registryURL, "registry-url", "", "Service registry URL, enables registration")
	fs.StringVar(&opts.serviceURL, "service-url", "", "External URL where this service is accessible")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.httpOnly && !opts.enableHTTP {
		return nil, errors.New("--http-only requires --enable-http")
	}
	return opts, nil
}

// apply overrides environment settings with the flags that were given.
func (o *options) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.TablesDir, o.tablesDir)
	set(&cfg.CountriesGeoJSON, o.countries)
	set(&cfg.HTTPAddr, o.httpAddr)
	set(&cfg.MonitoringAddr, o.monitoringAddr)
	set(&cfg.NATSURL, o.natsURL)
	set(&cfg.RegistryURL, o.registryURL)
	set(&cfg.ServiceURL, o.serviceURL)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "tripmcp: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run starts the service and blocks until ctx is cancelled or stdio closes.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintln(stderr, ver.String())
		return nil
	}

	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	var envFiles []string
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	opts.apply(cfg)

	if opts.generateConfig != "" {
		if err := generateClientConfig(opts.generateConfig, opts.mergeOnly, cfg); err != nil {
			return fmt.Errorf("generating client config: %w", err)
		}
		logger.Info("generated MCP client config", "path", opts.generateConfig)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion, tracing.Options{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		// tracing is optional
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if cfg.OTLPEndpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", cfg.OTLPEndpoint)
		}
	}

	logger.Info("starting trip MCP server",
		"version", ver.BuildVersion,
		"log_level", logLevel.String(),
		"countries", cfg.CountriesGeoJSON,
		"tables", tablesSource(cfg),
		"http_enabled", opts.enableHTTP,
		"monitoring_enabled", opts.enableMonitoring,
		"nats_enabled", cfg.NATSURL != "")

	var healthChecker *monitoring.HealthChecker
	if opts.enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
	}

	tables, locator, err := loadReferenceData(cfg, logger)
	if err != nil {
		return err
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithBatchConcurrency(cfg.BatchConcurrency),
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(publisher.Options{
			URL:           cfg.NATSURL,
			Name:          cfg.NATSName,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Logger:        logger,
			OnStatus: func(status string, err error) {
				if healthChecker != nil {
					healthChecker.UpdateConnection("nats", status, 0, err)
				}
			},
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		engineOpts = append(engineOpts, engine.WithPublisher(pub))

		if healthChecker != nil {
			natsMonitor := monitoring.NewConnectionMonitor("nats", healthChecker, pub.Ping, 30*time.Second)
			natsMonitor.Start()
			defer natsMonitor.Stop()
		}
	}
	eng := engine.New(attribution.New(locator, logger), emissions.NewModel(tables), engineOpts...)

	registry := tools.NewRegistry(logger, eng)
	s := server.NewServer(registry, logger)

	if opts.enableMonitoring {
		stopMetrics, err := startMetricsServer(cfg.MonitoringAddr, logger)
		if err != nil {
			return err
		}
		defer stopMetrics(cfg.ShutdownTimeout)
	}

	if cfg.RegistryURL != "" {
		svcURL := cfg.ServiceURL
		if svcURL == "" && opts.enableHTTP {
			svcURL = "http://localhost" + cfg.HTTPAddr
		}
		modes := make([]string, len(trip.Modes))
		for i, m := range trip.Modes {
			modes[i] = string(m)
		}
		regClient := registration.NewClient(registration.Config{
			RegistryURL: cfg.RegistryURL,
			ServiceName: server.ServerName,
			ServiceURL:  svcURL,
			Version:     ver.BuildVersion,
			Modes:       modes,
			Tools:       registry.GetToolNames(),
			Metadata: map[string]any{
				"transport": map[string]bool{"stdio": !opts.httpOnly, "http": opts.enableHTTP},
				"aircraft":  len(tables.Aircraft),
				"countries": len(tables.Countries),
			},
		}, logger)
		regClient.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			regClient.Stop(stopCtx)
		}()
	}

	if opts.enableHTTP {
		httpTransport := server.NewHTTPTransport(s.GetMCPServer(), server.HTTPTransportConfig{
			Addr:           cfg.HTTPAddr,
			BaseURL:        opts.httpBaseURL,
			RateLimit:      cfg.RateLimitRPS,
			RateBurst:      cfg.RateLimitBurst,
			MaxRequestSize: cfg.MaxRequestBytes,
		}, logger)
		httpTransport.MountAPI(api.Prefix, api.NewHandler(registry, tables, logger))
		if healthChecker != nil {
			httpTransport.SetHealthChecker(healthChecker)
			healthChecker.SetTransport(monitoring.TransportInfo{Type: "http_sse", HTTPAddr: cfg.HTTPAddr})
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpTransport.Start()
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := httpTransport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP transport", "error", err)
			}
		}()

		if opts.httpOnly {
			logger.Info("server_ready", "transports", []string{"http"}, "http_only", true)
			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("HTTP transport: %w", err)
				}
			}
			return nil
		}

		go func() {
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP transport error", "error", err)
			}
		}()
		logger.Info("server_ready", "transports", []string{"stdio", "http"})
	} else if healthChecker != nil {
		healthChecker.SetTransport(monitoring.TransportInfo{Type: "stdio"})
	}

	if err := s.RunWithContext(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// loadReferenceData loads the factor tables and the country boundaries. Both
// are required: a misconfigured service fails at startup, before any
// connection is made.
func loadReferenceData(cfg *config.Config, logger *slog.Logger) (*emissions.Tables, country.Locator, error) {
	var tables *emissions.Tables
	var err error
	if cfg.TablesDir != "" {
		tables, err = emissions.LoadTables(cfg.TablesDir)
	} else {
		tables, err = emissions.DefaultTables()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading emission tables: %w", err)
	}

	boundaries, err := country.LoadGeoJSONFile(cfg.CountriesGeoJSON)
	if err != nil {
		return nil, nil, err
	}
	locator, err := country.NewCachedLocator(boundaries, cfg.LocatorCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("creating locator cache: %w", err)
	}
	logger.Info("country boundaries loaded",
		"countries", len(boundaries.Countries()),
		"cache_size", cfg.LocatorCacheSize)
	return tables, locator, nil
}

func tablesSource(cfg *config.Config) string {
	if cfg.TablesDir == "" {
		return "built-in"
	}
	return cfg.TablesDir
}

// startMetricsServer serves /metrics until the returned stop is called.
func startMetricsServer(addr string, logger *slog.Logger) (func(time.Duration), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("monitoring listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("starting Prometheus metrics server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	return func(timeout time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown monitoring server", "error", err)
		}
	}, nil
}
