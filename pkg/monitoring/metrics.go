package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "tripmcp"

	// CacheTypeCountry labels the country lookup cache.
	CacheTypeCountry = "country"
)

var (
	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripmcp_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"tool"},
	)

	// Engine metrics
	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_calculations_total",
			Help: "Total number of emission calculations by transport mode",
		},
		[]string{"mode", "status"},
	)

	EmissionsKgTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_emissions_kg_total",
			Help: "Sum of estimated kg CO2e by transport mode",
		},
		[]string{"mode"},
	)

	AttributionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripmcp_attribution_duration_seconds",
			Help:    "Time spent attributing a path to countries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"mode"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tripmcp_batch_segments",
			Help:    "Number of segments per batch calculation",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	GridUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_grid_updates_total",
			Help: "Total number of trips folded into visited grids",
		},
		[]string{"mode"},
	)

	LocatorLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_locator_lookups_total",
			Help: "Country lookups that reached the polygon index",
		},
		[]string{"result"},
	)

	// Publishing metrics
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_publish_total",
			Help: "Results published to the message bus",
		},
		[]string{"status"},
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tripmcp_publish_duration_seconds",
			Help:    "Time spent publishing a result",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"transport"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tripmcp_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tripmcp_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmcp_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tripmcp_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripmcp_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripmcp_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripmcp_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type     string `json:"type"`                // "http_sse" or "stdio"
	HTTPAddr string `json:"http_addr,omitempty"` // HTTP address if enabled
}

// ServiceHealth is the body of the /health endpoint.
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Transport     *TransportInfo         `json:"transport,omitempty"`
}

// ConnStatus is the last observed state of a dependency such as NATS.
type ConnStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`               // "connected", "disconnected", "error"
	Latency   int64  `json:"latency_ms,omitempty"` // Optional latency in milliseconds
	LastError string `json:"last_error,omitempty"` // Last error message if any
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Helper functions for common metric updates
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordCalculation(mode string, kg float64, success bool) {
	CalculationsTotal.WithLabelValues(mode, statusLabel(success)).Inc()
	if success && kg > 0 {
		EmissionsKgTotal.WithLabelValues(mode).Add(kg)
	}
}

func RecordAttribution(mode string, duration time.Duration) {
	AttributionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordBatch(segments int) {
	BatchSize.Observe(float64(segments))
}

func RecordGridUpdate(mode string) {
	GridUpdatesTotal.WithLabelValues(mode).Inc()
}

func RecordLocatorLookup(found bool) {
	result := "found"
	if !found {
		result = "not_found"
	}
	LocatorLookupsTotal.WithLabelValues(result).Inc()
}

func RecordPublish(duration time.Duration, success bool) {
	PublishTotal.WithLabelValues(statusLabel(success)).Inc()
	PublishDuration.Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(transport string) {
	RateLimitExceeded.WithLabelValues(transport).Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// ConnectionOpened counts a new live connection.
func ConnectionOpened(transport, connType string) {
	ActiveConnections.WithLabelValues(transport, connType).Inc()
}

// ConnectionClosed uncounts a connection recorded with ConnectionOpened.
func ConnectionClosed(transport, connType string) {
	ActiveConnections.WithLabelValues(transport, connType).Dec()
}
