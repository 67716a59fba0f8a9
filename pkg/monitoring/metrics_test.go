package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	metrics := []prometheus.Collector{
		MCPRequestsTotal,
		MCPRequestDuration,
		CalculationsTotal,
		EmissionsKgTotal,
		AttributionDuration,
		BatchSize,
		GridUpdatesTotal,
		LocatorLookupsTotal,
		PublishTotal,
		PublishDuration,
		RateLimitExceeded,
		CacheHits,
		CacheMisses,
		CacheSize,
		ActiveConnections,
		ErrorsTotal,
		SystemInfo,
		GoRoutines,
		MemoryUsage,
		GCRuns,
	}

	for _, metric := range metrics {
		if metric == nil {
			t.Error("Metric is nil")
		}
	}
}

func TestRecordMCPRequest(t *testing.T) {
	MCPRequestsTotal.Reset()

	RecordMCPRequest("calculate_carbon", 10*time.Millisecond, true)
	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("calculate_carbon", "success")); got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}

	RecordMCPRequest("calculate_carbon", 20*time.Millisecond, false)
	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("calculate_carbon", "error")); got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
}

func TestRecordCalculation(t *testing.T) {
	CalculationsTotal.Reset()
	EmissionsKgTotal.Reset()

	RecordCalculation("car", 24, true)
	RecordCalculation("car", 2, true)
	RecordCalculation("car", 0, false)

	if got := testutil.ToFloat64(CalculationsTotal.WithLabelValues("car", "success")); got != 2 {
		t.Errorf("Expected 2 successful calculations, got %v", got)
	}
	if got := testutil.ToFloat64(CalculationsTotal.WithLabelValues("car", "error")); got != 1 {
		t.Errorf("Expected 1 failed calculation, got %v", got)
	}
	if got := testutil.ToFloat64(EmissionsKgTotal.WithLabelValues("car")); got != 26 {
		t.Errorf("Expected 26 kg accumulated, got %v", got)
	}
}

func TestRecordLocatorLookup(t *testing.T) {
	LocatorLookupsTotal.Reset()

	RecordLocatorLookup(true)
	RecordLocatorLookup(false)
	RecordLocatorLookup(false)

	if got := testutil.ToFloat64(LocatorLookupsTotal.WithLabelValues("found")); got != 1 {
		t.Errorf("Expected 1 found lookup, got %v", got)
	}
	if got := testutil.ToFloat64(LocatorLookupsTotal.WithLabelValues("not_found")); got != 2 {
		t.Errorf("Expected 2 unresolved lookups, got %v", got)
	}
}

func TestRecordGridAndPublish(t *testing.T) {
	GridUpdatesTotal.Reset()
	PublishTotal.Reset()

	RecordGridUpdate("air")
	if got := testutil.ToFloat64(GridUpdatesTotal.WithLabelValues("air")); got != 1 {
		t.Errorf("Expected 1 grid update, got %v", got)
	}

	RecordPublish(time.Millisecond, true)
	RecordPublish(time.Millisecond, false)
	if got := testutil.ToFloat64(PublishTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 published result, got %v", got)
	}
	if got := testutil.ToFloat64(PublishTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 publish failure, got %v", got)
	}

	// histograms: only check that observing does not panic
	RecordBatch(12)
	RecordAttribution("train", 3*time.Millisecond)
}

func TestCacheMetrics(t *testing.T) {
	CacheHits.Reset()
	CacheMisses.Reset()
	CacheSize.Reset()

	RecordCacheHit(CacheTypeCountry)
	if got := testutil.ToFloat64(CacheHits.WithLabelValues(CacheTypeCountry)); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}

	RecordCacheMiss(CacheTypeCountry)
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues(CacheTypeCountry)); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}

	UpdateCacheSize(CacheTypeCountry, 42)
	if got := testutil.ToFloat64(CacheSize.WithLabelValues(CacheTypeCountry)); got != 42 {
		t.Errorf("Expected cache size 42, got %v", got)
	}
}

func TestRateLimitAndErrorMetrics(t *testing.T) {
	RateLimitExceeded.Reset()
	ErrorsTotal.Reset()
	ActiveConnections.Reset()

	RecordRateLimitExceeded("http")
	if got := testutil.ToFloat64(RateLimitExceeded.WithLabelValues("http")); got != 1 {
		t.Errorf("Expected 1 rate limit exceeded, got %v", got)
	}

	RecordError("publisher", "nats")
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("publisher", "nats")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}

	ConnectionOpened("http", "sse")
	ConnectionOpened("http", "sse")
	ConnectionOpened("http", "sse")
	ConnectionClosed("http", "sse")
	if got := testutil.ToFloat64(ActiveConnections.WithLabelValues("http", "sse")); got != 2 {
		t.Errorf("Expected 2 active connections, got %v", got)
	}
}

func BenchmarkRecordCalculation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordCalculation("train", 1.5, true)
	}
}

func BenchmarkRecordCacheHit(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordCacheHit(CacheTypeCountry)
	}
}
