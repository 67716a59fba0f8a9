package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Trip attributes
	AttrTripMode       = "trip.mode"
	AttrTripPoints     = "trip.path.points"
	AttrTripDistanceKm = "trip.distance_km"
	AttrTripCarbonKg   = "trip.carbon_kg"
	AttrTripCountries  = "trip.countries"

	// Batch attributes
	AttrBatchSize   = "batch.size"
	AttrBatchFailed = "batch.failed"

	// Cache attributes
	AttrCacheType = "cache.type"
	AttrCacheHit  = "cache.hit"

	// Publisher attributes
	AttrPublishSubject = "messaging.destination.name"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// TripAttributes describes the trip being evaluated.
func TripAttributes(mode string, points int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTripMode, mode),
		attribute.Int(AttrTripPoints, points),
	}
}

// ResultAttributes describes a computed emission result.
func ResultAttributes(distanceKm, carbonKg float64, countries []string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrTripDistanceKm, distanceKm),
		attribute.Float64(AttrTripCarbonKg, carbonKg),
		attribute.StringSlice(AttrTripCountries, countries),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
