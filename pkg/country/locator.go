// Package country resolves coordinates to ISO 3166-1 alpha-2 country codes.
package country

import "context"

// Unknown is recorded for points no country polygon covers, such as open
// ocean.
const Unknown = "UN"

// Locator resolves a coordinate to a country code. The boolean is false
// when no country contains the point; implementations never fail a lookup.
type Locator interface {
	Lookup(ctx context.Context, lat, lng float64) (string, bool)
}

// LocatorFunc adapts a plain function to the Locator interface.
type LocatorFunc func(ctx context.Context, lat, lng float64) (string, bool)

// Lookup calls f.
func (f LocatorFunc) Lookup(ctx context.Context, lat, lng float64) (string, bool) {
	return f(ctx, lat, lng)
}

// CodeOrUnknown resolves a point and substitutes Unknown on a miss.
func CodeOrUnknown(ctx context.Context, l Locator, lat, lng float64) string {
	if code, ok := l.Lookup(ctx, lat, lng); ok {
		return code
	}
	return Unknown
}
