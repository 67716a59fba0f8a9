package geo

import "math"

const (
	// EarthRadius is the sphere radius in meters used for path lengths and
	// country attribution. Kept at 6373 km so stored trip lengths stay
	// comparable with historical data.
	EarthRadius = 6373000.0

	// MeanEarthRadius is the IUGG mean radius, used when the ellipsoidal
	// solution does not converge.
	MeanEarthRadius = 6371008.8

	// WGS84 ellipsoid
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = (1 - wgs84F) * wgs84A

	vincentyMaxIter  = 200
	vincentyEpsilon  = 1e-12
	degreesToRadians = math.Pi / 180
	radiansToDegrees = 180 / math.Pi
)

// HaversineDistance returns the great-circle distance in meters between two
// coordinates on a sphere of radius EarthRadius.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * degreesToRadians
	φ2 := lat2 * degreesToRadians
	dφ := (lat2 - lat1) * degreesToRadians
	dλ := (lon2 - lon1) * degreesToRadians

	a := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// Haversine is HaversineDistance for two Locations.
func Haversine(a, b Location) float64 {
	return HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// CentralAngle returns the angular distance in radians between a and b.
func CentralAngle(a, b Location) float64 {
	φ1 := a.Latitude * degreesToRadians
	φ2 := b.Latitude * degreesToRadians
	dφ := φ2 - φ1
	dλ := (b.Longitude - a.Longitude) * degreesToRadians

	h := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Geodesic returns the distance in meters between a and b on the WGS84
// ellipsoid (Vincenty inverse formula). Nearly antipodal points where the
// iteration fails to converge fall back to a spherical estimate.
func Geodesic(a, b Location) float64 {
	if a == b {
		return 0
	}

	L := (b.Longitude - a.Longitude) * degreesToRadians
	U1 := math.Atan((1 - wgs84F) * math.Tan(a.Latitude*degreesToRadians))
	U2 := math.Atan((1 - wgs84F) * math.Tan(b.Latitude*degreesToRadians))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	λ := L
	var sinσ, cosσ, σ, cos2α, cos2σm float64
	converged := false
	for i := 0; i < vincentyMaxIter; i++ {
		sinλ, cosλ := math.Sincos(λ)
		t1 := cosU2 * sinλ
		t2 := cosU1*sinU2 - sinU1*cosU2*cosλ
		sinσ = math.Sqrt(t1*t1 + t2*t2)
		if sinσ == 0 {
			return 0
		}
		cosσ = sinU1*sinU2 + cosU1*cosU2*cosλ
		σ = math.Atan2(sinσ, cosσ)
		sinα := cosU1 * cosU2 * sinλ / sinσ
		cos2α = 1 - sinα*sinα
		if cos2α != 0 {
			cos2σm = cosσ - 2*sinU1*sinU2/cos2α
		} else {
			// equatorial line
			cos2σm = 0
		}
		C := wgs84F / 16 * cos2α * (4 + wgs84F*(4-3*cos2α))
		prev := λ
		λ = L + (1-C)*wgs84F*sinα*(σ+C*sinσ*(cos2σm+C*cosσ*(-1+2*cos2σm*cos2σm)))
		if math.Abs(λ-prev) < vincentyEpsilon {
			converged = true
			break
		}
	}
	if !converged {
		return MeanEarthRadius * CentralAngle(a, b)
	}

	u2 := cos2α * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + u2/16384*(4096+u2*(-768+u2*(320-175*u2)))
	B := u2 / 1024 * (256 + u2*(-128+u2*(74-47*u2)))
	Δσ := B * sinσ * (cos2σm + B/4*(cosσ*(-1+2*cos2σm*cos2σm)-
		B/6*cos2σm*(-3+4*sinσ*sinσ)*(-3+4*cos2σm*cos2σm)))

	return wgs84B * A * (σ - Δσ)
}

// DistanceFunc measures the distance in meters between two points.
type DistanceFunc func(a, b Location) float64

// PathLength sums dist over consecutive pairs of points. Paths with fewer
// than two points have zero length.
func PathLength(points []Location, dist DistanceFunc) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += dist(points[i-1], points[i])
	}
	return total
}
