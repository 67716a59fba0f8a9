package geo

import "math"

// maxCurvatureRadius is the largest radius of curvature of the WGS84
// ellipsoid (a²/b, reached at the poles). An arc of central angle θ between
// geodetic coordinates is never longer on the ellipsoid than θ times this
// radius.
const maxCurvatureRadius = wgs84A * wgs84A / wgs84B

// densifyTolerance absorbs rounding when re-measuring interpolated gaps.
const densifyTolerance = 1e-9

// ArcBound returns an upper bound in meters on the WGS84 distance between a
// and b, measured along the sphere the interpolator works on. It is the
// DistanceFunc Interpolate and Densify space points with.
func ArcBound(a, b Location) float64 {
	return CentralAngle(a, b) * maxCurvatureRadius
}

// Interpolate returns points along the minor great-circle arc from p1 to p2,
// spaced evenly so that no gap exceeds maxDistanceKm on the ellipsoid. The
// endpoints are not included. The number of points is
// floor(ArcBound(p1, p2) / 1000 / maxDistanceKm); an empty slice is returned
// when that is below one, when maxDistanceKm is not positive, or when the
// points coincide.
func Interpolate(p1, p2 Location, maxDistanceKm float64) []Location {
	if maxDistanceKm <= 0 {
		return nil
	}

	d := CentralAngle(p1, p2)
	if d == 0 {
		return nil
	}
	numSteps := int(math.Floor(ArcBound(p1, p2) / 1000 / maxDistanceKm))
	if numSteps < 1 {
		return nil
	}

	lat1 := p1.Latitude * degreesToRadians
	lon1 := p1.Longitude * degreesToRadians
	lat2 := p2.Latitude * degreesToRadians
	lon2 := p2.Longitude * degreesToRadians
	sinD := math.Sin(d)

	points := make([]Location, 0, numSteps)
	for i := 1; i <= numSteps; i++ {
		f := float64(i) / float64(numSteps+1)
		A := math.Sin((1-f)*d) / sinD
		B := math.Sin(f*d) / sinD

		x := A*math.Cos(lat1)*math.Cos(lon1) + B*math.Cos(lat2)*math.Cos(lon2)
		y := A*math.Cos(lat1)*math.Sin(lon1) + B*math.Cos(lat2)*math.Sin(lon2)
		z := A*math.Sin(lat1) + B*math.Sin(lat2)

		points = append(points, Location{
			Latitude:  math.Atan2(z, math.Sqrt(x*x+y*y)) * radiansToDegrees,
			Longitude: math.Atan2(y, x) * radiansToDegrees,
		})
	}
	return points
}

// Densify inserts great-circle points between every consecutive pair of
// points further apart than maxDistanceKm, measured with ArcBound. Pairs
// already within the threshold are left untouched, and interpolated gaps
// always are, so densifying twice is the same as once.
func Densify(points []Location, maxDistanceKm float64) []Location {
	if len(points) < 2 {
		return points
	}

	out := make([]Location, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		if ArcBound(prev, curr)/1000 > maxDistanceKm*(1+densifyTolerance) {
			out = append(out, Interpolate(prev, curr, maxDistanceKm)...)
		}
		out = append(out, curr)
	}
	return out
}

// Lerp returns n points evenly spaced in plain latitude/longitude between p1
// and p2, endpoints excluded.
func Lerp(p1, p2 Location, n int) []Location {
	if n <= 0 {
		return nil
	}
	dLat := p2.Latitude - p1.Latitude
	dLng := p2.Longitude - p1.Longitude

	points := make([]Location, n)
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n+1)
		points[i-1] = Location{
			Latitude:  p1.Latitude + f*dLat,
			Longitude: p1.Longitude + f*dLng,
		}
	}
	return points
}
