package domain

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
// The spherical model is accurate to roughly 0.5%, which is well below the
// precision of a phone's reported location.
const EarthRadiusKm = 6371.0

// KmPerMile converts statute miles to kilometers.
const KmPerMile = 1.60934

// Point is a WGS-84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineKm returns the great-circle distance between a and b in kilometers.
func HaversineKm(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon) - toRadians(a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Rounding can push h a hair above 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// MilesToKm converts a radius in miles to kilometers.
func MilesToKm(miles float64) float64 {
	return miles * KmPerMile
}

// Centroid returns the arithmetic mean of the table's coordinates, or the
// origin for an empty table. It is a display default, not a geodesic centre.
func Centroid(table []Submission) Point {
	if len(table) == 0 {
		return Point{}
	}
	var lat, lon float64
	for i := range table {
		lat += table[i].Latitude
		lon += table[i].Longitude
	}
	n := float64(len(table))
	return Point{Lat: lat / n, Lon: lon / n}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
