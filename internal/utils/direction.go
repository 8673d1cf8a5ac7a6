package utils

import (
	"math"
)

// BearingBetweenPoints calculates the great-circle bearing in degrees from point1 to point2
func BearingBetweenPoints(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	return NormalizeBearing(math.Atan2(y, x) * 180 / math.Pi)
}

// PlanarHeading is the map heading from one position to the next, atan2(Δlon, Δlat) in
// degrees. ok is false when the two positions are identical.
func PlanarHeading(lat1, lon1, lat2, lon2 float64) (heading float64, ok bool) {
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	if dLat == 0 && dLon == 0 {
		return 0, false
	}
	return NormalizeBearing(math.Atan2(dLon, dLat) * 180 / math.Pi), true
}

// NormalizeBearing maps any angle in degrees onto [0,360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// BearingToCompass converts a bearing (0-360°) to 8-point compass direction
func BearingToCompass(bearing float64) string {
	directions := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	index := int((NormalizeBearing(bearing)+22.5)/45.0) % 8
	return directions[index]
}
