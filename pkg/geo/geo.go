package geo

import (
	"lintang/deliverynav/pkg/datastructure"
	"math"
)

const (
	earthRadiusKm = 6371.0
	kmPerMile     = 1.609344
)

type Unit string

const (
	Kilometers Unit = "km"
	Miles      Unit = "mi"
	Meters     Unit = "m"
)

func degToRad(d float64) float64 {
	return d * math.Pi / 180.0
}

func radToDeg(r float64) float64 {
	return 180.0 * r / math.Pi
}

// Distance is the great-circle (haversine) distance between a and b.
// https://www.movable-type.co.uk/scripts/latlong.html
func Distance(a, b datastructure.Coordinate, unit Unit) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lon - a.Lon)
	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	km := earthRadiusKm * c

	switch unit {
	case Miles:
		return km / kmPerMile
	case Meters:
		return km * 1000
	default:
		return km
	}
}

// DistanceKm is Distance in kilometers.
func DistanceKm(a, b datastructure.Coordinate) float64 {
	return Distance(a, b, Kilometers)
}

/*
Bearing. initial bearing from a to b, normalised to [0,360).
https://www.movable-type.co.uk/scripts/latlong.html
*/
func Bearing(a, b datastructure.Coordinate) float64 {
	dLon := degToRad(b.Lon - a.Lon)

	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	brng := radToDeg(math.Atan2(y, x))

	brng = math.Mod(brng+360.0, 360.0)
	if brng >= 360.0 {
		brng = 0
	}
	return brng
}

//	φ is latitude, λ is longitude
//
// https://www.movable-type.co.uk/scripts/latlong.html
func MidPoint(a, b datastructure.Coordinate) datastructure.Coordinate {
	p1LatRad := degToRad(a.Lat)
	p2LatRad := degToRad(b.Lat)

	diffLon := degToRad(b.Lon - a.Lon)

	bx := math.Cos(p2LatRad) * math.Cos(diffLon)
	by := math.Cos(p2LatRad) * math.Sin(diffLon)

	newLon := degToRad(a.Lon) + math.Atan2(by, math.Cos(p1LatRad)+bx)
	newLat := math.Atan2(math.Sin(p1LatRad)+math.Sin(p2LatRad), math.Sqrt((math.Cos(p1LatRad)+bx)*(math.Cos(p1LatRad)+bx)+by*by))

	return datastructure.NewCoordinate(radToDeg(newLat), radToDeg(newLon))
}
