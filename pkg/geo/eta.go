package geo

import (
	"lintang/deliverynav/pkg/datastructure"
	"time"
)

const (
	// city speed assumed when no provider data is available
	AssumedSpeedKmh     = 40.0
	DefaultStopDuration = 10 * time.Minute
)

func RouteDistance(stops []datastructure.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(stops); i++ {
		total += DistanceKm(stops[i-1], stops[i])
	}
	return total
}

// EstimateTravelTime returns minutes needed to drive distanceKm at AssumedSpeedKmh.
func EstimateTravelTime(distanceKm float64) float64 {
	return distanceKm / AssumedSpeedKmh * 60
}

// CalculateETAs returns one arrival time per stop. The first stop is reached at start and
// every following stop adds the offline travel estimate plus the dwell time at the previous stop.
func CalculateETAs(stops []datastructure.Coordinate, start time.Time, stopDuration time.Duration) []time.Time {
	etas := make([]time.Time, 0, len(stops))
	if len(stops) == 0 {
		return etas
	}
	etas = append(etas, start)
	for i := 0; i < len(stops)-1; i++ {
		travel := EstimateTravelTime(DistanceKm(stops[i], stops[i+1]))
		next := etas[i].Add(time.Duration(travel*float64(time.Minute)) + stopDuration)
		etas = append(etas, next)
	}
	return etas
}

type Nearest struct {
	Index      int
	DistanceKm float64
}

// FindNearest scans locations for the closest one to from. Ties keep the earlier index.
func FindNearest(from datastructure.Coordinate, locations []datastructure.Coordinate) (Nearest, bool) {
	if len(locations) == 0 {
		return Nearest{}, false
	}
	best := Nearest{Index: 0, DistanceKm: DistanceKm(from, locations[0])}
	for i := 1; i < len(locations); i++ {
		d := DistanceKm(from, locations[i])
		if d < best.DistanceKm {
			best = Nearest{Index: i, DistanceKm: d}
		}
	}
	return best, true
}
