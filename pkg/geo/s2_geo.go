package geo

import (
	"lintang/deliverynav/pkg/datastructure"

	"github.com/golang/geo/s2"
)

type PathProjection struct {
	Point datastructure.Coordinate
	// index of the path segment (path[Segment] -> path[Segment+1]) the point was projected onto
	Segment int
	// distance from p to Point
	DeviationM float64
	// distance along the path from path[0] to Point
	AlongKm float64
}

func toS2(c datastructure.Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

func fromS2(p s2.Point) datastructure.Coordinate {
	ll := s2.LatLngFromPoint(p)
	return datastructure.NewCoordinate(ll.Lat.Degrees(), ll.Lng.Degrees())
}

func angleToKm(p, q s2.Point) float64 {
	return p.Distance(q).Radians() * earthRadiusKm
}

// ProjectOnPath finds the point of path closest to p. On ties the earlier segment wins.
func ProjectOnPath(p datastructure.Coordinate, path []datastructure.Coordinate) (PathProjection, bool) {
	return ProjectOnPathFrom(p, path, 0)
}

// ProjectOnPathFrom is ProjectOnPath restricted to the part of path that lies at least
// fromKm along it, so road already driven on a route that doubles back is never matched.
func ProjectOnPathFrom(p datastructure.Coordinate, path []datastructure.Coordinate, fromKm float64) (PathProjection, bool) {
	if len(path) == 0 {
		return PathProjection{}, false
	}
	snap := toS2(p)
	if len(path) == 1 {
		return PathProjection{
			Point:      path[0],
			DeviationM: angleToKm(snap, toS2(path[0])) * 1000,
		}, true
	}

	best := PathProjection{DeviationM: -1}
	along := 0.0
	for i := 0; i < len(path)-1; i++ {
		a, b := toS2(path[i]), toS2(path[i+1])
		segKm := angleToKm(a, b)
		segStart := along
		along += segKm
		if along < fromKm && i < len(path)-2 {
			continue
		}

		start, startKm := a, segStart
		if segStart < fromKm && segKm > 0 {
			f := (fromKm - segStart) / segKm
			if f > 1 {
				f = 1
			}
			start, startKm = s2.Interpolate(f, a, b), segStart+segKm*f
		}

		proj := start
		if angleToKm(start, b) > 0 {
			proj = s2.Project(snap, start, b)
		}
		dev := angleToKm(snap, proj) * 1000
		if best.DeviationM < 0 || dev < best.DeviationM {
			best = PathProjection{
				Point:      fromS2(proj),
				Segment:    i,
				DeviationM: dev,
				AlongKm:    startKm + angleToKm(start, proj),
			}
		}
	}
	return best, true
}

// PathLength is the summed length of the path in km.
func PathLength(path []datastructure.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += angleToKm(toS2(path[i-1]), toS2(path[i]))
	}
	return total
}
