package datastructure

import "math"

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

// Valid reports whether c is a usable gps fix. (0,0) is treated as "no fix" because
// location sources report it when they have nothing.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	return !(c.Lat == 0 && c.Lon == 0)
}

type NavigationStatus string

const (
	StatusUninitialized    NavigationStatus = "UNINITIALIZED"
	StatusActive           NavigationStatus = "ACTIVE"
	StatusOffRoute         NavigationStatus = "OFF_ROUTE"
	StatusRerouteRequested NavigationStatus = "REROUTE_REQUESTED"
	StatusCompleted        NavigationStatus = "COMPLETED"
)

type NavigationState struct {
	Status                  NavigationStatus `json:"status"`
	CurrentInstructionIndex int              `json:"current_instruction_index"`
	RemainingDistanceKm     float64          `json:"remaining_distance_km"`
	RemainingDurationSec    float64          `json:"remaining_duration_sec"`
	Progress                float64          `json:"progress"`
	IsOffRoute              bool             `json:"is_off_route"`
	DeviationDistanceM      float64          `json:"deviation_distance_m"`
	NeedsRerouting          bool             `json:"needs_rerouting"`
	LastLocation            Coordinate       `json:"last_location"`
	Heading                 float64          `json:"heading"`
}
