package datastructure

type TrafficLevel string

const (
	TrafficLow     TrafficLevel = "low"
	TrafficMedium  TrafficLevel = "medium"
	TrafficHigh    TrafficLevel = "high"
	TrafficBlocked TrafficLevel = "blocked"
)

// Rank orders traffic levels from best (0) to worst (3).
func (l TrafficLevel) Rank() int {
	switch l {
	case TrafficMedium:
		return 1
	case TrafficHigh:
		return 2
	case TrafficBlocked:
		return 3
	default:
		return 0
	}
}

// WorseOf returns whichever of a and b is the heavier traffic level.
func WorseOf(a, b TrafficLevel) TrafficLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	if a == "" {
		return TrafficLow
	}
	return a
}

type Maneuver string

const (
	ManeuverTurnLeft   Maneuver = "turn-left"
	ManeuverTurnRight  Maneuver = "turn-right"
	ManeuverRoundabout Maneuver = "roundabout"
	ManeuverArrive     Maneuver = "arrive"
	ManeuverContinue   Maneuver = "continue"
)

type Instruction struct {
	Index       int        `json:"index"`
	DistanceM   float64    `json:"distance_m"`
	DurationSec float64    `json:"duration_sec"`
	Maneuver    Maneuver   `json:"maneuver"`
	Street      string     `json:"street"`
	Description string     `json:"description"`
	Location    Coordinate `json:"location"`
}

type Leg struct {
	DistanceKm           float64    `json:"distance_km"`
	DurationSec          float64    `json:"duration_sec"`
	DurationInTrafficSec float64    `json:"duration_in_traffic_sec"`
	Start                Coordinate `json:"start"`
	End                  Coordinate `json:"end"`
}

type RouteResult struct {
	DistanceKm           float64       `json:"distance_km"`
	DurationSec          float64       `json:"duration_sec"`
	DurationInTrafficSec float64       `json:"duration_in_traffic_sec"`
	Geometry             []Coordinate  `json:"geometry"`
	Legs                 []Leg         `json:"legs"`
	Instructions         []Instruction `json:"instructions"`
	TrafficLevel         TrafficLevel  `json:"traffic_level"`
}

// TrafficDelaySec is the extra time spent in traffic compared to free flow, never negative.
func (r *RouteResult) TrafficDelaySec() float64 {
	d := r.DurationInTrafficSec - r.DurationSec
	if d < 0 {
		return 0
	}
	return d
}

type MatrixElement struct {
	DistanceKm           float64 `json:"distance_km"`
	DurationSec          float64 `json:"duration_sec"`
	DurationInTrafficSec float64 `json:"duration_in_traffic_sec"`
	OK                   bool    `json:"ok"`
}

type MatrixResult struct {
	Rows [][]MatrixElement `json:"rows"`
}

type AlternativeRoute struct {
	ID                   string        `json:"id"`
	DurationSec          float64       `json:"duration_sec"`
	DurationInTrafficSec float64       `json:"duration_in_traffic_sec"`
	DistanceKm           float64       `json:"distance_km"`
	TimeSavingsSec       float64       `json:"time_savings_sec"`
	TrafficLevel         TrafficLevel  `json:"traffic_level"`
	Instructions         []Instruction `json:"instructions"`
	Geometry             []Coordinate  `json:"geometry"`
	Simulated            bool          `json:"simulated,omitempty"`
}

type RouteMetrics struct {
	DurationSec          float64      `json:"duration_sec"`
	DurationInTrafficSec float64      `json:"duration_in_traffic_sec"`
	DistanceKm           float64      `json:"distance_km"`
	TrafficLevel         TrafficLevel `json:"traffic_level"`
}

type RouteComparison struct {
	CurrentRoute          RouteMetrics       `json:"current_route"`
	Alternatives          []AlternativeRoute `json:"alternatives"`
	RecommendedRoute      *AlternativeRoute  `json:"recommended_route,omitempty"`
	TimeSavingsPercentage int                `json:"time_savings_percentage"`
}
