package datastructure

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Incident struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Type               string    `json:"type"`
	Severity           Severity  `json:"severity"`
	Description        string    `json:"description"`
	AffectedDistanceKm float64   `json:"affected_distance_km"`
}

type SegmentTraffic struct {
	Index        int          `json:"index"`
	From         Coordinate   `json:"from"`
	To           Coordinate   `json:"to"`
	DistanceKm   float64      `json:"distance_km"`
	DelayMinutes float64      `json:"delay_minutes"`
	TrafficLevel TrafficLevel `json:"traffic_level"`
}

// TrafficSnapshot is never modified after the monitor hands it out.
type TrafficSnapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	RouteID             string           `json:"route_id"`
	OverallTrafficLevel TrafficLevel     `json:"overall_traffic_level"`
	AverageDelayMinutes float64          `json:"average_delay_minutes"`
	Incidents           []Incident       `json:"incidents"`
	AffectedSegments    []SegmentTraffic `json:"affected_segments"`
}

type TrafficChange string

const (
	TrafficImproved TrafficChange = "improved"
	TrafficWorsened TrafficChange = "worsened"
	TrafficStable   TrafficChange = "stable"
)
