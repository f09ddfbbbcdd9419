package rest

import (
	"lintang/deliverynav/pkg/datastructure"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func lineString(path []datastructure.Coordinate) orb.LineString {
	ls := make(orb.LineString, 0, len(path))
	for _, c := range path {
		ls = append(ls, orb.Point{c.Lon, c.Lat})
	}
	return ls
}

// routeFeatures renders a route line plus one point feature per maneuver.
func routeFeatures(route *datastructure.RouteResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if route == nil {
		return fc
	}

	line := geojson.NewFeature(lineString(route.Geometry))
	line.Properties["distance_km"] = route.DistanceKm
	line.Properties["duration_sec"] = route.DurationSec
	line.Properties["duration_in_traffic_sec"] = route.DurationInTrafficSec
	line.Properties["traffic_level"] = route.TrafficLevel
	fc.Append(line)

	for _, ins := range route.Instructions {
		f := geojson.NewFeature(orb.Point{ins.Location.Lon, ins.Location.Lat})
		f.Properties["index"] = ins.Index
		f.Properties["maneuver"] = ins.Maneuver
		f.Properties["street"] = ins.Street
		f.Properties["description"] = ins.Description
		fc.Append(f)
	}
	return fc
}

func alternativeFeatures(alts []datastructure.AlternativeRoute) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, alt := range alts {
		f := geojson.NewFeature(lineString(alt.Geometry))
		f.ID = alt.ID
		f.Properties["duration_in_traffic_sec"] = alt.DurationInTrafficSec
		f.Properties["time_savings_sec"] = alt.TimeSavingsSec
		f.Properties["traffic_level"] = alt.TrafficLevel
		f.Properties["simulated"] = alt.Simulated
		fc.Append(f)
	}
	return fc
}
