package provider

import (
	"context"
	"fmt"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/guidance"
	"lintang/deliverynav/pkg/server"
	"net/url"
	"strings"

	"github.com/gojek/heimdall/v7"
)

const osrmBaseURL = "https://router.project-osrm.org"

type osrmManeuver struct {
	Type     string     `json:"type"`
	Modifier string     `json:"modifier"`
	Location [2]float64 `json:"location"` // [lon, lat]
}

type osrmStep struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Name     string       `json:"name"`
	Maneuver osrmManeuver `json:"maneuver"`
}

type osrmLeg struct {
	Distance float64    `json:"distance"`
	Duration float64    `json:"duration"`
	Steps    []osrmStep `json:"steps"`
}

type osrmRoute struct {
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
	Geometry string    `json:"geometry"`
	Legs     []osrmLeg `json:"legs"`
}

type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

// OSRMProvider targets an OSRM server. OSRM has no live traffic so durationInTraffic
// always equals the free-flow duration.
type OSRMProvider struct {
	baseURL string
	client  heimdall.Doer
}

func NewOSRMProvider(opts Options) *OSRMProvider {
	base := opts.BaseURL
	if base == "" {
		base = osrmBaseURL
	}
	return &OSRMProvider{
		baseURL: strings.TrimRight(base, "/"),
		client:  newHTTPClient(opts),
	}
}

func (o *OSRMProvider) Name() string {
	return "osrm"
}

func (o *OSRMProvider) Route(ctx context.Context, req RouteRequest) ([]datastructure.RouteResult, error) {
	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "polyline")
	params.Set("steps", "true")
	params.Set("alternatives", fmt.Sprint(req.Alternatives))

	endpoint := fmt.Sprintf("%s/route/v1/driving/%s?%s", o.baseURL,
		osrmCoords([]datastructure.Coordinate{req.Origin, req.Destination}), params.Encode())

	var resp osrmRouteResponse
	if err := getJSON(ctx, o.client, endpoint, &resp); err != nil {
		return nil, err
	}
	switch resp.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, server.WrapErrorf(nil, server.ErrNoRoute, "osrm: %s", resp.Message)
	default:
		return nil, server.WrapErrorf(nil, server.ErrProviderUnavailable, "osrm code %s %s", resp.Code, resp.Message)
	}
	if len(resp.Routes) == 0 {
		return nil, server.WrapErrorf(nil, server.ErrNoRoute, "osrm returned zero routes")
	}

	routes := make([]datastructure.RouteResult, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		routes = append(routes, o.toRouteResult(r, req))
	}
	return routes, nil
}

func (o *OSRMProvider) toRouteResult(r osrmRoute, req RouteRequest) datastructure.RouteResult {
	route := datastructure.RouteResult{
		DistanceKm:           r.Distance / 1000,
		DurationSec:          r.Duration,
		DurationInTrafficSec: r.Duration,
		Geometry:             decodeGeometry(r.Geometry),
		Instructions:         make([]datastructure.Instruction, 0),
	}

	start := req.Origin
	for i, l := range r.Legs {
		end := req.Destination
		if i < len(r.Legs)-1 && len(l.Steps) > 0 {
			last := l.Steps[len(l.Steps)-1].Maneuver.Location
			end = datastructure.NewCoordinate(last[1], last[0])
		}
		route.Legs = append(route.Legs, datastructure.Leg{
			DistanceKm:           l.Distance / 1000,
			DurationSec:          l.Duration,
			DurationInTrafficSec: l.Duration,
			Start:                start,
			End:                  end,
		})
		start = end

		for _, s := range l.Steps {
			ins := datastructure.Instruction{
				Index:       len(route.Instructions),
				DistanceM:   s.Distance,
				DurationSec: s.Duration,
				Maneuver:    guidance.ParseManeuver(osrmManeuverName(s.Maneuver)),
				Street:      s.Name,
				Location:    datastructure.NewCoordinate(s.Maneuver.Location[1], s.Maneuver.Location[0]),
			}
			ins.Description = guidance.Describe(ins)
			route.Instructions = append(route.Instructions, ins)
		}
	}
	if len(route.Geometry) == 0 {
		route.Geometry = geometryFromInstructions(route.Instructions)
	}
	return route
}

// osrmManeuverName folds OSRM's type + modifier pair into the directions-style maneuver names.
func osrmManeuverName(m osrmManeuver) string {
	switch m.Type {
	case "arrive":
		return "arrive"
	case "roundabout", "rotary", "roundabout turn", "exit roundabout", "exit rotary":
		return "roundabout"
	case "turn", "end of road", "fork", "on ramp", "off ramp", "new name", "continue", "merge":
		if strings.Contains(m.Modifier, "left") || strings.Contains(m.Modifier, "right") {
			return "turn-" + strings.ReplaceAll(m.Modifier, " ", "-")
		}
	}
	return m.Type
}

func (o *OSRMProvider) Matrix(ctx context.Context, origins, destinations []datastructure.Coordinate) (datastructure.MatrixResult, error) {
	all := append(append([]datastructure.Coordinate{}, origins...), destinations...)
	src := make([]string, len(origins))
	for i := range origins {
		src[i] = fmt.Sprint(i)
	}
	dst := make([]string, len(destinations))
	for i := range destinations {
		dst[i] = fmt.Sprint(len(origins) + i)
	}

	params := url.Values{}
	params.Set("sources", strings.Join(src, ";"))
	params.Set("destinations", strings.Join(dst, ";"))
	params.Set("annotations", "duration,distance")
	endpoint := fmt.Sprintf("%s/table/v1/driving/%s?%s", o.baseURL, osrmCoords(all), params.Encode())

	var resp osrmTableResponse
	if err := getJSON(ctx, o.client, endpoint, &resp); err != nil {
		return datastructure.MatrixResult{}, err
	}
	if resp.Code != "Ok" {
		return datastructure.MatrixResult{}, server.WrapErrorf(nil, server.ErrProviderUnavailable, "osrm code %s %s", resp.Code, resp.Message)
	}

	result := datastructure.MatrixResult{Rows: make([][]datastructure.MatrixElement, len(origins))}
	for i := range origins {
		result.Rows[i] = make([]datastructure.MatrixElement, len(destinations))
		for j := range destinations {
			dur := cell(resp.Durations, i, j)
			dist := cell(resp.Distances, i, j)
			if dur == nil || dist == nil {
				continue
			}
			result.Rows[i][j] = datastructure.MatrixElement{
				DistanceKm:           *dist / 1000,
				DurationSec:          *dur,
				DurationInTrafficSec: *dur,
				OK:                   true,
			}
		}
	}
	return result, nil
}

func cell(m [][]*float64, i, j int) *float64 {
	if i >= len(m) || j >= len(m[i]) {
		return nil
	}
	return m[i][j]
}

func osrmCoords(cs []datastructure.Coordinate) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat)
	}
	return strings.Join(parts, ";")
}
