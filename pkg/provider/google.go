package provider

import (
	"context"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/guidance"
	"lintang/deliverynav/pkg/server"
	"net/url"
	"regexp"
	"strings"

	"github.com/gojek/heimdall/v7"
)

const googleBaseURL = "https://maps.googleapis.com/maps/api"

type gLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type gValue struct {
	Value float64 `json:"value"`
}

type gStep struct {
	Distance         gValue  `json:"distance"`
	Duration         gValue  `json:"duration"`
	StartLocation    gLatLng `json:"start_location"`
	EndLocation      gLatLng `json:"end_location"`
	Maneuver         string  `json:"maneuver"`
	HTMLInstructions string  `json:"html_instructions"`
}

type gLeg struct {
	Distance          gValue  `json:"distance"`
	Duration          gValue  `json:"duration"`
	DurationInTraffic *gValue `json:"duration_in_traffic"`
	StartLocation     gLatLng `json:"start_location"`
	EndLocation       gLatLng `json:"end_location"`
	Steps             []gStep `json:"steps"`
}

type gRoute struct {
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []gLeg `json:"legs"`
}

type gDirectionsResponse struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message"`
	Routes       []gRoute `json:"routes"`
}

type gMatrixElement struct {
	Status            string  `json:"status"`
	Distance          gValue  `json:"distance"`
	Duration          gValue  `json:"duration"`
	DurationInTraffic *gValue `json:"duration_in_traffic"`
}

type gMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []gMatrixElement `json:"elements"`
	} `json:"rows"`
}

// GoogleProvider talks to the Google Directions and Distance Matrix web services.
type GoogleProvider struct {
	baseURL string
	apiKey  string
	client  heimdall.Doer
}

func NewGoogleProvider(opts Options) *GoogleProvider {
	base := opts.BaseURL
	if base == "" {
		base = googleBaseURL
	}
	return &GoogleProvider{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  opts.APIKey,
		client:  newHTTPClient(opts),
	}
}

func (g *GoogleProvider) Name() string {
	return "google"
}

func (g *GoogleProvider) Route(ctx context.Context, req RouteRequest) ([]datastructure.RouteResult, error) {
	params := url.Values{}
	params.Set("origin", coordParam(req.Origin))
	params.Set("destination", coordParam(req.Destination))
	params.Set("mode", "driving")
	params.Set("key", g.apiKey)
	if req.IncludeTraffic {
		params.Set("departure_time", "now")
	}
	if req.Alternatives {
		params.Set("alternatives", "true")
	}

	var resp gDirectionsResponse
	if err := getJSON(ctx, g.client, g.baseURL+"/directions/json?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, server.WrapErrorf(nil, server.ErrNoRoute, "no route between %s and %s", coordParam(req.Origin), coordParam(req.Destination))
	default:
		return nil, server.WrapErrorf(nil, server.ErrProviderUnavailable, "directions status %s %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Routes) == 0 {
		return nil, server.WrapErrorf(nil, server.ErrNoRoute, "no route between %s and %s", coordParam(req.Origin), coordParam(req.Destination))
	}

	routes := make([]datastructure.RouteResult, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		routes = append(routes, g.toRouteResult(r))
	}
	return routes, nil
}

func (g *GoogleProvider) toRouteResult(r gRoute) datastructure.RouteResult {
	route := datastructure.RouteResult{
		Geometry:     decodeGeometry(r.OverviewPolyline.Points),
		Legs:         make([]datastructure.Leg, 0, len(r.Legs)),
		Instructions: make([]datastructure.Instruction, 0),
	}

	for _, l := range r.Legs {
		dit := l.Duration.Value
		if l.DurationInTraffic != nil {
			dit = l.DurationInTraffic.Value
		}
		leg := datastructure.Leg{
			DistanceKm:           l.Distance.Value / 1000,
			DurationSec:          l.Duration.Value,
			DurationInTrafficSec: dit,
			Start:                toCoord(l.StartLocation),
			End:                  toCoord(l.EndLocation),
		}
		route.Legs = append(route.Legs, leg)
		route.DistanceKm += leg.DistanceKm
		route.DurationSec += leg.DurationSec
		route.DurationInTrafficSec += leg.DurationInTrafficSec

		for _, s := range l.Steps {
			ins := datastructure.Instruction{
				Index:       len(route.Instructions),
				DistanceM:   s.Distance.Value,
				DurationSec: s.Duration.Value,
				Maneuver:    guidance.ParseManeuver(s.Maneuver),
				Street:      streetFromHTML(s.HTMLInstructions),
				Description: guidance.StripHTML(s.HTMLInstructions),
				Location:    toCoord(s.StartLocation),
			}
			if ins.Description == "" {
				ins.Description = guidance.Describe(ins)
			}
			route.Instructions = append(route.Instructions, ins)
		}
	}

	if n := len(route.Legs); n > 0 {
		arrive := datastructure.Instruction{
			Index:    len(route.Instructions),
			Maneuver: datastructure.ManeuverArrive,
			Location: route.Legs[n-1].End,
		}
		arrive.Description = guidance.Describe(arrive)
		route.Instructions = append(route.Instructions, arrive)
	}
	if len(route.Geometry) == 0 {
		route.Geometry = geometryFromInstructions(route.Instructions)
	}
	return route
}

func (g *GoogleProvider) Matrix(ctx context.Context, origins, destinations []datastructure.Coordinate) (datastructure.MatrixResult, error) {
	params := url.Values{}
	params.Set("origins", joinCoords(origins))
	params.Set("destinations", joinCoords(destinations))
	params.Set("mode", "driving")
	params.Set("departure_time", "now")
	params.Set("key", g.apiKey)

	var resp gMatrixResponse
	if err := getJSON(ctx, g.client, g.baseURL+"/distancematrix/json?"+params.Encode(), &resp); err != nil {
		return datastructure.MatrixResult{}, err
	}
	if resp.Status != "OK" {
		return datastructure.MatrixResult{}, server.WrapErrorf(nil, server.ErrProviderUnavailable, "distance matrix status %s %s", resp.Status, resp.ErrorMessage)
	}

	result := datastructure.MatrixResult{Rows: make([][]datastructure.MatrixElement, 0, len(resp.Rows))}
	for _, row := range resp.Rows {
		elements := make([]datastructure.MatrixElement, 0, len(row.Elements))
		for _, e := range row.Elements {
			if e.Status != "OK" {
				elements = append(elements, datastructure.MatrixElement{})
				continue
			}
			dit := e.Duration.Value
			if e.DurationInTraffic != nil {
				dit = e.DurationInTraffic.Value
			}
			elements = append(elements, datastructure.MatrixElement{
				DistanceKm:           e.Distance.Value / 1000,
				DurationSec:          e.Duration.Value,
				DurationInTrafficSec: dit,
				OK:                   true,
			})
		}
		result.Rows = append(result.Rows, elements)
	}
	return result, nil
}

func toCoord(l gLatLng) datastructure.Coordinate {
	return datastructure.NewCoordinate(l.Lat, l.Lng)
}

func joinCoords(cs []datastructure.Coordinate) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = coordParam(c)
	}
	return strings.Join(parts, "|")
}

var boldText = regexp.MustCompile(`<b>([^<]*)</b>`)

// streetFromHTML picks the last bold fragment, which is where the directions api puts the street name.
func streetFromHTML(html string) string {
	m := boldText.FindAllStringSubmatch(html, -1)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[len(m)-1][1])
}

func geometryFromInstructions(ins []datastructure.Instruction) []datastructure.Coordinate {
	path := make([]datastructure.Coordinate, 0, len(ins))
	for _, i := range ins {
		path = append(path, i.Location)
	}
	return path
}
