// Package navigation follows one driver along a route. Location fixes move a small state
// machine (ACTIVE, OFF_ROUTE, REROUTE_REQUESTED, COMPLETED) and keep the remaining
// distance, duration and progress of the trip up to date.
package navigation

import (
	"context"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/geo"
	"lintang/deliverynav/pkg/guidance"
	"lintang/deliverynav/pkg/server"
	"lintang/deliverynav/pkg/util"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fixes are matched against the path ahead of the driver, with this much slack behind
const projectionLookbackKm = 0.05

// Router is the part of routing.Client the tracker needs.
type Router interface {
	GetRoute(ctx context.Context, origin, destination datastructure.Coordinate, includeTraffic bool) (*datastructure.RouteResult, bool)
}

type Config struct {
	CompletionRadiusM  float64
	OffRouteThresholdM float64
	// fixes in a row that must be off route before a reroute is asked for
	RerouteAfterFixes int
	// and the minimum time they must span
	RerouteWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		CompletionRadiusM:  30,
		OffRouteThresholdM: 75,
		RerouteAfterFixes:  3,
		RerouteWindow:      10 * time.Second,
	}
}

type Tracker struct {
	mu     sync.Mutex
	router Router
	cfg    Config
	log    *zap.Logger
	now    func() time.Time

	route       *datastructure.RouteResult
	destination datastructure.Coordinate
	path        []datastructure.Coordinate
	pathKm      float64
	// along-path position (km) of every instruction's maneuver point
	instructionAlong []float64
	alongKm          float64
	state            datastructure.NavigationState

	offRouteFixes int
	offRouteSince time.Time
	// bumped whenever a new route replaces the old one
	generation int
}

type Option func(*Tracker)

func WithLogger(log *zap.Logger) Option {
	return func(t *Tracker) {
		t.log = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(router Router, cfg Config, opts ...Option) *Tracker {
	def := DefaultConfig()
	if cfg.CompletionRadiusM <= 0 {
		cfg.CompletionRadiusM = def.CompletionRadiusM
	}
	if cfg.OffRouteThresholdM <= 0 {
		cfg.OffRouteThresholdM = def.OffRouteThresholdM
	}
	if cfg.RerouteAfterFixes <= 0 {
		cfg.RerouteAfterFixes = def.RerouteAfterFixes
	}
	if cfg.RerouteWindow <= 0 {
		cfg.RerouteWindow = def.RerouteWindow
	}
	t := &Tracker{
		router: router,
		cfg:    cfg,
		log:    zap.NewNop(),
		now:    time.Now,
		state:  datastructure.NavigationState{Status: datastructure.StatusUninitialized},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InitializeNavigation fetches a traffic aware route from location to destination and starts
// following it. Any previous navigation is discarded. Without a route navigation cannot
// start, so that case is returned as ErrNoRoute.
func (t *Tracker) InitializeNavigation(ctx context.Context, location, destination datastructure.Coordinate) (datastructure.NavigationState, error) {
	if !location.Valid() || !destination.Valid() {
		return t.State(), server.WrapErrorf(nil, server.ErrBadParamInput, "invalid origin or destination")
	}
	route, ok := t.router.GetRoute(ctx, location, destination, true)
	if !ok {
		return t.State(), server.WrapErrorf(nil, server.ErrNoRoute, "no route from %.5f,%.5f to %.5f,%.5f",
			location.Lat, location.Lon, destination.Lat, destination.Lon)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.start(route, location, destination)
	t.log.Info("navigation started",
		zap.Float64("distance_km", route.DistanceKm),
		zap.Float64("duration_in_traffic_sec", route.DurationInTrafficSec),
		zap.Int("instructions", len(route.Instructions)))
	return t.state, nil
}

func (t *Tracker) start(route *datastructure.RouteResult, origin, destination datastructure.Coordinate) {
	t.route = route
	t.destination = destination
	t.path = routePath(route, origin, destination)
	t.pathKm = geo.PathLength(t.path)

	t.instructionAlong = make([]float64, len(route.Instructions))
	prev := 0.0
	for i, ins := range route.Instructions {
		along := prev
		if proj, ok := geo.ProjectOnPathFrom(ins.Location, t.path, prev); ok && proj.AlongKm > prev {
			along = proj.AlongKm
		}
		t.instructionAlong[i] = along
		prev = along
	}

	t.alongKm = 0
	t.offRouteFixes = 0
	t.offRouteSince = time.Time{}
	t.generation++
	t.state = datastructure.NavigationState{
		Status:       datastructure.StatusActive,
		LastLocation: origin,
	}
	t.updateRemaining()
}

// routePath is the polyline the driver is expected to follow. Routes without geometry fall
// back to the maneuver points.
func routePath(route *datastructure.RouteResult, origin, destination datastructure.Coordinate) []datastructure.Coordinate {
	if len(route.Geometry) >= 2 {
		return route.Geometry
	}
	path := []datastructure.Coordinate{origin}
	for _, ins := range route.Instructions {
		if ins.Location.Valid() && ins.Location != path[len(path)-1] {
			path = append(path, ins.Location)
		}
	}
	if path[len(path)-1] != destination {
		path = append(path, destination)
	}
	return path
}

// UpdateNavigationState feeds one gps fix into the tracker. Invalid fixes are ignored and
// the last known state is returned unchanged.
func (t *Tracker) UpdateNavigationState(location datastructure.Coordinate, heading float64) datastructure.NavigationState {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state.Status {
	case datastructure.StatusUninitialized, datastructure.StatusCompleted:
		return t.state
	}
	if !location.Valid() {
		t.log.Debug("skipping invalid location fix", zap.Float64("lat", location.Lat), zap.Float64("lon", location.Lon))
		return t.state
	}

	t.state.LastLocation = location
	t.state.Heading = heading

	if geo.Distance(location, t.destination, geo.Meters) <= t.cfg.CompletionRadiusM {
		t.complete()
		return t.state
	}

	proj, _ := geo.ProjectOnPathFrom(location, t.path, t.alongKm-projectionLookbackKm)
	t.state.DeviationDistanceM = proj.DeviationM
	t.state.IsOffRoute = proj.DeviationM > t.cfg.OffRouteThresholdM

	if t.state.IsOffRoute {
		t.markOffRoute()
		return t.state
	}

	t.offRouteFixes = 0
	t.offRouteSince = time.Time{}
	t.state.NeedsRerouting = false
	if t.state.Status == datastructure.StatusOffRoute {
		t.state.Status = datastructure.StatusActive
	}

	t.alongKm = proj.AlongKm
	t.advance(location)
	t.updateRemaining()
	return t.state
}

func (t *Tracker) markOffRoute() {
	now := t.now()
	if t.offRouteFixes == 0 {
		t.offRouteSince = now
	}
	t.offRouteFixes++
	t.state.NeedsRerouting = t.offRouteFixes >= t.cfg.RerouteAfterFixes &&
		now.Sub(t.offRouteSince) >= t.cfg.RerouteWindow

	if t.state.Status == datastructure.StatusActive {
		t.state.Status = datastructure.StatusOffRoute
		t.log.Info("driver left the route", zap.Float64("deviation_m", t.state.DeviationDistanceM))
	}
}

// advance moves past every maneuver point the driver has reached or already driven by.
func (t *Tracker) advance(location datastructure.Coordinate) {
	ins := t.route.Instructions
	radiusKm := t.cfg.CompletionRadiusM / 1000
	for t.state.CurrentInstructionIndex < len(ins)-1 {
		next := t.state.CurrentInstructionIndex + 1
		reached := geo.Distance(location, ins[next].Location, geo.Meters) <= t.cfg.CompletionRadiusM
		passed := t.alongKm >= t.instructionAlong[next]-radiusKm
		if !reached && !passed {
			return
		}
		t.state.CurrentInstructionIndex = next
	}
}

func (t *Tracker) complete() {
	t.state.Status = datastructure.StatusCompleted
	if n := len(t.route.Instructions); n > 0 {
		t.state.CurrentInstructionIndex = n - 1
	}
	t.state.IsOffRoute = false
	t.state.NeedsRerouting = false
	t.state.DeviationDistanceM = 0
	t.state.RemainingDistanceKm = 0
	t.state.RemainingDurationSec = 0
	t.state.Progress = 100
	t.alongKm = t.pathKm
	t.log.Info("navigation completed")
}

// updateRemaining counts what is left of the current instruction plus every later one.
func (t *Tracker) updateRemaining() {
	r := t.route
	ins := r.Instructions

	var remainingKm, remainingSec, totalKm float64
	if len(ins) == 0 || t.pathKm <= 0 {
		left := 1.0
		if t.pathKm > 0 {
			left = util.Clamp(1-t.alongKm/t.pathKm, 0, 1)
		}
		totalKm = r.DistanceKm
		remainingKm = r.DistanceKm * left
		remainingSec = r.DurationSec * left
	} else {
		idx := t.state.CurrentInstructionIndex
		stepStart := t.instructionAlong[idx]
		stepEnd := t.pathKm
		if idx+1 < len(ins) {
			stepEnd = t.instructionAlong[idx+1]
		}
		left := 0.0
		if span := stepEnd - stepStart; span > 0 {
			left = util.Clamp((stepEnd-t.alongKm)/span, 0, 1)
		}

		remainingKm = left * ins[idx].DistanceM / 1000
		remainingSec = left * ins[idx].DurationSec
		for j, in := range ins {
			totalKm += in.DistanceM / 1000
			if j > idx {
				remainingKm += in.DistanceM / 1000
				remainingSec += in.DurationSec
			}
		}
		if totalKm <= 0 {
			totalKm = r.DistanceKm
		}
	}

	if r.DurationSec > 0 && r.DurationInTrafficSec > 0 {
		remainingSec *= r.DurationInTrafficSec / r.DurationSec
	}

	t.state.RemainingDistanceKm = remainingKm
	t.state.RemainingDurationSec = remainingSec
	if totalKm > 0 {
		t.state.Progress = util.Clamp((1-remainingKm/totalKm)*100, 0, 100)
	} else {
		t.state.Progress = 0
	}
}

// RequestReroute asks for a new route from location to the current destination. Only an
// off route driver can be rerouted. An invalid location falls back to the last good fix.
func (t *Tracker) RequestReroute(ctx context.Context, location datastructure.Coordinate) (datastructure.NavigationState, error) {
	t.mu.Lock()
	switch t.state.Status {
	case datastructure.StatusOffRoute, datastructure.StatusRerouteRequested:
	default:
		state := t.state
		t.mu.Unlock()
		return state, server.WrapErrorf(nil, server.ErrBadParamInput, "cannot reroute while navigation is %s", state.Status)
	}
	if !location.Valid() {
		location = t.state.LastLocation
	}
	t.state.Status = datastructure.StatusRerouteRequested
	destination := t.destination
	gen := t.generation
	t.mu.Unlock()

	route, ok := t.router.GetRoute(ctx, location, destination, true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation {
		return t.state, server.WrapErrorf(nil, server.ErrConflict, "navigation was replaced during reroute")
	}
	if !ok {
		t.state.Status = datastructure.StatusOffRoute
		return t.state, server.WrapErrorf(nil, server.ErrNoRoute, "no route from current location to destination")
	}
	t.start(route, location, destination)
	t.log.Info("rerouted", zap.Float64("distance_km", route.DistanceKm))
	return t.state, nil
}

// AcceptAlternative switches navigation to an alternative the driver picked. Alternatives
// without geometry or instructions are fetched again from location.
func (t *Tracker) AcceptAlternative(ctx context.Context, location datastructure.Coordinate, alt datastructure.AlternativeRoute) (datastructure.NavigationState, error) {
	t.mu.Lock()
	if t.state.Status == datastructure.StatusUninitialized {
		t.mu.Unlock()
		return t.State(), server.WrapErrorf(nil, server.ErrBadParamInput, "navigation has not started")
	}
	if !location.Valid() {
		location = t.state.LastLocation
	}
	destination := t.destination
	t.mu.Unlock()

	route := &datastructure.RouteResult{
		DistanceKm:           alt.DistanceKm,
		DurationSec:          alt.DurationSec,
		DurationInTrafficSec: alt.DurationInTrafficSec,
		Geometry:             alt.Geometry,
		Instructions:         alt.Instructions,
		TrafficLevel:         alt.TrafficLevel,
	}
	if len(alt.Geometry) < 2 && len(alt.Instructions) == 0 {
		fetched, ok := t.router.GetRoute(ctx, location, destination, true)
		if !ok {
			return t.State(), server.WrapErrorf(nil, server.ErrNoRoute, "no route for alternative %s", alt.ID)
		}
		route = fetched
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.start(route, location, destination)
	t.log.Info("alternative route accepted", zap.String("alternative_id", alt.ID),
		zap.Float64("time_savings_sec", alt.TimeSavingsSec))
	return t.state, nil
}

func (t *Tracker) State() datastructure.NavigationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Route returns the route being followed, nil before navigation starts.
func (t *Tracker) Route() *datastructure.RouteResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.route == nil {
		return nil
	}
	r := *t.route
	return &r
}

func (t *Tracker) Destination() datastructure.Coordinate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destination
}

// NextInstructionText is the banner for the coming maneuver, e.g. "In 300 m, turn left onto Jalan Veteran".
func (t *Tracker) NextInstructionText() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state.Status {
	case datastructure.StatusUninitialized:
		return ""
	case datastructure.StatusCompleted:
		return guidance.Describe(datastructure.Instruction{Maneuver: datastructure.ManeuverArrive})
	}
	ins := t.route.Instructions
	if len(ins) == 0 {
		return "Your destination is in " + geo.FormatDistance(t.state.RemainingDistanceKm)
	}
	next := t.state.CurrentInstructionIndex + 1
	if next >= len(ins) {
		return guidance.Announce(ins[len(ins)-1], t.pathKm-t.alongKm)
	}
	return guidance.Announce(ins[next], t.instructionAlong[next]-t.alongKm)
}

func (t *Tracker) FormatRemainingTime() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return geo.FormatDuration(t.state.RemainingDurationSec / 60)
}

func (t *Tracker) FormatRemainingDistance() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return geo.FormatDistance(t.state.RemainingDistanceKm)
}

// UpcomingInstructions returns up to count instructions starting at from. Out of range
// arguments give a shorter or empty slice.
func (t *Tracker) UpcomingInstructions(from, count int) []datastructure.Instruction {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.route == nil || count <= 0 {
		return []datastructure.Instruction{}
	}
	ins := t.route.Instructions
	if from < 0 {
		from = 0
	}
	if from >= len(ins) {
		return []datastructure.Instruction{}
	}
	end := from + count
	if end > len(ins) || end < from {
		end = len(ins)
	}
	out := make([]datastructure.Instruction, end-from)
	copy(out, ins[from:end])
	return out
}
