package navigation_test

import (
	"context"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/navigation"
	"lintang/deliverynav/pkg/server"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeCall struct {
	origin, destination datastructure.Coordinate
}

type fakeRouter struct {
	mu     sync.Mutex
	routes []*datastructure.RouteResult
	fail   bool
	calls  []routeCall
}

func (f *fakeRouter) GetRoute(ctx context.Context, origin, destination datastructure.Coordinate, includeTraffic bool) (*datastructure.RouteResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, routeCall{origin, destination})
	if f.fail || len(f.routes) == 0 {
		return nil, false
	}
	r := f.routes[0]
	if len(f.routes) > 1 {
		f.routes = f.routes[1:]
	}
	return r, true
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// an L shaped trip: ~556 m north, then ~551 m east.
var (
	start  = datastructure.NewCoordinate(-7.5700, 110.8200)
	corner = datastructure.NewCoordinate(-7.5650, 110.8200)
	end    = datastructure.NewCoordinate(-7.5650, 110.8250)
)

func lShapedRoute() *datastructure.RouteResult {
	return &datastructure.RouteResult{
		DistanceKm:           1.107,
		DurationSec:          120,
		DurationInTrafficSec: 150,
		Geometry:             []datastructure.Coordinate{start, corner, end},
		Instructions: []datastructure.Instruction{
			{Index: 0, DistanceM: 556, DurationSec: 60, Maneuver: datastructure.ManeuverContinue, Street: "Jalan Veteran", Location: start},
			{Index: 1, DistanceM: 551, DurationSec: 60, Maneuver: datastructure.ManeuverTurnRight, Street: "Jalan Slamet Riyadi", Location: corner},
			{Index: 2, Maneuver: datastructure.ManeuverArrive, Location: end},
		},
		TrafficLevel: datastructure.TrafficMedium,
	}
}

// eastOf returns a point meters east of c.
func eastOf(c datastructure.Coordinate, meters float64) datastructure.Coordinate {
	kmPerDeg := 2 * math.Pi * 6371 / 360
	return datastructure.NewCoordinate(c.Lat, c.Lon+meters/1000/(kmPerDeg*math.Cos(c.Lat*math.Pi/180)))
}

func newTracker(t *testing.T, cfg navigation.Config, opts ...navigation.Option) (*navigation.Tracker, *fakeRouter) {
	router := &fakeRouter{routes: []*datastructure.RouteResult{lShapedRoute()}}
	tr := navigation.NewTracker(router, cfg, opts...)
	_, err := tr.InitializeNavigation(context.Background(), start, end)
	require.NoError(t, err)
	return tr, router
}

func TestInitializeNavigation(t *testing.T) {
	tr, router := newTracker(t, navigation.DefaultConfig())

	state := tr.State()
	assert.Equal(t, datastructure.StatusActive, state.Status)
	assert.Equal(t, 0, state.CurrentInstructionIndex)
	assert.InDelta(t, 1.107, state.RemainingDistanceKm, 1e-9)
	assert.InDelta(t, 150, state.RemainingDurationSec, 1e-9)
	assert.Equal(t, 0.0, state.Progress)
	require.Len(t, router.calls, 1)
	assert.Equal(t, start, router.calls[0].origin)
	assert.Equal(t, end, router.calls[0].destination)

	assert.Equal(t, "1.1 km", tr.FormatRemainingDistance())
	assert.Equal(t, "3 min", tr.FormatRemainingTime())
	assert.Equal(t, "In 556 m, turn right onto Jalan Slamet Riyadi", tr.NextInstructionText())
}

func TestInitializeNavigationWithoutRoute(t *testing.T) {
	tr := navigation.NewTracker(&fakeRouter{fail: true}, navigation.DefaultConfig())

	_, err := tr.InitializeNavigation(context.Background(), start, end)
	require.Error(t, err)
	assert.Equal(t, server.ErrNoRoute, server.CodeOf(err))
	assert.Equal(t, datastructure.StatusUninitialized, tr.State().Status)
	assert.Equal(t, "", tr.NextInstructionText())

	_, err = tr.InitializeNavigation(context.Background(), datastructure.NewCoordinate(0, 0), end)
	assert.Equal(t, server.ErrBadParamInput, server.CodeOf(err))
}

func TestUpdateOnPath(t *testing.T) {
	tr, _ := newTracker(t, navigation.DefaultConfig())

	midFirstLeg := datastructure.NewCoordinate(-7.5675, 110.8200)
	state := tr.UpdateNavigationState(midFirstLeg, 0)

	assert.InDelta(t, 0, state.DeviationDistanceM, 1)
	assert.False(t, state.IsOffRoute)
	assert.False(t, state.NeedsRerouting)
	assert.Equal(t, datastructure.StatusActive, state.Status)
	assert.Equal(t, 0, state.CurrentInstructionIndex)
	assert.InDelta(t, 0.829, state.RemainingDistanceKm, 0.01)
	assert.InDelta(t, 112.5, state.RemainingDurationSec, 1)
	assert.InDelta(t, 25.1, state.Progress, 1)
}

func TestUpdateOffRoute(t *testing.T) {
	cfg := navigation.DefaultConfig()
	cfg.OffRouteThresholdM = 100
	tr, _ := newTracker(t, cfg)

	off := eastOf(datastructure.NewCoordinate(-7.5675, 110.8200), 200)
	state := tr.UpdateNavigationState(off, 90)

	assert.InDelta(t, 200, state.DeviationDistanceM, 2)
	assert.True(t, state.IsOffRoute)
	assert.False(t, state.NeedsRerouting, "a single fix is not enough")
	assert.Equal(t, datastructure.StatusOffRoute, state.Status)
	assert.Equal(t, 90.0, state.Heading)

	state = tr.UpdateNavigationState(datastructure.NewCoordinate(-7.5675, 110.8200), 0)
	assert.False(t, state.IsOffRoute)
	assert.Equal(t, datastructure.StatusActive, state.Status)
}

func TestRerouteHysteresis(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)}
	tr, _ := newTracker(t, navigation.DefaultConfig(), navigation.WithClock(clock.Now))
	off := eastOf(datastructure.NewCoordinate(-7.5675, 110.8200), 150)

	t.Run("three quick fixes do not span the window", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			state := tr.UpdateNavigationState(off, 0)
			assert.True(t, state.IsOffRoute)
			assert.False(t, state.NeedsRerouting)
			clock.Advance(time.Second)
		}
		clock.Advance(8 * time.Second)
		assert.True(t, tr.UpdateNavigationState(off, 0).NeedsRerouting)
	})

	t.Run("one good fix resets the count", func(t *testing.T) {
		state := tr.UpdateNavigationState(datastructure.NewCoordinate(-7.5675, 110.8200), 0)
		assert.False(t, state.NeedsRerouting)

		tr.UpdateNavigationState(off, 0)
		clock.Advance(11 * time.Second)
		assert.False(t, tr.UpdateNavigationState(off, 0).NeedsRerouting, "only two fixes")
		assert.True(t, tr.UpdateNavigationState(off, 0).NeedsRerouting)
	})
}

func TestInvalidFixesAreSkipped(t *testing.T) {
	tr, _ := newTracker(t, navigation.DefaultConfig())
	before := tr.UpdateNavigationState(datastructure.NewCoordinate(-7.5675, 110.8200), 0)

	for _, fix := range []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(math.NaN(), 110.82),
		datastructure.NewCoordinate(-95, 110.82),
		datastructure.NewCoordinate(-7.56, math.Inf(1)),
	} {
		assert.Equal(t, before, tr.UpdateNavigationState(fix, 45))
	}
}

func TestInstructionAdvance(t *testing.T) {
	tr, _ := newTracker(t, navigation.DefaultConfig())

	state := tr.UpdateNavigationState(datastructure.NewCoordinate(-7.5651, 110.8200), 0)
	assert.Equal(t, 1, state.CurrentInstructionIndex, "within the completion radius of the corner")

	state = tr.UpdateNavigationState(datastructure.NewCoordinate(-7.5650, 110.8225), 90)
	assert.Equal(t, 1, state.CurrentInstructionIndex)
	assert.InDelta(t, 0.2756, state.RemainingDistanceKm, 0.01)
	assert.InDelta(t, 75, state.Progress, 1.5)
	assert.Contains(t, tr.NextInstructionText(), "Your destination is in")
}

func TestInstructionAdvanceWhenCornerIsSkipped(t *testing.T) {
	tr, _ := newTracker(t, navigation.DefaultConfig())

	// first fix after the turn, the corner itself was never reported
	state := tr.UpdateNavigationState(datastructure.NewCoordinate(-7.5650, 110.8230), 90)
	assert.Equal(t, 1, state.CurrentInstructionIndex)
}

func TestCompletion(t *testing.T) {
	tr, _ := newTracker(t, navigation.DefaultConfig())

	state := tr.UpdateNavigationState(datastructure.NewCoordinate(-7.56505, 110.82498), 90)
	assert.Equal(t, datastructure.StatusCompleted, state.Status)
	assert.Equal(t, 100.0, state.Progress)
	assert.Equal(t, 0.0, state.RemainingDistanceKm)
	assert.Equal(t, 2, state.CurrentInstructionIndex)
	assert.Equal(t, "You have arrived at your destination", tr.NextInstructionText())

	after := tr.UpdateNavigationState(start, 0)
	assert.Equal(t, state, after)
}

func TestProgressStaysInRange(t *testing.T) {
	tr, _ := newTracker(t, navigation.DefaultConfig())
	fixes := []datastructure.Coordinate{
		start,
		datastructure.NewCoordinate(-7.5710, 110.8200),
		datastructure.NewCoordinate(-7.5660, 110.8200),
		datastructure.NewCoordinate(-7.5650, 110.8240),
		datastructure.NewCoordinate(-7.5650, 110.8260),
	}
	for _, fix := range fixes {
		state := tr.UpdateNavigationState(fix, 0)
		assert.GreaterOrEqual(t, state.Progress, 0.0)
		assert.LessOrEqual(t, state.Progress, 100.0)
		assert.GreaterOrEqual(t, state.DeviationDistanceM, 0.0)
	}
}

func TestUpdateOnRouteThatDoublesBack(t *testing.T) {
	// north, a 20 m jog east, then back south on the parallel lane
	a := start
	b := corner
	c := eastOf(b, 20)
	d := eastOf(a, 20)
	route := &datastructure.RouteResult{
		DistanceKm:  1.132,
		DurationSec: 125,
		Geometry:    []datastructure.Coordinate{a, b, c, d},
		Instructions: []datastructure.Instruction{
			{Index: 0, DistanceM: 556, DurationSec: 60, Maneuver: datastructure.ManeuverContinue, Location: a},
			{Index: 1, DistanceM: 20, DurationSec: 5, Maneuver: datastructure.ManeuverTurnRight, Location: b},
			{Index: 2, DistanceM: 556, DurationSec: 60, Maneuver: datastructure.ManeuverTurnRight, Location: c},
			{Index: 3, Maneuver: datastructure.ManeuverArrive, Location: d},
		},
	}
	cfg := navigation.DefaultConfig()
	cfg.CompletionRadiusM = 5
	tr := navigation.NewTracker(&fakeRouter{routes: []*datastructure.RouteResult{route}}, cfg)
	_, err := tr.InitializeNavigation(context.Background(), a, d)
	require.NoError(t, err)

	tr.UpdateNavigationState(datastructure.NewCoordinate(-7.5680, a.Lon), 0)
	tr.UpdateNavigationState(b, 90)
	tr.UpdateNavigationState(c, 180)
	onReturnLane := datastructure.NewCoordinate(-7.5670, c.Lon)
	before := tr.UpdateNavigationState(onReturnLane, 180)
	require.Equal(t, 2, before.CurrentInstructionIndex)
	require.InDelta(t, 0, before.DeviationDistanceM, 1)

	// gps noise pulls the fix toward the northbound lane, closer to it than to the return lane
	noisy := eastOf(datastructure.NewCoordinate(-7.5672, c.Lon), -12)
	state := tr.UpdateNavigationState(noisy, 180)
	assert.InDelta(t, 12, state.DeviationDistanceM, 1.5, "matched against the lane ahead")
	assert.Equal(t, 2, state.CurrentInstructionIndex)
	assert.GreaterOrEqual(t, state.Progress, before.Progress)
	assert.Less(t, state.RemainingDistanceKm, before.RemainingDistanceKm)
}

func TestRequestReroute(t *testing.T) {
	tr, router := newTracker(t, navigation.DefaultConfig())

	_, err := tr.RequestReroute(context.Background(), start)
	assert.Equal(t, server.ErrBadParamInput, server.CodeOf(err), "driver is still on route")

	off := eastOf(datastructure.NewCoordinate(-7.5675, 110.8200), 300)
	tr.UpdateNavigationState(off, 0)

	detour := &datastructure.RouteResult{
		DistanceKm:           0.6,
		DurationSec:          70,
		DurationInTrafficSec: 70,
		Geometry:             []datastructure.Coordinate{off, datastructure.NewCoordinate(-7.5650, off.Lon), end},
	}
	router.routes = []*datastructure.RouteResult{detour}

	state, err := tr.RequestReroute(context.Background(), off)
	require.NoError(t, err)
	assert.Equal(t, datastructure.StatusActive, state.Status)
	assert.Equal(t, 0, state.CurrentInstructionIndex)
	assert.False(t, state.IsOffRoute)
	assert.InDelta(t, 0.6, state.RemainingDistanceKm, 1e-9)
	assert.Equal(t, routeCall{off, end}, router.calls[len(router.calls)-1])
	assert.Equal(t, 0.6, tr.Route().DistanceKm)
}

func TestRequestRerouteWithoutRoute(t *testing.T) {
	tr, router := newTracker(t, navigation.DefaultConfig())
	off := eastOf(datastructure.NewCoordinate(-7.5675, 110.8200), 300)
	tr.UpdateNavigationState(off, 0)

	router.fail = true
	state, err := tr.RequestReroute(context.Background(), datastructure.NewCoordinate(0, 0))
	assert.Equal(t, server.ErrNoRoute, server.CodeOf(err))
	assert.Equal(t, datastructure.StatusOffRoute, state.Status)
	assert.Equal(t, off, router.calls[len(router.calls)-1].origin, "falls back to the last good fix")
}

func TestAcceptAlternative(t *testing.T) {
	tr, router := newTracker(t, navigation.DefaultConfig())
	calls := len(router.calls)

	alt := datastructure.AlternativeRoute{
		ID:                   "alt-1",
		DurationSec:          100,
		DurationInTrafficSec: 110,
		DistanceKm:           1.2,
		TimeSavingsSec:       40,
		Geometry:             []datastructure.Coordinate{start, datastructure.NewCoordinate(-7.5700, 110.8250), end},
	}
	state, err := tr.AcceptAlternative(context.Background(), start, alt)
	require.NoError(t, err)
	assert.Equal(t, datastructure.StatusActive, state.Status)
	assert.InDelta(t, 1.2, state.RemainingDistanceKm, 1e-9)
	assert.InDelta(t, 110, state.RemainingDurationSec, 1e-9)
	assert.Equal(t, calls, len(router.calls), "alternative carries its own geometry")
	assert.Equal(t, end, tr.Destination())

	idle := navigation.NewTracker(router, navigation.DefaultConfig())
	_, err = idle.AcceptAlternative(context.Background(), start, alt)
	assert.Equal(t, server.ErrBadParamInput, server.CodeOf(err))
}

func TestUpcomingInstructions(t *testing.T) {
	tr, _ := newTracker(t, navigation.DefaultConfig())

	assert.Len(t, tr.UpcomingInstructions(0, 2), 2)
	assert.Len(t, tr.UpcomingInstructions(-5, 2), 2)
	assert.Len(t, tr.UpcomingInstructions(1, 100), 2)
	assert.Empty(t, tr.UpcomingInstructions(3, 1))
	assert.Empty(t, tr.UpcomingInstructions(10, 3))
	assert.Empty(t, tr.UpcomingInstructions(0, 0))
	assert.Empty(t, tr.UpcomingInstructions(0, -1))
	assert.Equal(t, datastructure.ManeuverTurnRight, tr.UpcomingInstructions(1, 1)[0].Maneuver)

	idle := navigation.NewTracker(&fakeRouter{}, navigation.DefaultConfig())
	assert.Empty(t, idle.UpcomingInstructions(0, 5))
}

func TestSessions(t *testing.T) {
	s := navigation.NewSessions(&fakeRouter{}, navigation.DefaultConfig())

	a := s.GetOrCreate("driver-b")
	assert.Same(t, a, s.GetOrCreate("driver-b"))
	s.GetOrCreate("driver-a")
	assert.Equal(t, []string{"driver-a", "driver-b"}, s.Drivers())

	_, ok := s.Get("driver-c")
	assert.False(t, ok)
	assert.True(t, s.Remove("driver-b"))
	assert.False(t, s.Remove("driver-b"))
	assert.Equal(t, []string{"driver-a"}, s.Drivers())
}
