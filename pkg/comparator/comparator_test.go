package comparator_test

import (
	"context"
	"lintang/deliverynav/pkg/comparator"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/server"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	current          *datastructure.RouteResult
	alternatives     []datastructure.RouteResult
	altErr           error
	alternativeCalls int
}

func (f *fakeRouter) GetRoute(ctx context.Context, origin, destination datastructure.Coordinate, includeTraffic bool) (*datastructure.RouteResult, bool) {
	if f.current == nil {
		return nil, false
	}
	return f.current, true
}

func (f *fakeRouter) GetAlternatives(ctx context.Context, origin, destination datastructure.Coordinate) ([]datastructure.RouteResult, error) {
	f.alternativeCalls++
	return f.alternatives, f.altErr
}

var (
	from = datastructure.NewCoordinate(-7.5660, 110.8240)
	to   = datastructure.NewCoordinate(-7.5500, 110.8500)
)

func route(duration, inTraffic, km float64, level datastructure.TrafficLevel) datastructure.RouteResult {
	return datastructure.RouteResult{
		DistanceKm:           km,
		DurationSec:          duration,
		DurationInTrafficSec: inTraffic,
		TrafficLevel:         level,
	}
}

func TestGetAlternativeRoutes(t *testing.T) {
	current := route(1800, 2700, 12, datastructure.TrafficBlocked)
	router := &fakeRouter{
		current: &current,
		alternatives: []datastructure.RouteResult{
			current,
			route(1900, 2600, 13, datastructure.TrafficBlocked),
			route(2000, 2100, 14, datastructure.TrafficLow),
			route(1950, 2100, 15, datastructure.TrafficLow),
		},
	}
	c := comparator.NewComparator(router, comparator.DefaultConfig(), nil)

	cmp, err := c.GetAlternativeRoutes(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, datastructure.TrafficBlocked, cmp.CurrentRoute.TrafficLevel)
	assert.Equal(t, 2700.0, cmp.CurrentRoute.DurationInTrafficSec)
	require.Len(t, cmp.Alternatives, 2, "same route and 100 s savings are dropped")
	assert.Equal(t, 600.0, cmp.Alternatives[0].TimeSavingsSec)

	require.NotNil(t, cmp.RecommendedRoute)
	assert.Equal(t, "alternative-2", cmp.RecommendedRoute.ID, "first seen wins ties")
	assert.Equal(t, 14.0, cmp.RecommendedRoute.DistanceKm)
	assert.False(t, cmp.RecommendedRoute.Simulated)
	assert.Equal(t, 22, cmp.TimeSavingsPercentage)
}

func TestPrimaryRouteIsNotAnAlternative(t *testing.T) {
	current := route(1800, 2700, 12, datastructure.TrafficBlocked)
	// same road, cached at a different moment with lighter traffic
	primary := route(1800, 2400, 12, datastructure.TrafficHigh)
	router := &fakeRouter{
		current:      &current,
		alternatives: []datastructure.RouteResult{primary, route(1900, 2600, 13, datastructure.TrafficBlocked)},
	}
	c := comparator.NewComparator(router, comparator.DefaultConfig(), nil)

	cmp, err := c.GetAlternativeRoutes(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, cmp.Alternatives)
	assert.Nil(t, cmp.RecommendedRoute)
	assert.Equal(t, 0, cmp.TimeSavingsPercentage)

	router.alternatives = append(router.alternatives, route(2000, 2100, 14, datastructure.TrafficLow))
	cmp, err = c.GetAlternativeRoutes(context.Background(), from, to)
	require.NoError(t, err)
	require.NotNil(t, cmp.RecommendedRoute)
	assert.Equal(t, "alternative-2", cmp.RecommendedRoute.ID)
	assert.Equal(t, 600.0, cmp.RecommendedRoute.TimeSavingsSec)
}

func TestLowTrafficSkipsAlternatives(t *testing.T) {
	current := route(1800, 1850, 12, datastructure.TrafficLow)
	router := &fakeRouter{current: &current}
	c := comparator.NewComparator(router, comparator.DefaultConfig(), nil)

	cmp, err := c.GetAlternativeRoutes(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, cmp.Alternatives)
	assert.Nil(t, cmp.RecommendedRoute)
	assert.Equal(t, 0, router.alternativeCalls)
}

func TestNoCurrentRoute(t *testing.T) {
	c := comparator.NewComparator(&fakeRouter{}, comparator.DefaultConfig(), nil)

	_, err := c.GetAlternativeRoutes(context.Background(), from, to)
	assert.Equal(t, server.ErrNoRoute, server.CodeOf(err))
}

func TestProviderErrorsPropagate(t *testing.T) {
	current := route(1800, 2700, 12, datastructure.TrafficBlocked)
	router := &fakeRouter{
		current: &current,
		altErr:  server.WrapErrorf(nil, server.ErrProviderUnavailable, "routing provider returned 503"),
	}
	c := comparator.NewComparator(router, comparator.DefaultConfig(), nil)

	cmp, err := c.GetAlternativeRoutes(context.Background(), from, to)
	assert.Equal(t, server.ErrProviderUnavailable, server.CodeOf(err))
	assert.Equal(t, 2700.0, cmp.CurrentRoute.DurationInTrafficSec)
}

func TestSimulatedAlternative(t *testing.T) {
	current := route(1800, 2700, 12, datastructure.TrafficBlocked)

	t.Run("off by default", func(t *testing.T) {
		c := comparator.NewComparator(&fakeRouter{current: &current}, comparator.DefaultConfig(), nil)
		cmp, err := c.GetAlternativeRoutes(context.Background(), from, to)
		require.NoError(t, err)
		assert.Empty(t, cmp.Alternatives)
		assert.Nil(t, cmp.RecommendedRoute)
	})

	t.Run("flagged when enabled", func(t *testing.T) {
		cfg := comparator.DefaultConfig()
		cfg.SimulateAlternatives = true
		c := comparator.NewComparator(&fakeRouter{current: &current}, cfg, nil)

		cmp, err := c.GetAlternativeRoutes(context.Background(), from, to)
		require.NoError(t, err)
		require.Len(t, cmp.Alternatives, 1)
		alt := cmp.Alternatives[0]
		assert.True(t, alt.Simulated)
		assert.InDelta(t, 2295, alt.DurationInTrafficSec, 1e-6)
		assert.InDelta(t, 405, alt.TimeSavingsSec, 1e-6)
		assert.Equal(t, 15, cmp.TimeSavingsPercentage)
	})
}

func TestShouldSuggestAlternative(t *testing.T) {
	c := comparator.NewComparator(&fakeRouter{}, comparator.DefaultConfig(), nil)

	// 20 min delay, 5 min savings
	assert.True(t, c.ShouldSuggestAlternative(1800, 3000, 2700))
	// 10 min delay
	assert.False(t, c.ShouldSuggestAlternative(1800, 2400, 1200))
	// exactly 15 min delay is not significant
	assert.False(t, c.ShouldSuggestAlternative(1800, 2700, 2000))
	// 20 min delay, 2 min savings
	assert.False(t, c.ShouldSuggestAlternative(1800, 3000, 2880))
	// exactly 3 min savings
	assert.True(t, c.ShouldSuggestAlternative(1800, 3000, 2820))
}
