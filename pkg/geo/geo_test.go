package geo_test

import (
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/geo"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	monas   = datastructure.NewCoordinate(-6.175392, 106.827153)
	kotaTua = datastructure.NewCoordinate(-6.135200, 106.813301)
	blokM   = datastructure.NewCoordinate(-6.244340, 106.800280)
)

func TestDistance(t *testing.T) {
	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2]datastructure.Coordinate{{monas, kotaTua}, {kotaTua, blokM}, {blokM, monas}}
		for _, p := range pairs {
			assert.InDelta(t, geo.Distance(p[0], p[1], geo.Kilometers), geo.Distance(p[1], p[0], geo.Kilometers), 1e-9)
		}
	})

	t.Run("zero for identical points", func(t *testing.T) {
		assert.Equal(t, 0.0, geo.Distance(monas, monas, geo.Kilometers))
		assert.Equal(t, 0.0, geo.Distance(blokM, blokM, geo.Meters))
	})

	t.Run("units", func(t *testing.T) {
		km := geo.Distance(monas, kotaTua, geo.Kilometers)
		assert.InDelta(t, 4.7, km, 0.1)
		assert.InDelta(t, km*1000, geo.Distance(monas, kotaTua, geo.Meters), 1e-6)
		assert.InDelta(t, km/1.609344, geo.Distance(monas, kotaTua, geo.Miles), 1e-9)
	})
}

func TestBearing(t *testing.T) {
	north := geo.Bearing(datastructure.NewCoordinate(0, 10), datastructure.NewCoordinate(1, 10))
	assert.InDelta(t, 0, north, 1e-6)

	east := geo.Bearing(datastructure.NewCoordinate(0, 10), datastructure.NewCoordinate(0, 11))
	assert.InDelta(t, 90, east, 1e-6)

	west := geo.Bearing(datastructure.NewCoordinate(0, 11), datastructure.NewCoordinate(0, 10))
	assert.InDelta(t, 270, west, 1e-6)

	for _, b := range []float64{north, east, west, geo.Bearing(monas, blokM)} {
		assert.GreaterOrEqual(t, b, 0.0)
		assert.Less(t, b, 360.0)
	}
}

func TestMidPoint(t *testing.T) {
	mid := geo.MidPoint(monas, blokM)
	assert.InDelta(t, geo.Distance(monas, mid, geo.Kilometers), geo.Distance(mid, blokM, geo.Kilometers), 1e-6)
	assert.InDelta(t, geo.Distance(monas, blokM, geo.Kilometers)/2, geo.Distance(monas, mid, geo.Kilometers), 1e-6)
}

func TestRouteDistance(t *testing.T) {
	assert.Equal(t, 0.0, geo.RouteDistance(nil))
	assert.Equal(t, 0.0, geo.RouteDistance([]datastructure.Coordinate{monas}))

	total := geo.RouteDistance([]datastructure.Coordinate{kotaTua, monas, blokM})
	assert.InDelta(t, geo.DistanceKm(kotaTua, monas)+geo.DistanceKm(monas, blokM), total, 1e-9)
}

func TestEstimateTravelTime(t *testing.T) {
	assert.Equal(t, 60.0, geo.EstimateTravelTime(40))
	assert.Equal(t, 15.0, geo.EstimateTravelTime(10))
}

func TestCalculateETAs(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	stops := []datastructure.Coordinate{kotaTua, monas, blokM}

	etas := geo.CalculateETAs(stops, t0, geo.DefaultStopDuration)
	require.Len(t, etas, 3)
	assert.Equal(t, t0, etas[0])
	for i := 1; i < len(etas); i++ {
		assert.True(t, etas[i].After(etas[i-1]))
	}

	travel := geo.EstimateTravelTime(geo.DistanceKm(kotaTua, monas))
	expected := t0.Add(time.Duration(travel*float64(time.Minute)) + 10*time.Minute)
	assert.Equal(t, expected, etas[1])

	assert.Empty(t, geo.CalculateETAs(nil, t0, geo.DefaultStopDuration))
}

func TestFindNearest(t *testing.T) {
	_, ok := geo.FindNearest(monas, nil)
	assert.False(t, ok)

	n, ok := geo.FindNearest(monas, []datastructure.Coordinate{blokM, kotaTua})
	require.True(t, ok)
	assert.Equal(t, 1, n.Index)
	assert.InDelta(t, geo.DistanceKm(monas, kotaTua), n.DistanceKm, 1e-9)

	n, _ = geo.FindNearest(monas, []datastructure.Coordinate{kotaTua, blokM, kotaTua})
	assert.Equal(t, 0, n.Index, "first seen wins on ties")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "500 m", geo.FormatDistance(0.5))
	assert.Equal(t, "2.3 km", geo.FormatDistance(2.345))
	assert.Equal(t, "999 m", geo.FormatDistance(0.9994))
	assert.Equal(t, "1.0 km", geo.FormatDistance(0.9996))
	assert.Equal(t, "45 min", geo.FormatDuration(45))
	assert.Equal(t, "1h 35m", geo.FormatDuration(95))
	assert.Equal(t, "2h", geo.FormatDuration(120))
}

func TestProjectOnPath(t *testing.T) {
	path := []datastructure.Coordinate{
		datastructure.NewCoordinate(-6.2000, 106.8000),
		datastructure.NewCoordinate(-6.2000, 106.8100),
		datastructure.NewCoordinate(-6.1900, 106.8100),
	}

	t.Run("point on path", func(t *testing.T) {
		p, ok := geo.ProjectOnPath(datastructure.NewCoordinate(-6.2000, 106.8050), path)
		require.True(t, ok)
		assert.InDelta(t, 0, p.DeviationM, 0.5)
		assert.Equal(t, 0, p.Segment)
		assert.InDelta(t, geo.PathLength(path[:2])/2, p.AlongKm, 0.001)
	})

	t.Run("point beside second segment", func(t *testing.T) {
		// ~200 m east of the northbound segment
		p, ok := geo.ProjectOnPath(datastructure.NewCoordinate(-6.1950, 106.8118), path)
		require.True(t, ok)
		assert.Equal(t, 1, p.Segment)
		assert.InDelta(t, 199, p.DeviationM, 5)
	})

	t.Run("empty path", func(t *testing.T) {
		_, ok := geo.ProjectOnPath(monas, nil)
		assert.False(t, ok)
	})
}

func TestProjectOnPathFrom(t *testing.T) {
	// out and back on two lanes ~20 m apart
	a := datastructure.NewCoordinate(-6.2000, 106.8000)
	b := datastructure.NewCoordinate(-6.2000, 106.8100)
	c := datastructure.NewCoordinate(-6.1998, 106.8100)
	d := datastructure.NewCoordinate(-6.1998, 106.8000)
	path := []datastructure.Coordinate{a, b, c, d}
	outKm := geo.PathLength(path[:3])

	// 5 m north of the outbound lane, 17 m south of the return lane
	p := datastructure.NewCoordinate(-6.19995, 106.8050)

	t.Run("whole path", func(t *testing.T) {
		proj, ok := geo.ProjectOnPath(p, path)
		require.True(t, ok)
		assert.Equal(t, 0, proj.Segment)
		assert.InDelta(t, 5.5, proj.DeviationM, 1)
	})

	t.Run("skips what lies behind fromKm", func(t *testing.T) {
		proj, ok := geo.ProjectOnPathFrom(p, path, outKm)
		require.True(t, ok)
		assert.Equal(t, 2, proj.Segment)
		assert.InDelta(t, 16.6, proj.DeviationM, 1)
		assert.Greater(t, proj.AlongKm, outKm)
	})

	t.Run("starts mid segment", func(t *testing.T) {
		from := geo.PathLength(path[:2]) * 0.75
		proj, ok := geo.ProjectOnPathFrom(a, path[:2], from)
		require.True(t, ok)
		assert.Equal(t, 0, proj.Segment)
		assert.InDelta(t, from, proj.AlongKm, 1e-6)
	})

	t.Run("past the end still matches the last segment", func(t *testing.T) {
		proj, ok := geo.ProjectOnPathFrom(d, path, geo.PathLength(path)+1)
		require.True(t, ok)
		assert.Equal(t, 2, proj.Segment)
	})
}
