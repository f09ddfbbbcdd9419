package comparator

import (
	"context"
	"fmt"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/server"
	"lintang/deliverynav/pkg/util"
	"math"
	"time"

	"go.uber.org/zap"
)

type Router interface {
	GetRoute(ctx context.Context, origin, destination datastructure.Coordinate, includeTraffic bool) (*datastructure.RouteResult, bool)
	GetAlternatives(ctx context.Context, origin, destination datastructure.Coordinate) ([]datastructure.RouteResult, error)
}

type Config struct {
	// delay over free flow above which an alternative is worth suggesting
	SignificantDelay time.Duration
	MinTimeSavings   time.Duration
	// SimulateAlternatives adds a made up alternative, SimulatedDiscount faster than the
	// current route, when the provider has none. Demo setups only.
	SimulateAlternatives bool
	SimulatedDiscount    float64
}

func DefaultConfig() Config {
	return Config{
		SignificantDelay:  15 * time.Minute,
		MinTimeSavings:    3 * time.Minute,
		SimulatedDiscount: 0.15,
	}
}

type Comparator struct {
	router Router
	cfg    Config
	log    *zap.Logger
}

func NewComparator(router Router, cfg Config, log *zap.Logger) *Comparator {
	def := DefaultConfig()
	if cfg.SignificantDelay <= 0 {
		cfg.SignificantDelay = def.SignificantDelay
	}
	if cfg.MinTimeSavings <= 0 {
		cfg.MinTimeSavings = def.MinTimeSavings
	}
	if cfg.SimulatedDiscount <= 0 || cfg.SimulatedDiscount >= 1 {
		cfg.SimulatedDiscount = def.SimulatedDiscount
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Comparator{router: router, cfg: cfg, log: log}
}

// GetAlternativeRoutes compares the current traffic aware route from -> to with the
// provider's alternatives, excluding its primary route. Alternatives are only looked up when the current route is not
// in low traffic, and only those saving at least MinTimeSavings are kept.
func (c *Comparator) GetAlternativeRoutes(ctx context.Context, from, to datastructure.Coordinate) (datastructure.RouteComparison, error) {
	current, ok := c.router.GetRoute(ctx, from, to, true)
	if !ok {
		return datastructure.RouteComparison{}, server.WrapErrorf(nil, server.ErrNoRoute,
			"no current route from %.5f,%.5f to %.5f,%.5f", from.Lat, from.Lon, to.Lat, to.Lon)
	}

	comparison := datastructure.RouteComparison{
		CurrentRoute: datastructure.RouteMetrics{
			DurationSec:          current.DurationSec,
			DurationInTrafficSec: current.DurationInTrafficSec,
			DistanceKm:           current.DistanceKm,
			TrafficLevel:         current.TrafficLevel,
		},
		Alternatives: []datastructure.AlternativeRoute{},
	}
	if current.TrafficLevel == datastructure.TrafficLow {
		return comparison, nil
	}

	routes, err := c.router.GetAlternatives(ctx, from, to)
	if err != nil {
		return comparison, err
	}

	currentDIT := current.DurationInTrafficSec
	// routes[0] is the provider's primary route, the one the driver is already on
	for i := 1; i < len(routes); i++ {
		r := routes[i]
		savings := currentDIT - r.DurationInTrafficSec
		if savings < c.cfg.MinTimeSavings.Seconds() {
			continue
		}
		comparison.Alternatives = append(comparison.Alternatives, datastructure.AlternativeRoute{
			ID:                   fmt.Sprintf("alternative-%d", i),
			DurationSec:          r.DurationSec,
			DurationInTrafficSec: r.DurationInTrafficSec,
			DistanceKm:           r.DistanceKm,
			TimeSavingsSec:       savings,
			TrafficLevel:         r.TrafficLevel,
			Instructions:         r.Instructions,
			Geometry:             r.Geometry,
		})
	}

	if len(comparison.Alternatives) == 0 && c.cfg.SimulateAlternatives {
		if alt, ok := c.simulate(current); ok {
			comparison.Alternatives = append(comparison.Alternatives, alt)
		}
	}

	for i := range comparison.Alternatives {
		alt := &comparison.Alternatives[i]
		if comparison.RecommendedRoute == nil || alt.DurationInTrafficSec < comparison.RecommendedRoute.DurationInTrafficSec {
			comparison.RecommendedRoute = alt
		}
	}
	if rec := comparison.RecommendedRoute; rec != nil && currentDIT > 0 {
		comparison.TimeSavingsPercentage = int(math.Round((currentDIT - rec.DurationInTrafficSec) / currentDIT * 100))
	}

	c.log.Info("compared routes",
		zap.String("current_level", string(current.TrafficLevel)),
		zap.Int("provider_routes", len(routes)),
		zap.Int("alternatives", len(comparison.Alternatives)),
		zap.Int("time_savings_pct", comparison.TimeSavingsPercentage))
	return comparison, nil
}

func (c *Comparator) simulate(current *datastructure.RouteResult) (datastructure.AlternativeRoute, bool) {
	dit := current.DurationInTrafficSec * (1 - c.cfg.SimulatedDiscount)
	savings := current.DurationInTrafficSec - dit
	if savings < c.cfg.MinTimeSavings.Seconds() {
		return datastructure.AlternativeRoute{}, false
	}
	c.log.Warn("using simulated alternative route", zap.Float64("discount", c.cfg.SimulatedDiscount))
	return datastructure.AlternativeRoute{
		ID:                   "simulated",
		DurationSec:          current.DurationSec,
		DurationInTrafficSec: dit,
		DistanceKm:           util.RoundFloat(current.DistanceKm*1.05, 3),
		TimeSavingsSec:       savings,
		TrafficLevel:         datastructure.TrafficMedium,
		Instructions:         current.Instructions,
		Geometry:             current.Geometry,
		Simulated:            true,
	}, true
}

// ShouldSuggestAlternative reports whether the driver should be offered an alternative: the
// current route is delayed by more than SignificantDelay and the alternative saves at least
// MinTimeSavings. All durations are seconds.
func (c *Comparator) ShouldSuggestAlternative(currentDurationSec, currentDurationInTrafficSec, alternativeDurationSec float64) bool {
	delay := currentDurationInTrafficSec - currentDurationSec
	savings := currentDurationInTrafficSec - alternativeDurationSec
	return delay > c.cfg.SignificantDelay.Seconds() && savings >= c.cfg.MinTimeSavings.Seconds()
}
