// Package routing is the only way the rest of the engine reaches the routing provider.
// Every request is cached, throttled through one global queue and counted against the
// monthly quota.
package routing

import (
	"context"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/metrics"
	"lintang/deliverynav/pkg/provider"
	"lintang/deliverynav/pkg/server"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// upper bound for one shared provider call, throttle wait included
const sharedCallTimeout = 30 * time.Second

type Config struct {
	CacheSize         int
	CacheTTL          time.Duration
	RequestsPerSecond float64
	QueueSize         int
	DailyBudget       int64
}

func DefaultConfig() Config {
	return Config{
		CacheSize:         500,
		CacheTTL:          5 * time.Minute,
		RequestsPerSecond: 10,
		QueueSize:         256,
		DailyBudget:       2500,
	}
}

type Client struct {
	provider     provider.Provider
	routes       *ttlCache[datastructure.RouteResult]
	alternatives *ttlCache[[]datastructure.RouteResult]
	matrices     *ttlCache[datastructure.MatrixResult]
	throttle     *Throttle
	usage        *usage
	group        singleflight.Group
	metrics      *metrics.Metrics
	log          *zap.Logger
	now          func() time.Time
}

type Option func(*Client)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithClock replaces time.Now for cache expiry and month rollover.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(p provider.Provider, cfg Config, store UsageStore, opts ...Option) (*Client, error) {
	def := DefaultConfig()
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	c := &Client{
		provider: p,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.routes, err = newTTLCache[datastructure.RouteResult](cfg.CacheSize, cfg.CacheTTL, c.now); err != nil {
		return nil, server.WrapErrorf(err, server.ErrBadParamInput, "create route cache")
	}
	if c.alternatives, err = newTTLCache[[]datastructure.RouteResult](cfg.CacheSize, cfg.CacheTTL, c.now); err != nil {
		return nil, server.WrapErrorf(err, server.ErrBadParamInput, "create alternatives cache")
	}
	if c.matrices, err = newTTLCache[datastructure.MatrixResult](cfg.CacheSize, cfg.CacheTTL, c.now); err != nil {
		return nil, server.WrapErrorf(err, server.ErrBadParamInput, "create matrix cache")
	}
	c.usage = newUsage(store, cfg.DailyBudget, c.now, c.log)
	c.throttle = NewThrottle(cfg.RequestsPerSecond, cfg.QueueSize)
	return c, nil
}

// GetRoute returns the route between origin and destination. A false second value means
// the data is unavailable (provider down, no route, cancelled), it is never an error.
func (c *Client) GetRoute(ctx context.Context, origin, destination datastructure.Coordinate, includeTraffic bool) (*datastructure.RouteResult, bool) {
	key := routeKey(origin, destination, "route", includeTraffic)
	if r, ok := c.routes.get(key); ok {
		c.metrics.CacheLookup("route", true)
		return &r, true
	}
	c.metrics.CacheLookup("route", false)

	v, err := c.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		routes, err := c.fetchRoutes(ctx, "route", provider.RouteRequest{
			Origin:         origin,
			Destination:    destination,
			IncludeTraffic: includeTraffic,
		})
		if err != nil {
			return nil, err
		}
		route := routes[0]
		c.routes.add(key, route)
		return route, nil
	})
	if err != nil {
		c.log.Warn("route unavailable",
			zap.String("origin", roundedCoord(origin)),
			zap.String("destination", roundedCoord(destination)),
			zap.Error(err))
		return nil, false
	}
	route := v.(datastructure.RouteResult)
	return &route, true
}

// GetAlternatives returns the provider's primary route followed by its alternatives, all
// traffic aware. Unlike GetRoute, failures are returned to the caller.
func (c *Client) GetAlternatives(ctx context.Context, origin, destination datastructure.Coordinate) ([]datastructure.RouteResult, error) {
	key := routeKey(origin, destination, "alternatives", true)
	if rs, ok := c.alternatives.get(key); ok {
		c.metrics.CacheLookup("alternatives", true)
		return rs, nil
	}
	c.metrics.CacheLookup("alternatives", false)

	v, err := c.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		routes, err := c.fetchRoutes(ctx, "alternatives", provider.RouteRequest{
			Origin:         origin,
			Destination:    destination,
			IncludeTraffic: true,
			Alternatives:   true,
		})
		if err != nil {
			return nil, err
		}
		c.alternatives.add(key, routes)
		return routes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]datastructure.RouteResult), nil
}

// share runs fn once for all concurrent callers of key. fn runs detached from the caller
// that started it, so one caller going away does not fail the others. Each caller stops
// waiting when its own ctx is done.
func (c *Client) share(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return fn(sctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) fetchRoutes(ctx context.Context, kind string, req provider.RouteRequest) ([]datastructure.RouteResult, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	routes, err := c.provider.Route(ctx, req)
	c.metrics.ProviderRequest(c.provider.Name(), kind, err == nil)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, server.WrapErrorf(nil, server.ErrNoRoute, "provider returned zero routes")
	}
	for i := range routes {
		normalize(&routes[i])
	}
	return routes, nil
}

// GetMatrix returns the origins x destinations grid, with the same failure contract as GetRoute.
func (c *Client) GetMatrix(ctx context.Context, origins, destinations []datastructure.Coordinate) (*datastructure.MatrixResult, bool) {
	if len(origins) == 0 || len(destinations) == 0 {
		return nil, false
	}
	key := matrixKey(origins, destinations)
	if m, ok := c.matrices.get(key); ok {
		c.metrics.CacheLookup("matrix", true)
		return &m, true
	}
	c.metrics.CacheLookup("matrix", false)

	v, err := c.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		if err := c.acquire(ctx); err != nil {
			return nil, err
		}
		m, err := c.provider.Matrix(ctx, origins, destinations)
		c.metrics.ProviderRequest(c.provider.Name(), "matrix", err == nil)
		if err != nil {
			return nil, err
		}
		for _, row := range m.Rows {
			for j := range row {
				if row[j].DurationInTrafficSec < 0 {
					row[j].DurationInTrafficSec = 0
				}
			}
		}
		c.matrices.add(key, m)
		return m, nil
	})
	if err != nil {
		c.log.Warn("distance matrix unavailable",
			zap.Int("origins", len(origins)), zap.Int("destinations", len(destinations)), zap.Error(err))
		return nil, false
	}
	m := v.(datastructure.MatrixResult)
	return &m, true
}

func (c *Client) acquire(ctx context.Context) error {
	start := time.Now()
	if err := c.throttle.Acquire(ctx); err != nil {
		return err
	}
	c.metrics.ThrottleWait(time.Since(start))
	c.usage.record()
	return nil
}

func normalize(r *datastructure.RouteResult) {
	if r.DurationInTrafficSec < 0 {
		r.DurationInTrafficSec = 0
	}
	r.TrafficLevel = ClassifyTraffic(r.DurationSec, r.DurationInTrafficSec)
}

func (c *Client) Usage() UsageReport {
	return c.usage.report()
}

func (c *Client) QuotaApproaching() bool {
	return c.usage.report().QuotaApproaching
}

func (c *Client) Close() {
	c.throttle.Close()
}
