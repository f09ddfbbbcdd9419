package traffic

import (
	"context"
	"fmt"
	"lintang/deliverynav/pkg/concurrent"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/geo"
	"lintang/deliverynav/pkg/metrics"
	"lintang/deliverynav/pkg/util"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Router interface {
	GetRoute(ctx context.Context, origin, destination datastructure.Coordinate, includeTraffic bool) (*datastructure.RouteResult, bool)
}

// Publisher receives every snapshot the monitor produces.
type Publisher interface {
	Publish(ctx context.Context, snapshot datastructure.TrafficSnapshot) error
}

type Config struct {
	Interval      time.Duration
	HistorySize   int
	IncidentDelay time.Duration
	SevereDelay   time.Duration
	// concurrent segment lookups per tick
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Minute,
		HistorySize:   24,
		IncidentDelay: 15 * time.Minute,
		SevereDelay:   30 * time.Minute,
		Workers:       4,
	}
}

type Monitor struct {
	mu        sync.Mutex
	router    Router
	cfg       Config
	log       *zap.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	now       func() time.Time

	handles map[string]*Handle
	history map[string][]datastructure.TrafficSnapshot
}

type Option func(*Monitor)

func WithLogger(log *zap.Logger) Option {
	return func(m *Monitor) {
		m.log = log
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

func WithPublisher(p Publisher) Option {
	return func(m *Monitor) {
		m.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func NewMonitor(router Router, cfg Config, opts ...Option) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.IncidentDelay <= 0 {
		cfg.IncidentDelay = def.IncidentDelay
	}
	if cfg.SevereDelay <= 0 {
		cfg.SevereDelay = def.SevereDelay
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	m := &Monitor{
		router:  router,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
		handles: make(map[string]*Handle),
		history: make(map[string][]datastructure.TrafficSnapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle controls the polling loop of one route.
type Handle struct {
	routeID string
	monitor *Monitor
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (h *Handle) RouteID() string {
	return h.routeID
}

// Cancel stops the loop and returns once its goroutine has exited. It must not be called
// from inside the loop's onUpdate callback.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.cancel()
		<-h.done

		h.monitor.mu.Lock()
		if h.monitor.handles[h.routeID] == h {
			delete(h.monitor.handles, h.routeID)
		}
		h.monitor.mu.Unlock()
		h.monitor.metrics.MonitorStopped()
		h.monitor.log.Info("traffic monitoring stopped", zap.String("route_id", h.routeID))
	})
}

// Done is closed when the loop goroutine exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// StartMonitoring polls traffic along stops now and then every Interval until the returned
// handle is cancelled. location, when set, is the driver's position and becomes the first
// stop. A route that is already monitored has its loop stopped first and a new one started
// with the new stops and callback. It must not be called from inside an onUpdate callback.
func (m *Monitor) StartMonitoring(routeID string, stops []datastructure.Coordinate, location *datastructure.Coordinate,
	onUpdate func(datastructure.TrafficSnapshot)) *Handle {
	for {
		m.mu.Lock()
		old, ok := m.handles[routeID]
		if !ok {
			break
		}
		m.mu.Unlock()
		old.Cancel()
	}
	defer m.mu.Unlock()

	points := make([]datastructure.Coordinate, 0, len(stops)+1)
	if location != nil && location.Valid() {
		points = append(points, *location)
	}
	points = append(points, stops...)

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		routeID: routeID,
		monitor: m,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.handles[routeID] = h
	m.metrics.MonitorStarted()
	m.log.Info("traffic monitoring started", zap.String("route_id", routeID), zap.Int("stops", len(points)),
		zap.Duration("interval", m.cfg.Interval))

	go m.loop(ctx, h, points, onUpdate)
	return h
}

func (m *Monitor) loop(ctx context.Context, h *Handle, points []datastructure.Coordinate, onUpdate func(datastructure.TrafficSnapshot)) {
	defer close(h.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		snapshot := m.CheckRoute(ctx, h.routeID, points)
		if ctx.Err() != nil {
			return
		}
		m.record(ctx, snapshot)
		if onUpdate != nil {
			onUpdate(snapshot)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) record(ctx context.Context, snapshot datastructure.TrafficSnapshot) {
	m.mu.Lock()
	hist := append(m.history[snapshot.RouteID], snapshot)
	if len(hist) > m.cfg.HistorySize {
		hist = append([]datastructure.TrafficSnapshot(nil), hist[len(hist)-m.cfg.HistorySize:]...)
	}
	var prev datastructure.TrafficSnapshot
	hasPrev := len(hist) > 1
	if hasPrev {
		prev = hist[len(hist)-2]
	}
	m.history[snapshot.RouteID] = hist
	m.mu.Unlock()

	m.metrics.MonitorTick(string(snapshot.OverallTrafficLevel))
	fields := []zap.Field{
		zap.String("route_id", snapshot.RouteID),
		zap.String("level", string(snapshot.OverallTrafficLevel)),
		zap.Float64("average_delay_min", snapshot.AverageDelayMinutes),
		zap.Int("incidents", len(snapshot.Incidents)),
	}
	if hasPrev {
		fields = append(fields, zap.String("change", string(DetectTrafficChanges(prev, snapshot))))
	}
	m.log.Info("traffic snapshot", fields...)

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, snapshot); err != nil {
			m.log.Warn("could not publish traffic snapshot", zap.String("route_id", snapshot.RouteID), zap.Error(err))
		}
	}
}

type segmentJob struct {
	index    int
	from, to datastructure.Coordinate
}

type segmentResult struct {
	job   segmentJob
	route *datastructure.RouteResult
}

// CheckRoute takes one traffic snapshot of the consecutive legs of points. Legs the routing
// provider has no data for are left out.
func (m *Monitor) CheckRoute(ctx context.Context, routeID string, points []datastructure.Coordinate) datastructure.TrafficSnapshot {
	jobs := make([]segmentJob, 0, len(points))
	for i := 1; i < len(points); i++ {
		jobs = append(jobs, segmentJob{index: i - 1, from: points[i-1], to: points[i]})
	}

	results := concurrent.Map(m.cfg.Workers, jobs, func(job segmentJob) segmentResult {
		route, ok := m.router.GetRoute(ctx, job.from, job.to, true)
		if !ok {
			return segmentResult{job: job}
		}
		return segmentResult{job: job, route: route}
	})

	now := m.now()
	snapshot := datastructure.TrafficSnapshot{
		Timestamp:        now,
		RouteID:          routeID,
		Incidents:        []datastructure.Incident{},
		AffectedSegments: []datastructure.SegmentTraffic{},
	}

	levels := make([]datastructure.TrafficLevel, 0, len(results))
	totalDelay := 0.0
	for _, res := range results {
		if res.route == nil {
			continue
		}
		r := res.route
		delay := time.Duration((r.DurationInTrafficSec - r.DurationSec) * float64(time.Second))
		if delay < 0 {
			delay = 0
		}
		levels = append(levels, r.TrafficLevel)
		totalDelay += delay.Minutes()

		if r.TrafficLevel != datastructure.TrafficLow {
			snapshot.AffectedSegments = append(snapshot.AffectedSegments, datastructure.SegmentTraffic{
				Index:        res.job.index,
				From:         res.job.from,
				To:           res.job.to,
				DistanceKm:   r.DistanceKm,
				DelayMinutes: util.RoundFloat(delay.Minutes(), 1),
				TrafficLevel: r.TrafficLevel,
			})
		}
		if delay > m.cfg.IncidentDelay {
			snapshot.Incidents = append(snapshot.Incidents, m.incident(now, res.job, r, delay))
		}
	}

	snapshot.OverallTrafficLevel = AggregateTrafficLevel(levels)
	if len(levels) > 0 {
		snapshot.AverageDelayMinutes = util.RoundFloat(totalDelay/float64(len(levels)), 1)
	}
	if len(levels) < len(jobs) {
		m.log.Debug("traffic data missing for some legs", zap.String("route_id", routeID),
			zap.Int("legs", len(jobs)), zap.Int("with_data", len(levels)))
	}
	return snapshot
}

func (m *Monitor) incident(now time.Time, job segmentJob, r *datastructure.RouteResult, delay time.Duration) datastructure.Incident {
	severity := datastructure.SeverityMedium
	if delay > m.cfg.SevereDelay {
		severity = datastructure.SeverityHigh
	}
	return datastructure.Incident{
		ID:        uuid.NewString(),
		Timestamp: now,
		Type:      "congestion",
		Severity:  severity,
		Description: fmt.Sprintf("Heavy traffic between stop %d and stop %d, about %s of delay",
			job.index+1, job.index+2, geo.FormatDuration(delay.Minutes())),
		AffectedDistanceKm: r.DistanceKm,
	}
}

// AggregateTrafficLevel is the worst level among the segments, low when there are none.
func AggregateTrafficLevel(levels []datastructure.TrafficLevel) datastructure.TrafficLevel {
	overall := datastructure.TrafficLow
	for _, l := range levels {
		overall = datastructure.WorseOf(overall, l)
	}
	return overall
}

// StopMonitoring cancels the loop of routeID, if any. History is kept.
func (m *Monitor) StopMonitoring(routeID string) bool {
	m.mu.Lock()
	h, ok := m.handles[routeID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	h.Cancel()
	return true
}

// ClearRoute stops monitoring routeID and forgets its history.
func (m *Monitor) ClearRoute(routeID string) {
	m.StopMonitoring(routeID)
	m.mu.Lock()
	delete(m.history, routeID)
	m.mu.Unlock()
}

func (m *Monitor) IsMonitoring(routeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[routeID]
	return ok
}

// Routes lists the monitored route ids.
func (m *Monitor) Routes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History returns the snapshots of routeID, oldest first.
func (m *Monitor) History(routeID string) []datastructure.TrafficSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]datastructure.TrafficSnapshot{}, m.history[routeID]...)
}

func (m *Monitor) Latest(routeID string) (datastructure.TrafficSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hist := m.history[routeID]
	if len(hist) == 0 {
		return datastructure.TrafficSnapshot{}, false
	}
	return hist[len(hist)-1], true
}

// Close stops every loop.
func (m *Monitor) Close() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}
