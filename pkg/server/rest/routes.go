package rest

import (
	"context"
	"errors"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/geo"
	"lintang/deliverynav/pkg/routing"
	"lintang/deliverynav/pkg/server"
	"lintang/deliverynav/pkg/util"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/paulmach/orb/geojson"
)

type ComparatorService interface {
	GetAlternativeRoutes(ctx context.Context, from, to datastructure.Coordinate) (datastructure.RouteComparison, error)
	ShouldSuggestAlternative(currentDurationSec, currentDurationInTrafficSec, alternativeDurationSec float64) bool
}

type RoutingService interface {
	GetRoute(ctx context.Context, origin, destination datastructure.Coordinate, includeTraffic bool) (*datastructure.RouteResult, bool)
	GetMatrix(ctx context.Context, origins, destinations []datastructure.Coordinate) (*datastructure.MatrixResult, bool)
	Usage() routing.UsageReport
}

type RoutesHandler struct {
	routing    RoutingService
	comparator ComparatorService
	now        func() time.Time
}

func RoutesRouter(r chi.Router, routingSvc RoutingService, comparatorSvc ComparatorService) {
	handler := &RoutesHandler{routing: routingSvc, comparator: comparatorSvc, now: time.Now}

	r.Group(func(r chi.Router) {
		r.Post("/api/routes", handler.route)
		r.Post("/api/routes/alternatives", handler.alternatives)
		r.Post("/api/routes/suggest", handler.suggest)
		r.Post("/api/routes/etas", handler.etas)
		r.Post("/api/routes/nearest", handler.nearest)
		r.Post("/api/routes/matrix", handler.matrix)
		r.Get("/api/usage", handler.usage)
	})
}

// RouteRequest model info
//
//	@Description	request body untuk rute dari src ke dst
type RouteRequest struct {
	Src            CoordinateRequest `json:"src"`
	Dst            CoordinateRequest `json:"dst"`
	IncludeTraffic *bool             `json:"include_traffic,omitempty"`
}

func (s *RouteRequest) Bind(r *http.Request) error {
	if s.Src.Lat == 0 || s.Src.Lon == 0 || s.Dst.Lat == 0 || s.Dst.Lon == 0 {
		return errors.New("src and dst are required")
	}
	return nil
}

// RouteResponse model info
//
//	@Description	rute beserta geojson untuk digambar di peta
type RouteResponse struct {
	Route             *datastructure.RouteResult `json:"route"`
	Distance          string                     `json:"distance"`
	Duration          string                     `json:"duration"`
	FeatureCollection *geojson.FeatureCollection `json:"geojson"`
}

// route
//
//	@Summary		rute terbaik dari src ke dst, traffic-aware secara default.
//	@Tags			routes
//	@Param			body	body	RouteRequest	true	"src dan dst"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/routes [post]
//	@Success		200	{object}	RouteResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
func (h *RoutesHandler) route(w http.ResponseWriter, r *http.Request) {
	data := &RouteRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	includeTraffic := data.IncludeTraffic == nil || *data.IncludeTraffic
	route, ok := h.routing.GetRoute(r.Context(), data.Src.Coordinate(), data.Dst.Coordinate(), includeTraffic)
	if !ok {
		render.Render(w, r, ErrChi(server.WrapErrorf(nil, server.ErrNoRoute, "no route between src and dst")))
		return
	}

	duration := route.DurationSec
	if includeTraffic && route.DurationInTrafficSec > 0 {
		duration = route.DurationInTrafficSec
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, &RouteResponse{
		Route:             route,
		Distance:          geo.FormatDistance(route.DistanceKm),
		Duration:          geo.FormatDuration(duration / 60),
		FeatureCollection: routeFeatures(route),
	})
}

// AlternativesResponse model info
//
//	@Description	perbandingan rute sekarang dengan alternative route
type AlternativesResponse struct {
	Comparison    datastructure.RouteComparison `json:"comparison"`
	ShouldSuggest bool                          `json:"should_suggest"`
	Alternatives  *geojson.FeatureCollection    `json:"geojson"`
}

// alternatives
//
//	@Summary		cari alternative route yang lebih cepat dari rute sekarang.
//	@Description	alternative hanya dicari kalau traffic rute sekarang bukan low.
//	@Tags			routes
//	@Param			body	body	RouteRequest	true	"src dan dst"
//	@Router			/routes/alternatives [post]
//	@Success		200	{object}	AlternativesResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
func (h *RoutesHandler) alternatives(w http.ResponseWriter, r *http.Request) {
	data := &RouteRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	cmp, err := h.comparator.GetAlternativeRoutes(r.Context(), data.Src.Coordinate(), data.Dst.Coordinate())
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}

	suggest := false
	if cmp.RecommendedRoute != nil {
		suggest = h.comparator.ShouldSuggestAlternative(cmp.CurrentRoute.DurationSec,
			cmp.CurrentRoute.DurationInTrafficSec, cmp.RecommendedRoute.DurationInTrafficSec)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &AlternativesResponse{
		Comparison:    cmp,
		ShouldSuggest: suggest,
		Alternatives:  alternativeFeatures(cmp.Alternatives),
	})
}

// SuggestRequest model info
type SuggestRequest struct {
	CurrentDurationSec          float64 `json:"current_duration_sec" validate:"gte=0"`
	CurrentDurationInTrafficSec float64 `json:"current_duration_in_traffic_sec" validate:"gte=0"`
	AlternativeDurationSec      float64 `json:"alternative_duration_sec" validate:"gte=0"`
}

func (s *SuggestRequest) Bind(r *http.Request) error {
	return nil
}

// suggest
//
//	@Summary		apakah alternative route layak disarankan ke driver.
//	@Tags			routes
//	@Param			body	body	SuggestRequest	true	"durasi rute"
//	@Router			/routes/suggest [post]
//	@Success		200	{object}	map[string]bool
func (h *RoutesHandler) suggest(w http.ResponseWriter, r *http.Request) {
	data := &SuggestRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]bool{
		"should_suggest": h.comparator.ShouldSuggestAlternative(data.CurrentDurationSec,
			data.CurrentDurationInTrafficSec, data.AlternativeDurationSec),
	})
}

// ETARequest model info
//
//	@Description	stop berurutan. start_time RFC3339, default sekarang. stop_duration_min default 10
type ETARequest struct {
	Stops           []CoordinateRequest `json:"stops" validate:"required,min=1,dive"`
	StartTime       *time.Time          `json:"start_time,omitempty"`
	StopDurationMin *float64            `json:"stop_duration_min,omitempty" validate:"omitempty,gte=0"`
}

func (s *ETARequest) Bind(r *http.Request) error {
	if len(s.Stops) == 0 {
		return errors.New("stops is required")
	}
	return nil
}

type StopETA struct {
	Index int       `json:"index"`
	ETA   time.Time `json:"eta"`
}

// ETAResponse model info
type ETAResponse struct {
	DistanceKm float64   `json:"distance_km"`
	Distance   string    `json:"distance"`
	Duration   string    `json:"duration"`
	ETAs       []StopETA `json:"etas"`
}

// etas
//
//	@Summary		estimasi waktu sampai di setiap stop tanpa memanggil routing provider.
//	@Tags			routes
//	@Param			body	body	ETARequest	true	"stop"
//	@Router			/routes/etas [post]
//	@Success		200	{object}	ETAResponse
//	@Failure		400	{object}	ErrResponse
func (h *RoutesHandler) etas(w http.ResponseWriter, r *http.Request) {
	data := &ETARequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	start := h.now()
	if data.StartTime != nil {
		start = *data.StartTime
	}
	stopDuration := geo.DefaultStopDuration
	if data.StopDurationMin != nil {
		stopDuration = time.Duration(*data.StopDurationMin * float64(time.Minute))
	}

	stops := toCoordinates(data.Stops)
	etas := geo.CalculateETAs(stops, start, stopDuration)
	resp := &ETAResponse{
		DistanceKm: util.RoundFloat(geo.RouteDistance(stops), 3),
		ETAs:       make([]StopETA, 0, len(etas)),
	}
	resp.Distance = geo.FormatDistance(resp.DistanceKm)
	resp.Duration = geo.FormatDuration(etas[len(etas)-1].Sub(start).Minutes())
	for i, eta := range etas {
		resp.ETAs = append(resp.ETAs, StopETA{Index: i, ETA: eta})
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// NearestRequest model info
type NearestRequest struct {
	From      CoordinateRequest   `json:"from"`
	Locations []CoordinateRequest `json:"locations" validate:"required,min=1,dive"`
}

func (s *NearestRequest) Bind(r *http.Request) error {
	if len(s.Locations) == 0 {
		return errors.New("locations is required")
	}
	return nil
}

// NearestResponse model info
type NearestResponse struct {
	Index      int     `json:"index"`
	DistanceKm float64 `json:"distance_km"`
	Distance   string  `json:"distance"`
}

// nearest
//
//	@Summary		lokasi terdekat (great circle) dari from.
//	@Tags			routes
//	@Param			body	body	NearestRequest	true	"from dan kandidat lokasi"
//	@Router			/routes/nearest [post]
//	@Success		200	{object}	NearestResponse
//	@Failure		400	{object}	ErrResponse
func (h *RoutesHandler) nearest(w http.ResponseWriter, r *http.Request) {
	data := &NearestRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	n, ok := geo.FindNearest(data.From.Coordinate(), toCoordinates(data.Locations))
	if !ok {
		render.Render(w, r, ErrInvalidRequest(errors.New("locations is required")))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, &NearestResponse{
		Index:      n.Index,
		DistanceKm: util.RoundFloat(n.DistanceKm, 3),
		Distance:   geo.FormatDistance(n.DistanceKm),
	})
}

// MatrixRequest model info
type MatrixRequest struct {
	Origins      []CoordinateRequest `json:"origins" validate:"required,min=1,dive"`
	Destinations []CoordinateRequest `json:"destinations" validate:"required,min=1,dive"`
}

func (s *MatrixRequest) Bind(r *http.Request) error {
	if len(s.Origins) == 0 || len(s.Destinations) == 0 {
		return errors.New("origins and destinations are required")
	}
	return nil
}

// matrix
//
//	@Summary		distance matrix origins x destinations.
//	@Tags			routes
//	@Param			body	body	MatrixRequest	true	"origins dan destinations"
//	@Router			/routes/matrix [post]
//	@Success		200	{object}	datastructure.MatrixResult
//	@Failure		400	{object}	ErrResponse
//	@Failure		503	{object}	ErrResponse
func (h *RoutesHandler) matrix(w http.ResponseWriter, r *http.Request) {
	data := &MatrixRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	m, ok := h.routing.GetMatrix(r.Context(), toCoordinates(data.Origins), toCoordinates(data.Destinations))
	if !ok {
		render.Render(w, r, ErrChi(server.WrapErrorf(nil, server.ErrProviderUnavailable, "distance matrix unavailable")))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, m)
}

// usage
//
//	@Summary		jumlah request ke routing provider bulan ini.
//	@Tags			routes
//	@Router			/usage [get]
//	@Success		200	{object}	routing.UsageReport
func (h *RoutesHandler) usage(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.routing.Usage())
}
