package rest

import (
	"errors"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/navigation"
	"lintang/deliverynav/pkg/server"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/paulmach/orb/geojson"
)

const defaultUpcoming = 3

type NavigationHandler struct {
	sessions *navigation.Sessions
}

func NavigationRouter(r chi.Router, sessions *navigation.Sessions) {
	handler := &NavigationHandler{sessions}

	r.Route("/api/navigations/{driverID}", func(r chi.Router) {
		r.Get("/", handler.state)
		r.Delete("/", handler.stop)
		r.Post("/start", handler.start)
		r.Post("/location", handler.updateLocation)
		r.Post("/reroute", handler.reroute)
		r.Post("/accept-alternative", handler.acceptAlternative)
	})
}

// StartNavigationRequest model info
//
//	@Description	request body untuk mulai navigasi driver dari posisi sekarang ke tujuan
type StartNavigationRequest struct {
	SrcLat float64 `json:"src_lat" validate:"required,lt=90,gt=-90"`
	SrcLon float64 `json:"src_lon" validate:"required,lt=180,gt=-180"`
	DstLat float64 `json:"dst_lat" validate:"required,lt=90,gt=-90"`
	DstLon float64 `json:"dst_lon" validate:"required,lt=180,gt=-180"`
}

func (s *StartNavigationRequest) Bind(r *http.Request) error {
	if s.SrcLat == 0 || s.SrcLon == 0 || s.DstLat == 0 || s.DstLon == 0 {
		return errors.New("invalid request")
	}
	return nil
}

// LocationUpdateRequest model info
//
//	@Description	satu gps fix dari aplikasi driver. Fix yang tidak valid diabaikan
type LocationUpdateRequest struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Heading float64 `json:"heading" validate:"gte=0,lt=360"`
}

func (s *LocationUpdateRequest) Bind(r *http.Request) error {
	return nil
}

// RerouteRequest model info
type RerouteRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (s *RerouteRequest) Bind(r *http.Request) error {
	return nil
}

// AcceptAlternativeRequest model info
//
//	@Description	alternative route yang dipilih driver dari hasil /api/routes/alternatives
type AcceptAlternativeRequest struct {
	Lat         float64                         `json:"lat"`
	Lon         float64                         `json:"lon"`
	Alternative *datastructure.AlternativeRoute `json:"alternative" validate:"required"`
}

func (s *AcceptAlternativeRequest) Bind(r *http.Request) error {
	if s.Alternative == nil {
		return errors.New("alternative is required")
	}
	return nil
}

// NavigationResponse model info
//
//	@Description	state navigasi driver beserta banner instruksi berikutnya
type NavigationResponse struct {
	State             datastructure.NavigationState `json:"state"`
	Instruction       string                        `json:"instruction"`
	RemainingTime     string                        `json:"remaining_time"`
	RemainingDistance string                        `json:"remaining_distance"`
	Upcoming          []datastructure.Instruction   `json:"upcoming"`
	Route             *geojson.FeatureCollection    `json:"route,omitempty"`
}

func NewNavigationResponse(t *navigation.Tracker, state datastructure.NavigationState, from, count int, withRoute bool) *NavigationResponse {
	resp := &NavigationResponse{
		State:             state,
		Instruction:       t.NextInstructionText(),
		RemainingTime:     t.FormatRemainingTime(),
		RemainingDistance: t.FormatRemainingDistance(),
		Upcoming:          t.UpcomingInstructions(from, count),
	}
	if withRoute {
		resp.Route = routeFeatures(t.Route())
	}
	return resp
}

// start
//
//	@Summary		mulai navigasi driver.
//	@Description	ambil rute traffic-aware dari posisi driver ke tujuan dan mulai tracking. Navigasi sebelumnya untuk driver ini diganti.
//	@Tags			navigations
//	@Param			driverID	path	string					true	"driver id"
//	@Param			body		body	StartNavigationRequest	true	"request body mulai navigasi"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/navigations/{driverID}/start [post]
//	@Success		200	{object}	NavigationResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
func (h *NavigationHandler) start(w http.ResponseWriter, r *http.Request) {
	data := &StartNavigationRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	t := h.sessions.GetOrCreate(chi.URLParam(r, "driverID"))
	state, err := t.InitializeNavigation(r.Context(),
		datastructure.NewCoordinate(data.SrcLat, data.SrcLon), datastructure.NewCoordinate(data.DstLat, data.DstLon))
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewNavigationResponse(t, state, state.CurrentInstructionIndex, defaultUpcoming, true))
}

// updateLocation
//
//	@Summary		kirim gps fix driver.
//	@Tags			navigations
//	@Param			driverID	path	string					true	"driver id"
//	@Param			body		body	LocationUpdateRequest	true	"gps fix"
//	@Router			/navigations/{driverID}/location [post]
//	@Success		200	{object}	NavigationResponse
//	@Failure		404	{object}	ErrResponse
func (h *NavigationHandler) updateLocation(w http.ResponseWriter, r *http.Request) {
	data := &LocationUpdateRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	t, ok := h.tracker(w, r)
	if !ok {
		return
	}
	state := t.UpdateNavigationState(datastructure.NewCoordinate(data.Lat, data.Lon), data.Heading)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewNavigationResponse(t, state, state.CurrentInstructionIndex, defaultUpcoming, false))
}

// reroute
//
//	@Summary		minta rute baru dari posisi driver ke tujuan yang sama. Hanya saat driver off route.
//	@Tags			navigations
//	@Router			/navigations/{driverID}/reroute [post]
//	@Success		200	{object}	NavigationResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
func (h *NavigationHandler) reroute(w http.ResponseWriter, r *http.Request) {
	data := &RerouteRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	t, ok := h.tracker(w, r)
	if !ok {
		return
	}
	state, err := t.RequestReroute(r.Context(), datastructure.NewCoordinate(data.Lat, data.Lon))
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewNavigationResponse(t, state, state.CurrentInstructionIndex, defaultUpcoming, true))
}

// acceptAlternative
//
//	@Summary		ganti rute navigasi dengan alternative route yang dipilih driver.
//	@Tags			navigations
//	@Param			body	body	AcceptAlternativeRequest	true	"alternative route"
//	@Router			/navigations/{driverID}/accept-alternative [post]
//	@Success		200	{object}	NavigationResponse
//	@Failure		400	{object}	ErrResponse
func (h *NavigationHandler) acceptAlternative(w http.ResponseWriter, r *http.Request) {
	data := &AcceptAlternativeRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	t, ok := h.tracker(w, r)
	if !ok {
		return
	}
	state, err := t.AcceptAlternative(r.Context(), datastructure.NewCoordinate(data.Lat, data.Lon), *data.Alternative)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewNavigationResponse(t, state, state.CurrentInstructionIndex, defaultUpcoming, true))
}

// state
//
//	@Summary		state navigasi driver dan daftar instruksi berikutnya.
//	@Tags			navigations
//	@Param			from	query	int	false	"index instruksi pertama"
//	@Param			count	query	int	false	"jumlah instruksi"
//	@Router			/navigations/{driverID} [get]
//	@Success		200	{object}	NavigationResponse
//	@Failure		404	{object}	ErrResponse
func (h *NavigationHandler) state(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tracker(w, r)
	if !ok {
		return
	}
	state := t.State()

	from, count := state.CurrentInstructionIndex, defaultUpcoming
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(errors.New("from must be an integer")))
			return
		}
		from = n
	}
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(errors.New("count must be an integer")))
			return
		}
		count = n
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewNavigationResponse(t, state, from, count, r.URL.Query().Get("route") == "true"))
}

func (h *NavigationHandler) stop(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Remove(chi.URLParam(r, "driverID")) {
		render.Render(w, r, ErrChi(server.WrapErrorf(nil, server.ErrNotFound, "no navigation for driver")))
		return
	}
	render.NoContent(w, r)
}

func (h *NavigationHandler) tracker(w http.ResponseWriter, r *http.Request) (*navigation.Tracker, bool) {
	t, ok := h.sessions.Get(chi.URLParam(r, "driverID"))
	if !ok {
		render.Render(w, r, ErrChi(server.WrapErrorf(nil, server.ErrNotFound, "no navigation for driver")))
		return nil, false
	}
	return t, true
}
