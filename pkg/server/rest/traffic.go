package rest

import (
	"errors"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/server"
	"lintang/deliverynav/pkg/traffic"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type TrafficService interface {
	StartMonitoring(routeID string, stops []datastructure.Coordinate, location *datastructure.Coordinate,
		onUpdate func(datastructure.TrafficSnapshot)) *traffic.Handle
	StopMonitoring(routeID string) bool
	ClearRoute(routeID string)
	IsMonitoring(routeID string) bool
	Routes() []string
	History(routeID string) []datastructure.TrafficSnapshot
	Latest(routeID string) (datastructure.TrafficSnapshot, bool)
}

type TrafficHandler struct {
	svc TrafficService
}

func TrafficRouter(r chi.Router, svc TrafficService) {
	handler := &TrafficHandler{svc}

	r.Route("/api/traffic", func(r chi.Router) {
		r.Get("/", handler.routes)
		r.Post("/{routeID}/monitor", handler.startMonitoring)
		r.Get("/{routeID}", handler.snapshot)
		r.Delete("/{routeID}", handler.stopMonitoring)
	})
}

// MonitorRequest model info
//
//	@Description	stop yang dilewati rute secara berurutan, location opsional posisi driver sekarang
type MonitorRequest struct {
	Stops    []CoordinateRequest `json:"stops" validate:"required,min=1,dive"`
	Location *CoordinateRequest  `json:"location,omitempty" validate:"omitempty"`
}

func (s *MonitorRequest) Bind(r *http.Request) error {
	if len(s.Stops) == 0 {
		return errors.New("stops is required")
	}
	if s.Location == nil && len(s.Stops) < 2 {
		return errors.New("need at least two stops or a location")
	}
	return nil
}

// TrafficResponse model info
//
//	@Description	snapshot traffic terbaru dari satu rute
type TrafficResponse struct {
	RouteID    string                          `json:"route_id"`
	Monitoring bool                            `json:"monitoring"`
	Latest     *datastructure.TrafficSnapshot  `json:"latest,omitempty"`
	Alert      string                          `json:"alert,omitempty"`
	Change     datastructure.TrafficChange     `json:"change,omitempty"`
	History    []datastructure.TrafficSnapshot `json:"history,omitempty"`
}

func (h *TrafficHandler) newTrafficResponse(routeID string, withHistory bool) *TrafficResponse {
	resp := &TrafficResponse{
		RouteID:    routeID,
		Monitoring: h.svc.IsMonitoring(routeID),
	}
	history := h.svc.History(routeID)
	if n := len(history); n > 0 {
		latest := history[n-1]
		resp.Latest = &latest
		resp.Alert, _ = traffic.AlertMessage(latest)
		if n > 1 {
			resp.Change = traffic.DetectTrafficChanges(history[n-2], latest)
		}
	}
	if withHistory {
		resp.History = history
	}
	return resp
}

// startMonitoring
//
//	@Summary		mulai polling traffic sebuah rute setiap interval.
//	@Description	kalau route id sudah dimonitor, loop lama dihentikan dan diganti dengan stop yang baru. Tick pertama langsung dijalankan.
//	@Tags			traffic
//	@Param			routeID	path	string			true	"route id"
//	@Param			body	body	MonitorRequest	true	"stop rute"
//	@Router			/traffic/{routeID}/monitor [post]
//	@Success		202	{object}	TrafficResponse
//	@Failure		400	{object}	ErrResponse
func (h *TrafficHandler) startMonitoring(w http.ResponseWriter, r *http.Request) {
	data := &MonitorRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	routeID := chi.URLParam(r, "routeID")
	var location *datastructure.Coordinate
	if data.Location != nil {
		loc := data.Location.Coordinate()
		location = &loc
	}
	h.svc.StartMonitoring(routeID, toCoordinates(data.Stops), location, nil)

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, h.newTrafficResponse(routeID, false))
}

// snapshot
//
//	@Summary		snapshot traffic terbaru, alert dan perubahan dibanding snapshot sebelumnya.
//	@Tags			traffic
//	@Param			history	query	bool	false	"sertakan history"
//	@Router			/traffic/{routeID} [get]
//	@Success		200	{object}	TrafficResponse
//	@Failure		404	{object}	ErrResponse
func (h *TrafficHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeID")
	if _, ok := h.svc.Latest(routeID); !ok && !h.svc.IsMonitoring(routeID) {
		render.Render(w, r, ErrChi(server.WrapErrorf(nil, server.ErrNotFound, "route %s is not monitored", routeID)))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.newTrafficResponse(routeID, r.URL.Query().Get("history") == "true"))
}

// stopMonitoring
//
//	@Summary		stop polling traffic. clear=true juga menghapus history.
//	@Tags			traffic
//	@Router			/traffic/{routeID} [delete]
//	@Success		204
//	@Failure		404	{object}	ErrResponse
func (h *TrafficHandler) stopMonitoring(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeID")
	if r.URL.Query().Get("clear") == "true" {
		h.svc.ClearRoute(routeID)
		render.NoContent(w, r)
		return
	}
	if !h.svc.StopMonitoring(routeID) {
		render.Render(w, r, ErrChi(server.WrapErrorf(nil, server.ErrNotFound, "route %s is not monitored", routeID)))
		return
	}
	render.NoContent(w, r)
}

func (h *TrafficHandler) routes(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string][]string{"routes": h.svc.Routes()})
}
