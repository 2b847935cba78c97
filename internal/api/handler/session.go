package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/api/middleware"
	"github.com/canemap/canemap/internal/api/models"
	"github.com/canemap/canemap/internal/api/response"
	"github.com/canemap/canemap/internal/dashboard"
	"github.com/canemap/canemap/internal/filter"
	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/prediction"
)

// MarkerIDParam is the route parameter naming a marker.
const MarkerIDParam = "markerID"

// SessionHandler serves the dashboard session endpoints.
type SessionHandler struct {
	manager *dashboard.Manager
	logger  zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(manager *dashboard.Manager, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, logger: logger}
}

// CreateSession handles POST /v1/sessions.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, r, "/v1/sessions/"+s.ID(), toSession(s.View()))
}

// GetSession handles GET /v1/sessions/{sessionID}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, toSession(s.View()))
}

// DeleteSession handles DELETE /v1/sessions/{sessionID}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), chi.URLParam(r, middleware.SessionIDParam)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

// PatchFilter handles PATCH /v1/sessions/{sessionID}/filter. Either every
// field of the patch is applied or none is.
func (h *SessionHandler) PatchFilter(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var patch models.FilterPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}
	if len(patch) == 0 {
		response.BadRequest(w, r, "no filter fields to change")
		return
	}

	fields := make(map[filter.Field]any, len(patch))
	for name, value := range patch {
		fields[filter.Field(name)] = value
	}
	h.mutate(w, r, s, func() error { return s.SetFields(fields) })
}

// SelectMonth handles PUT /v1/sessions/{sessionID}/filter/month.
func (h *SessionHandler) SelectMonth(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.MonthRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}
	h.mutate(w, r, s, func() error { return s.SelectMonth(req.Month) })
}

// FocusZone handles PUT /v1/sessions/{sessionID}/focus.
func (h *SessionHandler) FocusZone(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.FocusRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}
	h.mutate(w, r, s, func() error { return s.FocusZone(req.Zone) })
}

// ResetZoneFocus handles DELETE /v1/sessions/{sessionID}/focus.
func (h *SessionHandler) ResetZoneFocus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, s, s.ResetZoneFocus)
}

// Apply handles POST /v1/sessions/{sessionID}/apply. The fetch outlives a
// client disconnect; only the latest apply of the session is drawn.
func (h *SessionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	out, err := s.Apply(ctx)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.manager.Save(ctx, s); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result := models.ApplyResult{
		Seq:     out.Seq,
		Stale:   out.Stale(),
		Session: toSession(s.View()),
	}
	if out.Err != nil && !result.Stale {
		result.Error = prediction.UserMessage(out.Err)
	}
	response.JSON(w, r, http.StatusOK, result)
}

// GetProgress handles GET /v1/sessions/{sessionID}/progress.
func (h *SessionHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, toProgress(s.Progress()))
}

// GetMap handles GET /v1/sessions/{sessionID}/map.
func (h *SessionHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, toMapView(s.Map()))
}

// OpenPopup handles POST /v1/sessions/{sessionID}/map/markers/{markerID}/popup.
// Popups already open stay open.
func (h *SessionHandler) OpenPopup(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	id := maphost.MarkerID(chi.URLParam(r, MarkerIDParam))
	if err := s.OpenPopup(id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	for _, m := range s.Map().Markers {
		if m.ID == id {
			response.JSON(w, r, http.StatusOK, toMarker(m))
			return
		}
	}
	// Removed by a concurrent apply.
	writeError(w, r, h.logger, maphost.ErrMarkerNotFound)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*dashboard.Session, bool) {
	s, err := h.manager.Get(r.Context(), chi.URLParam(r, middleware.SessionIDParam))
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return s, true
}

// mutate runs change, persists the session and writes its view.
func (h *SessionHandler) mutate(w http.ResponseWriter, r *http.Request, s *dashboard.Session, change func() error) {
	if err := change(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.manager.Save(r.Context(), s); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toSession(s.View()))
}
