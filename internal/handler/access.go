package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keurgui/access-gateway-go/internal/middleware"
	"github.com/keurgui/access-gateway-go/internal/model"
	"github.com/keurgui/access-gateway-go/internal/query"
	"github.com/keurgui/access-gateway-go/internal/service"
)

type AccessHandler struct {
	access *service.AccessService
}

func NewAccessHandler(access *service.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

func (h *AccessHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/overview", h.Overview)
	r.Get("/stats", h.Stats)
	r.Get("/calendar", h.Calendar)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/renew", h.Renew)
	r.Delete("/{id}", h.Revoke)

	return r
}

// parseFilter reads the list filter from query parameters. Unknown values
// fall back to "all" rather than erroring: a stale client keeps working.
func parseFilter(r *http.Request) query.Filter {
	f := query.Filter{
		Text:   r.URL.Query().Get("q"),
		Status: model.StatusAll,
		Window: model.WindowAll,
	}

	switch model.StatusFilter(r.URL.Query().Get("status")) {
	case model.StatusActive:
		f.Status = model.StatusActive
	case model.StatusExpired:
		f.Status = model.StatusExpired
	case model.StatusToday:
		f.Status = model.StatusToday
	}

	switch model.DateWindow(r.URL.Query().Get("window")) {
	case model.WindowToday:
		f.Window = model.WindowToday
	case model.Window7Days:
		f.Window = model.Window7Days
	case model.Window30Days:
		f.Window = model.Window30Days
	}

	return f
}

// GET /v1/access
func (h *AccessHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	result, err := h.access.List(r.Context(), session.UpstreamToken, parseFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/access
func (h *AccessHandler) Create(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	var req model.CreateAccessParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	view, err := h.access.Create(r.Context(), session.UpstreamToken, session.Username, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// GET /v1/access/overview
func (h *AccessHandler) Overview(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	result, err := h.access.Overview(r.Context(), session.UpstreamToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/access/stats
func (h *AccessHandler) Stats(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	result, err := h.access.Stats(r.Context(), session.UpstreamToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/access/calendar?day=2025-03-15
func (h *AccessHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	day := time.Now()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid day, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	result, err := h.access.Calendar(r.Context(), session.UpstreamToken, day)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/access/{id}
func (h *AccessHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	id := chi.URLParam(r, "id")

	view, err := h.access.Get(r.Context(), session.UpstreamToken, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// PUT /v1/access/{id}
func (h *AccessHandler) Update(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	id := chi.URLParam(r, "id")

	var req model.UpdateAccessParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	view, err := h.access.Update(r.Context(), session.UpstreamToken, id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// POST /v1/access/{id}/renew
func (h *AccessHandler) Renew(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		DurationMinutes int `json:"duration_minutes"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
	}

	view, err := h.access.Renew(r.Context(), session.UpstreamToken, session.Username, id, req.DurationMinutes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// DELETE /v1/access/{id}
func (h *AccessHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.access.Revoke(r.Context(), session.UpstreamToken, session.Username, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
