package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keurgui/access-gateway-go/internal/service"
)

// QRHandler serves the public surface: the share page lookup and gate-side
// QR validation. Neither requires a resident session.
type QRHandler struct {
	access *service.AccessService
}

func NewQRHandler(access *service.AccessService) *QRHandler {
	return &QRHandler{access: access}
}

// GET /qr/{id}
func (h *QRHandler) Share(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.access.Share(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":         entry.GuestName,
		"qr_code_data": entry.QRPayload,
		"created_at":   entry.CreatedAt.Format(time.RFC3339),
		"expires_at":   entry.ExpiresAt.Format(time.RFC3339),
	})
}

// GET /v1/validate?qr_data=...
func (h *QRHandler) Validate(w http.ResponseWriter, r *http.Request) {
	result, err := h.access.ValidateQR(r.Context(), r.URL.Query().Get("qr_data"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
