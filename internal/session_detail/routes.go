package session_detail

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/api/sessions/{sessionID}", h.Show)
	r.Get("/api/sessions/{sessionID}/events", h.Events)
	r.Get("/api/sessions/{sessionID}/timeline", h.Timeline)
}
