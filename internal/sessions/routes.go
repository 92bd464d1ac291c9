package sessions

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/api/sessions", h.List)
	r.Post("/api/sessions/{sessionID}/archive", h.Archive)
	r.Delete("/api/sessions/{sessionID}", h.Delete)
}
