package ingest

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/api/events", h.Create)
	r.Post("/api/events/batch", h.CreateBatch)
}
