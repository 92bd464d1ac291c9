package session_detail

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/shared/render"
	"github.com/emiliopalmerini/agentflow/internal/timeline"
)

// Service is the single-session read surface of ingest.Service.
type Service interface {
	Session(ctx context.Context, id string) (*domain.Session, error)
	Events(ctx context.Context, sessionID string) ([]*domain.Event, error)
	Timeline(ctx context.Context, sessionID string) ([]timeline.Row, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, session)
}

// Events lists the session's events oldest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		render.Error(w, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	render.JSON(w, http.StatusOK, map[string]any{"events": events})
}

// Timeline lists display rows newest first.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Timeline(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		render.Error(w, err)
		return
	}
	if rows == nil {
		rows = []timeline.Row{}
	}
	render.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}
