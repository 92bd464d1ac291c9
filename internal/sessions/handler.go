package sessions

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/shared/render"
)

// Service is the session listing and operator surface of ingest.Service.
type Service interface {
	ListSessions(ctx context.Context, opts domain.ListSessionsOptions) ([]*domain.Session, error)
	Archive(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// List serves GET /api/sessions?limit=&status=&source=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		render.Error(w, err)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), opts)
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Archive(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, session)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		render.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListOptions(r *http.Request) (domain.ListSessionsOptions, error) {
	q := r.URL.Query()
	var opts domain.ListSessionsOptions

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return opts, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidPayload)
		}
		opts.Limit = limit
	}
	if v := q.Get("status"); v != "" {
		opts.Status = domain.Status(v)
		if !opts.Status.Valid() {
			return opts, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidPayload, v)
		}
	}
	if v := q.Get("source"); v != "" {
		opts.Source = domain.Source(v)
		if !opts.Source.Valid() {
			return opts, fmt.Errorf("%w: unknown source %q", domain.ErrInvalidPayload, v)
		}
	}
	return opts, nil
}
