package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/shared/render"
)

// MaxBodyBytes bounds ingestion request bodies.
const MaxBodyBytes = 10 << 20

// Ingester is the part of Service the HTTP handler needs.
type Ingester interface {
	Ingest(ctx context.Context, p domain.Payload) (*Result, error)
	IngestBatch(ctx context.Context, payloads []domain.Payload) []BatchResult
}

type Handler struct {
	ingester Ingester
}

func NewHandler(ingester Ingester) *Handler {
	return &Handler{ingester: ingester}
}

// Create accepts one payload and answers 202 with the stored event and the
// session it produced.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var p domain.Payload
	if err := decode(w, r, &p); err != nil {
		render.Error(w, err)
		return
	}

	res, err := h.ingester.Ingest(r.Context(), p)
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusAccepted, res)
}

// CreateBatch accepts a JSON array of payloads. Items fail independently.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var payloads []domain.Payload
	if err := decode(w, r, &payloads); err != nil {
		render.Error(w, err)
		return
	}

	results := h.ingester.IngestBatch(r.Context(), payloads)
	render.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
