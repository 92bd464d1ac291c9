package otlp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/ingest"
	"github.com/emiliopalmerini/agentflow/internal/shared/render"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeProtobuf = "application/x-protobuf"
)

// Ingester is the part of the ingest service the receiver needs.
type Ingester interface {
	IngestBatch(ctx context.Context, payloads []domain.Payload) []ingest.BatchResult
}

type Handler struct {
	ingester Ingester
	logger   *slog.Logger
}

func NewHandler(ingester Ingester, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{ingester: ingester, logger: logger}
}

// ExportLogs implements the OTLP/HTTP logs endpoint for protobuf and JSON
// encodings. Records that are skipped or fail to ingest are reported as
// rejected in the partial success field.
func (h *Handler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	asJSON := strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeJSON)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ingest.MaxBodyBytes))
	if err != nil {
		render.Error(w, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}

	var req collectorlogs.ExportLogsServiceRequest
	if asJSON {
		err = protojson.Unmarshal(data, &req)
	} else {
		err = proto.Unmarshal(data, &req)
	}
	if err != nil {
		render.Error(w, fmt.Errorf("%w: failed to parse logs: %v", domain.ErrInvalidPayload, err))
		return
	}

	payloads, skipped := Payloads(&req)
	var (
		failed  int
		lastErr string
	)
	if len(payloads) > 0 {
		for _, res := range h.ingester.IngestBatch(r.Context(), payloads) {
			if res.Error != "" {
				failed++
				lastErr = res.Error
			}
		}
	}
	h.logger.Debug("otlp logs received",
		"accepted", len(payloads)-failed,
		"skipped", skipped,
		"failed", failed,
	)

	resp := &collectorlogs.ExportLogsServiceResponse{}
	if rejected := skipped + failed; rejected > 0 {
		resp.PartialSuccess = &collectorlogs.ExportLogsPartialSuccess{
			RejectedLogRecords: int64(rejected),
			ErrorMessage:       lastErr,
		}
	}
	h.write(w, asJSON, resp)
}

// write answers in the encoding of the request.
func (h *Handler) write(w http.ResponseWriter, asJSON bool, resp *collectorlogs.ExportLogsServiceResponse) {
	contentType := contentTypeProtobuf
	var (
		body []byte
		err  error
	)
	if asJSON {
		contentType = contentTypeJSON
		body, err = protojson.Marshal(resp)
	} else {
		body, err = proto.Marshal(resp)
	}
	if err != nil {
		render.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
