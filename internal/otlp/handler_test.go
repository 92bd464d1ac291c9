package otlp

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/ingest"
)

func setupRouter(ing Ingester) *chi.Mux {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(ing, nil))
	return r
}

func TestExportLogs_Protobuf(t *testing.T) {
	var got []domain.Payload
	mock := &ingest.MockIngester{
		IngestBatchFunc: func(_ context.Context, payloads []domain.Payload) []ingest.BatchResult {
			got = payloads
			return make([]ingest.BatchResult, len(payloads))
		},
	}

	body, err := proto.Marshal(request(nil,
		record(eventUserPrompt, kv("session.id", "s1")),
		record("claude_code.api_request", kv("session.id", "s1")),
	))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentTypeProtobuf)
	w := httptest.NewRecorder()
	setupRouter(mock).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeProtobuf, w.Header().Get("Content-Type"))
	require.Len(t, got, 1)

	var resp collectorlogs.ExportLogsServiceResponse
	require.NoError(t, proto.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.GetPartialSuccess().GetRejectedLogRecords())
}

func TestExportLogs_JSON(t *testing.T) {
	mock := &ingest.MockIngester{
		IngestBatchFunc: func(_ context.Context, payloads []domain.Payload) []ingest.BatchResult {
			return []ingest.BatchResult{{Index: 0, Error: "invalid payload"}}
		},
	}

	body, err := protojson.Marshal(request(nil, record(eventUserPrompt, kv("session.id", "s1"))))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	setupRouter(mock).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeJSON, w.Header().Get("Content-Type"))

	var resp collectorlogs.ExportLogsServiceResponse
	require.NoError(t, protojson.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.GetPartialSuccess().GetRejectedLogRecords())
	assert.Equal(t, "invalid payload", resp.GetPartialSuccess().GetErrorMessage())
}

func TestExportLogs_FullSuccessHasNoPartial(t *testing.T) {
	mock := &ingest.MockIngester{
		IngestBatchFunc: func(_ context.Context, payloads []domain.Payload) []ingest.BatchResult {
			return make([]ingest.BatchResult, len(payloads))
		},
	}

	body, err := proto.Marshal(request(nil, record(eventUserPrompt, kv("session.id", "s1"))))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentTypeProtobuf)
	w := httptest.NewRecorder()
	setupRouter(mock).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp collectorlogs.ExportLogsServiceResponse
	require.NoError(t, proto.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.GetPartialSuccess())
}

func TestExportLogs_BadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", contentTypeJSON)
	w := httptest.NewRecorder()
	setupRouter(&ingest.MockIngester{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
