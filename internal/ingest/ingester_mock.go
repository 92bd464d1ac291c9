package ingest

import (
	"context"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// MockIngester is a mock implementation of Ingester for testing.
type MockIngester struct {
	IngestFunc      func(ctx context.Context, p domain.Payload) (*Result, error)
	IngestBatchFunc func(ctx context.Context, payloads []domain.Payload) []BatchResult
}

func (m *MockIngester) Ingest(ctx context.Context, p domain.Payload) (*Result, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, p)
	}
	return &Result{}, nil
}

func (m *MockIngester) IngestBatch(ctx context.Context, payloads []domain.Payload) []BatchResult {
	if m.IngestBatchFunc != nil {
		return m.IngestBatchFunc(ctx, payloads)
	}
	return nil
}
