package otel

import (
	"context"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// NoOpRecorder is a metrics recorder that does nothing.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a new no-op recorder for graceful degradation.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (*NoOpRecorder) RecordEvent(context.Context, *domain.Event) {}
func (*NoOpRecorder) RecordSessionCreated(context.Context, domain.Source) {}
func (*NoOpRecorder) RecordStatusChange(context.Context, domain.Status, domain.Status) {}

func (*NoOpRecorder) Close(context.Context) error {
	return nil
}
