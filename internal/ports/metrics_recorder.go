package ports

import (
	"context"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// MetricsRecorder exports ingestion metrics to an external observability system.
type MetricsRecorder interface {
	// RecordEvent counts an ingested event and, for tool ends, the size of
	// its stored output.
	RecordEvent(ctx context.Context, event *domain.Event)
	RecordSessionCreated(ctx context.Context, source domain.Source)
	RecordStatusChange(ctx context.Context, from, to domain.Status)
	// Close shuts down the recorder and flushes any pending metrics.
	Close(ctx context.Context) error
}
