package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emiliopalmerini/agentflow/internal/client"
	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/infrastructure/config"
	"github.com/emiliopalmerini/agentflow/internal/ingest"
)

// sink is where hook and ingest deliver payloads: the local database or a
// running server.
type sink interface {
	Ingest(ctx context.Context, p domain.Payload) (*ingest.Result, error)
	IngestBatch(ctx context.Context, payloads []domain.Payload) ([]ingest.BatchResult, error)
}

type localSink struct {
	svc *ingest.Service
}

func (s localSink) Ingest(ctx context.Context, p domain.Payload) (*ingest.Result, error) {
	return s.svc.Ingest(ctx, p)
}

func (s localSink) IngestBatch(ctx context.Context, payloads []domain.Payload) ([]ingest.BatchResult, error) {
	return s.svc.IngestBatch(ctx, payloads), nil
}

// openSink forwards to serverURL when set, otherwise writes to the configured
// database. The returned close func is never nil.
func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger, serverURL string) (sink, func(), error) {
	if serverURL != "" {
		logger.Debug("forwarding to server", "url", serverURL)
		return client.New(serverURL, cfg.AuthToken), func() {}, nil
	}

	app, err := NewAppContext(ctx, cfg, logger, appOptions{Migrate: true})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}
	return localSink{svc: app.Service}, closeFn, nil
}

func serverURLOrConfig(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.ServerURL
}

func batchErrors(results []ingest.BatchResult) (accepted, rejected int) {
	for _, r := range results {
		if r.Error != "" {
			rejected++
			continue
		}
		accepted++
	}
	return accepted, rejected
}

func wrapSinkErr(err error) error {
	return fmt.Errorf("failed to deliver payload: %w", err)
}
