package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/emiliopalmerini/agentflow/internal/adapters/otel"
	"github.com/emiliopalmerini/agentflow/internal/adapters/turso"
	"github.com/emiliopalmerini/agentflow/internal/infrastructure/config"
	"github.com/emiliopalmerini/agentflow/internal/ingest"
	"github.com/emiliopalmerini/agentflow/internal/migrate"
	"github.com/emiliopalmerini/agentflow/internal/ports"
	"github.com/emiliopalmerini/agentflow/internal/transcript"
)

// testDBOverride replaces the configured database in tests.
var testDBOverride *sql.DB

// AppContext holds all shared dependencies for commands that use the
// database.
type AppContext struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *sql.DB
	Store   *turso.Store
	Metrics ports.MetricsRecorder
	Service *ingest.Service

	ownsDB bool
}

// appOptions selects what NewAppContext wires up.
type appOptions struct {
	// Ping verifies the connection up front. Hooks skip it to stay fast.
	Ping        bool
	Migrate     bool
	Metrics     bool
	Broadcaster ports.Broadcaster
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to w at the configured level, or debug with
// --verbose.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewAppContext opens the database and builds the ingest service on it.
func NewAppContext(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*AppContext, error) {
	app := &AppContext{Config: cfg, Logger: logger}

	if testDBOverride != nil {
		app.DB = testDBOverride
	} else {
		db, err := turso.NewDBWithOptions(ctx, cfg.DatabaseURL, cfg.DatabaseToken, opts.Ping)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = db
		app.ownsDB = true
	}

	if opts.Migrate {
		applied, err := migrate.New(app.DB, logger).Up(ctx)
		if err != nil {
			_ = app.Close(ctx)
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			logger.Info("migrations applied", "count", applied)
		}
	}

	app.Metrics = newMetrics(ctx, cfg, logger, opts.Metrics)
	app.Store = turso.NewStore(app.DB)

	svcOpts := []ingest.Option{
		ingest.WithTranscriptReader(transcript.NewReader()),
		ingest.WithMetrics(app.Metrics),
		ingest.WithLogger(logger),
	}
	if opts.Broadcaster != nil {
		svcOpts = append(svcOpts, ingest.WithBroadcaster(opts.Broadcaster))
	}
	app.Service = ingest.NewService(app.Store, svcOpts...)

	return app, nil
}

// newMetrics returns an OTLP recorder when enabled, falling back to the
// no-op recorder if the exporter cannot be created.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger, wanted bool) ports.MetricsRecorder {
	if !wanted || !cfg.OTel.Enabled {
		return otel.NewNoOpRecorder()
	}
	rec, err := otel.NewRecorder(ctx, otel.Config{
		Endpoint: cfg.OTel.Endpoint,
		Enabled:  cfg.OTel.Enabled,
		Insecure: cfg.OTel.Insecure,
	})
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
		return otel.NewNoOpRecorder()
	}
	logger.Info("exporting metrics", "endpoint", cfg.OTel.Endpoint)
	return rec
}

// Close flushes metrics and releases the database.
func (a *AppContext) Close(ctx context.Context) error {
	var errs []error
	if a.Metrics != nil {
		errs = append(errs, a.Metrics.Close(ctx))
	}
	if a.DB != nil && a.ownsDB {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
