package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/agentflow/internal/broadcast"
	"github.com/emiliopalmerini/agentflow/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and live feed",
	Long: `Start the ingestion API, the session API and the WebSocket feed.

Migrations are applied on startup. SIGINT or SIGTERM shuts the server down
gracefully.

Examples:
  agentflow serve                # Listen on AGENTFLOW_ADDR (default :8787)
  agentflow serve --addr :9000   # Listen on port 9000`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides AGENTFLOW_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	hub := broadcast.NewHub(logger)
	app, err := NewAppContext(ctx, cfg, logger, appOptions{
		Ping:        true,
		Migrate:     true,
		Metrics:     true,
		Broadcaster: hub,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	srv := server.NewHTTPServer(server.Config{
		Addr:            cfg.Addr,
		AuthToken:       cfg.AuthToken,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	}, app.Service, hub.ServeWS)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, srv, cfg.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
