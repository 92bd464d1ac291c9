package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/emiliopalmerini/agentflow/internal/ingest"
	"github.com/emiliopalmerini/agentflow/internal/otlp"
	"github.com/emiliopalmerini/agentflow/internal/session_detail"
	"github.com/emiliopalmerini/agentflow/internal/sessions"
	sharedmw "github.com/emiliopalmerini/agentflow/internal/shared/middleware"
)

// Config holds server-specific configuration.
type Config struct {
	Addr            string
	AuthToken       string
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Service is everything the HTTP API serves from.
type Service interface {
	ingest.Ingester
	sessions.Service
	session_detail.Service
}

func NewHTTPServer(cfg Config, svc Service, ws http.HandlerFunc) *http.Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(sharedmw.BearerAuth(cfg.AuthToken))

		ingest.RegisterRoutes(r, ingest.NewHandler(svc))
		sessions.RegisterRoutes(r, sessions.NewHandler(svc))
		session_detail.RegisterRoutes(r, session_detail.NewHandler(svc))
		otlp.RegisterRoutes(r, otlp.NewHandler(svc, cfg.Logger))

		if ws != nil {
			r.Get("/ws", ws)
		}
	})

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run serves on srv until ctx is cancelled, then shuts down gracefully within
// timeout. A clean shutdown returns nil.
func Run(ctx context.Context, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, srv, ln, timeout, logger)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
