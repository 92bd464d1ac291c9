package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emiliopalmerini/agentflow/internal/ports"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ports.Store on a libSQL database.
type Store struct {
	db       *sql.DB
	events   *EventRepository
	sessions *SessionRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		events:   &EventRepository{q: db},
		sessions: &SessionRepository{q: db},
	}
}

func (s *Store) Events() ports.EventRepository { return s.events }
func (s *Store) Sessions() ports.SessionRepository { return s.sessions }

// WithTx runs fn in a transaction, retrying the whole unit on Turso stream
// errors. fn must not retain the repositories it is given.
func (s *Store) WithTx(ctx context.Context, fn func(ports.Repositories) error) error {
	_, err := WithRetry(ctx, DefaultMaxRetries, func() (struct{}, error) {
		return struct{}{}, s.runTx(ctx, fn)
	})
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ports.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(txRepositories{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txRepositories struct {
	tx *sql.Tx
}

func (r txRepositories) Events() ports.EventRepository { return &EventRepository{q: r.tx} }
func (r txRepositories) Sessions() ports.SessionRepository { return &SessionRepository{q: r.tx} }
