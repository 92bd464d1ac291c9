package ports

import (
	"context"
	"errors"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// ErrSessionNotFound is returned by operations that require an existing
// session.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores session snapshots. Stored status is never the
// staleness-adjusted one; that is computed on read by the caller.
type SessionRepository interface {
	// GetByID returns nil, nil when the session does not exist.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Upsert(ctx context.Context, session *domain.Session) error
	// List returns sessions ordered by last event time, newest first.
	List(ctx context.Context, opts domain.ListSessionsOptions) ([]*domain.Session, error)
	SetStatus(ctx context.Context, id string, status domain.Status) error
	// Delete removes the session and its events.
	Delete(ctx context.Context, id string) error
}

// EventRepository stores canonical events. Events are append-only.
type EventRepository interface {
	Insert(ctx context.Context, event *domain.Event) error
	// ListBySessionID returns a session's events in arrival order.
	ListBySessionID(ctx context.Context, sessionID string) ([]*domain.Event, error)
	CountBySessionID(ctx context.Context, sessionID string) (int64, error)
	// Latest returns the event with the greatest timestamp, ties going to the
	// later insert, or nil when the session has no events.
	Latest(ctx context.Context, sessionID string) (*domain.Event, error)
}

// Repositories groups the repositories that share one connection or
// transaction.
type Repositories interface {
	Events() EventRepository
	Sessions() SessionRepository
}

// Store is the persistence boundary. WithTx runs fn against repositories
// bound to a single transaction, committing when fn returns nil.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn func(Repositories) error) error
}
