package sessions

import (
	"context"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// MockService is a mock implementation of Service for testing.
type MockService struct {
	ListSessionsFunc func(ctx context.Context, opts domain.ListSessionsOptions) ([]*domain.Session, error)
	ArchiveFunc      func(ctx context.Context, id string) (*domain.Session, error)
	DeleteFunc       func(ctx context.Context, id string) error
}

func (m *MockService) ListSessions(ctx context.Context, opts domain.ListSessionsOptions) ([]*domain.Session, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, opts)
	}
	return []*domain.Session{}, nil
}

func (m *MockService) Archive(ctx context.Context, id string) (*domain.Session, error) {
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, id)
	}
	return &domain.Session{ID: id, Status: domain.StatusArchived}, nil
}

func (m *MockService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}
