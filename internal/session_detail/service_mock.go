package session_detail

import (
	"context"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/ports"
	"github.com/emiliopalmerini/agentflow/internal/timeline"
)

// MockService is a mock implementation of Service for testing.
type MockService struct {
	SessionFunc  func(ctx context.Context, id string) (*domain.Session, error)
	EventsFunc   func(ctx context.Context, sessionID string) ([]*domain.Event, error)
	TimelineFunc func(ctx context.Context, sessionID string) ([]timeline.Row, error)
}

func (m *MockService) Session(ctx context.Context, id string) (*domain.Session, error) {
	if m.SessionFunc != nil {
		return m.SessionFunc(ctx, id)
	}
	return nil, ports.ErrSessionNotFound
}

func (m *MockService) Events(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	if m.EventsFunc != nil {
		return m.EventsFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockService) Timeline(ctx context.Context, sessionID string) ([]timeline.Row, error) {
	if m.TimelineFunc != nil {
		return m.TimelineFunc(ctx, sessionID)
	}
	return nil, nil
}
