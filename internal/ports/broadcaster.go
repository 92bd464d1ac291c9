package ports

import "github.com/emiliopalmerini/agentflow/internal/domain"

// Broadcaster notifies live subscribers after an ingest has committed.
type Broadcaster interface {
	// PublishEvent reaches subscribers of the event's session.
	PublishEvent(event *domain.Event)
	// PublishSession reaches every global subscriber.
	PublishSession(session *domain.Session)
}
