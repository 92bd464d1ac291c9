package aggregate

import (
	"time"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// StaleTimeout is how long an active session may go without events before
// reads report it as completed.
const StaleTimeout = 7 * 24 * time.Hour

// NextStatus returns the stored status after ev arrives for a session whose
// stored status is current. Archived is only entered by operator action and
// never left through events.
func NextStatus(current domain.Status, ev domain.Event) domain.Status {
	switch {
	case current == domain.StatusArchived:
		return domain.StatusArchived
	case ev.Type == domain.TypeSessionEnd:
		return domain.StatusCompleted
	case ev.Category == domain.CategoryError:
		return domain.StatusError
	case current == domain.StatusCompleted:
		return domain.StatusActive
	case current == "":
		return domain.StatusActive
	}
	return current
}

// EffectiveStatus is the status a reader sees at now. Only a stored active
// status is subject to staleness.
func EffectiveStatus(s domain.Session, now time.Time) domain.Status {
	if s.Status == domain.StatusActive && now.UnixMilli()-s.LastEventTime > StaleTimeout.Milliseconds() {
		return domain.StatusCompleted
	}
	return s.Status
}

// View returns a copy of s carrying its effective status. The argument is
// not modified, so callers can keep persisting the stored value.
func View(s domain.Session, now time.Time) domain.Session {
	s.Status = EffectiveStatus(s, now)
	return s
}
