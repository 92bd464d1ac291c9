// Package aggregate folds canonical events into session snapshots.
//
// Every function here is pure: callers read the stored session, compute the
// next value and write it back inside whatever transaction the store offers.
package aggregate

import (
	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// Summarize picks the text shown as a session's last-event summary: tool
// name first, then text, then error.
func Summarize(ev domain.Event) *string {
	switch {
	case ev.ToolName != nil:
		return ev.ToolName
	case ev.Text != nil:
		return ev.Text
	case ev.Error != nil:
		return ev.Error
	}
	return nil
}

// Apply returns the session that results from ev arriving for prev. A nil
// prev starts a new session. The last-event summary follows the event with
// the greatest timestamp, with ties going to the later arrival.
func Apply(prev *domain.Session, ev domain.Event) domain.Session {
	var s domain.Session
	if prev == nil {
		s = domain.Session{
			ID:            ev.SessionID,
			Source:        ev.Source,
			StartTime:     ev.Timestamp,
			LastEventTime: ev.Timestamp,
			Status:        domain.StatusActive,
			Metadata:      domain.Meta{},
		}
	} else {
		s = *prev
		s.Metadata = prev.Metadata.Clone()
	}

	s.Status = NextStatus(s.Status, ev)
	s.EventCount++

	if ev.Timestamp < s.StartTime {
		s.StartTime = ev.Timestamp
	}
	if prev == nil || ev.Timestamp >= s.LastEventTime {
		s = WithLatest(s, ev)
	}

	return s
}

// WithLatest sets the last-event fields of s from latest, the session's
// event with the greatest timestamp.
func WithLatest(s domain.Session, latest domain.Event) domain.Session {
	s.LastEventTime = latest.Timestamp
	s.LastEventType = &latest.Type
	s.LastEventText = Summarize(latest)
	return s
}

// Derive rebuilds a session from its full event history in arrival order.
// It returns nil when there are no events.
func Derive(events []domain.Event) *domain.Session {
	var s *domain.Session
	for _, ev := range events {
		next := Apply(s, ev)
		s = &next
	}
	return s
}

// MergeMetadata shallow-merges patch over current into a new map: keys in
// patch win, every other key of current is kept. Nil patch values are
// skipped so an absent field never erases a stored one.
func MergeMetadata(current, patch domain.Meta) domain.Meta {
	out := current.Clone()
	for k, v := range patch {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// ResolveUserID keeps the first identity a session was given.
func ResolveUserID(current, candidate *string) *string {
	if current != nil {
		return current
	}
	return candidate
}
