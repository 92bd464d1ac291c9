package domain

import "errors"

// ErrInvalidPayload is returned for payloads without a session id or event
// object.
var ErrInvalidPayload = errors.New("invalid payload")

// Payload is what producers send to the ingestion boundary. Event, User and
// Git carry no fixed schema; field extraction is the normalizer's job.
type Payload struct {
	Source    string         `json:"source"`
	SessionID string         `json:"sessionId"`
	Event     map[string]any `json:"event"`
	User      map[string]any `json:"user,omitempty"`
	Git       map[string]any `json:"git,omitempty"`
}
