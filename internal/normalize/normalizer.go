// Package normalize converts per-source agent telemetry into canonical
// domain.Event values.
//
// Normalization is total: every payload, however malformed, yields a
// well-formed event. Payloads that match no known shape become system events
// that keep the original object in meta.rawEvent.
package normalize

import (
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// Normalizer holds the clock and id source; it has no other state and is
// safe for concurrent use.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the wall clock used when a payload has no timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(newID func() string) Option {
	return func(n *Normalizer) { n.newID = newID }
}

// New creates a Normalizer using time.Now and random UUIDs by default.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// mapping is the source-specific part of an event.
type mapping struct {
	category   domain.Category
	typ        string
	role       *domain.Role
	text       *string
	toolName   *string
	toolInput  any
	toolOutput any
	err        *string
	meta       domain.Meta
}

func unrecognized(tag string, raw map[string]any) mapping {
	return mapping{
		category: domain.CategorySystem,
		typ:      tag,
		meta:     domain.Meta{"rawEvent": raw},
	}
}

// Normalize maps an ingestion payload to a canonical event.
func (n *Normalizer) Normalize(p domain.Payload) domain.Event {
	raw := p.Event
	if raw == nil {
		raw = map[string]any{}
	}

	source := domain.ParseSource(p.Source)

	var m mapping
	switch source {
	case domain.SourceCodex:
		m = mapCodex(raw)
	case domain.SourceOpenCode:
		m = mapOpenCode(raw)
	case domain.SourceClaudeCode:
		m = mapClaude(raw)
	}

	meta := m.meta
	if meta == nil {
		meta = domain.Meta{}
	}

	return domain.Event{
		ID:         n.newID(),
		SessionID:  p.SessionID,
		Timestamp:  timestampOf(raw, n.now),
		Source:     source,
		Category:   m.category,
		Type:       m.typ,
		Role:       m.role,
		Text:       m.text,
		ToolName:   m.toolName,
		ToolInput:  m.toolInput,
		ToolOutput: m.toolOutput,
		Error:      m.err,
		Meta:       meta,
	}
}

// UserIdentity picks the identity used for a session's userId from a
// payload's user info: github username, then email, then OS user.
func UserIdentity(user map[string]any) *string {
	if user == nil {
		return nil
	}
	return orString(
		firstString(user, "githubUsername", "github_username", "githubUser", "github"),
		firstString(user, "email", "gitEmail", "git_email"),
		firstString(user, "osUser", "os_user", "osUsername", "username"),
	)
}

// copyKeys copies the listed keys that are present in src into meta.
func copyKeys(meta domain.Meta, src map[string]any, keys ...string) domain.Meta {
	for _, k := range keys {
		if v, ok := src[k]; ok && v != nil {
			if meta == nil {
				meta = domain.Meta{}
			}
			meta[k] = v
		}
	}
	return meta
}
