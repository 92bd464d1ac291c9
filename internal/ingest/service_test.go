package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/normalize"
	"github.com/emiliopalmerini/agentflow/internal/ports"
	"github.com/emiliopalmerini/agentflow/internal/timeline"
)

// 2026-03-01T12:00:00Z in epoch milliseconds.
const baseMs int64 = 1_772_366_400_000

var testNow = time.UnixMilli(baseMs).UTC()

// memStore is an in-memory ports.Store. WithTx works on a copy and swaps it
// in on success, so a failing fn leaves no trace.
type memStore struct {
	mu       sync.Mutex
	events   []domain.Event
	sessions map[string]domain.Session

	failUpsert error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]domain.Session{}}
}

func (m *memStore) Events() ports.EventRepository { return memEvents{m} }
func (m *memStore) Sessions() ports.SessionRepository { return memSessions{m} }

func (m *memStore) WithTx(_ context.Context, fn func(ports.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memStore{
		events:     append([]domain.Event(nil), m.events...),
		sessions:   make(map[string]domain.Session, len(m.sessions)),
		failUpsert: m.failUpsert,
	}
	for k, v := range m.sessions {
		tx.sessions[k] = v
	}
	if err := fn(txRepos{tx}); err != nil {
		return err
	}
	m.events = tx.events
	m.sessions = tx.sessions
	return nil
}

type txRepos struct{ s *memStore }

func (r txRepos) Events() ports.EventRepository { return memEvents{r.s} }
func (r txRepos) Sessions() ports.SessionRepository { return memSessions{r.s} }

type memEvents struct{ s *memStore }

func (r memEvents) Insert(_ context.Context, ev *domain.Event) error {
	r.s.events = append(r.s.events, *ev)
	return nil
}

func (r memEvents) ListBySessionID(_ context.Context, id string) ([]*domain.Event, error) {
	var out []*domain.Event
	for i := range r.s.events {
		if r.s.events[i].SessionID == id {
			ev := r.s.events[i]
			out = append(out, &ev)
		}
	}
	return out, nil
}

func (r memEvents) CountBySessionID(ctx context.Context, id string) (int64, error) {
	events, _ := r.ListBySessionID(ctx, id)
	return int64(len(events)), nil
}

func (r memEvents) Latest(ctx context.Context, id string) (*domain.Event, error) {
	events, _ := r.ListBySessionID(ctx, id)
	var latest *domain.Event
	for _, ev := range events {
		if latest == nil || ev.Timestamp >= latest.Timestamp {
			latest = ev
		}
	}
	return latest, nil
}

type memSessions struct{ s *memStore }

func (r memSessions) GetByID(_ context.Context, id string) (*domain.Session, error) {
	s, ok := r.s.sessions[id]
	if !ok {
		return nil, nil
	}
	s.Metadata = s.Metadata.Clone()
	return &s, nil
}

func (r memSessions) Upsert(_ context.Context, s *domain.Session) error {
	if r.s.failUpsert != nil {
		return r.s.failUpsert
	}
	r.s.sessions[s.ID] = *s
	return nil
}

func (r memSessions) List(_ context.Context, opts domain.ListSessionsOptions) ([]*domain.Session, error) {
	var out []*domain.Session
	for _, s := range r.s.sessions {
		if opts.Source != "" && s.Source != opts.Source {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastEventTime > out[j].LastEventTime })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (r memSessions) SetStatus(_ context.Context, id string, status domain.Status) error {
	s, ok := r.s.sessions[id]
	if !ok {
		return ports.ErrSessionNotFound
	}
	s.Status = status
	r.s.sessions[id] = s
	return nil
}

func (r memSessions) Delete(_ context.Context, id string) error {
	if _, ok := r.s.sessions[id]; !ok {
		return ports.ErrSessionNotFound
	}
	delete(r.s.sessions, id)
	kept := r.s.events[:0]
	for _, ev := range r.s.events {
		if ev.SessionID != id {
			kept = append(kept, ev)
		}
	}
	r.s.events = kept
	return nil
}

type fakeBroadcaster struct {
	events   []*domain.Event
	sessions []*domain.Session
}

func (b *fakeBroadcaster) PublishEvent(ev *domain.Event) { b.events = append(b.events, ev) }
func (b *fakeBroadcaster) PublishSession(s *domain.Session) { b.sessions = append(b.sessions, s) }

type statusChange struct{ from, to domain.Status }

type fakeRecorder struct {
	events  int
	created []domain.Source
	changes []statusChange
}

func (r *fakeRecorder) RecordEvent(context.Context, *domain.Event) { r.events++ }
func (r *fakeRecorder) RecordSessionCreated(_ context.Context, s domain.Source) {
	r.created = append(r.created, s)
}
func (r *fakeRecorder) RecordStatusChange(_ context.Context, from, to domain.Status) {
	r.changes = append(r.changes, statusChange{from, to})
}
func (r *fakeRecorder) Close(context.Context) error { return nil }

type transcriptFunc func(path string) *string

func (f transcriptFunc) LastAssistantText(path string) *string { return f(path) }

type fixture struct {
	store   *memStore
	hub     *fakeBroadcaster
	metrics *fakeRecorder
	svc     *Service
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		store:   newMemStore(),
		hub:     &fakeBroadcaster{},
		metrics: &fakeRecorder{},
	}
	seq := 0
	n := normalize.New(
		normalize.WithClock(func() time.Time { return testNow }),
		normalize.WithIDGenerator(func() string {
			seq++
			return "evt-" + string(rune('a'+seq-1))
		}),
	)
	base := []Option{
		WithNormalizer(n),
		WithBroadcaster(f.hub),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return testNow }),
	}
	f.svc = NewService(f.store, append(base, opts...)...)
	return f
}

func claude(sessionID string, event map[string]any) domain.Payload {
	return domain.Payload{Source: "claude-code", SessionID: sessionID, Event: event}
}

func hook(name string, ts int64, extra map[string]any) map[string]any {
	ev := map[string]any{"hook_event_name": name, "timestamp": float64(ts)}
	for k, v := range extra {
		ev[k] = v
	}
	return ev
}

func TestIngest_CreatesSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, claude("s1", hook("SessionStart", baseMs, nil)))
	require.NoError(t, err)

	assert.Equal(t, domain.TypeSessionStart, res.Event.Type)
	assert.Equal(t, "s1", res.Session.ID)
	assert.Equal(t, domain.StatusActive, res.Session.Status)
	assert.Equal(t, int64(1), res.Session.EventCount)
	assert.Equal(t, baseMs, res.Session.StartTime)

	require.Len(t, f.hub.events, 1)
	require.Len(t, f.hub.sessions, 1)
	assert.Equal(t, 1, f.metrics.events)
	assert.Equal(t, []domain.Source{domain.SourceClaudeCode}, f.metrics.created)
	assert.Empty(t, f.metrics.changes)
}

func TestIngest_SessionIDFromEvent(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Ingest(context.Background(), domain.Payload{
		Source: "codex",
		Event:  map[string]any{"type": "turn.started", "session_id": "from-event"},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-event", res.Session.ID)
}

func TestIngest_InvalidPayload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, domain.Payload{SessionID: "s1"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = f.svc.Ingest(ctx, domain.Payload{Event: map[string]any{"type": "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	assert.Empty(t, f.store.events)
	assert.Empty(t, f.hub.events)
}

func TestIngest_StatusLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, claude("s1", hook("SessionStart", baseMs, nil)))
	require.NoError(t, err)

	res, err := f.svc.Ingest(ctx, claude("s1", hook("SessionEnd", baseMs+1, nil)))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Session.Status)

	res, err = f.svc.Ingest(ctx, claude("s1", hook("UserPromptSubmit", baseMs+2, map[string]any{"prompt": "again"})))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, res.Session.Status)

	res, err = f.svc.Ingest(ctx, claude("s1", hook("Error", baseMs+3, map[string]any{"error": "boom"})))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, res.Session.Status)
	assert.Equal(t, "boom", *res.Session.LastEventText)

	assert.Equal(t, []statusChange{
		{domain.StatusActive, domain.StatusCompleted},
		{domain.StatusCompleted, domain.StatusActive},
		{domain.StatusActive, domain.StatusError},
	}, f.metrics.changes)
}

func TestIngest_OutOfOrderKeepsLatestSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, claude("s1", hook("PreToolUse", baseMs+100, map[string]any{"tool_name": "Bash"})))
	require.NoError(t, err)

	res, err := f.svc.Ingest(ctx, claude("s1", hook("UserPromptSubmit", baseMs, map[string]any{"prompt": "earlier"})))
	require.NoError(t, err)

	s := res.Session
	assert.Equal(t, baseMs, s.StartTime)
	assert.Equal(t, baseMs+100, s.LastEventTime)
	assert.Equal(t, domain.TypeToolStart, *s.LastEventType)
	assert.Equal(t, "Bash", *s.LastEventText)
	assert.Equal(t, int64(2), s.EventCount)
}

func TestIngest_UserIDIsSetOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := claude("s1", hook("SessionStart", baseMs, nil))
	p.User = map[string]any{"githubUsername": "first"}
	p.Git = map[string]any{"branch": "main"}
	_, err := f.svc.Ingest(ctx, p)
	require.NoError(t, err)

	p = claude("s1", hook("UserPromptSubmit", baseMs+1, map[string]any{"prompt": "hi"}))
	p.User = map[string]any{"githubUsername": "second"}
	res, err := f.svc.Ingest(ctx, p)
	require.NoError(t, err)

	require.NotNil(t, res.Session.UserID)
	assert.Equal(t, "first", *res.Session.UserID)
	assert.Equal(t, map[string]any{"githubUsername": "second"}, res.Session.Metadata["user"])
	// Absent git info keeps the stored value.
	assert.Equal(t, map[string]any{"branch": "main"}, res.Session.Metadata["git"])
}

func TestIngest_ArchivedIsSticky(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, claude("s1", hook("SessionStart", baseMs, nil)))
	require.NoError(t, err)
	_, err = f.svc.Archive(ctx, "s1")
	require.NoError(t, err)

	res, err := f.svc.Ingest(ctx, claude("s1", hook("UserPromptSubmit", baseMs+1, map[string]any{"prompt": "hi"})))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, res.Session.Status)
	assert.Equal(t, int64(2), res.Session.EventCount)
}

func TestIngest_StopBackfillsFromTranscript(t *testing.T) {
	var gotPath string
	reader := transcriptFunc(func(path string) *string {
		gotPath = path
		text := "final answer"
		return &text
	})
	f := newFixture(WithTranscriptReader(reader))

	raw := hook("Stop", baseMs, map[string]any{"transcript_path": "/tmp/t.jsonl"})
	res, err := f.svc.Ingest(context.Background(), claude("s1", raw))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/t.jsonl", gotPath)
	require.NotNil(t, res.Event.Text)
	assert.Equal(t, "final answer", *res.Event.Text)
	assert.NotContains(t, raw, "result")
}

func TestIngest_StopWithInlineTextSkipsTranscript(t *testing.T) {
	reader := transcriptFunc(func(string) *string {
		t.Fatal("transcript should not be read")
		return nil
	})
	f := newFixture(WithTranscriptReader(reader))

	raw := hook("Stop", baseMs, map[string]any{"transcript_path": "/tmp/t.jsonl", "result": "inline"})
	res, err := f.svc.Ingest(context.Background(), claude("s1", raw))
	require.NoError(t, err)
	assert.Equal(t, "inline", *res.Event.Text)
}

func TestIngest_StopWithUnreadableTranscript(t *testing.T) {
	reader := transcriptFunc(func(string) *string { return nil })
	f := newFixture(WithTranscriptReader(reader))

	res, err := f.svc.Ingest(context.Background(), claude("s1", hook("Stop", baseMs, map[string]any{"transcript_path": "/missing"})))
	require.NoError(t, err)
	assert.Nil(t, res.Event.Text)
	assert.Equal(t, domain.TypeMessageAssistant, res.Event.Type)
}

func TestIngest_StoreFailureSkipsNotifications(t *testing.T) {
	f := newFixture()
	f.store.failUpsert = errors.New("disk full")

	_, err := f.svc.Ingest(context.Background(), claude("s1", hook("SessionStart", baseMs, nil)))
	require.Error(t, err)

	assert.Empty(t, f.store.events)
	assert.Empty(t, f.hub.events)
	assert.Empty(t, f.hub.sessions)
	assert.Zero(t, f.metrics.events)
}

func TestIngestBatch(t *testing.T) {
	f := newFixture()

	results := f.svc.IngestBatch(context.Background(), []domain.Payload{
		claude("s1", hook("SessionStart", baseMs, nil)),
		{Source: "claude-code"},
		claude("s1", hook("SessionEnd", baseMs+1, nil)),
	})

	require.Len(t, results, 3)
	require.NotNil(t, results[0].Result)
	assert.Empty(t, results[0].Error)
	assert.Nil(t, results[1].Result)
	assert.Contains(t, results[1].Error, "invalid payload")
	require.NotNil(t, results[2].Result)
	assert.Equal(t, domain.StatusCompleted, results[2].Result.Session.Status)
	assert.Equal(t, 2, results[2].Index)
}

func TestSession_AppliesStaleness(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	old := baseMs - (8 * 24 * time.Hour).Milliseconds()
	_, err := f.svc.Ingest(ctx, claude("s1", hook("SessionStart", old, nil)))
	require.NoError(t, err)

	s, err := f.svc.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, domain.StatusActive, f.store.sessions["s1"].Status)

	_, err = f.svc.Session(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestListSessions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	old := baseMs - (8 * 24 * time.Hour).Milliseconds()
	_, err := f.svc.Ingest(ctx, claude("stale", hook("SessionStart", old, nil)))
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, claude("live", hook("SessionStart", baseMs, nil)))
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, domain.Payload{Source: "codex", SessionID: "cx", Event: map[string]any{"type": "turn.started", "timestamp": float64(baseMs - 1)}})
	require.NoError(t, err)

	all, err := f.svc.ListSessions(ctx, domain.ListSessionsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "live", all[0].ID)

	completed, err := f.svc.ListSessions(ctx, domain.ListSessionsOptions{Status: domain.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "stale", completed[0].ID)

	active, err := f.svc.ListSessions(ctx, domain.ListSessionsOptions{Status: domain.StatusActive, Limit: 1})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].ID)

	codex, err := f.svc.ListSessions(ctx, domain.ListSessionsOptions{Source: domain.SourceCodex})
	require.NoError(t, err)
	require.Len(t, codex, 1)
	assert.Equal(t, "cx", codex[0].ID)
}

func TestEventsAndTimeline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, claude("s1", hook("PostToolUse", baseMs+20, map[string]any{"tool_name": "Bash", "tool_response": "ok"})))
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, claude("s1", hook("PreToolUse", baseMs+10, map[string]any{"tool_name": "Bash"})))
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, claude("s1", hook("UserPromptSubmit", baseMs, map[string]any{"prompt": "run it"})))
	require.NoError(t, err)

	events, err := f.svc.Events(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.TypeMessageUser, events[0].Type)
	assert.Equal(t, domain.TypeToolStart, events[1].Type)
	assert.Equal(t, domain.TypeToolEnd, events[2].Type)

	rows, err := f.svc.Timeline(ctx, "s1")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, timeline.KindEvent, rows[len(rows)-1].Kind)
	assert.Equal(t, domain.TypeMessageUser, rows[len(rows)-1].Event.Type)

	_, err = f.svc.Events(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	_, err = f.svc.Timeline(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestArchive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, claude("s1", hook("SessionStart", baseMs, nil)))
	require.NoError(t, err)

	s, err := f.svc.Archive(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, s.Status)
	assert.Equal(t, domain.StatusArchived, f.store.sessions["s1"].Status)
	assert.Contains(t, f.metrics.changes, statusChange{domain.StatusActive, domain.StatusArchived})
	assert.Equal(t, "s1", f.hub.sessions[len(f.hub.sessions)-1].ID)

	_, err = f.svc.Archive(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, claude("s1", hook("SessionStart", baseMs, nil)))
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, claude("s2", hook("SessionStart", baseMs, nil)))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "s1"))

	_, err = f.svc.Session(ctx, "s1")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	require.Len(t, f.store.events, 1)
	assert.Equal(t, "s2", f.store.events[0].SessionID)

	assert.ErrorIs(t, f.svc.Delete(ctx, "s1"), ports.ErrSessionNotFound)
}
