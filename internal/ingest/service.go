// Package ingest is the ingestion boundary: it validates producer payloads,
// normalizes them, folds them into session state inside one store
// transaction and notifies subscribers once the write has committed.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/emiliopalmerini/agentflow/internal/aggregate"
	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/normalize"
	"github.com/emiliopalmerini/agentflow/internal/ports"
	"github.com/emiliopalmerini/agentflow/internal/timeline"
)

// DefaultListLimit caps session listings when the caller gives no limit.
const DefaultListLimit = 50

// Result is what a successful ingest produced.
type Result struct {
	Event   *domain.Event   `json:"event"`
	Session *domain.Session `json:"session"`
}

// BatchResult is the outcome of one payload of a batch.
type BatchResult struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type Service struct {
	store       ports.Store
	normalizer  *normalize.Normalizer
	transcripts ports.TranscriptReader
	broadcaster ports.Broadcaster
	metrics     ports.MetricsRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

func WithTranscriptReader(r ports.TranscriptReader) Option {
	return func(s *Service) { s.transcripts = r }
}

func WithBroadcaster(b ports.Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

func WithMetrics(m ports.MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the clock used for staleness on reads.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store ports.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		normalizer: normalize.New(),
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest normalizes one payload and folds it into its session. Broadcasts
// and metrics happen only after the store transaction commits.
func (s *Service) Ingest(ctx context.Context, p domain.Payload) (*Result, error) {
	if p.Event == nil {
		return nil, fmt.Errorf("%w: event must be a JSON object", domain.ErrInvalidPayload)
	}
	if p.SessionID == "" {
		p.SessionID = sessionIDOf(p.Event)
	}
	if p.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", domain.ErrInvalidPayload)
	}

	p.Event = s.backfill(p)
	ev := s.normalizer.Normalize(p)

	var (
		next       domain.Session
		created    bool
		prevStatus domain.Status
	)
	err := s.store.WithTx(ctx, func(r ports.Repositories) error {
		if err := r.Events().Insert(ctx, &ev); err != nil {
			return err
		}

		prev, err := r.Sessions().GetByID(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		created = prev == nil
		if prev != nil {
			prevStatus = prev.Status
		}

		next = aggregate.Apply(prev, ev)
		next.Metadata = aggregate.MergeMetadata(next.Metadata, metadataPatch(p))
		next.UserID = aggregate.ResolveUserID(next.UserID, normalize.UserIdentity(p.User))

		count, err := r.Events().CountBySessionID(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		next.EventCount = count

		latest, err := r.Events().Latest(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		if latest != nil {
			next = aggregate.WithLatest(next, *latest)
		}

		return r.Sessions().Upsert(ctx, &next)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest event: %w", err)
	}

	view := aggregate.View(next, s.now())

	s.logger.Debug("event ingested",
		"session_id", ev.SessionID,
		"source", ev.Source,
		"type", ev.Type,
		"status", view.Status,
	)

	if s.broadcaster != nil {
		s.broadcaster.PublishEvent(&ev)
		s.broadcaster.PublishSession(&view)
	}
	if s.metrics != nil {
		s.metrics.RecordEvent(ctx, &ev)
		if created {
			s.metrics.RecordSessionCreated(ctx, next.Source)
		} else if prevStatus != next.Status {
			s.metrics.RecordStatusChange(ctx, prevStatus, next.Status)
		}
	}

	return &Result{Event: &ev, Session: &view}, nil
}

// IngestBatch ingests payloads in order. A failing payload does not stop the
// rest; its error is reported in its result.
func (s *Service) IngestBatch(ctx context.Context, payloads []domain.Payload) []BatchResult {
	results := make([]BatchResult, len(payloads))
	for i, p := range payloads {
		results[i].Index = i
		res, err := s.Ingest(ctx, p)
		if err != nil {
			s.logger.Warn("batch item rejected", "index", i, "error", err)
			results[i].Error = err.Error()
			continue
		}
		results[i].Result = res
	}
	return results
}

// backfill fills in a Claude Code Stop event's missing reply from its
// transcript. The payload's event map is never modified.
func (s *Service) backfill(p domain.Payload) map[string]any {
	raw := p.Event
	if s.transcripts == nil || domain.ParseSource(p.Source) != domain.SourceClaudeCode {
		return raw
	}
	if !normalize.IsClaudeStop(raw) || normalize.ClaudeStopText(raw) != nil {
		return raw
	}

	path := normalize.ClaudeTranscriptPath(raw)
	if path == nil {
		return raw
	}
	text := s.transcripts.LastAssistantText(*path)
	if text == nil {
		return raw
	}

	out := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}
	out["result"] = *text
	return out
}

// Session returns the effective view of one session.
func (s *Service) Session(ctx context.Context, id string) (*domain.Session, error) {
	stored, err := s.store.Sessions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ports.ErrSessionNotFound
	}
	view := aggregate.View(*stored, s.now())
	return &view, nil
}

// ListSessions returns effective session views, newest first. The status
// filter applies to the effective status, so a stale active session is
// listed under completed.
func (s *Service) ListSessions(ctx context.Context, opts domain.ListSessionsOptions) ([]*domain.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := domain.ListSessionsOptions{Source: opts.Source, Limit: limit}
	if opts.Status != "" {
		query.Limit = 0
	}

	stored, err := s.store.Sessions().List(ctx, query)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*domain.Session, 0, len(stored))
	for _, st := range stored {
		view := aggregate.View(*st, now)
		if opts.Status != "" && view.Status != opts.Status {
			continue
		}
		out = append(out, &view)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Events returns a session's events ordered by timestamp, ties in arrival
// order.
func (s *Service) Events(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	events, err := s.sessionEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return events, nil
}

// Timeline returns a session's display rows, newest first.
func (s *Service) Timeline(ctx context.Context, sessionID string) ([]timeline.Row, error) {
	events, err := s.sessionEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	flat := make([]domain.Event, len(events))
	for i, ev := range events {
		flat[i] = *ev
	}
	return timeline.Group(flat), nil
}

func (s *Service) sessionEvents(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	stored, err := s.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ports.ErrSessionNotFound
	}
	return s.store.Events().ListBySessionID(ctx, sessionID)
}

// Archive marks a session archived. Later events keep it archived.
func (s *Service) Archive(ctx context.Context, id string) (*domain.Session, error) {
	var (
		archived   *domain.Session
		prevStatus domain.Status
	)
	err := s.store.WithTx(ctx, func(r ports.Repositories) error {
		prev, err := r.Sessions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if prev == nil {
			return ports.ErrSessionNotFound
		}
		prevStatus = prev.Status
		if err := r.Sessions().SetStatus(ctx, id, domain.StatusArchived); err != nil {
			return err
		}
		prev.Status = domain.StatusArchived
		archived = prev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session archived", "session_id", id)
	if s.broadcaster != nil {
		s.broadcaster.PublishSession(archived)
	}
	if s.metrics != nil && prevStatus != domain.StatusArchived {
		s.metrics.RecordStatusChange(ctx, prevStatus, domain.StatusArchived)
	}
	return archived, nil
}

// Delete removes a session and all of its events.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.WithTx(ctx, func(r ports.Repositories) error {
		return r.Sessions().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("session deleted", "session_id", id)
	return nil
}

func metadataPatch(p domain.Payload) domain.Meta {
	patch := domain.Meta{}
	if p.User != nil {
		patch["user"] = p.User
	}
	if p.Git != nil {
		patch["git"] = p.Git
	}
	return patch
}

func sessionIDOf(raw map[string]any) string {
	for _, k := range []string{"session_id", "sessionId", "sessionID"} {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
