package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/ports"
	"github.com/emiliopalmerini/agentflow/internal/util"
)

const sessionColumns = `id, source, start_time, last_event_time, status, last_event_type, last_event_text, event_count, metadata, user_id`

type SessionRepository struct {
	q querier
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{q: db}
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	metadata := session.Metadata
	if metadata == nil {
		metadata = domain.Meta{}
	}
	metaJSON, err := util.NullJSON(metadata)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			start_time = excluded.start_time,
			last_event_time = excluded.last_event_time,
			status = excluded.status,
			last_event_type = excluded.last_event_type,
			last_event_text = excluded.last_event_text,
			event_count = excluded.event_count,
			metadata = excluded.metadata,
			user_id = excluded.user_id
	`,
		session.ID,
		string(session.Source),
		session.StartTime,
		session.LastEventTime,
		string(session.Status),
		util.NullStringPtr(session.LastEventType),
		util.NullStringPtr(session.LastEventText),
		session.EventCount,
		metaJSON.String,
		util.NullStringPtr(session.UserID),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// List filters by source only; status filtering is done by callers on the
// effective status. A non-positive limit returns every session.
func (r *SessionRepository) List(ctx context.Context, opts domain.ListSessionsOptions) ([]*domain.Session, error) {
	limit := int64(opts.Limit)
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE (? = '' OR source = ?)
		ORDER BY last_event_time DESC, id ASC
		LIMIT ?
	`, string(opts.Source), string(opts.Source), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) SetStatus(ctx context.Context, id string, status domain.Status) error {
	res, err := r.q.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set session status: %w", err)
	}
	if n == 0 {
		return ports.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session events: %w", err)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ports.ErrSessionNotFound
	}
	return nil
}

func scanSession(s scanner) (*domain.Session, error) {
	var (
		sess                    domain.Session
		source, status          string
		lastEventType, lastText sql.NullString
		metadata                string
		userID                  sql.NullString
	)

	err := s.Scan(
		&sess.ID,
		&source,
		&sess.StartTime,
		&sess.LastEventTime,
		&status,
		&lastEventType,
		&lastText,
		&sess.EventCount,
		&metadata,
		&userID,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	sess.Source = domain.Source(source)
	sess.Status = domain.Status(status)
	sess.LastEventType = util.NullStringToPtr(lastEventType)
	sess.LastEventText = util.NullStringToPtr(lastText)
	sess.UserID = util.NullStringToPtr(userID)

	m, err := util.JSONObject(metadata)
	if err != nil {
		return nil, err
	}
	sess.Metadata = domain.Meta(m)

	return &sess, nil
}
