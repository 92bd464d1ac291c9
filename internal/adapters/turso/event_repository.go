package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/util"
)

const eventColumns = `id, session_id, timestamp, source, category, type, role, text, tool_name, tool_input, tool_output, error, meta`

type EventRepository struct {
	q querier
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{q: db}
}

func (r *EventRepository) Insert(ctx context.Context, event *domain.Event) error {
	toolInput, err := util.NullJSON(event.ToolInput)
	if err != nil {
		return err
	}
	toolOutput, err := util.NullJSON(event.ToolOutput)
	if err != nil {
		return err
	}
	meta := event.Meta
	if meta == nil {
		meta = domain.Meta{}
	}
	metaJSON, err := util.NullJSON(meta)
	if err != nil {
		return err
	}

	var role sql.NullString
	if event.Role != nil {
		role = sql.NullString{String: string(*event.Role), Valid: true}
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.SessionID,
		event.Timestamp,
		string(event.Source),
		string(event.Category),
		event.Type,
		role,
		util.NullStringPtr(event.Text),
		util.NullStringPtr(event.ToolName),
		toolInput,
		toolOutput,
		util.NullStringPtr(event.Error),
		metaJSON.String,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListBySessionID(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE session_id = ?
		ORDER BY rowid ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (r *EventRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (r *EventRepository) Latest(ctx context.Context, sessionID string) (*domain.Event, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE session_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT 1
	`, sessionID)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*domain.Event, error) {
	var (
		ev                    domain.Event
		source, category      string
		role                  sql.NullString
		text, toolName, errS  sql.NullString
		toolInput, toolOutput sql.NullString
		meta                  string
	)

	err := s.Scan(
		&ev.ID,
		&ev.SessionID,
		&ev.Timestamp,
		&source,
		&category,
		&ev.Type,
		&role,
		&text,
		&toolName,
		&toolInput,
		&toolOutput,
		&errS,
		&meta,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	ev.Source = domain.Source(source)
	ev.Category = domain.Category(category)
	if role.Valid {
		r := domain.Role(role.String)
		ev.Role = &r
	}
	ev.Text = util.NullStringToPtr(text)
	ev.ToolName = util.NullStringToPtr(toolName)
	ev.Error = util.NullStringToPtr(errS)

	if ev.ToolInput, err = util.JSONValue(toolInput); err != nil {
		return nil, err
	}
	if ev.ToolOutput, err = util.JSONValue(toolOutput); err != nil {
		return nil, err
	}
	m, err := util.JSONObject(meta)
	if err != nil {
		return nil, err
	}
	ev.Meta = domain.Meta(m)

	return &ev, nil
}
