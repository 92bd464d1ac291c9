// Package timeline groups a session's events into display rows, pairing each
// tool.end with the tool.start it closes.
package timeline

import (
	"sort"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// Kind identifies a display row shape.
type Kind string

const (
	// KindEvent is a single event, including a tool.end with no start.
	KindEvent Kind = "event"
	// KindTool is a tool.start paired with its tool.end.
	KindTool Kind = "tool"
	// KindToolPending is a tool.start that has not ended yet.
	KindToolPending Kind = "tool-pending"
)

// Row is one entry of a rendered timeline. Event is the row's own event; for
// KindTool rows it is the start and End holds the matching end.
type Row struct {
	Kind  Kind          `json:"kind"`
	Event domain.Event  `json:"event"`
	End   *domain.Event `json:"end,omitempty"`
}

// Timestamp is the row's sort key: the end time for paired rows, the event
// time otherwise.
func (r Row) Timestamp() int64 {
	if r.Kind == KindTool && r.End != nil {
		return r.End.Timestamp
	}
	return r.Event.Timestamp
}

var hiddenTypes = map[string]struct{}{
	"session.updated":     {},
	"session.status":      {},
	"session.diff":        {},
	"message.updated":     {},
	domain.TypeStepStart:  {},
	domain.TypeStepFinish: {},
}

// IsHidden reports whether events of type typ are kept out of timelines.
func IsHidden(typ string) bool {
	_, ok := hiddenTypes[typ]
	return ok
}

// Group builds display rows from events in arrival order and returns them
// newest first. Pairing is by tool name only: an end closes the earliest
// still-open start with the same name, so overlapping calls to the same tool
// may pair crosswise.
func Group(events []domain.Event) []Row {
	rows := make([]Row, 0, len(events))
	var pending []domain.Event

	for _, ev := range events {
		if IsHidden(ev.Type) {
			continue
		}

		switch ev.Type {
		case domain.TypeToolStart:
			pending = append(pending, ev)

		case domain.TypeToolEnd:
			i := matchStart(pending, ev)
			if i < 0 {
				rows = append(rows, Row{Kind: KindEvent, Event: ev})
				continue
			}
			end := ev
			rows = append(rows, Row{Kind: KindTool, Event: pending[i], End: &end})
			pending = append(pending[:i], pending[i+1:]...)

		default:
			rows = append(rows, Row{Kind: KindEvent, Event: ev})
		}
	}

	for _, ev := range pending {
		rows = append(rows, Row{Kind: KindToolPending, Event: ev})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp() > rows[j].Timestamp()
	})
	return rows
}

func matchStart(pending []domain.Event, end domain.Event) int {
	for i, start := range pending {
		if sameName(start.ToolName, end.ToolName) {
			return i
		}
	}
	return -1
}

func sameName(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
