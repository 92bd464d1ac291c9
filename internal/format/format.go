// Package format renders sessions and timelines for the terminal.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/timeline"
	"github.com/emiliopalmerini/agentflow/internal/util"
)

// Output formats.
const (
	Table = "table"
	Plain = "plain"
	JSON  = "json"
)

// Options controls rendering.
type Options struct {
	Format string
	// Width bounds the summary column; zero means unbounded.
	Width  int
	Header bool
	Now    time.Time
}

// WriteSessions writes session views to w in the requested format.
func WriteSessions(w io.Writer, sessions []*domain.Session, opts Options) error {
	switch strings.ToLower(opts.Format) {
	case "", Table:
		return writeSessionsTable(w, sessions, opts)
	case Plain:
		return writeSessionsPlain(w, sessions, opts)
	case JSON:
		return writeJSON(w, sessions)
	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

// WriteTimeline writes display rows to w in the requested format.
func WriteTimeline(w io.Writer, rows []timeline.Row, opts Options) error {
	switch strings.ToLower(opts.Format) {
	case "", Table:
		return writeTimelineTable(w, rows, opts)
	case Plain:
		return writeTimelinePlain(w, rows, opts)
	case JSON:
		return writeJSON(w, rows)
	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSessionsPlain(w io.Writer, sessions []*domain.Session, opts Options) error {
	if opts.Header {
		if _, err := fmt.Fprintln(w, "last_event\tsession_id\tsource\tstatus\tevents\tsummary"); err != nil {
			return err
		}
	}
	for _, s := range sessions {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%s",
			time.UnixMilli(s.LastEventTime).UTC().Format(time.RFC3339),
			s.ID,
			s.Source,
			s.Status,
			s.EventCount,
			escapeNewlines(deref(s.LastEventText)),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeSessionsTable(w io.Writer, sessions []*domain.Session, opts Options) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
	})

	if opts.Header {
		tw.AppendHeader(table.Row{"Last Event", "Session ID", "Source", "Status", "Events", "Summary"})
	}

	for _, s := range sessions {
		tw.AppendRow(table.Row{
			util.FormatAgo(opts.Now, s.LastEventTime),
			s.ID,
			s.Source,
			s.Status,
			util.FormatNumber(s.EventCount),
			Fit(escapeNewlines(deref(s.LastEventText)), summaryWidth(opts.Width)),
		})
	}
	if len(sessions) == 0 {
		tw.AppendRow(table.Row{"-", "(no sessions)", "-", "-", 0, "-"})
	}

	_ = tw.Render()
	return nil
}

func writeTimelinePlain(w io.Writer, rows []timeline.Row, opts Options) error {
	if opts.Header {
		if _, err := fmt.Fprintln(w, "time\tkind\ttype\tduration\tsummary"); err != nil {
			return err
		}
	}
	for _, r := range rows {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
			time.UnixMilli(r.Timestamp()).UTC().Format(time.RFC3339),
			r.Kind,
			r.Event.Type,
			duration(r),
			escapeNewlines(rowSummary(r)),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeTimelineTable(w io.Writer, rows []timeline.Row, opts Options) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
	})

	if opts.Header {
		tw.AppendHeader(table.Row{"Time", "Kind", "Type", "Duration", "Summary"})
	}
	for _, r := range rows {
		tw.AppendRow(table.Row{
			util.FormatMillis(r.Timestamp()),
			r.Kind,
			r.Event.Type,
			duration(r),
			Fit(escapeNewlines(rowSummary(r)), summaryWidth(opts.Width)),
		})
	}
	if len(rows) == 0 {
		tw.AppendRow(table.Row{"-", "-", "(no events)", "-", "-"})
	}

	_ = tw.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

// rowSummary picks the text shown for a row: the tool name for tool rows,
// otherwise the event's text or error.
func rowSummary(r timeline.Row) string {
	ev := r.Event
	switch {
	case ev.ToolName != nil:
		return *ev.ToolName
	case ev.Text != nil:
		return *ev.Text
	case ev.Error != nil:
		return *ev.Error
	}
	return ""
}

func duration(r timeline.Row) string {
	if r.Kind != timeline.KindTool || r.End == nil {
		return ""
	}
	d := time.Duration(r.End.Timestamp-r.Event.Timestamp) * time.Millisecond
	if d < 0 {
		d = 0
	}
	return d.String()
}

// summaryWidth leaves room for the fixed columns of a terminal-wide table.
func summaryWidth(width int) int {
	if width <= 0 {
		return 0
	}
	return max(width-80, 20)
}

// Fit truncates s to at most width terminal cells, marking the cut with an
// ellipsis. A zero width leaves s unchanged.
func Fit(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
