package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/format"
	"github.com/emiliopalmerini/agentflow/internal/ingest"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and manage sessions",
	Long: `List recorded sessions, newest activity first.

The status shown is the effective status: an active session with no events
for a week is listed as completed.

Examples:
  agentflow sessions                        # Last 20 sessions
  agentflow sessions --status active        # Sessions still running
  agentflow sessions --source codex -n 5    # Last 5 Codex sessions
  agentflow sessions --format json          # Machine readable`,
	Args: cobra.NoArgs,
	RunE: runSessionsList,
}

var sessionsArchiveCmd = &cobra.Command{
	Use:   "archive <session-id>",
	Short: "Archive a session",
	Long:  `Archive a session. Later events keep it archived.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsArchive,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its events",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var (
	sessionsFormat   string
	sessionsLimit    int
	sessionsStatus   string
	sessionsSource   string
	sessionsNoHeader bool
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsArchiveCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsCmd.Flags().StringVar(&sessionsFormat, "format", "", "Output format: table, plain or json (default table on a terminal)")
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Number of sessions to show")
	sessionsCmd.Flags().StringVar(&sessionsStatus, "status", "", "Filter by status: active, completed, error or archived")
	sessionsCmd.Flags().StringVar(&sessionsSource, "source", "", "Filter by source: claude-code, codex or opencode")
	sessionsCmd.Flags().BoolVar(&sessionsNoHeader, "no-header", false, "Omit the header row")
}

// withApp runs fn against a migrated local database.
func withApp(ctx context.Context, stderr io.Writer, fn func(*AppContext) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, stderr)

	app, err := NewAppContext(ctx, cfg, logger, appOptions{Ping: true, Migrate: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()
	return fn(app)
}

func sessionListOptions(limit int, status, source string) (domain.ListSessionsOptions, error) {
	opts := domain.ListSessionsOptions{Limit: limit}
	if limit < 0 {
		return opts, fmt.Errorf("--limit must not be negative")
	}
	if status != "" {
		opts.Status = domain.Status(status)
		if !opts.Status.Valid() {
			return opts, fmt.Errorf("unknown status %q", status)
		}
	}
	if source != "" {
		opts.Source = domain.Source(source)
		if !opts.Source.Valid() {
			return opts, fmt.Errorf("unknown source %q", source)
		}
	}
	return opts, nil
}

func outputOptions(w io.Writer, formatFlag string, noHeader bool) format.Options {
	f := formatFlag
	if f == "" {
		f = format.DefaultFormat(w)
	}
	return format.Options{
		Format: f,
		Width:  format.Width(w),
		Header: !noHeader,
		Now:    time.Now(),
	}
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	opts, err := sessionListOptions(sessionsLimit, sessionsStatus, sessionsSource)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *AppContext) error {
		return listSessions(cmd.Context(), cmd.OutOrStdout(), app.Service, opts,
			outputOptions(cmd.OutOrStdout(), sessionsFormat, sessionsNoHeader))
	})
}

func listSessions(ctx context.Context, w io.Writer, svc *ingest.Service, opts domain.ListSessionsOptions, out format.Options) error {
	sessions, err := svc.ListSessions(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	return format.WriteSessions(w, sessions, out)
}

func runSessionsArchive(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *AppContext) error {
		s, err := app.Service.Archive(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to archive session %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived session %s\n", s.ID)
		return nil
	})
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *AppContext) error {
		if err := app.Service.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
		return nil
	})
}
