package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/identity"
	"github.com/emiliopalmerini/agentflow/internal/ingest"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Record one agent hook event read from stdin",
	Long: `Read one hook event as JSON from stdin and record it.

The event is wrapped with the current user and git context of the event's
working directory. With --server (or AGENTFLOW_SERVER_URL) it is posted to a
running server, otherwise it is written to the local database.

Failures are reported on stderr but exit 0 so a broken tracker never blocks
the agent. Use --strict to exit non-zero instead.

Example hook configuration for Claude Code:
  "command": "agentflow hook"

Codex and Open Code producers pass --source:
  agentflow hook --source codex`,
	Args: cobra.NoArgs,
	RunE: runHook,
}

var (
	hookStrict bool
	hookServer string
	hookSource string
)

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.Flags().BoolVar(&hookStrict, "strict", false, "Exit non-zero when the event cannot be recorded")
	hookCmd.Flags().StringVar(&hookServer, "server", "", "Server URL to post to (overrides AGENTFLOW_SERVER_URL)")
	hookCmd.Flags().StringVar(&hookSource, "source", string(domain.SourceClaudeCode), "Producer of the event: claude-code, codex or opencode")
}

func runHook(cmd *cobra.Command, args []string) error {
	err := recordHook(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr())
	if err == nil {
		return nil
	}
	if hookStrict {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "agentflow hook: %v\n", err)
	return nil
}

func recordHook(ctx context.Context, in io.Reader, stderr io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, stderr)

	s, closeSink, err := openSink(ctx, cfg, logger, serverURLOrConfig(hookServer, cfg))
	if err != nil {
		return err
	}
	defer closeSink()

	collector := identity.NewCollector(identity.WithGitHubUser(cfg.GitHubUser))
	res, err := deliverHook(ctx, in, s, collector, hookSource)
	if err != nil {
		return err
	}
	logger.Debug("hook recorded",
		"session_id", res.Session.ID,
		"type", res.Event.Type,
		"status", res.Session.Status,
	)
	return nil
}

// deliverHook reads one JSON event from in and delivers it with user and git
// context taken from the event's working directory. Claude Code events must
// carry a session_id; other producers are forwarded as they are.
func deliverHook(ctx context.Context, in io.Reader, s sink, collector *identity.Collector, source string) (*ingest.Result, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read hook input: %w", err)
	}

	var p domain.Payload
	if domain.ParseSource(source) == domain.SourceClaudeCode {
		ev, err := domain.ParseHookEvent(data)
		if err != nil {
			return nil, err
		}
		dir := ev.Cwd
		if dir == "" {
			dir = workingDir(ev.Raw)
		}
		p = ev.Payload(collector.User(ctx, dir), collector.Git(ctx, dir))
	} else {
		var event map[string]any
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse hook input: %w", err)
		}
		if event == nil {
			return nil, fmt.Errorf("hook input must be a JSON object")
		}
		dir := workingDir(event)
		p = domain.Payload{
			Source: source,
			Event:  event,
			User:   collector.User(ctx, dir),
			Git:    collector.Git(ctx, dir),
		}
	}

	res, err := s.Ingest(ctx, p)
	if err != nil {
		return nil, wrapSinkErr(err)
	}
	return res, nil
}

// workingDir is the event's cwd, or the process directory when absent.
func workingDir(event map[string]any) string {
	for _, k := range []string{"cwd", "directory"} {
		if dir, ok := event[k].(string); ok && dir != "" {
			return dir
		}
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return dir
}
