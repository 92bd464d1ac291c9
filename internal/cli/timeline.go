package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/agentflow/internal/format"
	"github.com/emiliopalmerini/agentflow/internal/ingest"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <session-id>",
	Short: "Show a session's timeline",
	Long: `Show a session's events newest first, with each tool call and its
result collapsed into one row.

Examples:
  agentflow timeline 5f3c...             # Table on a terminal
  agentflow timeline 5f3c... --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

var (
	timelineFormat   string
	timelineNoHeader bool
)

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().StringVar(&timelineFormat, "format", "", "Output format: table, plain or json (default table on a terminal)")
	timelineCmd.Flags().BoolVar(&timelineNoHeader, "no-header", false, "Omit the header row")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *AppContext) error {
		return showTimeline(cmd.Context(), cmd.OutOrStdout(), app.Service, args[0],
			outputOptions(cmd.OutOrStdout(), timelineFormat, timelineNoHeader))
	})
}

func showTimeline(ctx context.Context, w io.Writer, svc *ingest.Service, sessionID string, out format.Options) error {
	rows, err := svc.Timeline(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load timeline for %s: %w", sessionID, err)
	}
	return format.WriteTimeline(w, rows, out)
}
