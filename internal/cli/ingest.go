package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/agentflow/internal/domain"
	"github.com/emiliopalmerini/agentflow/internal/tail"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [FILE|-]",
	Short: "Ingest a JSONL stream of agent events",
	Long: `Read one JSON event per line and ingest each one.

This is the path for producers that stream JSONL rather than calling hooks,
such as "codex exec --json" or an Open Code export. Malformed lines are
skipped with a warning. With no file, or "-", events are read from stdin.

Examples:
  codex exec --json "fix the tests" | agentflow ingest --source codex --session-id run-1
  agentflow ingest --source opencode --follow ~/.local/share/opencode/log.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var (
	ingestSource    string
	ingestSessionID string
	ingestFollow    bool
	ingestBatchSize int
	ingestServer    string
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestSource, "source", string(domain.SourceClaudeCode), "Producer of the stream: claude-code, codex or opencode")
	ingestCmd.Flags().StringVar(&ingestSessionID, "session-id", "", "Session id for lines that carry none")
	ingestCmd.Flags().BoolVarP(&ingestFollow, "follow", "f", false, "Keep reading as the file grows")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 100, "Events sent per batch")
	ingestCmd.Flags().StringVar(&ingestServer, "server", "", "Server URL to post to (overrides AGENTFLOW_SERVER_URL)")
}

// ingestStats counts what happened to the lines of one run.
type ingestStats struct {
	Lines    int
	Skipped  int
	Accepted int
	Rejected int
}

// lineIngester turns JSONL lines into payloads and delivers them in batches.
type lineIngester struct {
	sink      sink
	source    string
	sessionID string
	batchSize int
	logger    *slog.Logger

	batch []domain.Payload
	stats ingestStats
}

func newLineIngester(s sink, source, sessionID string, batchSize int, logger *slog.Logger) *lineIngester {
	if batchSize < 1 {
		batchSize = 1
	}
	return &lineIngester{
		sink:      s,
		source:    source,
		sessionID: sessionID,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (li *lineIngester) handle(ctx context.Context, line []byte) error {
	li.stats.Lines++

	var event map[string]any
	if err := json.Unmarshal(line, &event); err != nil || event == nil {
		li.stats.Skipped++
		li.logger.Warn("skipping malformed line", "line", li.stats.Lines)
		return nil
	}

	li.batch = append(li.batch, domain.Payload{
		Source:    li.source,
		SessionID: li.sessionID,
		Event:     event,
	})
	if len(li.batch) >= li.batchSize {
		return li.flush(ctx)
	}
	return nil
}

func (li *lineIngester) flush(ctx context.Context) error {
	if len(li.batch) == 0 {
		return nil
	}
	results, err := li.sink.IngestBatch(ctx, li.batch)
	if err != nil {
		return wrapSinkErr(err)
	}
	for _, r := range results {
		if r.Error != "" {
			li.logger.Warn("event rejected", "error", r.Error)
		}
	}
	accepted, rejected := batchErrors(results)
	li.stats.Accepted += accepted
	li.stats.Rejected += rejected
	li.batch = li.batch[:0]
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	if ingestFollow && path == "-" {
		return fmt.Errorf("--follow needs a file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	s, closeSink, err := openSink(ctx, cfg, logger, serverURLOrConfig(ingestServer, cfg))
	if err != nil {
		return err
	}
	defer closeSink()

	batchSize := ingestBatchSize
	if ingestFollow {
		// Deliver each line as it lands.
		batchSize = 1
	}
	li := newLineIngester(s, ingestSource, ingestSessionID, batchSize, logger)

	if ingestFollow {
		err = tail.NewFollower(logger).Follow(ctx, path, func(line []byte) error {
			return li.handle(ctx, line)
		})
	} else {
		err = ingestReader(ctx, cmd.InOrStdin(), path, li)
	}
	if err != nil {
		return err
	}

	st := li.stats
	fmt.Fprintf(cmd.ErrOrStderr(), "%d lines: %d accepted, %d rejected, %d malformed\n",
		st.Lines, st.Accepted, st.Rejected, st.Skipped)
	return nil
}

// ingestReader reads path, or stdin for "-", to EOF and flushes the final
// batch.
func ingestReader(ctx context.Context, stdin io.Reader, path string, li *lineIngester) error {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	err := tail.ReadLines(ctx, r, func(line []byte) error {
		return li.handle(ctx, line)
	})
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return li.flush(ctx)
}
