package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentflow",
	Short: "Live session tracking for coding agents",
	Long: `agentflow collects telemetry from Claude Code, Codex and Open Code,
normalizes it into one event model and keeps a live view of every session.

Run "agentflow serve" for the HTTP API and WebSocket feed, and point your
agent hooks at "agentflow hook".`,
	SilenceUsage: true,
}

var (
	configPath string
	verbose    bool
)

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file overlaid on AGENTFLOW_* environment variables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
