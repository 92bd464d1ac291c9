package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/agentflow/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations.

Without a subcommand, runs all pending migrations. The server and hooks
migrate on startup, so this is mostly useful for rollbacks and inspection.

Examples:
  agentflow migrate            # Run all pending migrations
  agentflow migrate status     # Show current and latest version
  agentflow migrate down 0     # Roll back every migration`,
	Args: cobra.NoArgs,
	RunE: runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down <version>",
	Short: "Roll back to a schema version",
	Args:  cobra.ExactArgs(1),
	RunE:  runMigrateDown,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

// withMigrator opens the database without migrating it.
func withMigrator(ctx context.Context, stderr io.Writer, fn func(*migrate.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, stderr)

	app, err := NewAppContext(ctx, cfg, logger, appOptions{Ping: true})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(context.Background()) }()

	return fn(migrate.New(app.DB, logger))
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	return withMigrator(cmd.Context(), cmd.ErrOrStderr(), func(m *migrate.Migrator) error {
		applied, err := m.Up(cmd.Context())
		if err != nil {
			return err
		}
		if applied == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", applied)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	target, err := strconv.Atoi(args[0])
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version number: %s", args[0])
	}
	return withMigrator(cmd.Context(), cmd.ErrOrStderr(), func(m *migrate.Migrator) error {
		if err := m.DownTo(cmd.Context(), target); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated to version %d\n", target)
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return withMigrator(cmd.Context(), cmd.ErrOrStderr(), func(m *migrate.Migrator) error {
		return printMigrateStatus(cmd.Context(), cmd.OutOrStdout(), m)
	})
}

func printMigrateStatus(ctx context.Context, w io.Writer, m *migrate.Migrator) error {
	st, err := m.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Current version: %d\n", st.Version)
	fmt.Fprintf(w, "Latest version:  %d\n", st.Latest)
	fmt.Fprintf(w, "Pending:         %d\n", st.Pending)
	if st.Dirty {
		fmt.Fprintln(w, "Database is dirty: the last migration failed part way")
	}
	return nil
}
