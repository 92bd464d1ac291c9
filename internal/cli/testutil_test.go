package cli

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/emiliopalmerini/agentflow/internal/infrastructure/config"
	"github.com/emiliopalmerini/agentflow/internal/migrate"
)

// testDB creates an in-memory SQLite database with all migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate.RunAll(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testApp wires an AppContext on a fresh in-memory database.
func testApp(t *testing.T) *AppContext {
	t.Helper()

	testDBOverride = testDB(t)
	t.Cleanup(func() { testDBOverride = nil })

	cfg := &config.Config{LogLevel: "info"}
	app, err := NewAppContext(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), appOptions{Migrate: true})
	if err != nil {
		t.Fatalf("Failed to create app context: %v", err)
	}
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}
