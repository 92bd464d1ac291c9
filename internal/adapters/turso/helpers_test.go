package turso_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/emiliopalmerini/agentflow/internal/migrate"
)

// testDB creates an in-memory SQLite database with all migrations applied.
// This is fast and suitable for most unit/integration tests.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := migrate.RunAll(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testTursoDB creates a Turso (libsql-server) container for full integration testing.
// This is slower but tests against the real Turso server.
func testTursoDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "ghcr.io/tursodatabase/libsql-server:latest",
		ExposedPorts: []string{"8080/tcp"},
		WaitingFor:   wait.ForHTTP("/health").WithPort("8080/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Turso container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	mappedPort, err := container.MappedPort(ctx, "8080")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	url := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	db, err := sql.Open("libsql", url)
	if err != nil {
		t.Fatalf("Failed to connect to Turso: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping Turso: %v", err)
	}

	if err := migrate.RunAll(ctx, db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// testDBType specifies which database backend to use for tests
type testDBType int

const (
	// DBTypeMemory uses in-memory SQLite (fast, for most tests)
	DBTypeMemory testDBType = iota
	// DBTypeTurso uses Turso container (slower, for full integration)
	DBTypeTurso
)

func (d testDBType) String() string {
	if d == DBTypeTurso {
		return "turso"
	}
	return "memory"
}

// testDBTypes lists the backends enabled for this run. The container
// backend needs Docker and is opt-in via AGENTFLOW_TEST_TURSO_CONTAINER=1.
func testDBTypes() []testDBType {
	types := []testDBType{DBTypeMemory}
	if os.Getenv("AGENTFLOW_TEST_TURSO_CONTAINER") == "1" {
		types = append(types, DBTypeTurso)
	}
	return types
}

// getTestDB returns a test database based on the specified type.
func getTestDB(t *testing.T, dbType testDBType) *sql.DB {
	t.Helper()

	switch dbType {
	case DBTypeTurso:
		return testTursoDB(t)
	default:
		return testDB(t)
	}
}

func strPtr(s string) *string { return &s }
