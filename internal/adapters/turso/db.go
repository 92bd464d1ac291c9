package turso

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// DefaultMaxRetries bounds retries of Turso "stream not found" failures.
const DefaultMaxRetries = 2

// NewDB opens a libSQL database. Remote URLs get the auth token appended;
// local file: URLs are opened as-is.
func NewDB(ctx context.Context, databaseURL, authToken string) (*sql.DB, error) {
	return NewDBWithOptions(ctx, databaseURL, authToken, true)
}

// NewDBNoPing creates a connection without an initial ping.
// Useful for hooks where latency matters and we'll discover failures on first query.
func NewDBNoPing(databaseURL, authToken string) (*sql.DB, error) {
	return NewDBWithOptions(context.Background(), databaseURL, authToken, false)
}

func NewDBWithOptions(ctx context.Context, databaseURL, authToken string, ping bool) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sql.Open("libsql", connString(databaseURL, authToken))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isRemote(databaseURL) {
		// Turso aggressively closes idle streams, causing "stream not found"
		// errors on stale connections.
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(0)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(0)
	} else {
		// One writer keeps local SQLite files free of lock contention.
		db.SetMaxOpenConns(1)
	}

	if ping {
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	return db, nil
}

func isRemote(databaseURL string) bool {
	for _, scheme := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return true
		}
	}
	return false
}

func connString(databaseURL, authToken string) string {
	if authToken == "" || !isRemote(databaseURL) {
		return databaseURL
	}
	sep := "?"
	if strings.Contains(databaseURL, "?") {
		sep = "&"
	}
	return databaseURL + sep + "authToken=" + url.QueryEscape(authToken)
}

// IsStreamError checks if an error is a Turso "stream not found" error.
func IsStreamError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "stream not found")
}

// WithRetry executes a function with retry logic for Turso stream errors.
// It retries up to maxRetries times when encountering "stream not found" errors.
func WithRetry[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, error) {
	var result T
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}

		if !IsStreamError(err) || attempt == maxRetries {
			return result, err
		}

		// Brief pause before retry to allow connection pool to refresh
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	return result, err
}
