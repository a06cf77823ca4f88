// Package db implements the durable persistence layer over an embedded
// SQLite store: the map_state and players tables, wrap-aware region queries,
// and the error classification the engine relies on.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// DB wraps the embedded SQLite handle shared by the repositories.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the store at path and applies the required
// pragmas: WAL journal mode for crash safety, synchronous=NORMAL,
// busy_timeout so concurrent writers queue instead of failing instantly.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}

	// Single writer connection: SQLite serialises writes anyway, and one
	// connection avoids SQLITE_BUSY churn between our own goroutines.
	handle.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := handle.Exec(p); err != nil {
			handle.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	return &DB{sql: handle}, nil
}

// Ping verifies the store is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// SQL returns the underlying handle (for goose migrations).
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// Close closes the store.
func (d *DB) Close() error {
	return d.sql.Close()
}
