package db

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmtrv/minefield/internal/db/migrations"
)

// RunMigrations applies the embedded goose migrations to the store.
// Called once at startup, before any repository is used.
func (d *DB) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.sql, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
