package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// openTestDB opens a fresh store in a per-test temp dir with migrations
// applied, and closes it when the test finishes.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "minefield.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.RunMigrations(context.Background()))
	return store
}
