package iocache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/schema"
)

func TestMigrateRuns_UnsupportedBackends(t *testing.T) {
	for _, backend := range []schema.DatabaseBackend{schema.NoneBackend, schema.FileBackend} {
		_, err := MigrateRuns(backend, "", -1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrations are not supported")
	}
}

func TestMigrateRuns_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_migration.db")

	msg, err := MigrateRuns(schema.SQLiteBackend, dbPath, -1)
	require.NoError(t, err)
	assert.Equal(t, "Successfully migrated from version 0 to version 3", msg)

	msg, err = MigrateRuns(schema.SQLiteBackend, dbPath, -1)
	require.NoError(t, err)
	assert.Contains(t, msg, "No migration needed")

	msg, err = MigrateRuns(schema.SQLiteBackend, dbPath, 1)
	require.NoError(t, err)
	assert.Equal(t, "Successfully migrated from version 3 to version 1", msg)

	msg, err = MigrateRuns(schema.SQLiteBackend, dbPath, 0)
	require.NoError(t, err)
	assert.Equal(t, "Successfully migrated from version 1 to version 0", msg)

	_, err = MigrateRuns(schema.SQLiteBackend, dbPath, 3)
	require.NoError(t, err)

	// The migrated schema is usable by the store
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, status.TotalRuns)
}

func TestMigrateRuns_SQLiteInMemory(t *testing.T) {
	_, err := MigrateRuns(schema.SQLiteBackend, ":memory:", -1)
	require.NoError(t, err)
}
