package iocache

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/schema"
)

func newMemoryCacheStore(t *testing.T) *CacheStoreImpl {
	t.Helper()
	store, err := NewCacheStore("test_table", schema.SQLiteBackend, ":memory:")
	require.NoError(t, err, "Failed to create SQLite store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteBackendOperations(t *testing.T) {
	t.Run("set and get operations", func(t *testing.T) {
		store := newMemoryCacheStore(t)

		testValue := []byte(`{"fingerprint":"abc"}`)
		require.NoError(t, store.Set("abc", testValue, "1f2e3d4c5b6a", 1234567890))

		value, version, timestamp, err := store.Get("abc")
		require.NoError(t, err)
		assert.Equal(t, string(testValue), string(value))
		assert.Equal(t, "1f2e3d4c5b6a", version)
		assert.Equal(t, int64(1234567890), timestamp)
	})

	t.Run("upsert behavior", func(t *testing.T) {
		store := newMemoryCacheStore(t)

		require.NoError(t, store.Set("upsert_key", []byte("initial_value"), "v1", 1000))
		require.NoError(t, store.Set("upsert_key", []byte("updated_value"), "v2", 2000))

		value, version, timestamp, err := store.Get("upsert_key")
		require.NoError(t, err)
		assert.Equal(t, "updated_value", string(value))
		assert.Equal(t, "v2", version)
		assert.Equal(t, int64(2000), timestamp)
	})

	t.Run("get non-existent key", func(t *testing.T) {
		store := newMemoryCacheStore(t)

		_, _, _, err := store.Get("non_existent_key")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("delete", func(t *testing.T) {
		store := newMemoryCacheStore(t)

		require.NoError(t, store.Set("gone", []byte("x"), "v1", 1000))
		require.NoError(t, store.Delete("gone"))
		_, _, _, err := store.Get("gone")
		assert.ErrorIs(t, err, sql.ErrNoRows)

		// Deleting a missing key is fine
		assert.NoError(t, store.Delete("never-there"))
	})

	t.Run("prune", func(t *testing.T) {
		store := newMemoryCacheStore(t)

		for i, key := range []string{"key1", "key2", "key3"} {
			require.NoError(t, store.Set(key, []byte("value"), "v1", int64(1000+i*100)))
		}
		removed, err := store.Prune(1150)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		_, _, _, err = store.Get("key3")
		assert.NoError(t, err)
		_, _, _, err = store.Get("key1")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestCacheStoreGetStatus(t *testing.T) {
	store := newMemoryCacheStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, 0, status.TotalEntries)

	require.NoError(t, store.Set("a", []byte("1"), "v", 1000))
	require.NoError(t, store.Set("b", []byte("2"), "v", 3000))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, int64(3000), status.LastEntryTime.Unix())
	assert.Equal(t, int64(1000), status.OldestEntryTime.Unix())
	assert.Greater(t, status.TableSizeBytes, int64(0))
}

func TestCacheStoreNoneBackend(t *testing.T) {
	store, err := NewCacheStore(CacheTableName, schema.NoneBackend, "")
	require.NoError(t, err)

	assert.NoError(t, store.Set("k", []byte("v"), "v1", 1))
	_, _, _, err = store.Get("k")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, store.Delete("k"))
	removed, err := store.Prune(1)
	assert.NoError(t, err)
	assert.Zero(t, removed)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestNewCacheStoreErrors(t *testing.T) {
	_, err := NewCacheStore("bad-name", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)

	_, err = NewCacheStore("ok", schema.DatabaseBackend("oracle"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported SQL backend")
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name      string
		tableName string
		wantErr   bool
	}{
		{name: "valid simple name", tableName: "test_table"},
		{name: "valid name with numbers", tableName: "test_table_123"},
		{name: "valid name starting with underscore", tableName: "_test_table"},
		{name: "valid uppercase name", tableName: "TEST_TABLE"},
		{name: "empty name", tableName: "", wantErr: true},
		{name: "starts with digit", tableName: "1table", wantErr: true},
		{name: "contains hyphen", tableName: "test-table", wantErr: true},
		{name: "sql injection attempt", tableName: "t; DROP TABLE users;--", wantErr: true},
		{name: "contains space", tableName: "test table", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableName(tt.tableName)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`trae_cache`", quoteTableName("trae_cache", schema.MySQLBackend))
	assert.Equal(t, `"trae_cache"`, quoteTableName("trae_cache", schema.PostgreSQLBackend))
	assert.Equal(t, `"trae_cache"`, quoteTableName("trae_cache", schema.SQLiteBackend))
}

func TestBind(t *testing.T) {
	query := "UPDATE t SET a = ?, b = ? WHERE c = ?"
	assert.Equal(t, query, bind(query, schema.SQLiteBackend))
	assert.Equal(t, query, bind(query, schema.MySQLBackend))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE c = $3", bind(query, schema.PostgreSQLBackend))
}

func TestGetUpsertQuery(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		want    string
	}{
		{schema.SQLiteBackend, "INSERT OR REPLACE"},
		{schema.MySQLBackend, "ON DUPLICATE KEY UPDATE"},
		{schema.PostgreSQLBackend, "ON CONFLICT (cache_key) DO UPDATE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			store := &CacheStoreImpl{tableName: CacheTableName, backend: tt.backend}
			assert.Contains(t, store.getUpsertQuery(), tt.want)
		})
	}
}

func TestGetCreateTableQuery(t *testing.T) {
	for _, backend := range []schema.DatabaseBackend{schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend} {
		t.Run(string(backend), func(t *testing.T) {
			query := getCreateTableQuery(CacheTableName, backend)
			assert.Contains(t, query, "CREATE TABLE IF NOT EXISTS")
			assert.Contains(t, query, quoteTableName(CacheTableName, backend))
			for _, col := range []string{"cache_key", "cache_value", "cache_version", "cache_timestamp"} {
				assert.True(t, strings.Contains(query, col), "missing column %s", col)
			}
		})
	}
}
