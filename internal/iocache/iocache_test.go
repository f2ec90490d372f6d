package iocache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/parquet"
	"github.com/traelabs/trae/schema"
)

func TestOpenStores(t *testing.T) {
	t.Run("file cache and sqlite runs", func(t *testing.T) {
		root := t.TempDir()
		mgr, err := OpenStores(StoreConfig{
			Root:          root,
			CacheBackend:  schema.FileBackend,
			RunsBackend:   schema.SQLiteBackend,
			RunsDBConnect: filepath.Join(root, "runs.db"),
		})
		require.NoError(t, err)

		assert.IsType(t, &FileCacheStore{}, mgr.GetCacheStore())
		assert.IsType(t, &RunStoreImpl{}, mgr.GetRunStore())
		_, err = os.Stat(contract.GetCacheDir(root))
		assert.NoError(t, err, "cache dir should be created")

		assert.NoError(t, mgr.Close())
		assert.NoError(t, mgr.Close(), "second close is a no-op")
		assert.Nil(t, mgr.GetCacheStore())
		assert.Nil(t, mgr.GetRunStore())
	})

	t.Run("disabled stores", func(t *testing.T) {
		mgr, err := OpenStores(StoreConfig{CacheBackend: schema.NoneBackend})
		require.NoError(t, err)
		assert.Nil(t, mgr.GetCacheStore())
		assert.Nil(t, mgr.GetRunStore())
		assert.NoError(t, mgr.Close())
	})

	t.Run("sqlite cache", func(t *testing.T) {
		mgr, err := OpenStores(StoreConfig{CacheBackend: schema.SQLiteBackend, CacheDBConnect: ":memory:"})
		require.NoError(t, err)
		defer func() { _ = mgr.Close() }()
		assert.IsType(t, &CacheStoreImpl{}, mgr.GetCacheStore())
	})

	t.Run("invalid runs backend closes the cache", func(t *testing.T) {
		_, err := OpenStores(StoreConfig{
			Root:         t.TempDir(),
			CacheBackend: schema.FileBackend,
			RunsBackend:  schema.DatabaseBackend("oracle"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize run store")
	})
}

func TestStoreManagerConcurrency(t *testing.T) {
	mgr, err := OpenStores(StoreConfig{Root: t.TempDir(), CacheBackend: schema.FileBackend})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			_ = mgr.GetCacheStore()
			_ = mgr.GetRunStore()
		})
	}
	wg.Go(func() { _ = mgr.Close() })
	wg.Wait()
}

func TestStoreConfigFrom(t *testing.T) {
	cfg := &contract.Config{
		RootPath:      "/src",
		CacheBackend:  schema.FileBackend,
		RunsBackend:   schema.MySQLBackend,
		RunsDBConnect: "u:p@tcp(localhost:3306)/trae",
	}
	assert.Equal(t, StoreConfig{
		Root:          "/src",
		CacheBackend:  schema.FileBackend,
		RunsBackend:   schema.MySQLBackend,
		RunsDBConnect: "u:p@tcp(localhost:3306)/trae",
	}, StoreConfigFrom(cfg))
}

func TestClearCache(t *testing.T) {
	t.Run("file backend", func(t *testing.T) {
		root := t.TempDir()
		store, err := NewFileCacheStore(contract.GetCacheDir(root))
		require.NoError(t, err)
		require.NoError(t, store.Set(fpA, []byte(`{}`), "v", 1))

		require.NoError(t, ClearCache(root, schema.FileBackend, ""))
		_, err = os.Stat(contract.GetCacheDir(root))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("sqlite backend", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "cache.db")
		store, err := NewCacheStore(CacheTableName, schema.SQLiteBackend, dbPath)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		require.NoError(t, ClearCache("", schema.SQLiteBackend, dbPath))
		_, err = os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))

		// Clearing again is fine
		assert.NoError(t, ClearCache("", schema.SQLiteBackend, dbPath))
	})

	t.Run("sqlite default path", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		require.NoError(t, os.WriteFile(contract.GetCacheDBFilePath(), []byte("x"), 0o644))
		require.NoError(t, ClearCache("", schema.SQLiteBackend, ""))
		_, err := os.Stat(filepath.Join(home, ".trae_cache.db"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("none and unsupported", func(t *testing.T) {
		assert.NoError(t, ClearCache("", schema.NoneBackend, ""))
		assert.Error(t, ClearCache("", schema.DatabaseBackend("oracle"), ""))
	})
}

func TestClearRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearRuns(schema.SQLiteBackend, dbPath))
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, ClearRuns(schema.NoneBackend, ""))
	assert.Error(t, ClearRuns(schema.FileBackend, ""))
}

func TestExecuteRunsExport(t *testing.T) {
	t.Run("exports runs and issues", func(t *testing.T) {
		store := newMemoryRunStore(t)
		id, err := store.BeginRun(time.Now(), "u1", "/r", nil)
		require.NoError(t, err)
		require.NoError(t, store.EndRun(id, time.Now(), 2, 20, 75))
		require.NoError(t, store.RecordIssues(id, sampleIssues()))

		out := filepath.Join(t.TempDir(), "history")
		var buf bytes.Buffer
		require.NoError(t, ExecuteRunsExport(store, out, &buf))

		assert.Contains(t, buf.String(), "Exported 1 runs to: "+out+".analysis_runs.parquet")
		assert.Contains(t, buf.String(), "Exported 2 issues to: "+out+".issues.parquet")

		issues, err := parquet.ReadIssues(out + ".issues.parquet")
		require.NoError(t, err)
		assert.Len(t, issues, 2)
	})

	t.Run("requires output file", func(t *testing.T) {
		err := ExecuteRunsExport(&MockRunStore{}, "", &bytes.Buffer{})
		assert.EqualError(t, err, "--output-file is required for export command")
	})

	t.Run("requires a run store", func(t *testing.T) {
		err := ExecuteRunsExport(nil, "out", &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("no data", func(t *testing.T) {
		store := &MockRunStore{}
		store.On("GetStatus").Return(schema.RunStatus{Backend: "sqlite"}, nil)
		err := ExecuteRunsExport(store, "out", &bytes.Buffer{})
		assert.EqualError(t, err, "no run data found to export")
		store.AssertExpectations(t)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &MockRunStore{}
		store.On("GetStatus").Return(schema.RunStatus{TotalRuns: 1}, nil)
		store.On("GetAllRuns").Return(nil, errors.New("boom"))
		err := ExecuteRunsExport(store, "out", &bytes.Buffer{})
		assert.ErrorContains(t, err, "failed to retrieve runs: boom")
		store.AssertNotCalled(t, "GetAllIssues")
	})
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheStatus(&buf, schema.CacheStatus{Backend: "none"})
	assert.Equal(t, "Cache Backend: none\nConnected: false\n", buf.String())

	buf.Reset()
	PrintCacheStatus(&buf, schema.CacheStatus{
		Backend:         "file",
		Connected:       true,
		TotalEntries:    2,
		LastEntryTime:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local),
		OldestEntryTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
		TableSizeBytes:  512,
	})
	assert.Contains(t, buf.String(), "Total Entries: 2\n")
	assert.Contains(t, buf.String(), "Last Entry: 2026-01-02 03:04:05\n")
	assert.Contains(t, buf.String(), "Size: 512 bytes\n")

	buf.Reset()
	PrintRunStatus(&buf, schema.RunStatus{
		Backend:    "sqlite",
		Connected:  true,
		TableSizes: map[string]int64{IssuesTable: 9, RunsTable: 3},
	})
	assert.Equal(t, "Runs Backend: sqlite\nConnected: true\nTotal Runs: 0\nTable Sizes:\n"+
		"  trae_analysis_runs: 3 rows\n  trae_issues: 9 rows\n", buf.String())
}
