package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/internal/iocache"
	"github.com/traelabs/trae/internal/outwriter"
	"github.com/traelabs/trae/schema"
)

func TestExecuteAnalyzeWritesJSONReport(t *testing.T) {
	root := sampleTree(t)
	cfg := testConfig(root)
	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "report.json")

	mgr, err := iocache.OpenStores(iocache.StoreConfigFrom(cfg))
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	require.NoError(t, ExecuteAnalyze(context.Background(), cfg, mgr))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var report schema.AnalysisReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Len(t, report.Issues, 3)

	entries, err := os.ReadDir(filepath.Join(root, ".trae", "metrics"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "analyze_")
}

func TestExecuteAnalyzePersistsFileCache(t *testing.T) {
	root := sampleTree(t)
	cfg := testConfig(root)
	cfg.CacheBackend = schema.FileBackend
	cfg.OutputFile = filepath.Join(t.TempDir(), "report.txt")

	mgr, err := iocache.OpenStores(iocache.StoreConfigFrom(cfg))
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	require.NoError(t, ExecuteAnalyze(context.Background(), cfg, mgr))

	status, err := mgr.GetCacheStore().GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalEntries)
}

func TestExecuteRepairWritesReport(t *testing.T) {
	root := sampleTree(t)
	cfg := testConfig(root)
	cfg.EmitMetrics = false
	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "repair.json")

	require.NoError(t, ExecuteRepair(context.Background(), cfg, &iocache.StoreManager{}))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var report schema.RepairReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, schema.CompletedState, report.State)
	assert.Equal(t, 1, report.SuccessCount)
}

func TestExecuteMetrics(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "metrics.json")

	require.NoError(t, ExecuteMetrics(context.Background(), cfg, nil))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DPML quality score")
}

func TestExecuteMetricsReportsPersistedCache(t *testing.T) {
	root := sampleTree(t)
	cfg := testConfig(root)
	cfg.CacheBackend = schema.FileBackend
	cfg.OutputFile = filepath.Join(t.TempDir(), "report.txt")

	for range 2 {
		mgr, err := iocache.OpenStores(iocache.StoreConfigFrom(cfg))
		require.NoError(t, err)
		require.NoError(t, ExecuteAnalyze(context.Background(), cfg, mgr))
		require.NoError(t, mgr.Close())
	}

	mgr, err := iocache.OpenStores(iocache.StoreConfigFrom(cfg))
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, ExecuteMetrics(context.Background(), cfg, mgr))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var view outwriter.MetricsView
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, 2, view.Cache.Entries)
	assert.Equal(t, int64(2), view.Cache.Hits)
	assert.Zero(t, view.Cache.Misses)
	assert.Equal(t, 1.0, view.Cache.HitRate)
	assert.NotEmpty(t, view.LastRun)
}
