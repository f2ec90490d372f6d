package iocache

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/schema"
)

func sampleMetrics() schema.MetricsRecord {
	return schema.MetricsRecord{
		ID:               "0f6c1a2e-0000-4000-8000-000000000001",
		Command:          "analyze",
		Root:             "/src",
		StartedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DurationMs:       42,
		Files:            3,
		Lines:            120,
		Issues:           2,
		IssuesByCategory: map[string]int{"Quality": 2},
		IssuesBySeverity: map[string]int{"Info": 2},
		Score:            99.7,
		CacheHitRate:     0.5,
		Success:          true,
	}
}

func TestJSONFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".trae", "metrics")
	sink := &JSONFileSink{Dir: dir}
	record := sampleMetrics()

	require.NoError(t, sink.Emit(context.Background(), record))

	data, err := os.ReadFile(filepath.Join(dir, "analyze_"+record.ID+".json"))
	require.NoError(t, err)
	var got schema.MetricsRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, record, got)
}

func TestJSONFileSinkDefaultsToRootMetricsDir(t *testing.T) {
	record := sampleMetrics()
	record.Root = t.TempDir()

	require.NoError(t, (&JSONFileSink{}).Emit(context.Background(), record))
	_, err := os.Stat(filepath.Join(record.Root, ".trae", "metrics", "analyze_"+record.ID+".json"))
	assert.NoError(t, err)
}

func TestJSONFileSinkSanitizesName(t *testing.T) {
	dir := t.TempDir()
	record := sampleMetrics()
	record.Command = "../repair"
	record.ID = "a/b"

	require.NoError(t, (&JSONFileSink{Dir: dir}).Emit(context.Background(), record))
	_, err := os.Stat(filepath.Join(dir, ".._repair_a_b.json"))
	assert.NoError(t, err)
}

func TestLatestMetricsRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metrics")

	_, ok, err := LatestMetricsRecord(dir, "analyze")
	require.NoError(t, err)
	assert.False(t, ok)

	sink := &JSONFileSink{Dir: dir}
	older := sampleMetrics()
	newer := sampleMetrics()
	newer.ID = "0f6c1a2e-0000-4000-8000-000000000002"
	newer.StartedAt = older.StartedAt.Add(time.Hour)
	newer.CacheHitRate = 1
	repairRun := sampleMetrics()
	repairRun.ID = "0f6c1a2e-0000-4000-8000-000000000003"
	repairRun.Command = "repair"
	repairRun.StartedAt = older.StartedAt.Add(2 * time.Hour)
	for _, r := range []schema.MetricsRecord{newer, older, repairRun} {
		require.NoError(t, sink.Emit(context.Background(), r))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analyze_broken.json"), []byte("{"), 0o644))

	got, ok, err := LatestMetricsRecord(dir, "analyze")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, 1.0, got.CacheHitRate)
}

func TestJSONFileSinkCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&JSONFileSink{Dir: t.TempDir()}).Emit(ctx, sampleMetrics())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sink := &LogSink{Logger: &logger, Level: zerolog.InfoLevel}

	require.NoError(t, sink.Emit(context.Background(), sampleMetrics()))

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "run metrics", event["message"])
	assert.Equal(t, "info", event["level"])
	assert.Equal(t, "analyze", event["command"])
	assert.Equal(t, float64(3), event["files"])
	assert.Equal(t, true, event["success"])
	assert.Equal(t, map[string]any{"Quality": float64(2)}, event["issues_by_category"])
}
