package iocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// JSONFileSink writes each metrics record to <dir>/<command>_<id>.json.
// An empty Dir selects the metrics directory under the record's root.
type JSONFileSink struct {
	Dir string
}

var _ contract.MetricsSink = &JSONFileSink{} // Compile-time check

// Emit implements the MetricsSink interface.
func (s *JSONFileSink) Emit(ctx context.Context, record schema.MetricsRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.Dir
	if dir == "" {
		dir = contract.GetMetricsDir(record.Root)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return contract.NewError(contract.IoError, "create metrics dir", dir, err)
	}
	name := fmt.Sprintf("%s_%s.json", unsafeFileChars.ReplaceAllString(record.Command, "_"), unsafeFileChars.ReplaceAllString(record.ID, "_"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return contract.NewError(contract.EncodingError, "encode metrics", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return contract.NewError(contract.IoError, "write metrics", path, err)
	}
	return nil
}

// LatestMetricsRecord returns the most recent record a JSONFileSink wrote to
// dir for command. The boolean is false when there is none. Unreadable
// files are skipped.
func LatestMetricsRecord(dir, command string) (schema.MetricsRecord, bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return schema.MetricsRecord{}, false, nil
	}
	if err != nil {
		return schema.MetricsRecord{}, false, contract.NewError(contract.IoError, "read metrics dir", dir, err)
	}

	prefix := unsafeFileChars.ReplaceAllString(command, "_") + "_"
	var latest schema.MetricsRecord
	found := false
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || filepath.Ext(name) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var record schema.MetricsRecord
		if err := json.Unmarshal(data, &record); err != nil || record.Command != command {
			contract.Logger().Debug().Str("file", name).Msg("skipping unreadable metrics record")
			continue
		}
		if !found || record.StartedAt.After(latest.StartedAt) {
			latest, found = record, true
		}
	}
	return latest, found, nil
}

// LogSink emits each metrics record as one structured log event.
type LogSink struct {
	Logger *zerolog.Logger
	Level  zerolog.Level
}

var _ contract.MetricsSink = &LogSink{} // Compile-time check

// Emit implements the MetricsSink interface.
func (s *LogSink) Emit(_ context.Context, record schema.MetricsRecord) error {
	logger := s.Logger
	if logger == nil {
		logger = contract.Logger()
	}
	event := logger.WithLevel(s.Level).
		Str("id", record.ID).
		Str("command", record.Command).
		Str("root", record.Root).
		Time("started_at", record.StartedAt).
		Int64("duration_ms", record.DurationMs).
		Int("files", record.Files).
		Int("lines", record.Lines).
		Int("issues", record.Issues).
		Float64("score", record.Score).
		Float64("cache_hit_rate", record.CacheHitRate).
		Bool("success", record.Success)
	if len(record.IssuesByCategory) > 0 {
		event = event.Interface("issues_by_category", record.IssuesByCategory)
	}
	if len(record.Extra) > 0 {
		event = event.Interface("extra", record.Extra)
	}
	event.Msg("run metrics")
	return nil
}
