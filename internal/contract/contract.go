// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/traelabs/trae/schema"
)

// CacheManager defines the interface for managing the persistent stores.
// This allows the storage layer to be mocked for testing.
type CacheManager interface {
	GetCacheStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for persisted fingerprint cache entries.
// Get returns the raw value, the detector version it was written under and
// the write timestamp in unix seconds.
type CacheStore interface {
	Get(key string) ([]byte, string, int64, error)
	Set(key string, value []byte, version string, timestamp int64) error
	Delete(key string) error
	// Prune removes entries written before the given unix timestamp.
	Prune(before int64) (int, error)
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for recording analyze runs and their issues.
type RunStore interface {
	// BeginRun creates a new run record and returns its ID.
	BeginRun(startTime time.Time, runUUID, root string, configParams map[string]any) (int64, error)

	// EndRun finalizes a run with its totals.
	EndRun(runID int64, endTime time.Time, filesScanned, linesScanned int, score float64) error

	// RecordIssues stores the issues found in a run.
	RecordIssues(runID int64, issues []schema.Issue) error

	GetStatus() (schema.RunStatus, error)
	GetAllRuns() ([]schema.RunRecord, error)
	GetAllIssues() ([]schema.IssueRecord, error)
	Close() error
}

// MetricsSink receives the flat record emitted after each analyze or repair run.
// Implementations own delivery; the engine never retries.
type MetricsSink interface {
	Emit(ctx context.Context, record schema.MetricsRecord) error
}

// CommandRunner executes external programs on behalf of fixers.
// This allows fixers to be tested without the real tools installed.
type CommandRunner interface {
	// Run executes name with args in dir and returns its combined output.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}
