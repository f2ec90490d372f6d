package schema

import "time"

// CacheStatus represents the status of the persistent cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// RunStatus represents the status of the run history store.
type RunStatus struct {
	Backend           string           `json:"backend"`
	Connected         bool             `json:"connected"`
	TotalRuns         int              `json:"total_runs"`
	LastRunID         int64            `json:"last_run_id"`
	LastRunTime       time.Time        `json:"last_run_time"`
	OldestRunTime     time.Time        `json:"oldest_run_time"`
	TotalFilesScanned int              `json:"total_files_scanned"`
	TableSizes        map[string]int64 `json:"table_sizes"`
}

// CacheStats are the in-memory fingerprint cache counters of the current process.
type CacheStats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Expirations  int64   `json:"expirations"`
	Computations int64   `json:"computations"`
	Waits        int64   `json:"waits"`
	Entries      int     `json:"entries"`
	HitRate      float64 `json:"hit_rate"`
}
