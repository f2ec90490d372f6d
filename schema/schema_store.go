package schema

import "time"

// RunRecord represents a row from the trae_analysis_runs table.
type RunRecord struct {
	RunID        int64
	RunUUID      string
	Root         string
	StartTime    time.Time
	EndTime      *time.Time
	DurationMs   *int32
	FilesScanned int32
	LinesScanned int32
	Score        *float64
	ConfigParams *string
}

// IssueRecord represents a row from the trae_issues table.
type IssueRecord struct {
	RunID    int64
	FilePath string
	Line     int32
	Category string
	Severity string
	Detector string
	Message  string
}
