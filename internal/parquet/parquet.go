// Package parquet provides data structures and functions for exporting trae
// run history and issues to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/traelabs/trae/schema"
)

// AnalysisRun represents a single analyze run with metadata.
// This struct maps to the trae_analysis_runs database table.
type AnalysisRun struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// RunUUID is the run identifier shared with metrics snapshots
	RunUUID string `parquet:"run_uuid,snappy"`

	// Root is the analyzed directory
	Root string `parquet:"root_path,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// DurationMs is the duration of the run in milliseconds (nullable)
	DurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	FilesScanned int32 `parquet:"files_scanned,snappy"`
	LinesScanned int32 `parquet:"lines_scanned,snappy"`

	// Score is the quality score of the run (nullable until the run ends)
	Score *float64 `parquet:"score,optional,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Issue represents one issue found in a run.
// This struct maps to the trae_issues database table.
type Issue struct {
	// RunID references the parent run; zero for issues of an unrecorded run
	RunID    int64  `parquet:"run_id,snappy"`
	FilePath string `parquet:"file_path,snappy"`
	Line     int32  `parquet:"line,snappy"`
	Category string `parquet:"category,dict,snappy"`
	Severity string `parquet:"severity,dict,snappy"`
	Detector string `parquet:"detector,dict,snappy"`
	Message  string `parquet:"message,snappy"`
}

// write encodes all rows into w.
func write[T any](w io.Writer, data []T) error {
	// The schema is derived from the struct tags of T
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func writeFile[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file, data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteAnalysisRunsParquet writes runs to a Parquet file.
func WriteAnalysisRunsParquet(data []AnalysisRun, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteIssuesParquet writes issues to a Parquet file.
func WriteIssuesParquet(data []Issue, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteIssues encodes issues as Parquet into w.
func WriteIssues(w io.Writer, data []Issue) error {
	return write(w, data)
}

// ConvertRunRecords converts run store rows for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []AnalysisRun {
	result := make([]AnalysisRun, len(records))
	for i, record := range records {
		result[i] = AnalysisRun{
			RunID:        record.RunID,
			RunUUID:      record.RunUUID,
			Root:         record.Root,
			StartTime:    record.StartTime,
			EndTime:      record.EndTime,
			DurationMs:   record.DurationMs,
			FilesScanned: record.FilesScanned,
			LinesScanned: record.LinesScanned,
			Score:        record.Score,
			ConfigParams: record.ConfigParams,
		}
	}
	return result
}

// ConvertIssueRecords converts issue store rows for Parquet export.
func ConvertIssueRecords(records []schema.IssueRecord) []Issue {
	result := make([]Issue, len(records))
	for i, record := range records {
		result[i] = Issue(record)
	}
	return result
}

// ConvertIssues converts the issues of an in-memory report.
func ConvertIssues(runID int64, issues []schema.Issue) []Issue {
	result := make([]Issue, len(issues))
	for i, is := range issues {
		result[i] = Issue{
			RunID:    runID,
			FilePath: is.Path,
			Line:     int32(is.Line),
			Category: string(is.Category),
			Severity: is.Severity.String(),
			Detector: is.Detector,
			Message:  is.Message,
		}
	}
	return result
}

// ReadIssues decodes every Issue row of a Parquet file.
func ReadIssues(path string) ([]Issue, error) {
	rows, err := parquet.ReadFile[Issue](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	return rows, nil
}
