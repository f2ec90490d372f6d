package parquet

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/schema"
)

func sampleRuns() []AnalysisRun {
	now := time.Now()
	end := now.Add(3 * time.Second)
	duration := int32(3000)
	score := 87.5
	config := `{"profile":"fast"}`
	return []AnalysisRun{
		{
			RunID:        1,
			RunUUID:      "5b1d3f0e-7a43-4c36-9f8e-2f4f8fd1c001",
			Root:         "/src/app",
			StartTime:    now,
			EndTime:      &end,
			DurationMs:   &duration,
			FilesScanned: 12,
			LinesScanned: 840,
			Score:        &score,
			ConfigParams: &config,
		},
		{
			RunID:     2,
			RunUUID:   "5b1d3f0e-7a43-4c36-9f8e-2f4f8fd1c002",
			Root:      "/src/app",
			StartTime: now.Add(time.Minute),
			// Still running, nullable fields unset
		},
	}
}

func TestAnalysisRunStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(AnalysisRun))
	require.NotNil(t, s)

	for _, colName := range []string{
		"run_id", "run_uuid", "root_path", "start_time", "end_time",
		"run_duration_ms", "files_scanned", "lines_scanned", "score", "config_params",
	} {
		_, ok := s.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestIssueStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(Issue))
	require.NotNil(t, s)

	for _, colName := range []string{"run_id", "file_path", "line", "category", "severity", "detector", "message"} {
		_, ok := s.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestWriteAnalysisRunsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "runs.parquet")
	data := sampleRuns()

	require.NoError(t, WriteAnalysisRunsParquet(data, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[AnalysisRun](file)
	defer func() { _ = reader.Close() }()

	readData := make([]AnalysisRun, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, len(data), n)

	assert.Equal(t, data[0].RunUUID, readData[0].RunUUID)
	assert.Equal(t, data[0].FilesScanned, readData[0].FilesScanned)
	require.NotNil(t, readData[0].Score)
	assert.InDelta(t, 87.5, *readData[0].Score, 0.001)
	require.NotNil(t, readData[0].EndTime)
	assert.WithinDuration(t, *data[0].EndTime, *readData[0].EndTime, time.Millisecond)

	// Nullable fields survive as nil
	assert.Nil(t, readData[1].EndTime)
	assert.Nil(t, readData[1].DurationMs)
	assert.Nil(t, readData[1].Score)
	assert.Nil(t, readData[1].ConfigParams)
}

func TestWriteIssuesParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "issues.parquet")
	issues := ConvertIssues(7, []schema.Issue{
		{Path: "a.go", Line: 3, Category: schema.QualityCategory, Severity: schema.InfoSeverity, Detector: "todo-marker", Message: "unresolved TODO marker"},
		{Path: "b.rs", Line: 9, Category: schema.SecurityCategory, Severity: schema.CriticalSeverity, Detector: "unsafe-block", Message: "unsafe block"},
	})

	require.NoError(t, WriteIssuesParquet(issues, outputPath))

	rows, err := ReadIssues(outputPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, issues, rows)
	assert.Equal(t, int64(7), rows[1].RunID)
	assert.Equal(t, "Critical", rows[1].Severity)
}

func TestWriteIssuesToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIssues(&buf, []Issue{{FilePath: "x.py", Line: 1, Severity: "Warning"}}))
	assert.Greater(t, buf.Len(), 0)

	rows, err := parquet.Read[Issue](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "x.py", rows[0].FilePath)
}

func TestWriteParquet_EmptyData(t *testing.T) {
	tmpDir := t.TempDir()

	runsPath := filepath.Join(tmpDir, "empty_runs.parquet")
	require.NoError(t, WriteAnalysisRunsParquet([]AnalysisRun{}, runsPath))
	info, err := os.Stat(runsPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "Output file should contain schema even if empty")

	issuesPath := filepath.Join(tmpDir, "empty_issues.parquet")
	require.NoError(t, WriteIssuesParquet(nil, issuesPath))
	rows, err := ReadIssues(issuesPath)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteParquet_InvalidPath(t *testing.T) {
	err := WriteAnalysisRunsParquet(sampleRuns(), "/nonexistent/directory/output.parquet")
	assert.Error(t, err)
	err = WriteIssuesParquet(nil, "/nonexistent/directory/output.parquet")
	assert.Error(t, err)
}

func TestConvertRecords(t *testing.T) {
	score := 50.0
	runs := ConvertRunRecords([]schema.RunRecord{{RunID: 3, RunUUID: "u", Root: "/r", FilesScanned: 4, Score: &score}})
	require.Len(t, runs, 1)
	assert.Equal(t, int64(3), runs[0].RunID)
	assert.Equal(t, "/r", runs[0].Root)
	assert.Equal(t, &score, runs[0].Score)

	issues := ConvertIssueRecords([]schema.IssueRecord{{RunID: 3, FilePath: "a.go", Line: 2, Category: "Quality", Severity: "Info", Detector: "d", Message: "m"}})
	require.Len(t, issues, 1)
	assert.Equal(t, Issue{RunID: 3, FilePath: "a.go", Line: 2, Category: "Quality", Severity: "Info", Detector: "d", Message: "m"}, issues[0])
}
