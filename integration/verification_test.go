//go:build basic

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/schema"
)

// readReport runs trae with JSON output and decodes the result into v.
func readReport(t *testing.T, root string, v any, args ...string) {
	t.Helper()
	outFile := filepath.Join(t.TempDir(), "report.json")
	args = append(args, "--output", "json", "--output-file", outFile, "--metrics", "no")
	_, err := runTrae(t, root, args...)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// TestAnalyzeMatchesSourceMarkers checks the reported markers against the tree itself.
func TestAnalyzeMatchesSourceMarkers(t *testing.T) {
	root := sampleTree(t)

	var report schema.AnalysisReport
	readReport(t, root, &report, "analyze", root)

	counts := map[string]int{}
	for _, issue := range report.Issues {
		counts[issue.Detector]++
	}
	assert.Equal(t, 1, counts["unsafe-block"])
	assert.Equal(t, 1, counts["todo-marker"])
	assert.Equal(t, 1, counts["trailing-whitespace"])
	assert.Len(t, report.Files, 3)
	assert.Less(t, report.Score.Value, 100.0)
}

// TestAnalyzeIsDeterministic runs the same tree twice, cold then warm.
func TestAnalyzeIsDeterministic(t *testing.T) {
	root := sampleTree(t)

	var first, second schema.AnalysisReport
	readReport(t, root, &first, "analyze", root, "--parallelism", "1")
	readReport(t, root, &second, "analyze", root, "--parallelism", "4")

	assert.Equal(t, first.Issues, second.Issues)
	assert.InDelta(t, first.Score.Value, second.Score.Value, 1e-9)
	assert.Equal(t, 1.0, second.Cache.HitRate)
}

// TestRepairFixesTrailingWhitespace applies the safe level and re-reads the file.
func TestRepairFixesTrailingWhitespace(t *testing.T) {
	root := sampleTree(t)

	var report schema.RepairReport
	readReport(t, root, &report, "repair", root, "--level", "safe")
	assert.Equal(t, schema.CompletedState, report.State)
	assert.Equal(t, 1, report.SuccessCount)

	data, err := os.ReadFile(filepath.Join(root, "src", "util.py"))
	require.NoError(t, err)
	for line := range strings.SplitSeq(string(data), "\n") {
		assert.Equal(t, strings.TrimRight(line, " \t"), line)
	}

	entries, err := os.ReadDir(filepath.Join(root, ".trae", "backup"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestMissingRootExitsNonZero checks the environment failure path.
func TestMissingRootExitsNonZero(t *testing.T) {
	_, err := runTrae(t, t.TempDir(), "analyze", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

// TestVersionCommand checks the diagnostic version output.
func TestVersionCommand(t *testing.T) {
	out, err := runTrae(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trae CLI")
}
