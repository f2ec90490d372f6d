package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/schema"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, ExcellentValue},
		{90, ExcellentValue},
		{89.9, GoodValue},
		{75, GoodValue},
		{60, FairValue},
		{50, FairValue},
		{49.99, PoorValue},
		{0, PoorValue},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetPlainLabel(tt.score), "score %v", tt.score)
	}
}

func TestGetColorLabel(t *testing.T) {
	for _, score := range []float64{95, 80, 55, 10} {
		label := GetColorLabel(score)
		assert.Contains(t, label, GetPlainLabel(score))
	}
}

func TestGetSeverityAndOutcomeLabels(t *testing.T) {
	assert.Contains(t, GetSeverityLabel(schema.CriticalSeverity), "Critical")
	assert.Contains(t, GetSeverityLabel(schema.WarningSeverity), "Warning")
	assert.Contains(t, GetSeverityLabel(schema.InfoSeverity), "Info")
	assert.Contains(t, GetOutcomeLabel(schema.SuccessOutcome), "success")
	assert.Contains(t, GetOutcomeLabel(schema.FailedOutcome), "failed")
	assert.Contains(t, GetOutcomeLabel(schema.SkippedOutcome), "skipped")
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		f, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, f)
	})

	t.Run("path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "out.json")
		f, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		excludes   []string
		wantIgnore bool
	}{
		{
			name:       "empty excludes",
			path:       "src/main.rs",
			excludes:   []string{},
			wantIgnore: false,
		},
		{
			name:       "prefix match",
			path:       "target/debug/build/out.rs",
			excludes:   []string{"target/"},
			wantIgnore: true,
		},
		{
			name:       "nested directory match",
			path:       "crates/core/target/debug/out.rs",
			excludes:   []string{"target/"},
			wantIgnore: true,
		},
		{
			name:       "suffix match",
			path:       "web/bundle.min.js",
			excludes:   []string{".min.js"},
			wantIgnore: true,
		},
		{
			name:       "glob match basename",
			path:       "src/file.min.js",
			excludes:   []string{"*.min.js"},
			wantIgnore: true,
		},
		{
			name:       "substring match",
			path:       "src/generated/code.rs",
			excludes:   []string{"generated"},
			wantIgnore: true,
		},
		{
			name:       "no match",
			path:       "src/core/engine.rs",
			excludes:   []string{"vendor/", "node_modules/", ".min.js"},
			wantIgnore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldIgnore(tt.path, tt.excludes)
			assert.Equal(t, tt.wantIgnore, got)
		})
	}
}

func TestDBFilePaths(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	cachePath := GetCacheDBFilePath()
	assert.Contains(t, cachePath, ".trae_cache.db")
	assert.True(t, strings.HasPrefix(cachePath, homeDir))

	runsPath := GetRunsDBFilePath()
	assert.Contains(t, runsPath, ".trae_runs.db")
	assert.NotEqual(t, cachePath, runsPath)
}

func TestStateDirs(t *testing.T) {
	root := filepath.Join("tmp", "proj")
	assert.Equal(t, filepath.Join(root, ".trae", "cache"), GetCacheDir(root))
	assert.Equal(t, filepath.Join(root, ".trae", "metrics"), GetMetricsDir(root))
	assert.Equal(t, filepath.Join(root, ".trae", "backup", "run-1"), GetBackupDir(root, "run-1"))
}

func TestNormalizeRelPath(t *testing.T) {
	root := "/home/user/project"

	tests := []struct {
		name        string
		userPath    string
		expected    string
		expectError bool
	}{
		{name: "relative path", userPath: "src/main.rs", expected: "src/main.rs"},
		{name: "dot prefix", userPath: "./src/lib.rs", expected: "src/lib.rs"},
		{name: "absolute inside root", userPath: "/home/user/project/src/a.rs", expected: "src/a.rs"},
		{name: "escapes root", userPath: "../other/a.rs", expectError: true},
		{name: "absolute outside root", userPath: "/etc/passwd", expectError: true},
		{name: "dotdot prefixed name stays inside", userPath: "..hidden/a.rs", expected: "..hidden/a.rs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRelPath(root, tt.userPath)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "short.rs", TruncatePath("short.rs", 20))
	assert.Equal(t, "...ong/path.rs", TruncatePath("a/very/long/path.rs", 14))
	assert.Equal(t, "abcdef", TruncatePath("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}
