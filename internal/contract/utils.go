package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/traelabs/trae/schema"
)

// Score label constants. A higher quality score is better.
const (
	ExcellentValue = "Excellent" // Excellent value
	GoodValue      = "Good"      // Good value
	FairValue      = "Fair"      // Fair value
	PoorValue      = "Poor"      // Poor value
)

// Color variables for console output.
var (
	CriticalColor = color.New(color.FgRed, color.Bold)     // CriticalColor represents standard danger.
	WarningColor  = color.New(color.FgMagenta, color.Bold) // WarningColor represents strong, distinct warning.
	CautionColor  = color.New(color.FgYellow)              // CautionColor represents standard caution, not bold.
	InfoColor     = color.New(color.FgCyan)                // InfoColor represents informational / low-priority signal.
	OkColor       = color.New(color.FgGreen)               // OkColor represents a healthy result.
)

// ScoreBands are the label thresholds for quality scores, best first.
var ScoreBands = []schema.ScoreBand{
	{Label: ExcellentValue, MinScore: 90},
	{Label: GoodValue, MinScore: 75},
	{Label: FairValue, MinScore: 50},
	{Label: PoorValue, MinScore: 0},
}

// GetPlainLabel returns a plain text label for a quality score. This is the
// core logic used for CSV, JSON, and table printing.
func GetPlainLabel(score float64) string {
	for _, band := range ScoreBands {
		if score >= band.MinScore {
			return band.Label
		}
	}
	return PoorValue
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(score float64) string {
	text := GetPlainLabel(score)

	switch text {
	case ExcellentValue:
		return OkColor.Sprint(text)
	case GoodValue:
		return InfoColor.Sprint(text)
	case FairValue:
		return CautionColor.Sprint(text)
	default: // "Poor"
		return CriticalColor.Sprint(text)
	}
}

// GetSeverityLabel returns a colored severity name for console output.
func GetSeverityLabel(s schema.Severity) string {
	switch s {
	case schema.CriticalSeverity:
		return CriticalColor.Sprint(s.String())
	case schema.WarningSeverity:
		return WarningColor.Sprint(s.String())
	default:
		return InfoColor.Sprint(s.String())
	}
}

// GetOutcomeLabel returns a colored repair outcome for console output.
func GetOutcomeLabel(o schema.Outcome) string {
	switch o {
	case schema.SuccessOutcome:
		return OkColor.Sprint(string(o))
	case schema.FailedOutcome:
		return CriticalColor.Sprint(string(o))
	default:
		return CautionColor.Sprint(string(o))
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// ShouldIgnore returns true if the given path matches any of the exclude patterns.
// It supports simple glob patterns (using filepath.Match) when the pattern
// contains wildcard characters (*, ?, [ ]). Patterns ending with '/' are treated
// as prefixes. Patterns starting with '.' are treated as suffix (extension) matches.
// A user can provide patterns like "vendor/", "node_modules/", "*.min.js".
func ShouldIgnore(path string, excludes []string) bool {
	for _, ex := range excludes {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}

		// If the pattern contains glob characters, try filepath.Match.
		if strings.ContainsAny(ex, "*?[") {
			pat := strings.ReplaceAll(ex, "**", "*")
			if ok, err := filepath.Match(pat, path); err == nil && ok {
				return true
			}
			// Also try matching against the base filename (e.g. *.min.js)
			if ok, err := filepath.Match(pat, filepath.Base(path)); err == nil && ok {
				return true
			}
			continue
		}

		// Handle prefix, suffix, or substring matches
		switch {
		case strings.HasSuffix(ex, "/"):
			if strings.HasPrefix(path, ex) || strings.Contains(path, "/"+ex) {
				return true
			}
		case strings.HasPrefix(ex, "."):
			if strings.HasSuffix(path, ex) {
				return true
			}
		case strings.Contains(path, ex):
			return true
		}
	}
	return false
}

// stateDir is the well-known directory trae keeps under an analyzed root.
const stateDir = ".trae"

// GetStateDir returns the .trae directory for a root.
func GetStateDir(root string) string {
	return filepath.Join(root, stateDir)
}

// GetCacheDir returns the directory of the human-inspectable file cache.
func GetCacheDir(root string) string {
	return filepath.Join(root, stateDir, "cache")
}

// GetMetricsDir returns the directory that receives metrics snapshots.
func GetMetricsDir(root string) string {
	return filepath.Join(root, stateDir, "metrics")
}

// GetBackupDir returns the directory that receives pre-repair backups for a run.
func GetBackupDir(root, runID string) string {
	return filepath.Join(root, stateDir, "backup", runID)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for cache storage.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".trae_cache.db"
	}
	return filepath.Join(homeDir, ".trae_cache.db")
}

// GetRunsDBFilePath returns the path to the SQLite DB file for run history.
func GetRunsDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".trae_runs.db"
	}
	return filepath.Join(homeDir, ".trae_runs.db")
}

// NormalizeRelPath normalizes a user-provided path relative to root and
// ensures it stays within root. The result uses forward slashes.
func NormalizeRelPath(root, userPath string) (string, error) {
	// Handle absolute paths by making them relative to root
	if filepath.IsAbs(userPath) {
		relPath, err := filepath.Rel(root, userPath)
		if err != nil {
			return "", fmt.Errorf("path is outside root: %s", userPath)
		}
		userPath = relPath
	}

	cleanPath := filepath.Clean(userPath)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside root: %s", userPath)
	}

	normalized := filepath.ToSlash(cleanPath)
	normalized = strings.TrimPrefix(normalized, "./")

	return normalized, nil
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to leave room for the "..." prefix.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
