// Package schema holds the data types shared by the engine, the stores and the CLI.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// FileRecord describes one candidate file discovered by the walker.
// Fingerprint is empty until the file content has been read.
type FileRecord struct {
	Path        string    `json:"path"`
	AbsPath     string    `json:"-"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// WithFingerprint returns a copy of the record carrying the given fingerprint.
func (r FileRecord) WithFingerprint(fp string) FileRecord {
	r.Fingerprint = fp
	return r
}

// Issue is one detected defect instance. Line 0 means the issue applies to the whole file.
type Issue struct {
	Path     string   `json:"path,omitempty"`
	Line     int      `json:"line"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Detector string   `json:"detector"`
	Message  string   `json:"message"`
	FixID    string   `json:"fix_id,omitempty"`
}

// Key identifies an issue within a run for reporting and de-duplication.
func (i Issue) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", i.Path, i.Line, i.Detector, i.Message)
}

// AnalysisResult holds the issues found in one piece of content.
// Issues are path-independent; see ForPath.
type AnalysisResult struct {
	Fingerprint     string    `json:"fingerprint"`
	Issues          []Issue   `json:"issues"`
	LinesScanned    int       `json:"lines_scanned"`
	DetectorVersion string    `json:"detector_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// ForPath returns a copy of the result whose issues are bound to path.
// The receiver is left untouched so cached results can be shared between files.
func (r AnalysisResult) ForPath(path string) AnalysisResult {
	issues := make([]Issue, len(r.Issues))
	for i, is := range r.Issues {
		is.Path = path
		issues[i] = is
	}
	r.Issues = issues
	return r
}

// FileResult pairs a file with the analysis of its content.
type FileResult struct {
	File   FileRecord     `json:"file"`
	Result AnalysisResult `json:"result"`
	Cached bool           `json:"cached"`
}

// Diagnostic is a non-fatal note recorded while walking the tree.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Path    string         `json:"path,omitempty"`
	Message string         `json:"message"`
}

// QualityScore is the aggregate score of an analyzed set. It is always
// recomputed from the issues it summarizes.
type QualityScore struct {
	Value           float64 `json:"value"`
	Label           string  `json:"label"`
	DPML            float64 `json:"dpml"`
	SigmaLevel      float64 `json:"sigma_level"`
	WeightedDefects float64 `json:"weighted_defects"`
	LinesScanned    int     `json:"lines_scanned"`
	// Concentration is the Gini coefficient of weighted defects across files.
	Concentration float64 `json:"concentration"`
}

// FileScore is the score of a single file, used to rank the worst offenders.
type FileScore struct {
	Path   string       `json:"path"`
	Issues int          `json:"issues"`
	Score  QualityScore `json:"score"`
}

// FolderScore aggregates the files directly under one directory.
type FolderScore struct {
	Path   string       `json:"path"`
	Files  int          `json:"files"`
	Issues int          `json:"issues"`
	Score  QualityScore `json:"score"`
}

// AnalysisReport is everything an analyze run produces.
type AnalysisReport struct {
	RunID       string         `json:"run_id"`
	Root        string         `json:"root"`
	Files       []FileResult   `json:"files"`
	Issues      []Issue        `json:"issues"`
	Score       QualityScore   `json:"score"`
	Worst       []FileScore    `json:"worst,omitempty"`
	Folders     []FolderScore  `json:"folders,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
	Cache       CacheStats     `json:"cache"`
	Duration    time.Duration  `json:"duration_ns"`
	Summary     map[string]int `json:"summary"`
}

// TotalLines returns the number of lines scanned across all files.
func (r AnalysisReport) TotalLines() int {
	total := 0
	for _, f := range r.Files {
		total += f.Result.LinesScanned
	}
	return total
}

// Severity names as they appear in output and configuration.
const (
	InfoValue     = "Info"
	WarningValue  = "Warning"
	CriticalValue = "Critical"
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case CriticalSeverity:
		return CriticalValue
	case WarningSeverity:
		return WarningValue
	default:
		return InfoValue
	}
}

// ParseSeverity converts a case-insensitive severity name.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return InfoSeverity, nil
	case "warning", "warn":
		return WarningSeverity, nil
	case "critical":
		return CriticalSeverity, nil
	default:
		return InfoSeverity, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText encodes the severity by name so persisted entries stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CountIssues tallies issues by category and severity.
func CountIssues(issues []Issue) (byCategory map[Category]int, bySeverity map[Severity]int) {
	byCategory = make(map[Category]int, len(AllCategories))
	bySeverity = make(map[Severity]int, len(AllSeverities))
	for _, is := range issues {
		byCategory[is.Category]++
		bySeverity[is.Severity]++
	}
	return byCategory, bySeverity
}
