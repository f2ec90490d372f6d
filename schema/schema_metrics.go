package schema

import "time"

// MetricsRecord is the flat record emitted after each analyze or repair run.
// Sinks are responsible for transmitting or storing it.
type MetricsRecord struct {
	ID               string           `json:"id"`
	Command          string           `json:"command"`
	Root             string           `json:"root"`
	StartedAt        time.Time        `json:"started_at"`
	DurationMs       int64            `json:"duration_ms"`
	Files            int              `json:"files"`
	Lines            int              `json:"lines"`
	Issues           int              `json:"issues"`
	IssuesByCategory map[string]int   `json:"issues_by_category"`
	IssuesBySeverity map[string]int   `json:"issues_by_severity"`
	Score            float64          `json:"score"`
	CacheHitRate     float64          `json:"cache_hit_rate"`
	Success          bool             `json:"success"`
	Extra            map[string]int64 `json:"extra,omitempty"`
}

// ScoringModelView describes the active scoring policy for display.
type ScoringModelView struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Weights     map[string]float64 `json:"weights"`
	CurveK      float64            `json:"curve_k"`
	Formula     string             `json:"formula"`
	Bands       []ScoreBand        `json:"bands"`
}

// ScoreBand maps a minimum score to a label.
type ScoreBand struct {
	Label    string  `json:"label"`
	MinScore float64 `json:"min_score"`
}
