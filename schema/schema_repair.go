package schema

import "time"

// RepairStep records what happened when one fixer was applied to one issue.
type RepairStep struct {
	Issue   Issue    `json:"issue"`
	FixerID string   `json:"fixer_id"`
	Outcome Outcome  `json:"outcome"`
	Message string   `json:"message,omitempty"`
	Files   []string `json:"files,omitempty"`
}

// Confirmation is the advisory re-analysis result of a repair run.
type Confirmation struct {
	Checked   bool    `json:"checked"`
	Resolved  int     `json:"resolved"`
	Remaining []Issue `json:"remaining,omitempty"`
}

// RepairReport is the accumulated outcome of one repair run.
type RepairReport struct {
	RunID        string        `json:"run_id"`
	Root         string        `json:"root"`
	Level        RepairLevel   `json:"level"`
	State        RunState      `json:"state"`
	DryRun       bool          `json:"dry_run"`
	Steps        []RepairStep  `json:"steps"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	SkippedCount int           `json:"skipped_count"`
	Confirmation Confirmation  `json:"confirmation"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Record appends a step and updates the counters.
func (r *RepairReport) Record(step RepairStep) {
	r.Steps = append(r.Steps, step)
	switch step.Outcome {
	case SuccessOutcome:
		r.SuccessCount++
	case FailedOutcome:
		r.FailureCount++
	default:
		r.SkippedCount++
	}
}

// TouchedFiles returns the distinct files that successful steps wrote.
func (r *RepairReport) TouchedFiles() []string {
	seen := make(map[string]struct{})
	var files []string
	for _, s := range r.Steps {
		if s.Outcome != SuccessOutcome {
			continue
		}
		for _, f := range s.Files {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			files = append(files, f)
		}
	}
	return files
}
