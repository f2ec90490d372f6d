package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// PrintRepairReport outputs a repair report using the configured output format.
// Parquet is not offered for repair steps and falls back to JSON.
func PrintRepairReport(report schema.RepairReport, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut, schema.ParquetOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRepairCSV(w, report)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return WriteRepairText(w, report, cfg)
		}, "Wrote text")
	}
}

// WriteRepairText renders the human-readable repair report.
func WriteRepairText(w io.Writer, report schema.RepairReport, cfg *contract.Config) error {
	mode := "apply"
	if report.DryRun {
		mode = "dry-run"
	}
	if _, err := fmt.Fprintf(w, "Repair %s (%s, level %s): %s\n", report.RunID, mode, report.Level, report.State); err != nil {
		return err
	}

	if len(report.Steps) > 0 {
		pathWidth := GetMaxTablePathWidth(cfg)
		data := make([][]string, 0, len(report.Steps))
		for _, s := range report.Steps {
			data = append(data, []string{
				contract.TruncatePath(s.Issue.Path, pathWidth),
				strconv.Itoa(s.Issue.Line),
				s.Issue.Detector,
				s.FixerID,
				outcomeLabel(cfg, s.Outcome),
				s.Message,
			})
		}
		if err := writeTable(w, []string{"Path", "Line", "Detector", "Fixer", "Outcome", "Message"}, data); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "Succeeded: %d  Failed: %d  Skipped: %d\n",
		report.SuccessCount, report.FailureCount, report.SkippedCount); err != nil {
		return err
	}
	if report.Confirmation.Checked {
		if _, err := fmt.Fprintf(w, "Confirmation: %d resolved, %d remaining\n",
			report.Confirmation.Resolved, len(report.Confirmation.Remaining)); err != nil {
			return err
		}
	}
	if report.Error != "" {
		if _, err := fmt.Fprintf(w, "Error: %s\n", report.Error); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Repair finished in %v\n", report.Duration)
	return err
}

// writeRepairCSV writes one row per repair step.
func writeRepairCSV(w io.Writer, report schema.RepairReport) error {
	header := []string{"run_id", "path", "line", "detector", "fixer", "outcome", "message", "files"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, s := range report.Steps {
			rec := []string{
				report.RunID,
				s.Issue.Path,
				strconv.Itoa(s.Issue.Line),
				s.Issue.Detector,
				s.FixerID,
				string(s.Outcome),
				s.Message,
				strings.Join(s.Files, "|"),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
