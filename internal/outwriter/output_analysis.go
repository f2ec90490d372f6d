package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/parquet"
	"github.com/traelabs/trae/schema"
)

// PrintAnalysisReport outputs an analysis report, dispatching based on the output format configured.
func PrintAnalysisReport(report schema.AnalysisReport, cfg *contract.Config) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeIssuesCSV(w, report.Issues, intFmt)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if err := requireOutputFile(cfg); err != nil {
			return err
		}
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.WriteIssues(w, parquet.ConvertIssues(0, report.Issues))
		}, "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return WriteAnalysisText(w, report, cfg, fmtFloat, intFmt)
		}, "Wrote text")
	}
}

// WriteAnalysisText renders the human-readable analysis report.
func WriteAnalysisText(w io.Writer, report schema.AnalysisReport, cfg *contract.Config, fmtFloat func(float64) string, intFmt string) error {
	s := report.Score
	if _, err := fmt.Fprintf(w, "Quality score: %s (%s)  DPML: %s  Sigma: %s  Concentration: %s\n",
		fmtFloat(s.Value), scoreLabel(cfg, s.Value), fmtFloat(s.DPML), fmtFloat(s.SigmaLevel), fmtFloat(s.Concentration)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Files: "+intFmt+"  Lines: "+intFmt+"  Issues: "+intFmt+"\n",
		len(report.Files), report.TotalLines(), len(report.Issues)); err != nil {
		return err
	}

	pathWidth := GetMaxTablePathWidth(cfg)
	if len(report.Worst) > 0 {
		if _, err := fmt.Fprintln(w, "\nWorst files"); err != nil {
			return err
		}
		data := make([][]string, 0, len(report.Worst))
		for i, f := range report.Worst {
			data = append(data, []string{
				strconv.Itoa(i + 1),
				contract.TruncatePath(f.Path, pathWidth),
				fmt.Sprintf(intFmt, f.Issues),
				fmtFloat(f.Score.Value),
				scoreLabel(cfg, f.Score.Value),
				fmtFloat(f.Score.DPML),
			})
		}
		if err := writeTable(w, []string{"Rank", "Path", "Issues", "Score", "Label", "DPML"}, data); err != nil {
			return err
		}
	}

	if len(report.Folders) > 0 {
		if _, err := fmt.Fprintln(w, "\nWorst folders"); err != nil {
			return err
		}
		data := make([][]string, 0, len(report.Folders))
		for i, f := range report.Folders {
			data = append(data, []string{
				strconv.Itoa(i + 1),
				contract.TruncatePath(f.Path, pathWidth),
				fmt.Sprintf(intFmt, f.Files),
				fmt.Sprintf(intFmt, f.Issues),
				fmtFloat(f.Score.Value),
				scoreLabel(cfg, f.Score.Value),
			})
		}
		if err := writeTable(w, []string{"Rank", "Folder", "Files", "Issues", "Score", "Label"}, data); err != nil {
			return err
		}
	}

	if err := writeIssueTable(w, report.Issues, cfg, pathWidth); err != nil {
		return err
	}

	byCategory, bySeverity := schema.CountIssues(report.Issues)
	if _, err := fmt.Fprint(w, "\nBy category:"); err != nil {
		return err
	}
	for _, c := range schema.AllCategories {
		if _, err := fmt.Fprintf(w, " %s="+intFmt, c, byCategory[c]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\nBy severity:"); err != nil {
		return err
	}
	for _, sev := range schema.AllSeverities {
		if _, err := fmt.Fprintf(w, " %s="+intFmt, sev, bySeverity[sev]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	if len(report.Diagnostics) > 0 {
		if _, err := fmt.Fprintf(w, "Diagnostics: "+intFmt+" (use --output json for details)\n", len(report.Diagnostics)); err != nil {
			return err
		}
	}
	c := report.Cache
	if _, err := fmt.Fprintf(w, "Analysis completed in %v. Cache hits: %d, misses: %d, hit rate: %s\n",
		report.Duration, c.Hits, c.Misses, fmtFloat(c.HitRate*100)+"%"); err != nil {
		return err
	}
	return nil
}

// writeIssueTable prints up to cfg.ResultLimit issues.
func writeIssueTable(w io.Writer, issues []schema.Issue, cfg *contract.Config, pathWidth int) error {
	if len(issues) == 0 {
		_, err := fmt.Fprintln(w, "\nNo issues found")
		return err
	}
	shown := issues
	if cfg.ResultLimit > 0 && len(shown) > cfg.ResultLimit {
		shown = shown[:cfg.ResultLimit]
	}
	if _, err := fmt.Fprintln(w, "\nIssues"); err != nil {
		return err
	}
	data := make([][]string, 0, len(shown))
	for _, is := range shown {
		data = append(data, []string{
			contract.TruncatePath(is.Path, pathWidth),
			strconv.Itoa(is.Line),
			severityLabel(cfg, is.Severity),
			string(is.Category),
			is.Detector,
			is.Message,
		})
	}
	if err := writeTable(w, []string{"Path", "Line", "Severity", "Category", "Detector", "Message"}, data); err != nil {
		return err
	}
	if len(shown) < len(issues) {
		if _, err := fmt.Fprintf(w, "Showing %d of %d issues\n", len(shown), len(issues)); err != nil {
			return err
		}
	}
	return nil
}

// writeIssuesCSV writes one row per issue.
func writeIssuesCSV(w io.Writer, issues []schema.Issue, intFmt string) error {
	header := []string{"path", "line", "category", "severity", "detector", "message", "fix_id"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, is := range issues {
			rec := []string{
				is.Path,
				fmt.Sprintf(intFmt, is.Line),
				string(is.Category),
				is.Severity.String(),
				is.Detector,
				is.Message,
				is.FixID,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func scoreLabel(cfg *contract.Config, score float64) string {
	if cfg.UseColors {
		return contract.GetColorLabel(score)
	}
	return contract.GetPlainLabel(score)
}

func severityLabel(cfg *contract.Config, s schema.Severity) string {
	if cfg.UseColors {
		return contract.GetSeverityLabel(s)
	}
	return s.String()
}

func outcomeLabel(cfg *contract.Config, o schema.Outcome) string {
	if cfg.UseColors {
		return contract.GetOutcomeLabel(o)
	}
	return string(o)
}
