package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// MetricsView is what the metrics command displays: the scoring policy
// and the fingerprint cache counters. LastRun names the analyze run the
// counters were taken from, if any.
type MetricsView struct {
	Model     schema.ScoringModelView `json:"model"`
	Cache     schema.CacheStats       `json:"cache"`
	LastRun   string                  `json:"last_run,omitempty"`
	LastRunAt time.Time               `json:"last_run_at,omitzero"`
}

// PrintMetrics displays the scoring model and cache counters.
func PrintMetrics(view MetricsView, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut, schema.ParquetOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, view)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMetricsCSV(w, view, fmtFloat)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return WriteMetricsText(w, view, fmtFloat)
		}, "Wrote text")
	}
}

// WriteMetricsText displays metrics in human-readable text format.
func WriteMetricsText(w io.Writer, view MetricsView, fmtFloat func(float64) string) error {
	m := view.Model
	if _, err := fmt.Fprintf(w, "📐 %s\n%s\n\n", m.Title, m.Description); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Formula: %s\n", m.Formula); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Weights: %s=%s %s=%s %s=%s\n",
		schema.CriticalValue, fmtFloat(m.Weights[schema.CriticalValue]),
		schema.WarningValue, fmtFloat(m.Weights[schema.WarningValue]),
		schema.InfoValue, fmtFloat(m.Weights[schema.InfoValue])); err != nil {
		return err
	}

	data := make([][]string, 0, len(m.Bands))
	for _, b := range m.Bands {
		data = append(data, []string{b.Label, fmtFloat(b.MinScore)})
	}
	if err := writeTable(w, []string{"Label", "Min Score"}, data); err != nil {
		return err
	}

	c := view.Cache
	if view.LastRun != "" {
		if _, err := fmt.Fprintf(w, "\nLast analyze run: %s (%s)", view.LastRun, view.LastRunAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nCache: %d entries, %d hits, %d misses, %d expirations, %d computations, %d waits (hit rate %s%%)\n",
		c.Entries, c.Hits, c.Misses, c.Expirations, c.Computations, c.Waits, fmtFloat(c.HitRate*100))
	return err
}

// writeMetricsCSV flattens the view into metric,value rows.
func writeMetricsCSV(w io.Writer, view MetricsView, fmtFloat func(float64) string) error {
	m, c := view.Model, view.Cache
	return writeCSVWithHeader(w, []string{"metric", "value"}, func(cw *csv.Writer) error {
		rows := [][]string{
			{"curve_k", fmtFloat(m.CurveK)},
			{"weight_critical", fmtFloat(m.Weights[schema.CriticalValue])},
			{"weight_warning", fmtFloat(m.Weights[schema.WarningValue])},
			{"weight_info", fmtFloat(m.Weights[schema.InfoValue])},
		}
		for _, b := range m.Bands {
			rows = append(rows, []string{"band_" + b.Label, fmtFloat(b.MinScore)})
		}
		rows = append(rows,
			[]string{"cache_entries", fmt.Sprint(c.Entries)},
			[]string{"cache_hits", fmt.Sprint(c.Hits)},
			[]string{"cache_misses", fmt.Sprint(c.Misses)},
			[]string{"cache_expirations", fmt.Sprint(c.Expirations)},
			[]string{"cache_hit_rate", fmtFloat(c.HitRate)},
		)
		return cw.WriteAll(rows)
	})
}
