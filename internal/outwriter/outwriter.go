// Package outwriter has output and writer logic.
package outwriter

import (
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// OutWriter provides a unified interface for all output operations.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteAnalysis prints an analysis report using the configured output format.
func (ow *OutWriter) WriteAnalysis(report schema.AnalysisReport, cfg *contract.Config) error {
	return PrintAnalysisReport(report, cfg)
}

// WriteRepair prints a repair report using the configured output format.
func (ow *OutWriter) WriteRepair(report schema.RepairReport, cfg *contract.Config) error {
	return PrintRepairReport(report, cfg)
}

// WriteMetrics prints the scoring model and cache counters using the configured output format.
func (ow *OutWriter) WriteMetrics(view MetricsView, cfg *contract.Config) error {
	return PrintMetrics(view, cfg)
}
