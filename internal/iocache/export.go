package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/parquet"
)

// ExecuteRunsExport exports run history to two Parquet files derived from outputFile.
func ExecuteRunsExport(store contract.RunStore, outputFile string, w io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run history is disabled. Set --runs-backend to enable it")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total issue records: %d\n", status.TableSizes[IssuesTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	issues, err := store.GetAllIssues()
	if err != nil {
		return fmt.Errorf("failed to retrieve issues: %w", err)
	}

	runsFile := outputFile + ".analysis_runs.parquet"
	parquetRuns := parquet.ConvertRunRecords(runs)
	if err := parquet.WriteAnalysisRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(parquetRuns), runsFile)

	issuesFile := outputFile + ".issues.parquet"
	parquetIssues := parquet.ConvertIssueRecords(issues)
	if err := parquet.WriteIssuesParquet(parquetIssues, issuesFile); err != nil {
		return fmt.Errorf("failed to write issues: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d issues to: %s\n", len(parquetIssues), issuesFile)

	return nil
}
