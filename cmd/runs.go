package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/iocache"
	"github.com/traelabs/trae/schema"
)

// runsBackend reads and validates the run history backend from config.
func runsBackend() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	// Handle empty backend as NoneBackend
	backend := schema.DatabaseBackend(viper.GetString("runs-backend"))
	if backend == "" {
		backend = schema.NoneBackend
	}
	connStr := viper.GetString("runs-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup loads minimal configuration needed for run history operations.
// This is used by commands that need run access without full shared setup.
func runsSetup() error {
	backend, connStr, err := runsBackend()
	if err != nil {
		return err
	}

	// Initialize stores with the loaded config (no cache for run commands)
	mgr, err := iocache.OpenStores(iocache.StoreConfig{RunsBackend: backend, RunsDBConnect: connStr})
	if err != nil {
		return fmt.Errorf("failed to initialize run history: %w", err)
	}

	cacheManager = mgr
	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")

	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsMigrateSetup loads minimal configuration needed for migrate and clear.
// This is a specialized setup that does NOT initialize stores or create tables,
// allowing migrations to run on a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runsBackend()
	if err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunsDBFilePath()
	}

	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr

	return nil
}

// runsCmd focused on run history management.
//
// Note: Runs subcommands use minimal initialization (runsSetup) instead of
// the full sharedSetup used by analysis commands.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage recorded analysis runs and exports",
	Long: `Manage the history of analysis runs used for trend tracking and reporting.

When enabled, trae records every analyze run, storing:
- Run metadata (timestamp, root, configuration, duration)
- Totals (files, lines, quality score)
- Every issue found in the run

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, default)

Subcommands:
  status  - Show run history statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all run history
  migrate - Run database schema migrations

Examples:
  # Record runs in the default SQLite database
  trae analyze --runs-backend sqlite

  # Export for analysis in pandas/DuckDB
  trae runs export --runs-backend sqlite --output-file runs.parquet`,
}

// runsClearCmd clears the run history.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs",
	Long: `Delete all stored runs and their issues.

WARNING: This action cannot be undone. Consider exporting data first.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the run tables

Examples:
  # Export before clearing
  trae runs export --output-file backup.parquet
  trae runs clear`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearRuns(cfg.RunsBackend, cfg.RunsDBConnect); err != nil {
			contract.LogFatal("Failed to clear run history", err)
		}
		fmt.Println("Run history cleared successfully.")
	},
}

// runsStatusCmd shows run history status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run history statistics and connection details",
	Long: `Show detailed information about recorded runs.

Displays:
- Backend type and connection status
- Total number of runs stored
- Last and oldest run timestamps
- Total issues recorded across all runs
- Database table sizes

Examples:
  # Check run history status
  trae runs status --runs-backend sqlite`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := cacheManager.GetRunStore()
		if store == nil {
			contract.LogFatal("Failed to get run status", errors.New("run history is disabled. Set --runs-backend to enable it"))
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsExportCmd exports run history to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to Parquet for BI tools and analytics",
	Long: `Export all recorded runs to Parquet format for use with analytics tools.

Exports two datasets:
- Runs - metadata and totals of each analysis
- Issues - every issue recorded per run

Requires: --output-file parameter

Examples:
  # Export all data
  trae runs export --output-file trae-data.parquet

  # Use with DuckDB for analysis
  duckdb -c "SELECT * FROM read_parquet('trae-data.parquet.analysis_runs.parquet') LIMIT 10"`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteRunsExport(cacheManager.GetRunStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export run history", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run history store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  trae runs migrate --runs-backend postgresql --runs-db-connect "..."

  # Migrate to specific version
  trae runs migrate --target-version 2

  # Rollback to the initial state
  trae runs migrate --target-version 0`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		msg, err := iocache.MigrateRuns(cfg.RunsBackend, cfg.RunsDBConnect, targetVersion)
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		fmt.Println(msg)
	},
}
