// Package cmd defines the command-line interface for trae.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheSweepCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("exclude", "", "Comma-separated list of path prefixes or patterns to ignore")
	rootCmd.PersistentFlags().String("ignore", "", "Comma-separated gitignore-style patterns to skip, on top of .gitignore and .traeignore")
	rootCmd.PersistentFlags().String("extensions", "", "Comma-separated list of file extensions to analyze (default: all)")
	rootCmd.PersistentFlags().Int64("max-file-size", contract.DefaultMaxFileSize, "Skip files larger than this many bytes")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns (1 or 2)")
	rootCmd.PersistentFlags().String("parallelism", contract.AutoParallelism, "Number of concurrent workers or 'auto'")
	rootCmd.PersistentFlags().String("profile", "", "Analysis profile: fast or balanced or deep")
	rootCmd.PersistentFlags().String("pprof", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.FileBackend), "Cache backend: file or sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().Int("cache-ttl-seconds", contract.DefaultCacheTTLSeconds, "Seconds a cached analysis result stays valid (0 = never expires)")
	rootCmd.PersistentFlags().String("runs-backend", "", "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("runs-db-connect", "", "Database connection string for run history (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("metrics", "yes", "Emit a metrics record after each run (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	// Analysis flags are shared by analyze, repair and mcp
	rootCmd.PersistentFlags().String("include-security", "", "Run the security detectors (yes/no)")
	rootCmd.PersistentFlags().String("include-performance", "", "Run the performance detectors (yes/no)")
	rootCmd.PersistentFlags().String("include-quality", "", "Run the quality detectors (yes/no)")
	rootCmd.PersistentFlags().String("include-complexity", "", "Run the complexity detectors (yes/no)")
	rootCmd.PersistentFlags().Int("multiline-threshold", 0, "Function length in lines that raises a finding (0 = profile default)")
	rootCmd.PersistentFlags().Int("file-length-threshold", 0, "File length in lines that raises a finding (0 = profile default)")
	rootCmd.PersistentFlags().Int("branch-threshold", 0, "Branch keywords per function that raise a finding (0 = profile default)")
	rootCmd.PersistentFlags().Int("duplicate-window", 0, "Minimum run of identical lines reported as duplicated (0 = profile default)")
	rootCmd.PersistentFlags().Int("chunk-min", 0, "Smallest batch of files handed to a worker (0 = profile default)")
	rootCmd.PersistentFlags().Int("chunk-max", 0, "Largest batch of files handed to a worker (0 = profile default)")
	rootCmd.PersistentFlags().Bool("force-refresh", false, "Ignore cached results and recompute every file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of repairCmd to Viper
	repairCmd.Flags().String("level", string(schema.SafeLevel), "Repair level: safe or balanced or aggressive")
	repairCmd.Flags().Bool("dry-run", false, "Plan the repair without touching any file")
	repairCmd.Flags().String("backup", "yes", "Copy each file under .trae/backup before its first change (yes/no)")
	repairCmd.Flags().String("confirm", "yes", "Re-analyze touched files after repair (yes/no)")
	if err := viper.BindPFlags(repairCmd.Flags()); err != nil {
		contract.LogFatal("Error binding repair flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
