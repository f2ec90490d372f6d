package cmd

import (
	"github.com/spf13/cobra"
	"github.com/traelabs/trae/core"
	"github.com/traelabs/trae/internal/contract"
)

// analyzeCmd scans a tree and reports its issues and quality score.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [root]",
	Short: "Scan a source tree and report its issues and quality score.",
	Long: `Walk a source tree, run the enabled detectors on every file and score the result.

Unchanged files are served from the fingerprint cache, so repeated runs over
the same tree only re-analyze what changed. The report contains:
- A quality score from 0 to 100 with its DPML (defects per million lines)
- The worst files and folders ranked by weighted defect density
- Every issue with its location, category, severity and suggested fix

Examples:
  # Analyze the current directory
  trae analyze

  # Only run the security detectors on a subtree
  trae analyze ./src --include-performance no --include-quality no --include-complexity no

  # Deep profile with a fresh cache
  trae analyze --profile deep --force-refresh

  # Export findings to CSV for tracking
  trae analyze --output csv --output-file issues.csv`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteAnalyze(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run analysis", err)
		}
	},
}

// repairCmd analyzes a tree and applies automated fixes.
var repairCmd = &cobra.Command{
	Use:   "repair [root]",
	Short: "Analyze a source tree and apply automated repairs.",
	Long: `Analyze a source tree, then apply the fixers allowed by the repair level.

Levels:
  safe       - formatting fixes only (default)
  balanced   - formatting and structural fixes
  aggressive - every registered fixer, including external tools

Each file is backed up under .trae/backup/<run-id> before its first change and
restored when a later step fails. After applying, the touched files are
re-analyzed to confirm which issues were resolved.

Examples:
  # See what would change without touching anything
  trae repair --dry-run

  # Apply structural fixes too
  trae repair --level balanced

  # Save the repair report as JSON
  trae repair --output json --output-file repair.json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRepair(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run repair", err)
		}
	},
}

// metricsCmd displays the scoring model and cache counters.
var metricsCmd = &cobra.Command{
	Use:   "metrics [root]",
	Short: "Display the scoring formula, weights and score bands.",
	Long: `Show how trae turns issues into a quality score.

Displays:
- The DPML formula and curve constant
- Severity weights (configurable in .trae.yaml under "weights")
- Score bands and their labels
- Cache entries in the configured cache backend
- Hits, misses and hit rate of the latest recorded analyze run

Examples:
  # Show the scoring model
  trae metrics

  # Machine-readable form
  trae metrics --output json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteMetrics(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot display metrics", err)
		}
	},
}
