package cmd

import (
	"github.com/spf13/cobra"
	"github.com/traelabs/trae/internal/mcp"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp [root]",
	Short: "Start the trae MCP server",
	Long: `Launch an MCP server on stdio that allows AI agents to analyze and repair
source trees via standard tools.

Tools:
  analyze_tree  - analyze a tree and return its issues and quality score
  repair_issues - analyze a tree and apply automated repairs
  cache_metrics - report the fingerprint cache counters of the server

All tools share one fingerprint cache for the lifetime of the server.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}
