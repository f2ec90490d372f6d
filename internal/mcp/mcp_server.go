// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/traelabs/trae/core"
	"github.com/traelabs/trae/internal/contract"
)

// Tool names exposed by the server.
const (
	AnalyzeTreeTool  = "analyze_tree"
	RepairIssuesTool = "repair_issues"
	CacheMetricsTool = "cache_metrics"
)

// NewMCPServer initializes and configures the trae MCP server without starting it.
// All tools share one engine, so repeated analyses are served from its cache.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"trae Analysis Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		engine:  core.NewCommandEngine(baseCfg, mgr),
	}

	s.AddTool(mcp.NewTool(AnalyzeTreeTool,
		mcp.WithDescription("Analyze a source tree for security, performance, quality and complexity issues and return its quality score."),
		mcp.WithString("root", mcp.Description("Root directory to analyze (defaults to the server's working root).")),
		mcp.WithBoolean("include_security", mcp.Description("Run the security detectors.")),
		mcp.WithBoolean("include_performance", mcp.Description("Run the performance detectors.")),
		mcp.WithBoolean("include_quality", mcp.Description("Run the quality detectors.")),
		mcp.WithBoolean("include_complexity", mcp.Description("Run the complexity detectors.")),
		mcp.WithNumber("parallelism", mcp.Description("Number of workers (0 selects the configured default).")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of issues and ranked files returned.")),
	), h.handleAnalyzeTree)

	s.AddTool(mcp.NewTool(RepairIssuesTool,
		mcp.WithDescription("Analyze a source tree and apply automated repairs for the issues found."),
		mcp.WithString("root", mcp.Description("Root directory to repair (defaults to the server's working root).")),
		mcp.WithString("level", mcp.Description("Repair level. Defaults to 'safe'."), mcp.Enum("safe", "balanced", "aggressive")),
		mcp.WithBoolean("dry_run", mcp.Description("Plan the repair without touching any file.")),
	), h.handleRepairIssues)

	s.AddTool(mcp.NewTool(CacheMetricsTool,
		mcp.WithDescription("Report the fingerprint cache counters of this server."),
	), h.handleCacheMetrics)

	return s
}

// StartMCPServer starts the trae MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
