package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/traelabs/trae/core"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	engine  *core.Engine
}

// analysisResponse is the compact analysis payload returned to agents.
type analysisResponse struct {
	RunID       string               `json:"run_id"`
	Root        string               `json:"root"`
	Score       schema.QualityScore  `json:"score"`
	Files       int                  `json:"files"`
	TotalIssues int                  `json:"total_issues"`
	Issues      []schema.Issue       `json:"issues"`
	Worst       []schema.FileScore   `json:"worst,omitempty"`
	Folders     []schema.FolderScore `json:"folders,omitempty"`
	Summary     map[string]int       `json:"summary"`
	Diagnostics int                  `json:"diagnostics"`
	Cache       schema.CacheStats    `json:"cache"`
}

func (h *toolHandler) configFor(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	if p := request.GetString("root", ""); p != "" {
		cfg.RootPath = p
	}
	if l := request.GetInt("limit", 0); l > 0 {
		cfg.ResultLimit = l
	}
	opts := &cfg.Options
	opts.IncludeSecurity = request.GetBool("include_security", opts.IncludeSecurity)
	opts.IncludePerformance = request.GetBool("include_performance", opts.IncludePerformance)
	opts.IncludeQuality = request.GetBool("include_quality", opts.IncludeQuality)
	opts.IncludeComplexity = request.GetBool("include_complexity", opts.IncludeComplexity)
	switch p := request.GetInt("parallelism", 0); {
	case p < 0:
		return nil, fmt.Errorf("parallelism must be positive, got %d", p)
	case p > 0:
		opts.Parallelism = p
	}
	return cfg, nil
}

func (h *toolHandler) handleAnalyzeTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.configFor(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid analysis parameters: %v", err)), nil
	}

	report, err := h.engine.Analyze(ctx, cfg.RootPath, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	issues := report.Issues
	if cfg.ResultLimit > 0 && len(issues) > cfg.ResultLimit {
		issues = issues[:cfg.ResultLimit]
	}
	resp := analysisResponse{
		RunID:       report.RunID,
		Root:        report.Root,
		Score:       report.Score,
		Files:       len(report.Files),
		TotalIssues: len(report.Issues),
		Issues:      issues,
		Worst:       report.Worst,
		Folders:     report.Folders,
		Summary:     report.Summary,
		Diagnostics: len(report.Diagnostics),
		Cache:       report.Cache,
	}
	return jsonResult(resp)
}

func (h *toolHandler) handleRepairIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.configFor(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid repair parameters: %v", err)), nil
	}
	if l := request.GetString("level", ""); l != "" {
		level := schema.RepairLevel(l)
		if _, ok := schema.ValidRepairLevels[level]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid repair level %q", l)), nil
		}
		cfg.RepairLevel = level
	}
	cfg.DryRun = request.GetBool("dry_run", cfg.DryRun)

	analysis, err := h.engine.Analyze(ctx, cfg.RootPath, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	report, err := h.engine.Repair(ctx, analysis.Root, analysis.Issues, cfg)
	if err != nil {
		return repairError(report, err), nil
	}
	return jsonResult(report)
}

// repairError reports a failed run. When the run got as far as starting,
// its partial report follows the error text as a second content block.
func repairError(report schema.RepairReport, err error) *mcp.CallToolResult {
	res := mcp.NewToolResultError(fmt.Sprintf("repair failed: %v", err))
	if report.RunID == "" {
		return res
	}
	data, encErr := json.MarshalIndent(report, "", "  ")
	if encErr != nil {
		return res
	}
	res.Content = append(res.Content, mcp.NewTextContent(string(data)))
	return res
}

func (h *toolHandler) handleCacheMetrics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.engine.Metrics())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
