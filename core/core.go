// Package core has core logic for analysis, scoring and repair.
package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/traelabs/trae/core/fpcache"
	"github.com/traelabs/trae/core/score"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/iocache"
	"github.com/traelabs/trae/internal/outwriter"
)

// ExecutorFunc defines the function signature for executing the engine commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// NewCommandEngine builds the engine of one CLI invocation: a cache backed by
// the configured store and the built-in metrics sinks.
func NewCommandEngine(cfg *contract.Config, mgr contract.CacheManager) *Engine {
	var store contract.CacheStore
	if mgr != nil {
		store = mgr.GetCacheStore()
	}
	cache := fpcache.New(fpcache.Options{TTL: cfg.Options.CacheTTL, Store: store})
	return NewEngine(cache,
		WithStores(mgr),
		WithSinks(&iocache.JSONFileSink{}, &iocache.LogSink{Level: zerolog.DebugLevel}),
	)
}

// ExecuteAnalyze analyzes the configured root and prints the report.
// It serves as the main entry point for the 'analyze' command.
func ExecuteAnalyze(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	engine := NewCommandEngine(cfg, mgr)
	report, err := engine.Analyze(ctx, cfg.RootPath, cfg)
	if err != nil {
		return err
	}
	return outwriter.PrintAnalysisReport(report, cfg)
}

// ExecuteRepair analyzes the configured root, repairs what it found and
// prints the repair report. An aborted run still prints its partial report.
func ExecuteRepair(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	engine := NewCommandEngine(cfg, mgr)
	analysis, err := engine.Analyze(ctx, cfg.RootPath, cfg)
	if err != nil {
		return err
	}
	report, runErr := engine.Repair(ctx, analysis.Root, analysis.Issues, cfg)
	if report.RunID == "" {
		return runErr
	}
	return errors.Join(runErr, outwriter.PrintRepairReport(report, cfg))
}

// ExecuteMetrics prints the active scoring model and the cache counters.
// Entries come from the persistent cache store; hits, misses, expirations
// and hit rate come from the latest recorded analyze run under the root.
func ExecuteMetrics(_ context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	view := outwriter.MetricsView{
		Model: score.NewModel(cfg.Options).View(),
		Cache: NewCommandEngine(cfg, mgr).Metrics(),
	}
	if mgr != nil && mgr.GetCacheStore() != nil {
		status, err := mgr.GetCacheStore().GetStatus()
		if err != nil {
			contract.LogWarn("Failed to read cache status", err)
		} else {
			view.Cache.Entries = status.TotalEntries
		}
	}

	last, ok, err := iocache.LatestMetricsRecord(contract.GetMetricsDir(cfg.RootPath), AnalyzeCommand)
	if err != nil {
		contract.LogWarn("Failed to read metrics records", err)
	}
	if ok {
		view.LastRun = last.ID
		view.LastRunAt = last.StartedAt
		view.Cache.Hits = last.Extra[extraCacheHits]
		view.Cache.Misses = last.Extra[extraCacheMisses]
		view.Cache.Expirations = last.Extra[extraCacheExpirations]
		view.Cache.HitRate = last.CacheHitRate
	}
	return outwriter.PrintMetrics(view, cfg)
}
