package core

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/traelabs/trae/core/fpcache"
	"github.com/traelabs/trae/core/repair"
	"github.com/traelabs/trae/core/rules"
	"github.com/traelabs/trae/core/scheduler"
	"github.com/traelabs/trae/core/score"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/internal/walker"
	"github.com/traelabs/trae/schema"
)

// Metrics command names.
const (
	AnalyzeCommand = "analyze"
	RepairCommand  = "repair"
)

// Extra keys of an analyze record holding the cache counters of that run.
const (
	extraCacheHits        = "cache_hits"
	extraCacheMisses      = "cache_misses"
	extraCacheExpirations = "cache_expirations"
)

// Engine ties the walker, scheduler, scorer and repair orchestrator together
// around one fingerprint cache. It is safe for concurrent use; concurrent
// runs share cached results.
type Engine struct {
	cache  *fpcache.Cache
	stores contract.CacheManager
	sinks  []contract.MetricsSink
	runner contract.CommandRunner
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStores records analyze runs in the run store of mgr.
func WithStores(mgr contract.CacheManager) Option {
	return func(e *Engine) { e.stores = mgr }
}

// WithSinks adds metrics sinks. Records are only emitted when the run
// config enables metrics.
func WithSinks(sinks ...contract.MetricsSink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

// WithCommandRunner replaces the runner used by external fixers.
func WithCommandRunner(runner contract.CommandRunner) Option {
	return func(e *Engine) { e.runner = runner }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine around cache. A nil cache selects a private
// in-memory cache without expiry.
func NewEngine(cache *fpcache.Cache, opts ...Option) *Engine {
	if cache == nil {
		cache = fpcache.New(fpcache.Options{})
	}
	e := &Engine{cache: cache, runner: repair.LocalCommandRunner{}, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics returns the counters of the engine's fingerprint cache.
func (e *Engine) Metrics() schema.CacheStats {
	return e.cache.Stats()
}

// Analyze walks root, evaluates every file through the cache and scores the
// result. Only EnvironmentFatal errors and cancellation are returned;
// per-file failures surface as issues or diagnostics in the report.
func (e *Engine) Analyze(ctx context.Context, root string, cfg *contract.Config) (schema.AnalysisReport, error) {
	start := e.now()
	runID := uuid.NewString()

	w, err := walker.New(root, walker.IgnoreSpec{
		Patterns:    cfg.IgnorePatterns,
		Excludes:    cfg.Excludes,
		MaxFileSize: cfg.MaxFileSize,
		Extensions:  cfg.Extensions,
	})
	if err != nil {
		return schema.AnalysisReport{}, err
	}
	records := slices.Collect(w.Records(ctx))
	if err := ctx.Err(); err != nil {
		return schema.AnalysisReport{}, err
	}
	contract.Logger().Debug().Str("root", w.Root()).Int("files", len(records)).Msg("walk finished")

	before := e.cache.Stats()
	opts := cfg.Options
	sched := scheduler.New(e.cache, rules.New(opts), scheduler.Options{
		Root:         w.Root(),
		Workers:      opts.Parallelism,
		Policy:       scheduler.AdaptivePolicy{Min: opts.ChunkMin, Max: opts.ChunkMax},
		ForceRefresh: opts.ForceRefresh,
	})
	out, err := sched.Run(ctx, records)
	if err != nil {
		return schema.AnalysisReport{}, err
	}
	after := e.cache.Stats()

	model := score.NewModel(opts)
	report := schema.AnalysisReport{
		RunID:       runID,
		Root:        w.Root(),
		Files:       out.Files,
		Issues:      out.Issues,
		Score:       model.Report(out.Files),
		Worst:       model.RankFiles(out.Files, cfg.ResultLimit),
		Folders:     model.RankFolders(out.Files, cfg.ResultLimit),
		Diagnostics: w.Diagnostics(),
		Cache:       after,
		Summary:     summarize(out.Issues),
	}
	report.Duration = e.now().Sub(start)

	e.recordRun(report, start, cfg)
	e.emit(ctx, cfg, schema.MetricsRecord{
		ID:               runID,
		Command:          AnalyzeCommand,
		Root:             report.Root,
		StartedAt:        start,
		DurationMs:       report.Duration.Milliseconds(),
		Files:            len(report.Files),
		Lines:            out.Lines,
		Issues:           len(report.Issues),
		IssuesByCategory: categoryCounts(report.Issues),
		IssuesBySeverity: severityCounts(report.Issues),
		Score:            report.Score.Value,
		CacheHitRate:     hitRate(before, after),
		Success:          true,
		Extra: map[string]int64{
			"chunks":              int64(out.Chunks),
			"diagnostics":         int64(len(report.Diagnostics)),
			extraCacheHits:        after.Hits - before.Hits,
			extraCacheMisses:      after.Misses - before.Misses,
			extraCacheExpirations: after.Expirations - before.Expirations,
		},
	})
	return report, nil
}

// Repair applies the registered fixers to issues found under root.
// The report is returned even when the run aborts.
func (e *Engine) Repair(ctx context.Context, root string, issues []schema.Issue, cfg *contract.Config) (schema.RepairReport, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return schema.RepairReport{}, contract.NewError(contract.EnvironmentFatal, "resolve root", root, err)
	}
	registry, err := repair.DefaultRegistry(cfg.ExternalFixers, e.runner)
	if err != nil {
		return schema.RepairReport{}, fmt.Errorf("failed to build fixer registry: %w", err)
	}
	orch := repair.New(registry, rules.New(cfg.Options), repair.Options{
		Level:   cfg.RepairLevel,
		DryRun:  cfg.DryRun,
		Backup:  cfg.Backup,
		Confirm: cfg.Confirm,
		Workers: cfg.Options.Parallelism,
		Now:     e.now,
	})

	report, runErr := orch.Run(ctx, absRoot, issues)
	e.emit(ctx, cfg, schema.MetricsRecord{
		ID:               report.RunID,
		Command:          RepairCommand,
		Root:             absRoot,
		StartedAt:        report.StartedAt,
		DurationMs:       report.Duration.Milliseconds(),
		Files:            len(report.TouchedFiles()),
		Issues:           len(issues),
		IssuesByCategory: categoryCounts(issues),
		IssuesBySeverity: severityCounts(issues),
		CacheHitRate:     e.cache.Stats().HitRate,
		Success:          runErr == nil && report.State == schema.CompletedState,
		Extra: map[string]int64{
			"succeeded": int64(report.SuccessCount),
			"failed":    int64(report.FailureCount),
			"skipped":   int64(report.SkippedCount),
			"resolved":  int64(report.Confirmation.Resolved),
		},
	})
	return report, runErr
}

// recordRun stores the run and its issues when a run store is configured.
// Failures are logged and never fail the analysis.
func (e *Engine) recordRun(report schema.AnalysisReport, start time.Time, cfg *contract.Config) {
	if e.stores == nil {
		return
	}
	store := e.stores.GetRunStore()
	if store == nil {
		return
	}
	runID, err := store.BeginRun(start, report.RunID, report.Root, cfg.ConfigParams())
	if err != nil {
		contract.LogWarn("Failed to begin run record", err)
		return
	}
	if err := store.RecordIssues(runID, report.Issues); err != nil {
		contract.LogWarn("Failed to record run issues", err)
	}
	end := start.Add(report.Duration)
	if err := store.EndRun(runID, end, len(report.Files), report.TotalLines(), report.Score.Value); err != nil {
		contract.LogWarn("Failed to end run record", err)
	}
}

// emit hands record to every sink. Sink failures are logged.
func (e *Engine) emit(ctx context.Context, cfg *contract.Config, record schema.MetricsRecord) {
	if !cfg.EmitMetrics {
		return
	}
	for _, sink := range e.sinks {
		if err := sink.Emit(ctx, record); err != nil {
			contract.LogWarn("Failed to emit metrics", err)
		}
	}
}

// summarize counts issues by category and severity name.
func summarize(issues []schema.Issue) map[string]int {
	summary := categoryCounts(issues)
	for name, n := range severityCounts(issues) {
		summary[name] = n
	}
	return summary
}

func categoryCounts(issues []schema.Issue) map[string]int {
	byCategory, _ := schema.CountIssues(issues)
	out := make(map[string]int, len(schema.AllCategories))
	for _, c := range schema.AllCategories {
		out[string(c)] = byCategory[c]
	}
	return out
}

func severityCounts(issues []schema.Issue) map[string]int {
	_, bySeverity := schema.CountIssues(issues)
	out := make(map[string]int, len(schema.AllSeverities))
	for _, s := range schema.AllSeverities {
		out[s.String()] = bySeverity[s]
	}
	return out
}

// hitRate is the share of lookups between two snapshots served from the cache.
func hitRate(before, after schema.CacheStats) float64 {
	hits := after.Hits - before.Hits
	lookups := hits + after.Misses - before.Misses
	if lookups <= 0 {
		return 0
	}
	return float64(hits) / float64(lookups)
}
