// Package scheduler drives parallel rule evaluation over the fingerprint cache.
package scheduler

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/traelabs/trae/core/fpcache"
	"github.com/traelabs/trae/core/rules"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// Analyzer produces path-independent results for file content.
type Analyzer interface {
	Analyze(content []byte) schema.AnalysisResult
	Version() string
}

// Options configure a Scheduler.
type Options struct {
	// Root resolves records that carry no absolute path.
	Root string
	// Workers is the pool size. Zero selects contract.DefaultWorkers.
	Workers int
	// Policy sizes chunks. Nil selects an AdaptivePolicy with default bounds.
	Policy ChunkPolicy
	// ForceRefresh recomputes every fingerprint once per run.
	ForceRefresh bool
}

// Outcome is the normalized result of one run.
type Outcome struct {
	// Files are sorted by path.
	Files []schema.FileResult
	// Issues are ordered by path, then by the rule engine order.
	Issues []schema.Issue
	// Lines is the number of lines scanned across all files.
	Lines int
	// Chunks is the number of chunks dispatched.
	Chunks int
	// Abandoned counts files not analyzed because the run was cancelled.
	Abandoned int
}

// Scheduler partitions files into chunks and evaluates them on a bounded
// worker pool. The cache is supplied by the caller and may be shared.
type Scheduler struct {
	cache    *fpcache.Cache
	analyzer Analyzer
	opts     Options
}

// New creates a scheduler.
func New(cache *fpcache.Cache, analyzer Analyzer, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = contract.DefaultWorkers
	}
	if opts.Policy == nil {
		opts.Policy = AdaptivePolicy{Min: contract.DefaultChunkMin, Max: contract.DefaultChunkMax}
	}
	return &Scheduler{cache: cache, analyzer: analyzer, opts: opts}
}

// run holds the state shared by the workers of one Run call.
type run struct {
	version   string
	estimate  *estimator
	refreshed sync.Map // fingerprint -> struct{}

	mu      sync.Mutex
	results []schema.FileResult
	done    int
}

func (r *run) add(res schema.FileResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.done++
	r.mu.Unlock()
}

// Run analyzes records. On cancellation it stops dispatching, lets in-flight
// chunks wind down and returns the partial outcome with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, records []schema.FileRecord) (Outcome, error) {
	var total int64
	for _, rec := range records {
		total += rec.Size
	}
	initial := 0.0
	if len(records) > 0 {
		initial = float64(total) / float64(len(records))
	}
	r := &run{version: s.analyzer.Version(), estimate: newEstimator(initial, DefaultEWMAAlpha)}

	chunkCh := make(chan []schema.FileRecord)
	var wg sync.WaitGroup
	for range s.opts.Workers {
		wg.Go(func() {
			for chunk := range chunkCh {
				bytes, files := s.processChunk(ctx, r, chunk)
				r.estimate.observe(bytes, files)
			}
		})
	}

	chunks := 0
	next := 0
dispatch:
	for next < len(records) {
		size := s.opts.Policy.ChunkSize(len(records)-next, s.opts.Workers, r.estimate.current())
		end := min(next+size, len(records))
		select {
		case chunkCh <- records[next:end]:
			contract.Logger().Trace().Int("chunk", chunks).Int("files", end-next).Msg("dispatched chunk")
			next = end
			chunks++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(chunkCh)
	wg.Wait()

	out := r.outcome()
	out.Chunks = chunks
	out.Abandoned = len(records) - r.done
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// processChunk analyzes the files of one chunk and returns the bytes read.
func (s *Scheduler) processChunk(ctx context.Context, r *run, chunk []schema.FileRecord) (int64, int) {
	var bytes int64
	files := 0
	for _, rec := range chunk {
		if ctx.Err() != nil {
			break
		}
		res, n, ok := s.processFile(ctx, r, rec)
		if !ok {
			continue
		}
		bytes += n
		files++
		r.add(res)
	}
	return bytes, files
}

// processFile reads, fingerprints and analyzes one file. It reports false
// when the file was abandoned due to cancellation.
func (s *Scheduler) processFile(ctx context.Context, r *run, rec schema.FileRecord) (schema.FileResult, int64, bool) {
	abs := rec.AbsPath
	if abs == "" {
		abs = filepath.Join(s.opts.Root, filepath.FromSlash(rec.Path))
	}

	content, readErr := os.ReadFile(abs)
	if readErr != nil {
		err := contract.NewError(contract.IoError, "read", rec.Path, readErr)
		contract.Logger().Debug().Err(err).Msg("unreadable file")
		return fileIssue(rec, rules.IOErrorName, fmt.Sprintf("file unreadable: %v", readErr)), 0, true
	}

	fp := Fingerprint(content)
	rec = rec.WithFingerprint(fp)
	if s.opts.ForceRefresh {
		if _, seen := r.refreshed.LoadOrStore(fp, struct{}{}); !seen {
			s.cache.Invalidate(fp)
		}
	}

	res, cached, err := s.cache.GetOrCompute(ctx, fp, r.version, func(context.Context) (schema.AnalysisResult, error) {
		return s.analyzer.Analyze(content), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return schema.FileResult{}, 0, false
		}
		return fileIssue(rec, rules.DetectorErrorName, fmt.Sprintf("analysis failed: %v", err)), int64(len(content)), true
	}

	return schema.FileResult{File: rec, Result: res.ForPath(rec.Path), Cached: cached}, int64(len(content)), true
}

// Fingerprint returns the hex sha256 of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// fileIssue builds a result carrying a single file-level Info issue.
func fileIssue(rec schema.FileRecord, detector, msg string) schema.FileResult {
	return schema.FileResult{
		File: rec,
		Result: schema.AnalysisResult{
			Fingerprint: rec.Fingerprint,
			Issues: []schema.Issue{{
				Path:     rec.Path,
				Category: schema.QualityCategory,
				Severity: schema.InfoSeverity,
				Detector: detector,
				Message:  msg,
			}},
		},
	}
}

// outcome normalizes the collected results by path.
func (r *run) outcome() Outcome {
	r.mu.Lock()
	results := slices.Clone(r.results)
	r.mu.Unlock()

	slices.SortFunc(results, func(a, b schema.FileResult) int {
		return cmp.Compare(a.File.Path, b.File.Path)
	})

	out := Outcome{Files: results}
	for _, fr := range results {
		out.Lines += fr.Result.LinesScanned
		out.Issues = append(out.Issues, fr.Result.Issues...)
	}
	return out
}
