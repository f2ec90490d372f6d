package scheduler

import (
	"math"
	"sync"
)

// ChunkPolicy decides how many files the next chunk holds.
//   - files is the number of files not yet dispatched
//   - workers is the size of the worker pool
//   - avgBytes is the current per-file cost estimate
type ChunkPolicy interface {
	ChunkSize(files, workers int, avgBytes float64) int
}

// Default adaptive policy calibration.
const (
	DefaultChunkScale = 1.0 / 16 // files per byte of average file size, per worker
	DefaultEWMAAlpha  = 0.3
)

// AdaptivePolicy sizes chunks as Scale * avgBytes / workers, clamped to
// [Min, Max]. More workers yield smaller chunks; costlier files yield larger
// chunks so per-chunk dispatch overhead stays proportionate.
type AdaptivePolicy struct {
	Min   int
	Max   int
	Scale float64
}

// ChunkSize implements ChunkPolicy.
func (p AdaptivePolicy) ChunkSize(files, workers int, avgBytes float64) int {
	workers = max(workers, 1)
	scale := p.Scale
	if scale <= 0 {
		scale = DefaultChunkScale
	}
	size := int(math.Round(scale * max(avgBytes, 0) / float64(workers)))
	return clampChunk(size, p.Min, p.Max, files)
}

// FixedPolicy always returns Size (at least one file).
type FixedPolicy struct {
	Size int
}

// ChunkSize implements ChunkPolicy.
func (p FixedPolicy) ChunkSize(files, _ int, _ float64) int {
	return clampChunk(p.Size, 1, p.Size, files)
}

func clampChunk(size, lo, hi, files int) int {
	lo = max(lo, 1)
	if hi < lo {
		hi = lo
	}
	size = min(max(size, lo), hi)
	if files > 0 {
		size = min(size, files)
	}
	return size
}

// estimator is an exponentially weighted moving average of bytes per file.
type estimator struct {
	mu    sync.Mutex
	alpha float64
	value float64
}

func newEstimator(initial, alpha float64) *estimator {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultEWMAAlpha
	}
	return &estimator{alpha: alpha, value: initial}
}

// observe folds one finished chunk into the estimate.
func (e *estimator) observe(bytes int64, files int) {
	if files <= 0 {
		return
	}
	sample := float64(bytes) / float64(files)
	e.mu.Lock()
	e.value = e.alpha*sample + (1-e.alpha)*e.value
	e.mu.Unlock()
}

func (e *estimator) current() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}
