// Package fpcache memoizes analysis results by content fingerprint.
//
// Each fingerprint owns a slot with its own mutex, so lookups for different
// fingerprints never contend. A slot holds at most one live entry and at most
// one in-flight computation; concurrent requesters of the same fingerprint
// wait on the computation's done channel and share its result.
package fpcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// ComputeFunc produces the analysis result for a fingerprint on a miss.
type ComputeFunc func(ctx context.Context) (schema.AnalysisResult, error)

// Options configure a Cache.
type Options struct {
	// TTL is the lifetime of an entry. Zero or negative disables expiry.
	TTL time.Duration
	// Store optionally persists entries across processes.
	Store contract.CacheStore
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry struct {
	result    schema.AnalysisResult
	version   string
	writtenAt time.Time
}

// call is a single-assignment result slot. res and err are written once
// before done is closed.
type call struct {
	done      chan struct{}
	version   string
	res       schema.AnalysisResult
	err       error
	abandoned bool
}

type slot struct {
	mu       sync.Mutex
	entry    *entry
	inflight *call
	// dead marks a slot removed from the map. Holders must look it up again.
	dead bool
}

// Cache maps fingerprints to analysis results.
type Cache struct {
	slots sync.Map // string -> *slot
	ttl   time.Duration
	store contract.CacheStore
	now   func() time.Time

	hits         atomic.Int64
	misses       atomic.Int64
	expirations  atomic.Int64
	computations atomic.Int64
	waits        atomic.Int64
}

// New creates an empty cache.
func New(opts Options) *Cache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: opts.TTL, store: opts.Store, now: now}
}

func (c *Cache) slot(fp string) *slot {
	if s, ok := c.slots.Load(fp); ok {
		return s.(*slot)
	}
	s, _ := c.slots.LoadOrStore(fp, &slot{})
	return s.(*slot)
}

func (c *Cache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.writtenAt) > c.ttl
}

// GetOrCompute returns the live entry for fp computed under version, or runs
// compute to produce it. At most one computation per fingerprint runs at a
// time; other callers wait for it. The boolean reports whether the result was
// served without this caller running compute.
//
// A computation abandoned because its context was cancelled publishes
// nothing. Its waiters retry while their own contexts are live.
func (c *Cache) GetOrCompute(ctx context.Context, fp, version string, compute ComputeFunc) (schema.AnalysisResult, bool, error) {
	s := c.slot(fp)
	for {
		if err := ctx.Err(); err != nil {
			return schema.AnalysisResult{}, false, err
		}

		s.mu.Lock()
		if s.dead {
			s.mu.Unlock()
			s = c.slot(fp)
			continue
		}
		if e := s.entry; e != nil {
			if c.expired(e) {
				s.entry = nil
				c.expirations.Add(1)
			} else if e.version == version {
				s.mu.Unlock()
				c.hits.Add(1)
				return e.result, true, nil
			}
		}

		if cl := s.inflight; cl != nil {
			s.mu.Unlock()
			c.waits.Add(1)
			select {
			case <-cl.done:
			case <-ctx.Done():
				return schema.AnalysisResult{}, false, ctx.Err()
			}
			switch {
			case cl.abandoned, cl.version != version:
				continue
			case cl.err != nil:
				return schema.AnalysisResult{}, false, cl.err
			default:
				c.hits.Add(1)
				return cl.res, true, nil
			}
		}

		cl := &call{done: make(chan struct{}), version: version}
		s.inflight = cl
		s.mu.Unlock()

		return c.load(ctx, s, cl, fp, compute)
	}
}

// load fills an in-flight call from the persistent store or by computing.
func (c *Cache) load(ctx context.Context, s *slot, cl *call, fp string, compute ComputeFunc) (schema.AnalysisResult, bool, error) {
	if e, ok := c.readThrough(fp, cl.version); ok {
		c.publish(s, cl, e, nil)
		c.hits.Add(1)
		return e.result, true, nil
	}

	c.misses.Add(1)
	c.computations.Add(1)
	res, err := safeCompute(ctx, compute)
	if err != nil {
		cl.abandoned = ctx.Err() != nil
		c.publish(s, cl, nil, err)
		return schema.AnalysisResult{}, false, err
	}
	if res.Fingerprint == "" {
		res.Fingerprint = fp
	}
	res.DetectorVersion = cl.version

	e := &entry{result: res, version: cl.version, writtenAt: c.now()}
	c.publish(s, cl, e, nil)
	c.writeBehind(fp, e)
	return res, false, nil
}

// publish installs e (when non-nil) and releases the waiters of cl.
func (c *Cache) publish(s *slot, cl *call, e *entry, err error) {
	if e != nil {
		cl.res = e.result
	}
	cl.err = err

	s.mu.Lock()
	if e != nil {
		s.entry = e
	}
	if s.inflight == cl {
		s.inflight = nil
	}
	s.mu.Unlock()
	close(cl.done)
}

func safeCompute(ctx context.Context, compute ComputeFunc) (res schema.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = contract.NewError(contract.DetectorError, "compute", "", fmt.Errorf("panic: %v", r))
		}
	}()
	return compute(ctx)
}

// readThrough loads a persisted entry. Unreadable entries are treated as misses.
func (c *Cache) readThrough(fp, version string) (*entry, bool) {
	if c.store == nil {
		return nil, false
	}
	data, storedVersion, ts, err := c.store.Get(fp)
	if err != nil || data == nil {
		return nil, false
	}
	if storedVersion != version {
		return nil, false
	}
	e := &entry{version: storedVersion, writtenAt: time.Unix(ts, 0)}
	if c.expired(e) {
		c.expirations.Add(1)
		return nil, false
	}
	if err := json.Unmarshal(data, &e.result); err != nil || e.result.Fingerprint != fp {
		if err == nil {
			err = fmt.Errorf("entry holds fingerprint %q", e.result.Fingerprint)
		}
		contract.Logger().Debug().Err(contract.NewError(contract.CacheCorruption, "read cache entry", fp, err)).Msg("ignoring persisted cache entry")
		return nil, false
	}
	return e, true
}

func (c *Cache) writeBehind(fp string, e *entry) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(e.result)
	if err == nil {
		err = c.store.Set(fp, data, e.version, e.writtenAt.Unix())
	}
	if err != nil {
		contract.Logger().Debug().Err(err).Str("fingerprint", fp).Msg("failed to persist cache entry")
	}
}

// Invalidate drops the entry for fp from memory and from the backing store.
func (c *Cache) Invalidate(fp string) {
	if s, ok := c.slots.Load(fp); ok {
		s := s.(*slot)
		s.mu.Lock()
		s.entry = nil
		s.mu.Unlock()
	}
	if c.store != nil {
		if err := c.store.Delete(fp); err != nil {
			contract.Logger().Debug().Err(err).Str("fingerprint", fp).Msg("failed to delete cache entry")
		}
	}
}

// Sweep evicts every expired in-memory entry and returns how many were
// removed. Slots left with no entry and no computation are dropped.
func (c *Cache) Sweep() int {
	removed := 0
	c.slots.Range(func(k, v any) bool {
		s := v.(*slot)
		s.mu.Lock()
		if s.entry != nil && c.expired(s.entry) {
			s.entry = nil
			removed++
		}
		c.dropIdle(k, s)
		s.mu.Unlock()
		return true
	})
	c.expirations.Add(int64(removed))
	return removed
}

// Purge drops every in-memory entry. In-flight computations are unaffected.
func (c *Cache) Purge() {
	c.slots.Range(func(k, v any) bool {
		s := v.(*slot)
		s.mu.Lock()
		s.entry = nil
		c.dropIdle(k, s)
		s.mu.Unlock()
		return true
	})
}

// dropIdle removes s from the map when it holds nothing. s.mu must be held.
func (c *Cache) dropIdle(fp any, s *slot) {
	if s.entry != nil || s.inflight != nil || s.dead {
		return
	}
	s.dead = true
	c.slots.CompareAndDelete(fp, s)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() schema.CacheStats {
	entries := 0
	c.slots.Range(func(_, v any) bool {
		s := v.(*slot)
		s.mu.Lock()
		if s.entry != nil && !c.expired(s.entry) {
			entries++
		}
		s.mu.Unlock()
		return true
	})

	stats := schema.CacheStats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Expirations:  c.expirations.Load(),
		Computations: c.computations.Load(),
		Waits:        c.waits.Load(),
		Entries:      entries,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Sweeper evicts expired entries every interval until ctx is done.
func (c *Cache) Sweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
