package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/core/fpcache"
	"github.com/traelabs/trae/core/rules"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// countingAnalyzer wraps the rule engine and counts evaluations.
type countingAnalyzer struct {
	engine *rules.Engine
	calls  atomic.Int32
	block  chan struct{}
}

func newCountingAnalyzer() *countingAnalyzer {
	return &countingAnalyzer{engine: rules.New(contract.DefaultOptions())}
}

func (a *countingAnalyzer) Analyze(content []byte) schema.AnalysisResult {
	a.calls.Add(1)
	if a.block != nil {
		<-a.block
	}
	return a.engine.Analyze(content)
}

func (a *countingAnalyzer) Version() string { return a.engine.Version() }

// writeTree creates files under a temp dir and returns matching records.
func writeTree(t *testing.T, files map[string]string) (string, []schema.FileRecord) {
	t.Helper()
	root := t.TempDir()
	var records []schema.FileRecord
	for rel, body := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(body), 0o644))
		records = append(records, schema.FileRecord{Path: rel, AbsPath: abs, Size: int64(len(body))})
	}
	return root, records
}

func newCache() *fpcache.Cache {
	return fpcache.New(fpcache.Options{TTL: time.Minute})
}

func TestAdaptivePolicy(t *testing.T) {
	p := AdaptivePolicy{Min: 2, Max: 100}

	t.Run("more workers never grow chunks", func(t *testing.T) {
		prev := p.ChunkSize(1000, 1, 4096)
		for w := 2; w <= 32; w++ {
			size := p.ChunkSize(1000, w, 4096)
			assert.LessOrEqual(t, size, prev, "workers=%d", w)
			prev = size
		}
	})

	t.Run("costlier files never shrink chunks", func(t *testing.T) {
		prev := p.ChunkSize(1000, 4, 0)
		for avg := 512.0; avg <= 1<<20; avg *= 2 {
			size := p.ChunkSize(1000, 4, avg)
			assert.GreaterOrEqual(t, size, prev, "avg=%v", avg)
			prev = size
		}
	})

	t.Run("bounds", func(t *testing.T) {
		assert.Equal(t, 2, p.ChunkSize(1000, 64, 1))
		assert.Equal(t, 100, p.ChunkSize(1000, 1, 1<<30))
		assert.Equal(t, 3, p.ChunkSize(3, 1, 1<<30))
		assert.Equal(t, 16, p.ChunkSize(1000, 4, 1024))
	})

	t.Run("zero bounds still yield one file", func(t *testing.T) {
		assert.Equal(t, 1, AdaptivePolicy{}.ChunkSize(10, 8, 0))
	})
}

func TestFixedPolicy(t *testing.T) {
	assert.Equal(t, 5, FixedPolicy{Size: 5}.ChunkSize(100, 8, 1<<20))
	assert.Equal(t, 2, FixedPolicy{Size: 5}.ChunkSize(2, 8, 0))
	assert.Equal(t, 1, FixedPolicy{}.ChunkSize(100, 8, 0))
}

func TestEstimator(t *testing.T) {
	e := newEstimator(100, 0.5)
	e.observe(300, 1)
	assert.InDelta(t, 200.0, e.current(), 1e-9)
	e.observe(0, 0)
	assert.InDelta(t, 200.0, e.current(), 1e-9)
	assert.InDelta(t, DefaultEWMAAlpha, newEstimator(0, 0).alpha, 1e-9)
}

func TestRunSortsResultsAndFillsFingerprints(t *testing.T) {
	root, records := writeTree(t, map[string]string{
		"b.go":     "package b\n// TODO: split\n",
		"a.go":     "package a\n",
		"pkg/c.rs": "let v = unsafe { *p };\n",
	})
	s := New(newCache(), newCountingAnalyzer(), Options{Root: root, Workers: 3})

	out, err := s.Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out.Files, 3)

	var paths []string
	for _, fr := range out.Files {
		paths = append(paths, fr.File.Path)
		assert.Len(t, fr.File.Fingerprint, 64)
		assert.Equal(t, fr.File.Fingerprint, fr.Result.Fingerprint)
	}
	assert.Equal(t, []string{"a.go", "b.go", "pkg/c.rs"}, paths)
	assert.Equal(t, 4, out.Lines)
	assert.Zero(t, out.Abandoned)

	require.Len(t, out.Issues, 2)
	assert.Equal(t, "b.go", out.Issues[0].Path)
	assert.Equal(t, "todo-marker", out.Issues[0].Detector)
	assert.Equal(t, "pkg/c.rs", out.Issues[1].Path)
	assert.Equal(t, "unsafe-block", out.Issues[1].Detector)
}

func TestRunComputesIdenticalContentOnce(t *testing.T) {
	files := make(map[string]string)
	for i := range 20 {
		files[fmt.Sprintf("copy%02d.go", i)] = "package x\n// FIXME: shared\n"
	}
	root, records := writeTree(t, files)
	analyzer := newCountingAnalyzer()
	s := New(newCache(), analyzer, Options{Root: root, Workers: 8, Policy: FixedPolicy{Size: 1}})

	out, err := s.Run(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, int32(1), analyzer.calls.Load())
	require.Len(t, out.Issues, 20)
	for i, is := range out.Issues {
		assert.Equal(t, fmt.Sprintf("copy%02d.go", i), is.Path)
	}
}

func TestRunServesSecondRunFromCache(t *testing.T) {
	root, records := writeTree(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n// TODO: x\n",
	})
	analyzer := newCountingAnalyzer()
	cache := newCache()
	s := New(cache, analyzer, Options{Root: root, Workers: 2})

	first, err := s.Run(context.Background(), records)
	require.NoError(t, err)
	second, err := s.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, int32(2), analyzer.calls.Load())
	assert.Equal(t, first.Issues, second.Issues)
	for _, fr := range second.Files {
		assert.True(t, fr.Cached, fr.File.Path)
	}
	assert.Equal(t, int64(2), cache.Stats().Hits)
}

func TestRunForceRefresh(t *testing.T) {
	root, records := writeTree(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package a\n",
	})
	analyzer := newCountingAnalyzer()
	cache := newCache()

	_, err := New(cache, analyzer, Options{Root: root}).Run(context.Background(), records)
	require.NoError(t, err)
	_, err = New(cache, analyzer, Options{Root: root, ForceRefresh: true}).Run(context.Background(), records)
	require.NoError(t, err)

	// One computation per run: the shared fingerprint is invalidated once.
	assert.Equal(t, int32(2), analyzer.calls.Load())
}

func TestRunReportsUnreadableFile(t *testing.T) {
	root, records := writeTree(t, map[string]string{"a.go": "package a\n"})
	records = append(records, schema.FileRecord{Path: "gone.go"})
	s := New(newCache(), newCountingAnalyzer(), Options{Root: root, Workers: 2})

	out, err := s.Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out.Files, 2)
	require.Len(t, out.Issues, 1)

	is := out.Issues[0]
	assert.Equal(t, "gone.go", is.Path)
	assert.Equal(t, 0, is.Line)
	assert.Equal(t, rules.IOErrorName, is.Detector)
	assert.Equal(t, schema.InfoSeverity, is.Severity)
	assert.True(t, strings.HasPrefix(is.Message, "file unreadable:"))
}

func TestRunChunkCount(t *testing.T) {
	files := make(map[string]string)
	for i := range 10 {
		files[fmt.Sprintf("f%d.go", i)] = fmt.Sprintf("package f%d\n", i)
	}
	root, records := writeTree(t, files)
	s := New(newCache(), newCountingAnalyzer(), Options{Root: root, Workers: 2, Policy: FixedPolicy{Size: 3}})

	out, err := s.Run(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Chunks)
	assert.Len(t, out.Files, 10)
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	files := make(map[string]string)
	for i := range 30 {
		files[fmt.Sprintf("dir%d/file%02d.go", i%3, i)] = fmt.Sprintf("package p\n// TODO: item %d\nx := 1\nx := 1\n", i)
	}
	root, records := writeTree(t, files)

	single, err := New(newCache(), newCountingAnalyzer(), Options{Root: root, Workers: 1}).Run(context.Background(), records)
	require.NoError(t, err)
	parallel, err := New(newCache(), newCountingAnalyzer(), Options{Root: root, Workers: 8, Policy: FixedPolicy{Size: 2}}).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, single.Issues, parallel.Issues)
	assert.Equal(t, single.Lines, parallel.Lines)
}

func TestRunCancellation(t *testing.T) {
	files := make(map[string]string)
	for i := range 12 {
		files[fmt.Sprintf("f%02d.go", i)] = fmt.Sprintf("package f%d\n", i)
	}
	root, records := writeTree(t, files)
	analyzer := newCountingAnalyzer()
	analyzer.block = make(chan struct{})
	s := New(newCache(), analyzer, Options{Root: root, Workers: 1, Policy: FixedPolicy{Size: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return analyzer.calls.Load() == 1 }, time.Second, time.Millisecond)
		cancel()
		close(analyzer.block)
	}()

	out, err := s.Run(ctx, records)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(out.Files), len(records))
	assert.Equal(t, len(records), len(out.Files)+out.Abandoned)
}

func TestRunEmpty(t *testing.T) {
	out, err := New(newCache(), newCountingAnalyzer(), Options{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Files)
	assert.Zero(t, out.Chunks)
}
