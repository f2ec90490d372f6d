package score

import (
	"fmt"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

func defaultModel() Model {
	return NewModel(contract.DefaultOptions())
}

func issuesOf(severities ...schema.Severity) []schema.Issue {
	out := make([]schema.Issue, len(severities))
	for i, s := range severities {
		out[i] = schema.Issue{Line: i + 1, Severity: s}
	}
	return out
}

func fileResult(path string, lines int, severities ...schema.Severity) schema.FileResult {
	return schema.FileResult{
		File:   schema.FileRecord{Path: path},
		Result: schema.AnalysisResult{LinesScanned: lines, Issues: issuesOf(severities...)},
	}
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel(contract.Options{})
	assert.Equal(t, 50.0, m.Weights.Critical)
	assert.Equal(t, 10.0, m.Weights.Warning)
	assert.Equal(t, 2.0, m.Weights.Info)
	assert.Equal(t, 10000.0, m.K)

	opts := contract.DefaultOptions()
	opts.ScoreK = 500
	opts.Weights = contract.SeverityWeights{Critical: 9, Warning: 3, Info: 1}
	m = NewModel(opts)
	assert.Equal(t, 500.0, m.K)
	assert.Equal(t, 9.0, m.Weights.Critical)
}

func TestScore(t *testing.T) {
	m := defaultModel()

	tests := []struct {
		name   string
		issues []schema.Issue
		lines  int
		value  float64
		dpml   float64
	}{
		{name: "no issues", lines: 1000, value: 100},
		{name: "no lines", issues: issuesOf(schema.CriticalSeverity), value: 100},
		{name: "one warning per thousand lines", issues: issuesOf(schema.WarningSeverity), lines: 1000, value: 50, dpml: 10000},
		{name: "one critical in one hundred lines", issues: issuesOf(schema.CriticalSeverity), lines: 100, value: 100.0 * 10000 / (10000 + 500000), dpml: 500000},
		{name: "mixed", issues: issuesOf(schema.CriticalSeverity, schema.WarningSeverity, schema.InfoSeverity), lines: 62000, value: 100.0 * 10000 / (10000 + 1000), dpml: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := m.Score(tt.issues, tt.lines)
			assert.InDelta(t, tt.value, s.Value, 1e-9)
			assert.InDelta(t, tt.dpml, s.DPML, 1e-9)
			assert.Equal(t, contract.GetPlainLabel(s.Value), s.Label)
		})
	}
}

func TestScoreLabels(t *testing.T) {
	m := defaultModel()
	assert.Equal(t, contract.ExcellentValue, m.Score(nil, 10).Label)
	assert.Equal(t, contract.FairValue, m.Score(issuesOf(schema.WarningSeverity), 1000).Label)
	assert.Equal(t, contract.PoorValue, m.Score(issuesOf(schema.CriticalSeverity), 10).Label)
}

func TestScoreMonotonic(t *testing.T) {
	m := defaultModel()
	t.Run("more issues never raise the score", func(t *testing.T) {
		var issues []schema.Issue
		prev := m.Score(issues, 500).Value
		for _, s := range []schema.Severity{schema.InfoSeverity, schema.WarningSeverity, schema.CriticalSeverity, schema.InfoSeverity} {
			issues = append(issues, schema.Issue{Severity: s})
			cur := m.Score(issues, 500).Value
			assert.Less(t, cur, prev)
			prev = cur
		}
	})

	t.Run("more lines never lower the score", func(t *testing.T) {
		issues := issuesOf(schema.WarningSeverity)
		prev := m.Score(issues, 10).Value
		for lines := 20; lines <= 10240; lines *= 2 {
			cur := m.Score(issues, lines).Value
			assert.Greater(t, cur, prev)
			prev = cur
		}
	})

	t.Run("independent of issue order", func(t *testing.T) {
		a := issuesOf(schema.CriticalSeverity, schema.InfoSeverity, schema.WarningSeverity)
		b := issuesOf(schema.WarningSeverity, schema.CriticalSeverity, schema.InfoSeverity)
		assert.Equal(t, m.Score(a, 300), m.Score(b, 300))
	})
}

func TestSigmaLevel(t *testing.T) {
	assert.Equal(t, 6.0, SigmaLevel(0))
	assert.Equal(t, 0.0, SigmaLevel(1_000_000))
	assert.Equal(t, 0.0, SigmaLevel(5_000_000))
	assert.InDelta(t, 1.5, SigmaLevel(500_000), 1e-9)
	assert.InDelta(t, 4.5, SigmaLevel(1350), 0.01)
	assert.InDelta(t, 6.0, SigmaLevel(3.4), 0.01)

	prev := SigmaLevel(1)
	for dpml := 10.0; dpml < 1_000_000; dpml *= 10 {
		cur := SigmaLevel(dpml)
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestGini(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty slice", values: []float64{}, expected: 0},
		{name: "perfect equality", values: []float64{1, 1, 1, 1}, expected: 0},
		{name: "perfect inequality", values: []float64{0, 0, 0, 10}, expected: 0.75},
		{name: "moderate inequality", values: []float64{1, 2, 3, 4}, expected: 0.25},
		{name: "single value", values: []float64{5}, expected: 0},
		{name: "all zeros", values: []float64{0, 0, 0}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, gini(tt.values), 0.001)
		})
	}
}

func TestGiniUnsortedInput(t *testing.T) {
	values := []float64{4, 0, 10, 0, 2}
	original := slices.Clone(values)

	assert.InDelta(t, giniPairwise(values), gini(values), 1e-9)
	assert.Equal(t, original, values, "input must not be reordered")
}

func TestReportLargeTree(t *testing.T) {
	const n = 20_000
	m := defaultModel()
	files := make([]schema.FileResult, n)
	for i := range files {
		files[i] = fileResult(fmt.Sprintf("pkg%d/f%d.go", i%100, i), 50)
	}
	files[0] = fileResult("pkg0/hot.go", 50, schema.CriticalSeverity)

	start := time.Now()
	s := m.Report(files)
	folders := m.RankFolders(files, 0)
	elapsed := time.Since(start)

	assert.InDelta(t, float64(n-1)/n, s.Concentration, 1e-9)
	assert.Len(t, folders, 100)
	assert.Less(t, elapsed, 2*time.Second)
}

// giniPairwise is the mean absolute difference form used as a reference.
func giniPairwise(values []float64) float64 {
	n := float64(len(values))
	var sum, diff float64
	for _, a := range values {
		sum += a
		for _, b := range values {
			diff += math.Abs(a - b)
		}
	}
	if sum == 0 {
		return 0
	}
	return diff / (2 * n * sum)
}

func TestReport(t *testing.T) {
	m := defaultModel()
	files := []schema.FileResult{
		fileResult("a.go", 100, schema.CriticalSeverity),
		fileResult("b.go", 100),
		fileResult("c.go", 100),
		fileResult("d.go", 100),
	}

	s := m.Report(files)
	assert.Equal(t, 400, s.LinesScanned)
	assert.Equal(t, 50.0, s.WeightedDefects)
	assert.InDelta(t, 0.75, s.Concentration, 1e-9)

	flat := m.Score(issuesOf(schema.CriticalSeverity), 400)
	assert.Equal(t, flat.Value, s.Value)
}

func TestRankFiles(t *testing.T) {
	m := defaultModel()
	files := []schema.FileResult{
		fileResult("clean.go", 50),
		fileResult("bad.go", 50, schema.CriticalSeverity),
		fileResult("meh.go", 50, schema.InfoSeverity),
		fileResult("worse.go", 10, schema.CriticalSeverity),
	}

	ranked := m.RankFiles(files, 0)
	require.Len(t, ranked, 3)
	assert.Equal(t, "worse.go", ranked[0].Path)
	assert.Equal(t, "bad.go", ranked[1].Path)
	assert.Equal(t, "meh.go", ranked[2].Path)
	assert.Equal(t, 1, ranked[0].Issues)

	assert.Len(t, m.RankFiles(files, 2), 2)
}

func TestRankFolders(t *testing.T) {
	m := defaultModel()
	files := []schema.FileResult{
		fileResult("main.go", 100),
		fileResult("pkg/a.go", 100, schema.WarningSeverity),
		fileResult("pkg/b.go", 100, schema.WarningSeverity),
		fileResult("internal/x.go", 40, schema.CriticalSeverity),
	}

	ranked := m.RankFolders(files, 0)
	require.Len(t, ranked, 3)
	assert.Equal(t, "internal", ranked[0].Path)
	assert.Equal(t, "pkg", ranked[1].Path)
	assert.Equal(t, ".", ranked[2].Path)

	assert.Equal(t, 2, ranked[1].Files)
	assert.Equal(t, 2, ranked[1].Issues)
	assert.Equal(t, 200, ranked[1].Score.LinesScanned)
	assert.InDelta(t, 0, ranked[1].Score.Concentration, 1e-9)
	assert.Equal(t, 100.0, ranked[2].Score.Value)
}

func TestView(t *testing.T) {
	v := defaultModel().View()
	assert.Equal(t, 50.0, v.Weights[schema.CriticalValue])
	assert.Equal(t, 10000.0, v.CurveK)
	assert.Contains(t, v.Formula, "10000")
	assert.Len(t, v.Bands, len(contract.ScoreBands))
	assert.False(t, math.IsNaN(v.CurveK))
}
