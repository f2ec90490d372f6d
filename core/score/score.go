// Package score turns issue lists into quality scores.
package score

import (
	"cmp"
	"fmt"
	"math"
	"path"
	"slices"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// linesPerMillion scales weighted defects to DPML.
const linesPerMillion = 1_000_000

// Sigma level bounds and the conventional long-term shift.
const (
	sigmaShift = 1.5
	sigmaMax   = 6.0
)

// Model is a scoring policy. The zero value is not useful; see NewModel.
type Model struct {
	Weights contract.SeverityWeights
	K       float64
}

// NewModel builds a model from engine options, falling back to documented
// defaults for unset fields.
func NewModel(opts contract.Options) Model {
	m := Model{Weights: opts.Weights, K: opts.ScoreK}
	if m.Weights.Validate() != nil {
		m.Weights = contract.SeverityWeights{
			Critical: contract.DefaultCriticalWeight,
			Warning:  contract.DefaultWarningWeight,
			Info:     contract.DefaultInfoWeight,
		}
	}
	if m.K <= 0 {
		m.K = contract.DefaultScoreK
	}
	return m
}

// Weighted sums the severity weights of issues.
func (m Model) Weighted(issues []schema.Issue) float64 {
	var total float64
	for _, is := range issues {
		total += m.Weights.For(is.Severity)
	}
	return total
}

// DPML returns weighted defects per million lines. Zero lines yield zero.
func DPML(weighted float64, totalLines int) float64 {
	if totalLines <= 0 {
		return 0
	}
	return weighted / float64(totalLines) * linesPerMillion
}

// Value maps DPML onto (0, 100] with 100 * k / (k + dpml).
func (m Model) Value(dpml float64) float64 {
	if dpml <= 0 {
		return 100
	}
	return 100 * m.K / (m.K + dpml)
}

// Score summarizes issues found in totalLines lines.
func (m Model) Score(issues []schema.Issue, totalLines int) schema.QualityScore {
	weighted := m.Weighted(issues)
	dpml := DPML(weighted, totalLines)
	value := m.Value(dpml)
	return schema.QualityScore{
		Value:           value,
		Label:           contract.GetPlainLabel(value),
		DPML:            dpml,
		SigmaLevel:      SigmaLevel(dpml),
		WeightedDefects: weighted,
		LinesScanned:    max(totalLines, 0),
	}
}

// Report scores a set of file results and measures how concentrated
// their defects are.
func (m Model) Report(files []schema.FileResult) schema.QualityScore {
	var issues []schema.Issue
	lines := 0
	perFile := make([]float64, 0, len(files))
	for _, fr := range files {
		issues = append(issues, fr.Result.Issues...)
		lines += fr.Result.LinesScanned
		perFile = append(perFile, m.Weighted(fr.Result.Issues))
	}
	s := m.Score(issues, lines)
	s.Concentration = gini(perFile)
	return s
}

// SigmaLevel converts DPML to a process sigma level, clamped to [0, 6].
func SigmaLevel(dpml float64) float64 {
	p := 1 - dpml/linesPerMillion
	switch {
	case p >= 1:
		return sigmaMax
	case p <= 0:
		return 0
	}
	sigma := sigmaShift + math.Sqrt2*math.Erfinv(2*p-1)
	return math.Min(math.Max(sigma, 0), sigmaMax)
}

// RankFiles scores each file and returns the lowest scoring first, limited
// to limit entries. Files without issues are left out.
func (m Model) RankFiles(files []schema.FileResult, limit int) []schema.FileScore {
	var ranked []schema.FileScore
	for _, fr := range files {
		if len(fr.Result.Issues) == 0 {
			continue
		}
		ranked = append(ranked, schema.FileScore{
			Path:   fr.File.Path,
			Issues: len(fr.Result.Issues),
			Score:  m.Score(fr.Result.Issues, fr.Result.LinesScanned),
		})
	}
	slices.SortStableFunc(ranked, func(a, b schema.FileScore) int {
		return cmp.Or(
			cmp.Compare(a.Score.Value, b.Score.Value),
			cmp.Compare(b.Score.WeightedDefects, a.Score.WeightedDefects),
			cmp.Compare(a.Path, b.Path),
		)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RankFolders aggregates files by their parent directory, scores each folder
// over its combined lines and returns the lowest scoring first.
func (m Model) RankFolders(files []schema.FileResult, limit int) []schema.FolderScore {
	type acc struct {
		files  []schema.FileResult
		issues []schema.Issue
		lines  int
	}
	byDir := make(map[string]*acc)
	for _, fr := range files {
		dir := path.Dir(fr.File.Path)
		a, ok := byDir[dir]
		if !ok {
			a = &acc{}
			byDir[dir] = a
		}
		a.files = append(a.files, fr)
		a.issues = append(a.issues, fr.Result.Issues...)
		a.lines += fr.Result.LinesScanned
	}

	ranked := make([]schema.FolderScore, 0, len(byDir))
	for dir, a := range byDir {
		s := m.Score(a.issues, a.lines)
		perFile := make([]float64, len(a.files))
		for i, fr := range a.files {
			perFile[i] = m.Weighted(fr.Result.Issues)
		}
		s.Concentration = gini(perFile)
		ranked = append(ranked, schema.FolderScore{
			Path:   dir,
			Files:  len(a.files),
			Issues: len(a.issues),
			Score:  s,
		})
	}
	slices.SortFunc(ranked, func(a, b schema.FolderScore) int {
		return cmp.Or(cmp.Compare(a.Score.Value, b.Score.Value), cmp.Compare(a.Path, b.Path))
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// View describes the model for the metrics command.
func (m Model) View() schema.ScoringModelView {
	return schema.ScoringModelView{
		Title:       "DPML quality score",
		Description: "Weighted defects per million lines mapped onto a 0-100 curve. Higher is better.",
		Weights: map[string]float64{
			schema.CriticalValue: m.Weights.Critical,
			schema.WarningValue:  m.Weights.Warning,
			schema.InfoValue:     m.Weights.Info,
		},
		CurveK:  m.K,
		Formula: fmt.Sprintf("score = 100 * %g / (%g + DPML), DPML = weighted / lines * 1e6", m.K, m.K),
		Bands:   slices.Clone(contract.ScoreBands),
	}
}

// gini calculates the Gini coefficient of values, from 0 (evenly spread)
// to 1 (all in one place). It uses the rank form over sorted values so it
// stays O(n log n) on large trees.
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum, ranked float64
	for i, v := range sorted {
		sum += v
		ranked += float64(2*(i+1)-n-1) * v
	}
	if sum == 0 {
		return 0
	}

	g := ranked / (float64(n) * sum)
	return math.Min(math.Max(g, 0), 1)
}
