package score

import (
	"math"
	"testing"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// FuzzScoreMonotonic checks that adding an issue never raises the score.
func FuzzScoreMonotonic(f *testing.F) {
	f.Add(uint8(0), uint8(0), uint8(0), 100, uint8(2))
	f.Add(uint8(3), uint8(1), uint8(9), 1, uint8(0))
	f.Add(uint8(0), uint8(0), uint8(0), 0, uint8(1))

	m := NewModel(contract.DefaultOptions())
	f.Fuzz(func(t *testing.T, critical, warning, info uint8, lines int, extra uint8) {
		var issues []schema.Issue
		for range critical {
			issues = append(issues, schema.Issue{Severity: schema.CriticalSeverity})
		}
		for range warning {
			issues = append(issues, schema.Issue{Severity: schema.WarningSeverity})
		}
		for range info {
			issues = append(issues, schema.Issue{Severity: schema.InfoSeverity})
		}

		before := m.Score(issues, lines)
		after := m.Score(append(issues, schema.Issue{Severity: schema.Severity(extra % 3)}), lines)

		for _, v := range []float64{before.Value, after.Value, before.SigmaLevel} {
			if math.IsNaN(v) || v < 0 || v > 100 {
				t.Fatalf("score out of range: %v", v)
			}
		}
		if after.Value > before.Value {
			t.Fatalf("adding an issue raised the score: %v -> %v", before.Value, after.Value)
		}
	})
}

// FuzzGini fuzzes the gini function with small value sets.
func FuzzGini(f *testing.F) {
	f.Add(1.0, 2.0, 3.0)
	f.Add(0.0, 0.0, 0.0)
	f.Add(100.0, 0.0, 0.0)

	f.Fuzz(func(t *testing.T, a, b, c float64) {
		g := gini([]float64{math.Abs(a), math.Abs(b), math.Abs(c)})
		if g < 0 || g > 1 {
			if !math.IsNaN(g) {
				t.Fatalf("gini out of range: %v", g)
			}
		}
	})
}
