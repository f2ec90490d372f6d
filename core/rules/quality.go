package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/traelabs/trae/schema"
)

// NormalizedTodo is the marker form produced by the todo-tag fixer.
const NormalizedTodo = "TODO(trae):"

var (
	todoMarker = regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`)
	deprecated = regexp.MustCompile(`#\[deprecated\b|\bDeprecated:|@[Dd]eprecated\b|DeprecationWarning`)
)

func detectTodo(src *source) []finding {
	var out []finding
	for i, line := range src.lines {
		m := todoMarker.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		f := finding{line: i + 1, severity: schema.InfoSeverity, message: fmt.Sprintf("%s marker", m[1])}
		if !strings.Contains(line, NormalizedTodo) {
			f.fixID = TodoTagFix
		}
		out = append(out, f)
	}
	return out
}

func detectDeprecated(src *source) []finding {
	var out []finding
	for i, line := range src.lines {
		if deprecated.MatchString(line) {
			out = append(out, finding{line: i + 1, severity: schema.InfoSeverity, message: "deprecated API marker"})
		}
	}
	return out
}

// minDuplicateLine is the shortest normalized line that counts towards a
// duplicate window; shorter lines are mostly braces and keywords.
const minDuplicateLine = 4

// detectDuplicates reports windows of identical normalized lines. Each
// repeated window is reported once, at its second occurrence.
func detectDuplicates(src *source, window int) []finding {
	type numbered struct {
		text string
		line int
	}
	var kept []numbered
	for i, code := range src.code {
		if n := normalize(code); len(n) >= minDuplicateLine {
			kept = append(kept, numbered{text: n, line: i + 1})
		}
	}
	if len(kept) < 2*window {
		return nil
	}

	first := make(map[string]int)
	var out []finding
	for start := 0; start+window <= len(kept); start++ {
		parts := make([]string, window)
		for j := range window {
			parts[j] = kept[start+j].text
		}
		key := strings.Join(parts, "\n")
		prev, seen := first[key]
		if !seen {
			first[key] = start
			continue
		}
		if start < prev+window {
			continue // overlapping repetition
		}
		out = append(out, finding{
			line:     kept[start].line,
			severity: schema.WarningSeverity,
			message:  fmt.Sprintf("duplicate block of %d lines (first at line %d)", window, kept[prev].line),
		})
		start += window - 1
	}
	return out
}

// detectTrailingWhitespace reports one file-level issue counting the lines
// that end in spaces or tabs.
func detectTrailingWhitespace(src *source) []finding {
	count, first := 0, 0
	for i, line := range src.lines {
		if line != strings.TrimRight(line, " \t") {
			count++
			if first == 0 {
				first = i + 1
			}
		}
	}
	if count == 0 {
		return nil
	}
	return []finding{{
		severity: schema.InfoSeverity,
		message:  fmt.Sprintf("trailing whitespace on %d line(s), first at line %d", count, first),
		fixID:    TrailingWhitespaceFix,
	}}
}
