package rules

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/traelabs/trae/schema"
)

var (
	toVecCall     = regexp.MustCompile(`\.to_vec\(\)`)
	cloneCall     = regexp.MustCompile(`\.clone\(\)`)
	containerHint = regexp.MustCompile(`(?i)\b\w*(?:vec|map|list|items|data|buf|cache|entries|records|rows)\w*\.clone\(\)`)
	wholeCopy     = regexp.MustCompile(`(?:^|[^\w.])copy\(\s*\w+\s*,\s*\w+\s*\)`)

	concatAssign = regexp.MustCompile(`\+=\s*(?:"|&\w|format!|fmt\.Sprint|String::from|str\(|\w+\.to_string\(\))`)
	concatSelf   = regexp.MustCompile(`\b(\w+)\s*=\s*(\w+)\s*\+\s*(?:"|\w+\.to_string\(\))`)
)

func detectLargeCopy(src *source) []finding {
	var out []finding
	for i, code := range src.code {
		switch {
		case toVecCall.MatchString(code):
			out = append(out, finding{line: i + 1, severity: schema.InfoSeverity, message: "to_vec() copies the whole slice"})
		case cloneCall.MatchString(code) && src.inLoop[i]:
			out = append(out, finding{line: i + 1, severity: schema.WarningSeverity, message: "clone() inside a loop body"})
		case containerHint.MatchString(code):
			out = append(out, finding{line: i + 1, severity: schema.InfoSeverity, message: "clone() of a container"})
		case wholeCopy.MatchString(code) && src.inLoop[i]:
			out = append(out, finding{line: i + 1, severity: schema.WarningSeverity, message: "copy() of a whole collection inside a loop body"})
		}
	}
	return out
}

func detectConcatInLoop(src *source) []finding {
	var out []finding
	for i, code := range src.code {
		if !src.inLoop[i] {
			continue
		}
		hit := concatAssign.MatchString(code)
		if !hit {
			if m := concatSelf.FindStringSubmatch(code); m != nil && m[1] == m[2] {
				hit = true
			}
		}
		if hit {
			out = append(out, finding{line: i + 1, severity: schema.WarningSeverity, message: "string concatenation inside a loop body"})
		}
	}
	return out
}

func detectNestedIteration(src *source) []finding {
	var out []finding
	for _, l := range src.loops {
		if l.collection == "" || !slices.Contains(l.nestedIn, l.collection) {
			continue
		}
		out = append(out, finding{
			line:     l.line + 1,
			severity: schema.WarningSeverity,
			message:  fmt.Sprintf("nested iteration over %s", l.collection),
		})
	}
	return out
}
