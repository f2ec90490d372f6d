package rules

import (
	"fmt"
	"regexp"

	"github.com/traelabs/trae/schema"
)

var branchToken = regexp.MustCompile(`\b(?:if|for|while|loop|case|catch|except|elif)\b|&&|\|\|`)

func detectFileLength(src *source, threshold int) []finding {
	n := src.lineCount()
	if threshold <= 0 || n <= threshold {
		return nil
	}
	severity := schema.WarningSeverity
	if n > 2*threshold {
		severity = schema.CriticalSeverity
	}
	return []finding{{
		severity: severity,
		message:  fmt.Sprintf("file has %d lines (threshold %d)", n, threshold),
	}}
}

func detectFunctionLength(src *source, threshold int) []finding {
	if threshold <= 0 {
		return nil
	}
	var out []finding
	for _, fn := range src.functions {
		body := fn.end - fn.start - 1
		if body <= threshold {
			continue
		}
		severity := schema.WarningSeverity
		if body > 3*threshold {
			severity = schema.CriticalSeverity
		}
		out = append(out, finding{
			line:     fn.start + 1,
			severity: severity,
			message:  fmt.Sprintf("function %s has %d lines (threshold %d)", fn.name, body, threshold),
		})
	}
	return out
}

func detectBranching(src *source, threshold int) []finding {
	if threshold <= 0 {
		return nil
	}
	var out []finding
	for _, fn := range src.functions {
		branches := 0
		for i := fn.start + 1; i < fn.end; i++ {
			branches += len(branchToken.FindAllStringIndex(src.code[i], -1))
		}
		if branches <= threshold {
			continue
		}
		out = append(out, finding{
			line:     fn.start + 1,
			severity: schema.WarningSeverity,
			message:  fmt.Sprintf("function %s has %d branches (threshold %d)", fn.name, branches, threshold),
		})
	}
	return out
}
