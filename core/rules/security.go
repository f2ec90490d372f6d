package rules

import (
	"fmt"
	"regexp"

	"github.com/traelabs/trae/schema"
)

// linePattern is a regex checked against each code line.
type linePattern struct {
	re       *regexp.Regexp
	severity schema.Severity
	message  string
}

var unsafePatterns = []linePattern{
	{regexp.MustCompile(`\bunsafe\s*\{`), schema.CriticalSeverity, "unsafe block"},
	{regexp.MustCompile(`\bunsafe\s+(?:fn|impl|trait)\b`), schema.CriticalSeverity, "unsafe declaration"},
	{regexp.MustCompile(`\bunsafe\.(?:Pointer|Slice|String)\b`), schema.CriticalSeverity, "unsafe pointer conversion"},
}

var abortPatterns = []linePattern{
	{regexp.MustCompile(`\.unwrap\(\)`), schema.WarningSeverity, "unwrap() may abort on None or Err"},
	{regexp.MustCompile(`\.expect\(`), schema.WarningSeverity, "expect() may abort on None or Err"},
	{regexp.MustCompile(`\b(?:panic|unreachable|todo|unimplemented)!\(`), schema.CriticalSeverity, "explicit panic"},
	{regexp.MustCompile(`(?:^|[^\w.])panic\(`), schema.CriticalSeverity, "explicit panic"},
	{regexp.MustCompile(`\blog\.(?:Fatal|Fatalf|Fatalln|Panic|Panicf)\(`), schema.WarningSeverity, "log call terminates the process"},
}

var execPatterns = []linePattern{
	{regexp.MustCompile(`\bstd::process::Command\b|\bCommand::new\(`), schema.InfoSeverity, "spawns an external process"},
	{regexp.MustCompile(`\bexec\.Command(?:Context)?\(`), schema.InfoSeverity, "spawns an external process"},
	{regexp.MustCompile(`\bsubprocess\.(?:run|call|Popen|check_output)\(|\bos\.system\(`), schema.InfoSeverity, "spawns an external process"},
}

// matchLines reports every pattern that matches a code line, at most once per
// pattern per line.
func matchLines(src *source, patterns []linePattern, fixID string) []finding {
	var out []finding
	for i, code := range src.code {
		seen := make(map[string]bool, 1)
		for _, p := range patterns {
			if seen[p.message] || !p.re.MatchString(code) {
				continue
			}
			seen[p.message] = true
			out = append(out, finding{line: i + 1, severity: p.severity, message: p.message, fixID: fixID})
		}
	}
	return out
}

func detectUnsafe(src *source) []finding {
	return matchLines(src, unsafePatterns, "")
}

func detectMayAbort(src *source) []finding {
	return matchLines(src, abortPatterns, "")
}

func detectProcessExec(src *source) []finding {
	return matchLines(src, execPatterns, "")
}

// detectSecrets scans raw lines, since secrets live inside string literals.
func detectSecrets(src *source) []finding {
	var out []finding
	for i, line := range src.lines {
		p, _, _, ok := FindSecret(line)
		if !ok {
			continue
		}
		out = append(out, finding{
			line:     i + 1,
			severity: p.Severity,
			message:  fmt.Sprintf("hardcoded %s", p.Description),
			fixID:    SecretRedactFix,
		})
	}
	return out
}
