package repair

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/traelabs/trae/core/rules"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// Redacted replaces secret values removed by the secret-redact fixer.
const Redacted = "<redacted>"

// maxRedactionsPerLine bounds how many secrets are removed from one line.
const maxRedactionsPerLine = 8

// todoTag matches a marker with an optional owner and colon so that the
// whole prefix is replaced by the normalized form.
var todoTag = regexp.MustCompile(`\b(?:TODO|FIXME|XXX|HACK)\b(?:\([^)]*\))?:?\s*`)

// lineFixer is a built-in fixer that edits individual lines of one file.
type lineFixer struct {
	id       string
	fixID    string
	priority Priority
	category schema.Category
	// fileLevel fixers edit every line, not only the reported ones.
	fileLevel bool
	edit      func(line string) string
}

func (f *lineFixer) ID() string                { return f.id }
func (f *lineFixer) Priority() Priority        { return f.priority }
func (f *lineFixer) Category() schema.Category { return f.category }

func (f *lineFixer) Accepts(issue schema.Issue) bool {
	return issue.FixID == f.fixID && issue.Path != ""
}

func (f *lineFixer) Apply(ctx context.Context, root string, issues []schema.Issue) (FixResult, error) {
	if len(issues) == 0 {
		return FixResult{}, ErrNotApplicable
	}
	if err := ctx.Err(); err != nil {
		return FixResult{}, err
	}
	path := issues[0].Path
	lines := issueLines(issues)

	edited := 0
	changed, err := editLines(root, path, func(n int, line string) (string, bool) {
		if !f.fileLevel && !lines[n] {
			return line, false
		}
		out := f.edit(line)
		if out != line {
			edited++
		}
		return out, true
	})
	if err != nil {
		return FixResult{}, err
	}
	if !changed {
		return FixResult{}, ErrNotApplicable
	}
	return FixResult{Files: []string{path}, Message: fmt.Sprintf("%d line(s) rewritten", edited)}, nil
}

// NewTrailingWhitespaceFixer strips trailing spaces and tabs.
func NewTrailingWhitespaceFixer() Fixer {
	return &lineFixer{
		id:        rules.TrailingWhitespaceFix,
		fixID:     rules.TrailingWhitespaceFix,
		priority:  FormatPriority,
		category:  schema.QualityCategory,
		fileLevel: true,
		edit: func(line string) string {
			return strings.TrimRight(line, " \t")
		},
	}
}

// NewTodoTagFixer rewrites work markers to the normalized TODO(trae): form.
func NewTodoTagFixer() Fixer {
	return &lineFixer{
		id:       rules.TodoTagFix,
		fixID:    rules.TodoTagFix,
		priority: StructuralPriority,
		category: schema.QualityCategory,
		edit: func(line string) string {
			if strings.Contains(line, rules.NormalizedTodo) {
				return line
			}
			loc := todoTag.FindStringIndex(line)
			if loc == nil {
				return line
			}
			rest := line[loc[1]:]
			if rest == "" {
				return line[:loc[0]] + rules.NormalizedTodo
			}
			return line[:loc[0]] + rules.NormalizedTodo + " " + rest
		},
	}
}

// NewSecretRedactFixer replaces hardcoded secret values with Redacted.
func NewSecretRedactFixer() Fixer {
	return &lineFixer{
		id:       rules.SecretRedactFix,
		fixID:    rules.SecretRedactFix,
		priority: StructuralPriority,
		category: schema.SecurityCategory,
		edit: func(line string) string {
			for range maxRedactionsPerLine {
				_, start, end, ok := rules.FindSecret(line)
				if !ok {
					break
				}
				line = line[:start] + Redacted + line[end:]
			}
			return line
		},
	}
}

// Builtins returns the built-in fixers.
func Builtins() []Fixer {
	return []Fixer{NewTrailingWhitespaceFixer(), NewTodoTagFixer(), NewSecretRedactFixer()}
}

// DefaultRegistry registers the built-in fixers followed by the configured
// external ones.
func DefaultRegistry(external []contract.ExternalFixerConfig, runner contract.CommandRunner) (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(Builtins()...); err != nil {
		return nil, err
	}
	for _, cfg := range external {
		f, err := NewExternalFixer(cfg, runner)
		if err != nil {
			return nil, err
		}
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}
