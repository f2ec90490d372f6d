package repair

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// PathPlaceholder in an external fixer argument is replaced by the file path,
// which makes the fixer run once per file instead of once per tree.
const PathPlaceholder = "{path}"

// maxOutputInMessage bounds how much command output is kept in a step message.
const maxOutputInMessage = 200

// LocalCommandRunner runs programs installed on the machine.
type LocalCommandRunner struct{}

var _ contract.CommandRunner = &LocalCommandRunner{} // Compile-time check

// Run implements contract.CommandRunner.
func (LocalCommandRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, fmt.Errorf("'%s %s' exit %d: %s", name, strings.Join(args, " "), exitErr.ExitCode(), clip(string(out)))
	} else if err != nil {
		return out, fmt.Errorf("'%s %s' unknown: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// ExternalFixer runs a configured command in the root.
type ExternalFixer struct {
	cfg      contract.ExternalFixerConfig
	priority Priority
	runner   contract.CommandRunner
}

var _ TreeFixer = &ExternalFixer{} // Compile-time check

// NewExternalFixer validates cfg. External fixers default to the dependency class.
func NewExternalFixer(cfg contract.ExternalFixerConfig, runner contract.CommandRunner) (*ExternalFixer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("fixer %q must define a command", cfg.ID)
	}
	p, err := ParsePriority(cfg.Priority, DependencyPriority)
	if err != nil {
		return nil, fmt.Errorf("fixer %q: %w", cfg.ID, err)
	}
	if cfg.Category == "" {
		cfg.Category = schema.QualityCategory
	}
	if runner == nil {
		runner = LocalCommandRunner{}
	}
	return &ExternalFixer{cfg: cfg, priority: p, runner: runner}, nil
}

// ID implements Fixer.
func (f *ExternalFixer) ID() string { return f.cfg.ID }

// Priority implements Fixer.
func (f *ExternalFixer) Priority() Priority { return f.priority }

// Category implements Fixer.
func (f *ExternalFixer) Category() schema.Category { return f.cfg.Category }

// Accepts implements Fixer. External fixers take every issue of their category.
func (f *ExternalFixer) Accepts(issue schema.Issue) bool {
	return issue.Category == f.cfg.Category && issue.Path != ""
}

// TreeScoped implements TreeFixer.
func (f *ExternalFixer) TreeScoped() bool {
	return !slices.ContainsFunc(f.cfg.Args, func(a string) bool {
		return strings.Contains(a, PathPlaceholder)
	})
}

// Apply implements Fixer. Files whose content changed are reported as touched.
func (f *ExternalFixer) Apply(ctx context.Context, root string, issues []schema.Issue) (FixResult, error) {
	paths := distinctPaths(issues)
	if len(paths) == 0 {
		return FixResult{}, ErrNotApplicable
	}
	before := hashFiles(root, paths)

	args := slices.Clone(f.cfg.Args)
	if !f.TreeScoped() {
		for i, a := range args {
			args[i] = strings.ReplaceAll(a, PathPlaceholder, filepath.FromSlash(paths[0]))
		}
	}
	out, err := f.runner.Run(ctx, root, f.cfg.Command, args...)
	if err != nil {
		return FixResult{}, contract.NewError(contract.FixerFailure, f.cfg.ID, "", err)
	}

	after := hashFiles(root, paths)
	var touched []string
	for _, p := range paths {
		if before[p] != after[p] {
			touched = append(touched, p)
		}
	}
	if len(touched) == 0 {
		return FixResult{}, ErrNotApplicable
	}
	msg := fmt.Sprintf("%s changed %d file(s)", f.cfg.Command, len(touched))
	if o := clip(string(out)); o != "" {
		msg += ": " + o
	}
	return FixResult{Files: touched, Message: msg}, nil
}

func distinctPaths(issues []schema.Issue) []string {
	var out []string
	for _, is := range issues {
		if is.Path != "" && !slices.Contains(out, is.Path) {
			out = append(out, is.Path)
		}
	}
	slices.Sort(out)
	return out
}

// hashFiles digests files so changes made by a command can be detected.
// Unreadable files hash to the empty string.
func hashFiles(root string, paths []string) map[string]string {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			out[p] = ""
			continue
		}
		out[p] = fmt.Sprintf("%x", sha256.Sum256(data))
	}
	return out
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutputInMessage {
		return s[:maxOutputInMessage] + "..."
	}
	return s
}
