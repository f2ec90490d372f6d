// Package repair applies fixers to analyzed issues and tracks each step.
package repair

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
	"golang.org/x/sync/errgroup"
)

// Step messages for steps that are not executed.
const (
	msgNoFixer       = "no fixer registered"
	msgNotApplicable = "not applicable"
	msgDryRun        = "dry run"
	msgLevel         = "excluded by repair level"
	msgAborted       = "run aborted"
	msgOutsideRoot   = "path outside root"
)

// ErrInvalidTransition is returned when a run is driven out of order.
var ErrInvalidTransition = errors.New("invalid repair state transition")

// Evaluator re-analyzes file content for confirmation.
type Evaluator interface {
	Evaluate(record schema.FileRecord, content []byte) []schema.Issue
}

// Options configure an Orchestrator.
type Options struct {
	Level   schema.RepairLevel
	DryRun  bool
	Backup  bool
	Confirm bool
	// RunID names the run and its backup directory. A UUID is generated when empty.
	RunID string
	// Workers bounds concurrently running fixer groups. Zero means unbounded.
	Workers int
	Now     func() time.Time
}

// Orchestrator drives one repair run through Planned, Running and then
// Completed or Aborted.
type Orchestrator struct {
	registry  *Registry
	evaluator Evaluator
	opts      Options

	mu     sync.Mutex
	state  schema.RunState
	report schema.RepairReport
}

// New creates an orchestrator in the Planned state. evaluator may be nil,
// which disables confirmation.
func New(registry *Registry, evaluator Evaluator, opts Options) *Orchestrator {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Level == "" {
		opts.Level = schema.SafeLevel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Orchestrator{
		registry:  registry,
		evaluator: evaluator,
		opts:      opts,
		state:     schema.PlannedState,
		report:    schema.RepairReport{State: schema.PlannedState},
	}
}

// State returns the current run state.
func (o *Orchestrator) State() schema.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RunID returns the identifier of the run.
func (o *Orchestrator) RunID() string {
	return o.opts.RunID
}

var transitions = map[schema.RunState][]schema.RunState{
	schema.PlannedState: {schema.RunningState},
	schema.RunningState: {schema.CompletedState, schema.AbortedState},
}

func (o *Orchestrator) transition(to schema.RunState) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !slices.Contains(transitions[o.state], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.state, to)
	}
	o.state = to
	o.report.State = to
	return nil
}

// step is one (issue, fixer) pair of the plan.
type step struct {
	issue   schema.Issue
	fixer   Fixer
	outcome schema.Outcome
	message string
	files   []string
	done    bool
}

// group is the unit of execution: one fixer over one file, or over the
// whole tree for a TreeFixer.
type group struct {
	fixer  Fixer
	path   string
	tree   bool
	issues []schema.Issue
	steps  []int
}

// Run applies the registered fixers to issues under root. Only an
// EnvironmentFatal error aborts the run; it is also returned. Individual
// fixer failures are recorded as Failed steps.
func (o *Orchestrator) Run(ctx context.Context, root string, issues []schema.Issue) (schema.RepairReport, error) {
	if err := o.transition(schema.RunningState); err != nil {
		return o.snapshot(), err
	}
	start := o.opts.Now()
	o.mu.Lock()
	o.report.RunID = o.opts.RunID
	o.report.Root = root
	o.report.Level = o.opts.Level
	o.report.DryRun = o.opts.DryRun
	o.report.StartedAt = start
	o.mu.Unlock()

	steps, groups := o.plan(issues)
	fatal := o.prepare(root)
	if fatal == nil {
		fatal = o.execute(ctx, root, groups, steps)
	}

	o.mu.Lock()
	for i := range steps {
		s := &steps[i]
		if !s.done {
			s.outcome, s.message = schema.SkippedOutcome, msgAborted
		}
		step := schema.RepairStep{Issue: s.issue, Outcome: s.outcome, Message: s.message, Files: s.files}
		if s.fixer != nil {
			step.FixerID = s.fixer.ID()
		}
		o.report.Record(step)
	}
	o.mu.Unlock()

	if fatal == nil && o.opts.Confirm && !o.opts.DryRun && o.evaluator != nil {
		o.confirm(root, steps)
	}

	end := o.opts.Now()
	o.mu.Lock()
	o.report.FinishedAt = end
	o.report.Duration = end.Sub(start)
	if fatal != nil {
		o.report.Error = fatal.Error()
	}
	o.mu.Unlock()

	if fatal != nil {
		contract.Logger().Error().Err(fatal).Str("run", o.opts.RunID).Msg("repair aborted")
		if err := o.transition(schema.AbortedState); err != nil {
			return o.snapshot(), errors.Join(fatal, err)
		}
		return o.snapshot(), fatal
	}
	if err := o.transition(schema.CompletedState); err != nil {
		return o.snapshot(), err
	}
	return o.snapshot(), nil
}

func (o *Orchestrator) snapshot() schema.RepairReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.report
	r.Steps = slices.Clone(o.report.Steps)
	return r
}

// plan assigns every issue to the fixers that accept it. Issues nobody can
// fix, or whose path escapes the root, are settled immediately.
func (o *Orchestrator) plan(issues []schema.Issue) ([]step, []*group) {
	maxPriority := MaxPriority(o.opts.Level)
	var steps []step
	var groups []*group
	byKey := make(map[string]*group)

	for _, is := range issues {
		if !filepath.IsLocal(filepath.FromSlash(is.Path)) {
			steps = append(steps, step{issue: is, outcome: schema.SkippedOutcome, message: msgOutsideRoot, done: true})
			continue
		}
		fixers := o.registry.For(is.Category)
		if len(fixers) == 0 {
			steps = append(steps, step{issue: is, outcome: schema.SkippedOutcome, message: msgNoFixer, done: true})
			continue
		}
		var accepting []Fixer
		for _, f := range fixers {
			if f.Accepts(is) {
				accepting = append(accepting, f)
			}
		}
		if len(accepting) == 0 {
			steps = append(steps, step{issue: is, outcome: schema.SkippedOutcome, message: msgNotApplicable, done: true})
			continue
		}
		for _, f := range accepting {
			if f.Priority() > maxPriority {
				msg := fmt.Sprintf("%s %s (%s fixer)", msgLevel, o.opts.Level, f.Priority())
				steps = append(steps, step{issue: is, fixer: f, outcome: schema.SkippedOutcome, message: msg, done: true})
				continue
			}
			tree := isTreeScoped(f)
			key := f.ID() + "\x00" + is.Path
			if tree {
				key = f.ID() + "\x00"
			}
			g, ok := byKey[key]
			if !ok {
				g = &group{fixer: f, path: is.Path, tree: tree}
				byKey[key] = g
				groups = append(groups, g)
			}
			g.issues = append(g.issues, is)
			g.steps = append(g.steps, len(steps))
			steps = append(steps, step{issue: is, fixer: f})
		}
	}
	return steps, groups
}

// prepare checks that the root can be repaired and creates the backup directory.
func (o *Orchestrator) prepare(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return contract.NewError(contract.EnvironmentFatal, "repair", root, err)
	}
	if !info.IsDir() {
		return contract.NewError(contract.EnvironmentFatal, "repair", root, errors.New("not a directory"))
	}
	if o.opts.Backup && !o.opts.DryRun {
		if err := os.MkdirAll(contract.GetBackupDir(root, o.opts.RunID), 0o755); err != nil {
			return contract.NewError(contract.EnvironmentFatal, "backup", root, err)
		}
	}
	return nil
}

// execute runs the groups class by class. Within a class, groups for
// different files run concurrently and groups for the same file are
// serialized; tree groups run alone.
func (o *Orchestrator) execute(ctx context.Context, root string, groups []*group, steps []step) error {
	locks := newFileLocks()
	backups := &sync.Map{}

	for _, p := range []Priority{FormatPriority, StructuralPriority, DependencyPriority} {
		var class []*group
		for _, g := range groups {
			if g.fixer.Priority() == p {
				class = append(class, g)
			}
		}
		if len(class) == 0 {
			continue
		}

		eg, egCtx := errgroup.WithContext(ctx)
		if o.opts.Workers > 0 {
			eg.SetLimit(o.opts.Workers)
		}
		for _, g := range class {
			eg.Go(func() error {
				unlock := locks.acquire(g)
				defer unlock()
				return o.runGroup(egCtx, root, g, steps, backups)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return contract.NewError(contract.EnvironmentFatal, "repair", root, err)
		}
	}
	return nil
}

// runGroup applies one group and settles its steps. It returns an error
// only for failures that must abort the run.
func (o *Orchestrator) runGroup(ctx context.Context, root string, g *group, steps []step, backups *sync.Map) error {
	settle := func(outcome schema.Outcome, msg string, files []string) {
		o.mu.Lock()
		defer o.mu.Unlock()
		for _, i := range g.steps {
			steps[i].outcome, steps[i].message, steps[i].files, steps[i].done = outcome, msg, files, true
		}
	}

	if err := ctx.Err(); err != nil {
		return contract.NewError(contract.EnvironmentFatal, "repair", root, err)
	}
	if o.opts.DryRun {
		settle(schema.SkippedOutcome, msgDryRun, nil)
		return nil
	}

	paths := distinctPaths(g.issues)
	snapshots := make(map[string][]byte, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			continue
		}
		snapshots[p] = data
		if o.opts.Backup {
			if err := o.backup(root, p, data, backups); err != nil {
				settle(schema.FailedOutcome, err.Error(), nil)
				return nil
			}
		}
	}

	res, err := safeApply(ctx, g.fixer, root, g.issues)
	switch {
	case errors.Is(err, ErrNotApplicable):
		settle(schema.SkippedOutcome, msgNotApplicable, nil)
		return nil
	case contract.IsFatal(err):
		restore(root, snapshots)
		settle(schema.FailedOutcome, err.Error(), nil)
		return err
	case err != nil:
		restore(root, snapshots)
		contract.Logger().Warn().Err(err).Stringer("group", g).Msg("fixer failed")
		settle(schema.FailedOutcome, err.Error(), nil)
		return nil
	}
	contract.Logger().Debug().Stringer("group", g).Strs("files", res.Files).Msg("fixer applied")
	settle(schema.SuccessOutcome, res.Message, res.Files)
	return nil
}

// backup copies the original bytes of a file once per run.
func (o *Orchestrator) backup(root, rel string, data []byte, done *sync.Map) error {
	if _, loaded := done.LoadOrStore(rel, struct{}{}); loaded {
		return nil
	}
	dst := filepath.Join(contract.GetBackupDir(root, o.opts.RunID), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return contract.NewError(contract.IoError, "backup", rel, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return contract.NewError(contract.IoError, "backup", rel, err)
	}
	return nil
}

// restore writes snapshots back. It is best-effort.
func restore(root string, snapshots map[string][]byte) {
	for rel, data := range snapshots {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		current, err := os.ReadFile(abs)
		if err == nil && string(current) == string(data) {
			continue
		}
		perm := os.FileMode(0o644)
		if info, err := os.Stat(abs); err == nil {
			perm = info.Mode().Perm()
		}
		if err := writeFileAtomic(abs, data, perm); err != nil {
			contract.LogWarn(fmt.Sprintf("Failed to restore %s", rel), err)
		}
	}
}

func safeApply(ctx context.Context, f Fixer, root string, issues []schema.Issue) (res FixResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = contract.NewError(contract.FixerFailure, f.ID(), "", fmt.Errorf("panic: %v", r))
		}
	}()
	res, err = f.Apply(ctx, root, issues)
	if err != nil && !errors.Is(err, ErrNotApplicable) && !contract.IsFatal(err) {
		if _, ok := contract.KindOf(err); !ok {
			err = contract.NewError(contract.FixerFailure, f.ID(), "", err)
		}
	}
	return res, err
}

// confirm re-analyzes touched files and counts which attempted issues are gone.
func (o *Orchestrator) confirm(root string, steps []step) {
	type key struct {
		path, detector, fixID string
		line                  int
	}
	keyOf := func(is schema.Issue) key {
		return key{path: is.Path, detector: is.Detector, fixID: is.FixID, line: is.Line}
	}

	touched := make(map[string]bool)
	var attempted []schema.Issue
	for _, s := range steps {
		if s.outcome != schema.SuccessOutcome {
			continue
		}
		attempted = append(attempted, s.issue)
		for _, f := range s.files {
			touched[f] = true
		}
	}
	if len(touched) == 0 {
		return
	}

	present := make(map[key]bool)
	for path := range touched {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
		if err != nil {
			continue
		}
		for _, is := range o.evaluator.Evaluate(schema.FileRecord{Path: path}, content) {
			present[keyOf(is)] = true
		}
	}

	c := schema.Confirmation{Checked: true}
	seen := make(map[key]bool)
	for _, is := range attempted {
		k := keyOf(is)
		if seen[k] {
			continue
		}
		seen[k] = true
		if touched[is.Path] && !present[k] {
			c.Resolved++
		} else {
			c.Remaining = append(c.Remaining, is)
		}
	}

	o.mu.Lock()
	o.report.Confirmation = c
	o.mu.Unlock()
}

// fileLocks serializes groups that touch the same file. Tree groups hold
// the tree lock exclusively; file groups share it.
type fileLocks struct {
	tree  sync.RWMutex
	mu    sync.Mutex
	files map[string]*sync.Mutex
}

func newFileLocks() *fileLocks {
	return &fileLocks{files: make(map[string]*sync.Mutex)}
}

func (l *fileLocks) acquire(g *group) func() {
	if g.tree {
		l.tree.Lock()
		return l.tree.Unlock
	}
	l.tree.RLock()
	l.mu.Lock()
	m, ok := l.files[g.path]
	if !ok {
		m = &sync.Mutex{}
		l.files[g.path] = m
	}
	l.mu.Unlock()
	m.Lock()
	return func() {
		m.Unlock()
		l.tree.RUnlock()
	}
}

func (g *group) String() string {
	if g.tree {
		return g.fixer.ID() + " (tree)"
	}
	return strings.Join([]string{g.fixer.ID(), g.path}, " ")
}
