// Package walker enumerates candidate files under a root directory.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// Ignore files read from the root when present.
const (
	GitIgnoreFile  = ".gitignore"
	TraeIgnoreFile = ".traeignore"
)

// DefaultPatterns are gitignore-style patterns that are always applied.
var DefaultPatterns = []string{
	".git",
	".hg",
	".svn",
	".trae",
	".idea",
	".vscode",
	".venv",
	"node_modules",
	"vendor",
	"target",
	"__pycache__",
}

// IgnoreSpec controls which files the walker yields.
type IgnoreSpec struct {
	// Patterns are extra gitignore-style patterns.
	Patterns []string
	// Excludes are matched with contract.ShouldIgnore.
	Excludes []string
	// MaxFileSize skips larger files. Zero disables the cutoff.
	MaxFileSize int64
	// Extensions restricts files by extension (".rs"). Empty allows all.
	Extensions []string
}

// Walker produces FileRecords for one root. A Walker may be reused; every
// call to Records starts a fresh traversal.
type Walker struct {
	root       string
	spec       IgnoreSpec
	matcher    *ignore.GitIgnore
	extensions map[string]struct{}

	mu    sync.Mutex
	diags []schema.Diagnostic
}

// New validates root and compiles the ignore rules. A missing root or a root
// that is not a directory is an EnvironmentFatal error.
func New(root string, spec IgnoreSpec) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, contract.NewError(contract.EnvironmentFatal, "resolve root", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, contract.NewError(contract.EnvironmentFatal, "stat root", absRoot, err)
	}
	if !info.IsDir() {
		return nil, contract.NewError(contract.EnvironmentFatal, "stat root", absRoot, errors.New("not a directory"))
	}

	patterns := append([]string(nil), DefaultPatterns...)
	for _, name := range []string{GitIgnoreFile, TraeIgnoreFile} {
		patterns = append(patterns, readIgnoreFile(filepath.Join(absRoot, name))...)
	}
	patterns = append(patterns, spec.Patterns...)

	w := &Walker{
		root:    absRoot,
		spec:    spec,
		matcher: ignore.CompileIgnoreLines(patterns...),
	}
	if len(spec.Extensions) > 0 {
		w.extensions = make(map[string]struct{}, len(spec.Extensions))
		for _, ext := range spec.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions[ext] = struct{}{}
		}
	}
	return w, nil
}

// Root returns the absolute root of the walker.
func (w *Walker) Root() string {
	return w.root
}

// Diagnostics returns the diagnostics recorded by the last traversal.
func (w *Walker) Diagnostics() []schema.Diagnostic {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]schema.Diagnostic(nil), w.diags...)
}

// Records returns a lazy sequence of the candidate files under the root in
// lexical order. The traversal stops early when ctx is done.
func (w *Walker) Records(ctx context.Context) iter.Seq[schema.FileRecord] {
	return func(yield func(schema.FileRecord) bool) {
		t := &traversal{
			w:         w,
			ctx:       ctx,
			yield:     yield,
			visited:   make(map[string]struct{}),
			ancestors: make(map[string]struct{}),
		}
		if canonical, err := filepath.EvalSymlinks(w.root); err == nil {
			t.visited[canonical] = struct{}{}
			t.ancestors[canonical] = struct{}{}
		}
		t.walkDir(w.root, "")
		t.finish()

		w.mu.Lock()
		w.diags = t.diags
		w.mu.Unlock()
	}
}

// traversal holds the state of one walk. ancestors holds the canonical
// directories on the current descent path; visited holds every one seen.
type traversal struct {
	w         *Walker
	ctx       context.Context
	yield     func(schema.FileRecord) bool
	visited   map[string]struct{}
	ancestors map[string]struct{}
	diags     []schema.Diagnostic
	large     []string
	stopped   bool
}

func (t *traversal) diag(kind schema.DiagnosticKind, rel, msg string) {
	t.diags = append(t.diags, schema.Diagnostic{Kind: kind, Path: rel, Message: msg})
}

// walkDir visits the entries of dir, whose slash path relative to the root is rel.
func (t *traversal) walkDir(dir, rel string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.diag(schema.ReadDirFailed, displayPath(rel), err.Error())
		if len(entries) == 0 {
			return
		}
	}

	for _, entry := range entries {
		if t.stopped {
			return
		}
		if t.ctx.Err() != nil {
			t.stopped = true
			return
		}

		name := entry.Name()
		childRel := name
		if rel != "" {
			childRel = path.Join(rel, name)
		}
		childAbs := filepath.Join(dir, name)

		info, err := entry.Info()
		if err != nil {
			t.diag(schema.StatFailed, childRel, err.Error())
			continue
		}
		isLink := info.Mode()&fs.ModeSymlink != 0
		if isLink {
			// Follow the link once; the target decides file versus directory.
			info, err = os.Stat(childAbs)
			if err != nil {
				t.diag(schema.StatFailed, childRel, err.Error())
				continue
			}
		}

		if info.IsDir() {
			if t.ignored(childRel + "/") {
				continue
			}
			canonical, err := filepath.EvalSymlinks(childAbs)
			if err != nil {
				t.diag(schema.StatFailed, childRel, err.Error())
				continue
			}
			if _, loop := t.ancestors[canonical]; loop {
				t.diag(schema.SymlinkCycle, childRel, fmt.Sprintf("links back to %s", canonical))
				continue
			}
			if _, seen := t.visited[canonical]; seen {
				t.diag(schema.AlreadyVisited, childRel, fmt.Sprintf("already visited %s", canonical))
				continue
			}
			t.visited[canonical] = struct{}{}
			t.ancestors[canonical] = struct{}{}
			t.walkDir(childAbs, childRel)
			delete(t.ancestors, canonical)
			continue
		}

		if !info.Mode().IsRegular() || t.ignored(childRel) || !t.allowedExtension(name) {
			continue
		}
		if t.w.spec.MaxFileSize > 0 && info.Size() > t.w.spec.MaxFileSize {
			t.large = append(t.large, childRel)
			continue
		}

		rec := schema.FileRecord{
			Path:    childRel,
			AbsPath: childAbs,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if !t.yield(rec) {
			t.stopped = true
			return
		}
	}
}

// finish records the aggregate oversize diagnostic.
func (t *traversal) finish() {
	if len(t.large) == 0 {
		return
	}
	t.diag(schema.SkippedOversize, "", fmt.Sprintf("%d file(s) larger than %d bytes skipped: %s",
		len(t.large), t.w.spec.MaxFileSize, strings.Join(t.large, ", ")))
}

func (t *traversal) ignored(rel string) bool {
	if t.w.matcher.MatchesPath(rel) {
		return true
	}
	return contract.ShouldIgnore(rel, t.w.spec.Excludes)
}

func (t *traversal) allowedExtension(name string) bool {
	if t.w.extensions == nil {
		return true
	}
	_, ok := t.w.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// readIgnoreFile returns the lines of an ignore file, or nil if it cannot be read.
func readIgnoreFile(p string) []string {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}
