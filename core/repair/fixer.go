package repair

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/traelabs/trae/schema"
)

// Priority orders fixer classes. Lower classes run first.
type Priority int

// All fixer priority classes supported.
const (
	FormatPriority Priority = iota
	StructuralPriority
	DependencyPriority
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case FormatPriority:
		return "format"
	case StructuralPriority:
		return "structural"
	case DependencyPriority:
		return "dependency"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority class name. An empty name is def.
func ParsePriority(s string, def Priority) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "format":
		return FormatPriority, nil
	case "structural":
		return StructuralPriority, nil
	case "dependency":
		return DependencyPriority, nil
	default:
		return def, fmt.Errorf("unknown fixer priority %q", s)
	}
}

// MaxPriority returns the highest priority class a repair level allows.
func MaxPriority(level schema.RepairLevel) Priority {
	switch level {
	case schema.AggressiveLevel:
		return DependencyPriority
	case schema.BalancedLevel:
		return StructuralPriority
	default:
		return FormatPriority
	}
}

// ErrNotApplicable is returned by a fixer that has nothing to change.
var ErrNotApplicable = errors.New("not applicable")

// FixResult reports what a fixer changed.
type FixResult struct {
	// Files are the root-relative paths the fixer wrote.
	Files   []string
	Message string
}

// Fixer repairs issues of one category.
//
// Apply receives the accepted issues of a single file (or of the whole tree
// for a TreeFixer) and must be safe to call concurrently for different files.
type Fixer interface {
	ID() string
	Priority() Priority
	Category() schema.Category
	Accepts(issue schema.Issue) bool
	Apply(ctx context.Context, root string, issues []schema.Issue) (FixResult, error)
}

// TreeFixer is implemented by fixers that operate on the whole tree rather
// than on one file. Their groups run exclusively.
type TreeFixer interface {
	Fixer
	TreeScoped() bool
}

func isTreeScoped(f Fixer) bool {
	tf, ok := f.(TreeFixer)
	return ok && tf.TreeScoped()
}

// Registry maps categories to fixers.
type Registry struct {
	fixers []Fixer
	ids    map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Register adds fixers. Fixer IDs must be unique.
func (r *Registry) Register(fixers ...Fixer) error {
	for _, f := range fixers {
		if _, ok := r.ids[f.ID()]; ok {
			return fmt.Errorf("fixer %q already registered", f.ID())
		}
		r.ids[f.ID()] = struct{}{}
		r.fixers = append(r.fixers, f)
	}
	return nil
}

// For returns the fixers registered for a category by priority, then
// registration order.
func (r *Registry) For(category schema.Category) []Fixer {
	var out []Fixer
	for _, f := range r.fixers {
		if f.Category() == category {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b Fixer) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	return out
}

// Fixers returns every registered fixer in registration order.
func (r *Registry) Fixers() []Fixer {
	return slices.Clone(r.fixers)
}

// Len reports how many fixers are registered.
func (r *Registry) Len() int {
	return len(r.fixers)
}
