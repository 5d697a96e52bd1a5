// Package engine coordinates a full synchronization run: classification,
// spec building, reconciliation, and view application inside one atomic
// scope. Per-item failures are logged into the result and the run continues;
// anything that escapes item-level handling rolls the whole scope back and
// the document ends up observably unchanged.
package engine

import (
	"fmt"
	"strings"

	"github.com/kokistudios/vfsync/internal/classify"
	"github.com/kokistudios/vfsync/internal/filter"
	"github.com/kokistudios/vfsync/internal/model"
	"github.com/kokistudios/vfsync/internal/visibility"
)

// Status is the overall outcome of a run.
type Status string

const (
	// StatusOK means the scope committed.
	StatusOK Status = "ok"
	// StatusCancelled means a precondition failed before any mutation.
	StatusCancelled Status = "cancelled"
	// StatusFailed means a scope-fatal error rolled everything back.
	StatusFailed Status = "failed"
)

// Failure is one element or group that failed without aborting the run.
type Failure struct {
	Item   string `yaml:"item" json:"item"`
	Reason string `yaml:"reason" json:"reason"`
}

// Options configure a synchronization run.
type Options struct {
	// Prefix is prepended to every classification key to form filter names.
	Prefix string
	// Categories is the category scope; empty means all categories.
	Categories []string
	// View names the target view; empty resolves the document's active view.
	View string
	// Tolerance is the level-match tolerance for hide-by-level runs.
	Tolerance float64
}

// Result is the structured outcome of a run.
type Result struct {
	Operation string    `yaml:"operation"`
	Status    Status    `yaml:"status"`
	Message   string    `yaml:"message,omitempty"`
	View      string    `yaml:"view,omitempty"`
	Created   int       `yaml:"created"`
	Reused    int       `yaml:"reused"`
	Applied   int       `yaml:"applied"`
	Hidden    int       `yaml:"hidden"`
	Skipped   int       `yaml:"skipped"`
	Kept      int       `yaml:"kept"`
	Failures  []Failure `yaml:"failures,omitempty"`
	Log       []string  `yaml:"log,omitempty"`
}

func (r *Result) logf(format string, args ...any) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

func (r *Result) fail(item, reason string) {
	r.Failures = append(r.Failures, Failure{Item: item, Reason: reason})
}

func (r *Result) cancel(reason string) *Result {
	r.Status = StatusCancelled
	r.Message = reason
	return r
}

// Summary renders a one-paragraph human-readable account of the run.
func (r *Result) Summary() string {
	var b strings.Builder
	switch r.Status {
	case StatusCancelled:
		fmt.Fprintf(&b, "Cancelled: %s", r.Message)
		return b.String()
	case StatusFailed:
		fmt.Fprintf(&b, "Failed: %s (all changes rolled back)", r.Message)
		return b.String()
	}
	switch r.Operation {
	case "hide-by-level":
		fmt.Fprintf(&b, "Hidden %d, kept %d, skipped %d already hidden", r.Hidden, r.Kept, r.Skipped)
	default:
		fmt.Fprintf(&b, "Created %d, reused %d, applied %d to view %q", r.Created, r.Reused, r.Applied, r.View)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, ", %d item failure(s)", len(r.Failures))
	}
	return b.String()
}

// SyncFilters runs the filter synchronization pipeline against the document:
// classify, build specs, reconcile against the catalog, and apply every
// resolved filter to the target view. All mutations happen in one atomic
// scope labelled after the classifier mode.
func SyncFilters(doc *model.Document, cls classify.RuleBuilder, opts Options) *Result {
	return syncFilters(doc, doc, cls, opts)
}

// syncFilters takes the catalog separately so tests can inject store
// failures mid-run.
func syncFilters(doc *model.Document, catalog filter.Catalog, cls classify.RuleBuilder, opts Options) *Result {
	res := &Result{Operation: "sync-" + cls.Mode()}

	view, ok := doc.ViewByName(opts.View)
	if !ok {
		return res.cancel(fmt.Sprintf("view %q not found", opts.View))
	}
	res.View = view.Name
	if !view.Kind.SupportsFilters() {
		return res.cancel(fmt.Sprintf("view %q (%s) does not support filters", view.Name, view.Kind))
	}

	elements := doc.ElementsInScope(opts.Categories, view)
	if len(elements) == 0 {
		return res.cancel("no elements in scope")
	}

	specs, buildFailures := filter.BuildSpecs(doc, elements, cls, opts.Prefix)
	for _, f := range buildFailures {
		res.fail(f.Item, f.Reason)
	}
	if len(specs) == 0 {
		return res.cancel("no eligible elements")
	}

	err := doc.RunInScope("Synchronize "+cls.Mode()+" filters", func() error {
		outcome, err := filter.Reconcile(specs, catalog)
		if err != nil {
			return fmt.Errorf("filter store failure: %w", err)
		}
		for _, f := range outcome.Failures {
			res.fail(f.Item, f.Reason)
		}
		for _, ref := range outcome.Created {
			res.logf("created filter %s", ref.Name)
		}
		for _, ref := range outcome.Reused {
			res.logf("reused filter %s", ref.Name)
		}
		res.Created = len(outcome.Created)
		res.Reused = len(outcome.Reused)

		applied := visibility.ApplyFilters(doc, view, outcome.Refs())
		for _, name := range applied.Bound {
			res.logf("bound filter %s to view %s", name, view.Name)
		}
		for _, name := range applied.AlreadyBound {
			res.logf("filter %s already on view %s", name, view.Name)
		}
		res.Applied = len(applied.Bound) + len(applied.AlreadyBound)
		return nil
	})
	if err != nil {
		res.Status = StatusFailed
		res.Message = err.Error()
		res.Created, res.Reused, res.Applied = 0, 0, 0
		res.logf("rolled back: %v", err)
		return res
	}

	res.Status = StatusOK
	return res
}

// HideByLevel hides, in the target view, every element whose nearest level
// (within tolerance) is not the view's reference level. Elements without a
// level match sit on a foreign level and are hidden as well.
func HideByLevel(doc *model.Document, opts Options) *Result {
	res := &Result{Operation: "hide-by-level"}

	view, ok := doc.ViewByName(opts.View)
	if !ok {
		return res.cancel(fmt.Sprintf("view %q not found", opts.View))
	}
	res.View = view.Name
	if view.Kind != model.ViewFloorPlan && view.Kind != model.ViewCeiling {
		return res.cancel(fmt.Sprintf("view %q (%s) has no reference level", view.Name, view.Kind))
	}
	if _, ok := doc.LevelByID(view.LevelID); !ok {
		return res.cancel(fmt.Sprintf("view %q has no valid reference level", view.Name))
	}
	if len(doc.Levels) == 0 {
		return res.cancel("document has no levels")
	}

	elements := doc.ElementsInScope(opts.Categories, view)
	if len(elements) == 0 {
		return res.cancel("no elements in scope")
	}

	cls := classify.NewLevelProximity(doc.Levels, opts.Tolerance)
	err := doc.RunInScope("Hide foreign-level elements", func() error {
		outcome := visibility.HideForeign(doc, view, cls, elements)
		for _, f := range outcome.Failures {
			res.fail(f.Item, f.Reason)
		}
		for _, id := range outcome.Hidden {
			res.logf("hidden element %d in view %s", id, view.Name)
		}
		res.Hidden = len(outcome.Hidden)
		res.Skipped = outcome.Skipped
		res.Kept = outcome.Kept
		return nil
	})
	if err != nil {
		res.Status = StatusFailed
		res.Message = err.Error()
		res.Hidden, res.Skipped, res.Kept = 0, 0, 0
		res.logf("rolled back: %v", err)
		return res
	}

	res.Status = StatusOK
	return res
}
