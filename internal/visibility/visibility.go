// Package visibility applies reconciled filters to views and drives the
// direct-hide path for level-based classification. Both modes are idempotent:
// already-bound filters and already-hidden elements are skipped, never
// re-applied.
package visibility

import (
	"fmt"

	"github.com/kokistudios/vfsync/internal/classify"
	"github.com/kokistudios/vfsync/internal/filter"
	"github.com/kokistudios/vfsync/internal/model"
)

// ApplyOutcome reports the result of binding filters to a view.
type ApplyOutcome struct {
	Bound        []string
	AlreadyBound []string
}

// ApplyFilters binds each resolved filter to the view with visibility on.
// Filters the view already carries are left untouched.
func ApplyFilters(doc *model.Document, view *model.View, refs []filter.Ref) ApplyOutcome {
	var out ApplyOutcome
	for _, ref := range refs {
		if doc.BindFilter(view, ref.Name, true) {
			out.Bound = append(out.Bound, ref.Name)
		} else {
			out.AlreadyBound = append(out.AlreadyBound, ref.Name)
		}
	}
	return out
}

// HideFailure records one element that could not be hidden.
type HideFailure struct {
	Element model.ElementID
	Item    string
	Reason  string
}

// HideOutcome reports the result of a direct-hide pass.
type HideOutcome struct {
	Hidden   []model.ElementID
	Skipped  int
	Kept     int
	Failures []HideFailure
}

// HideForeign hides every element whose classification key does not match the
// view's reference level. Elements the classifier cannot place within
// tolerance sit on a foreign level and are hidden too. Already-hidden
// elements are skipped; elements the view refuses to hide (template lock,
// pinned) are recorded as per-item failures and the pass continues.
func HideForeign(doc *model.Document, view *model.View, cls *classify.LevelProximity, elements []*model.Element) HideOutcome {
	var out HideOutcome
	viewKey := classify.LevelKey(view.LevelID)

	for _, el := range elements {
		key, err := cls.Classify(doc, el)
		if err != nil {
			out.Failures = append(out.Failures, HideFailure{
				Element: el.ID,
				Item:    fmt.Sprintf("%s (id %d)", el.Label(), el.ID),
				Reason:  err.Error(),
			})
			continue
		}
		if key == viewKey {
			out.Kept++
			continue
		}
		if doc.IsHidden(view, el.ID) {
			out.Skipped++
			continue
		}
		if !doc.CanHide(view, el) {
			out.Failures = append(out.Failures, HideFailure{
				Element: el.ID,
				Item:    fmt.Sprintf("%s (id %d)", el.Label(), el.ID),
				Reason:  "hiding not permitted in this view",
			})
			continue
		}
		doc.Hide(view, el.ID)
		out.Hidden = append(out.Hidden, el.ID)
	}
	return out
}
