package filter

import (
	"errors"

	"github.com/kokistudios/vfsync/internal/model"
)

// Catalog is the document's named filter store as the reconciler sees it.
// Names compare case-insensitively. *model.Document satisfies it.
type Catalog interface {
	FindFilter(name string) (*model.FilterDef, bool)
	CreateFilter(def model.FilterDef) (*model.FilterDef, error)
}

// Ref is a resolved catalog filter after reconciliation.
type Ref struct {
	Name    string
	Created bool
}

// Outcome reports what reconciliation did.
type Outcome struct {
	Created  []Ref
	Reused   []Ref
	Failures []ItemFailure
}

// Refs returns all resolved filters, created first, in reconciliation order.
func (o Outcome) Refs() []Ref {
	return append(append([]Ref{}, o.Created...), o.Reused...)
}

// Reconcile synchronizes the desired specs against the catalog. Existing
// filters are reused as-is; an operator-edited rule or category set is never
// clobbered. Missing filters are created with the spec's rule and categories.
// Two specs normalizing to the same name resolve to one filter: the first
// creates, the second reuses. A create rejected because the rule parameter
// does not apply to the spec's categories is a per-item failure; any other
// create error is a store failure and aborts reconciliation.
func Reconcile(specs []Spec, catalog Catalog) (Outcome, error) {
	var out Outcome
	for _, spec := range specs {
		if existing, ok := catalog.FindFilter(spec.Name); ok {
			out.Reused = append(out.Reused, Ref{Name: existing.Name})
			continue
		}
		created, err := catalog.CreateFilter(model.FilterDef{
			Name:       spec.Name,
			Categories: spec.Categories,
			Rule:       spec.Rule,
		})
		if err != nil {
			if errors.Is(err, model.ErrRuleNotApplicable) {
				out.Failures = append(out.Failures, ItemFailure{Item: spec.Name, Reason: err.Error()})
				continue
			}
			return out, err
		}
		out.Created = append(out.Created, Ref{Name: created.Name, Created: true})
	}
	return out, nil
}
