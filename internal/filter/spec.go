// Package filter turns classified elements into a desired set of named
// filter specs and reconciles that set against a document's filter catalog.
// The desired state is recomputed from scratch on every run; reconciliation
// is create-or-reuse, never overwrite.
package filter

import (
	"fmt"
	"sort"

	"github.com/kokistudios/vfsync/internal/classify"
	"github.com/kokistudios/vfsync/internal/model"
)

// Spec is a desired named filter: one per distinct classification key.
type Spec struct {
	Name       string
	Key        classify.Key
	Categories []string
	Rule       model.FilterRule
}

// ItemFailure records one element or group that failed without aborting the
// batch.
type ItemFailure struct {
	Item   string
	Reason string
}

// BuildSpecs classifies every element, groups by key, and emits one Spec per
// group with the member categories unioned. Output is sorted by key so the
// desired state is identical regardless of element enumeration order.
// Elements without a key are silently ineligible; per-element read errors are
// returned as item failures and the rest of the batch continues.
func BuildSpecs(ctx classify.Context, elements []*model.Element, cls classify.RuleBuilder, prefix string) ([]Spec, []ItemFailure) {
	type group struct {
		categories map[string]bool
		rep        *model.Element
	}
	groups := make(map[classify.Key]*group)
	var failures []ItemFailure

	for _, el := range elements {
		key, err := cls.Classify(ctx, el)
		if err != nil {
			failures = append(failures, ItemFailure{
				Item:   fmt.Sprintf("%s (id %d)", el.Label(), el.ID),
				Reason: err.Error(),
			})
			continue
		}
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{categories: make(map[string]bool), rep: el}
			groups[key] = g
		}
		if el.Category != "" {
			g.categories[el.Category] = true
		}
	}

	keys := make([]classify.Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	specs := make([]Spec, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		rule, err := cls.Rule(ctx, key, g.rep)
		if err != nil {
			failures = append(failures, ItemFailure{Item: string(key), Reason: err.Error()})
			continue
		}
		cats := make([]string, 0, len(g.categories))
		for c := range g.categories {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		specs = append(specs, Spec{
			Name:       prefix + string(key),
			Key:        key,
			Categories: cats,
			Rule:       rule,
		})
	}
	return specs, failures
}
