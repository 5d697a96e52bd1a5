package model

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrRuleNotApplicable is returned by CreateFilter when the rule's parameter
// is not applicable to any of the filter's categories. It marks a per-item
// condition, not a store failure.
var ErrRuleNotApplicable = errors.New("rule parameter not applicable to filter categories")

// ErrFilterExists is returned by CreateFilter when a filter with the same
// normalized name is already registered.
var ErrFilterExists = errors.New("filter already exists")

// Document is a loaded model document. All state is in memory; Save writes it
// back to Path atomically. Mutations inside a sync run go through a Scope so
// they either all persist or all vanish.
type Document struct {
	Version    int           `yaml:"version"`
	Name       string        `yaml:"name,omitempty"`
	ActiveView string        `yaml:"active_view,omitempty"`
	Levels     []Level       `yaml:"levels,omitempty"`
	Categories []Category    `yaml:"categories,omitempty"`
	Types      []ElementType `yaml:"types,omitempty"`
	Elements   []Element     `yaml:"elements,omitempty"`
	Filters    []FilterDef   `yaml:"filters,omitempty"`
	Views      []View        `yaml:"views,omitempty"`

	Path string `yaml:"-"`
}

// Load reads and parses a model document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read model document: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid model document %s: %w", path, err)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	doc.Path = path
	return &doc, nil
}

// Save writes the document back to its path. The write goes through a temp
// file and rename so a crash never leaves a half-written document.
func (d *Document) Save() error {
	if d.Path == "" {
		return nil
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal model document: %w", err)
	}
	tmp := d.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write model document: %w", err)
	}
	if err := os.Rename(tmp, d.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace model document: %w", err)
	}
	return nil
}

// ElementByID returns the element with the given id.
func (d *Document) ElementByID(id ElementID) (*Element, bool) {
	for i := range d.Elements {
		if d.Elements[i].ID == id {
			return &d.Elements[i], true
		}
	}
	return nil, false
}

// TypeByID returns the element type with the given id.
func (d *Document) TypeByID(id ElementID) (*ElementType, bool) {
	for i := range d.Types {
		if d.Types[i].ID == id {
			return &d.Types[i], true
		}
	}
	return nil, false
}

// ElementsInScope returns elements matching the category scope, restricted to
// the view's element scope when a view is given. An empty category list means
// all categories.
func (d *Document) ElementsInScope(categories []string, view *View) []*Element {
	catSet := make(map[string]bool, len(categories))
	for _, c := range categories {
		catSet[c] = true
	}
	var out []*Element
	for i := range d.Elements {
		el := &d.Elements[i]
		if len(catSet) > 0 && !catSet[el.Category] {
			continue
		}
		if view != nil && !view.InScope(el.ID) {
			continue
		}
		out = append(out, el)
	}
	return out
}

// ParamValue reads a named parameter from an element instance.
func (d *Document) ParamValue(el *Element, key string) (Value, error) {
	v, ok := el.Params[key]
	if !ok {
		return Value{}, nil
	}
	return v, nil
}

// TypeParamValue reads a named parameter from the element's type. A dangling
// type reference is a read error, not a missing value.
func (d *Document) TypeParamValue(el *Element, key string) (Value, error) {
	if !el.TypeID.Valid() {
		return Value{}, nil
	}
	t, ok := d.TypeByID(el.TypeID)
	if !ok {
		return Value{}, fmt.Errorf("element %d references unknown type %d", el.ID, el.TypeID)
	}
	return t.Params[key], nil
}

// FindFilter looks up a catalog filter by name, case-insensitively.
func (d *Document) FindFilter(name string) (*FilterDef, bool) {
	norm := NormalizeName(name)
	for i := range d.Filters {
		if NormalizeName(d.Filters[i].Name) == norm {
			return &d.Filters[i], true
		}
	}
	return nil, false
}

// CreateFilter registers a new named filter in the catalog. The rule's
// parameter must be applicable to at least one of the filter's categories;
// categories without a declared parameter list accept any parameter.
func (d *Document) CreateFilter(def FilterDef) (*FilterDef, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("filter name must not be empty")
	}
	if _, ok := d.FindFilter(def.Name); ok {
		return nil, fmt.Errorf("%w: %s", ErrFilterExists, def.Name)
	}
	if !d.ruleApplicable(def.Rule, def.Categories) {
		return nil, fmt.Errorf("%w: parameter %q, categories %v", ErrRuleNotApplicable, def.Rule.Parameter, def.Categories)
	}
	d.Filters = append(d.Filters, def)
	return &d.Filters[len(d.Filters)-1], nil
}

func (d *Document) ruleApplicable(rule FilterRule, categories []string) bool {
	for _, name := range categories {
		cat, ok := d.categoryByName(name)
		if !ok || len(cat.Parameters) == 0 {
			return true
		}
		for _, p := range cat.Parameters {
			if p == rule.Parameter {
				return true
			}
		}
	}
	return len(categories) == 0
}

func (d *Document) categoryByName(name string) (*Category, bool) {
	for i := range d.Categories {
		if d.Categories[i].Name == name {
			return &d.Categories[i], true
		}
	}
	return nil, false
}

// ViewByName returns the view with the given name (case-insensitive). An
// empty name resolves to the document's active view.
func (d *Document) ViewByName(name string) (*View, bool) {
	if name == "" {
		name = d.ActiveView
	}
	norm := NormalizeName(name)
	for i := range d.Views {
		if NormalizeName(d.Views[i].Name) == norm {
			return &d.Views[i], true
		}
	}
	return nil, false
}

// LevelByID returns the level with the given id.
func (d *Document) LevelByID(id ElementID) (Level, bool) {
	for _, l := range d.Levels {
		if l.ID == id {
			return l, true
		}
	}
	return Level{}, false
}

// BoundFilter reports whether the view already has the named filter bound.
func (d *Document) BoundFilter(view *View, name string) bool {
	norm := NormalizeName(name)
	for _, f := range view.Filters {
		if NormalizeName(f.Name) == norm {
			return true
		}
	}
	return false
}

// BindFilter adds a filter binding to the view. Binding an already-bound
// filter is a no-op; the return value reports whether a binding was added.
func (d *Document) BindFilter(view *View, name string, visible bool) bool {
	if d.BoundFilter(view, name) {
		return false
	}
	view.Filters = append(view.Filters, ViewFilter{Name: name, Visible: visible})
	return true
}

// IsHidden reports whether the element is already hidden in the view.
func (d *Document) IsHidden(view *View, id ElementID) bool {
	for _, h := range view.Hidden {
		if h == id {
			return true
		}
	}
	return false
}

// CanHide reports whether the element may be hidden in the view. Views locked
// by a template reject element-level hiding, as do pinned elements.
func (d *Document) CanHide(view *View, el *Element) bool {
	if view.TemplateLocked {
		return false
	}
	if el.Pinned {
		return false
	}
	return view.InScope(el.ID)
}

// Hide marks elements hidden in the view. Callers are expected to check
// IsHidden and CanHide first; ids already hidden are not duplicated.
func (d *Document) Hide(view *View, ids ...ElementID) {
	for _, id := range ids {
		if !d.IsHidden(view, id) {
			view.Hidden = append(view.Hidden, id)
		}
	}
	sort.Slice(view.Hidden, func(i, j int) bool { return view.Hidden[i] < view.Hidden[j] })
}
