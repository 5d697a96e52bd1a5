// Package model holds the portable building-services model document: elements,
// levels, views, named filters, and the atomic mutation scope. The document is
// the single mutable collaborator the sync engine works against; everything in
// it is plain YAML-backed state so the engine stays testable without a live
// host application.
package model

import (
	"strings"
)

// ElementID identifies an element within a document.
type ElementID int64

// InvalidID marks an unresolved element reference.
const InvalidID ElementID = -1

// Valid reports whether the id refers to a real element.
func (id ElementID) Valid() bool { return id > 0 }

// Value is a typed parameter value: string, numeric, or element reference.
// Exactly one field is expected to be set.
type Value struct {
	Str  string     `yaml:"str,omitempty"`
	Num  *float64   `yaml:"num,omitempty"`
	Elem *ElementID `yaml:"elem,omitempty"`
}

// IsZero reports whether the value carries no data.
func (v Value) IsZero() bool {
	return v.Str == "" && v.Num == nil && v.Elem == nil
}

// Point is a location in model coordinates.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// BoundingBox is the vertical extent of an element's geometry. Only the Z
// range matters for level proximity.
type BoundingBox struct {
	MinZ float64 `yaml:"min_z"`
	MaxZ float64 `yaml:"max_z"`
}

// MidZ returns the vertical midpoint of the box.
func (b BoundingBox) MidZ() float64 { return (b.MinZ + b.MaxZ) / 2 }

// Element is one model element: an instance with a category, an optional
// type reference, and named parameters.
type Element struct {
	ID       ElementID        `yaml:"id"`
	Name     string           `yaml:"name,omitempty"`
	Category string           `yaml:"category,omitempty"`
	TypeID   ElementID        `yaml:"type,omitempty"`
	Family   string           `yaml:"family,omitempty"`
	Pinned   bool             `yaml:"pinned,omitempty"`
	BBox     *BoundingBox     `yaml:"bbox,omitempty"`
	Origin   *Point           `yaml:"origin,omitempty"`
	Params   map[string]Value `yaml:"parameters,omitempty"`
}

// Label returns a human-readable identity for result logs.
func (e *Element) Label() string {
	if e.Name != "" {
		return e.Name
	}
	if e.Family != "" {
		return e.Family
	}
	return "element"
}

// ElementType is a shared type definition referenced by instances. Type-level
// parameters (e.g. "Type Name") live here, not on the instance.
type ElementType struct {
	ID     ElementID        `yaml:"id"`
	Name   string           `yaml:"name,omitempty"`
	Params map[string]Value `yaml:"parameters,omitempty"`
}

// Level is a named horizontal datum at a fixed elevation.
type Level struct {
	ID        ElementID `yaml:"id"`
	Name      string    `yaml:"name"`
	Elevation float64   `yaml:"elevation"`
}

// Category declares a category and, optionally, the parameter names that are
// applicable to filters over it. An empty Parameters list means "unrestricted"
// — any parameter is accepted for filter rules on that category.
type Category struct {
	Name       string   `yaml:"name"`
	Parameters []string `yaml:"parameters,omitempty"`
}

// RuleKind discriminates filter rule predicates.
type RuleKind string

const (
	// RuleEquality matches a string parameter against an expected value.
	RuleEquality RuleKind = "equality"
	// RuleElementID matches an element-reference parameter against a target id.
	RuleElementID RuleKind = "element_id"
)

// FilterRule is the predicate attached to a named filter.
type FilterRule struct {
	Kind          RuleKind  `yaml:"kind"`
	Parameter     string    `yaml:"parameter"`
	Value         string    `yaml:"value,omitempty"`
	CaseSensitive bool      `yaml:"case_sensitive,omitempty"`
	ElementID     ElementID `yaml:"element_id,omitempty"`
}

// FilterDef is a named, rule-backed filter stored in the document catalog.
// Name identity is case-insensitive document-wide.
type FilterDef struct {
	Name       string     `yaml:"name"`
	Categories []string   `yaml:"categories,omitempty"`
	Rule       FilterRule `yaml:"rule"`
}

// ViewFilter binds a catalog filter to a view with a visibility flag.
type ViewFilter struct {
	Name    string `yaml:"name"`
	Visible bool   `yaml:"visible"`
}

// ViewKind distinguishes view types; only plan-like and model views accept
// filters and element hiding.
type ViewKind string

const (
	ViewFloorPlan ViewKind = "floorplan"
	ViewCeiling   ViewKind = "ceiling"
	ViewSection   ViewKind = "section"
	ViewThreeD    ViewKind = "3d"
	ViewSchedule  ViewKind = "schedule"
	ViewSheet     ViewKind = "sheet"
)

// SupportsFilters reports whether views of this kind accept filter bindings.
func (k ViewKind) SupportsFilters() bool {
	switch k {
	case ViewFloorPlan, ViewCeiling, ViewSection, ViewThreeD:
		return true
	}
	return false
}

// View is one drawing view over the model.
type View struct {
	Name           string       `yaml:"name"`
	Kind           ViewKind     `yaml:"kind"`
	LevelID        ElementID    `yaml:"level,omitempty"`
	TemplateLocked bool         `yaml:"template_locked,omitempty"`
	Elements       []ElementID  `yaml:"elements,omitempty"`
	Filters        []ViewFilter `yaml:"filters,omitempty"`
	Hidden         []ElementID  `yaml:"hidden,omitempty"`
}

// InScope reports whether the element is part of the view's scope. A view
// without an explicit element list sees the whole model.
func (v *View) InScope(id ElementID) bool {
	if len(v.Elements) == 0 {
		return true
	}
	for _, e := range v.Elements {
		if e == id {
			return true
		}
	}
	return false
}

// NormalizeName lowercases a filter or view name for identity comparison.
// Case-insensitive comparison is the single source of truth for filter
// identity within a document.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
