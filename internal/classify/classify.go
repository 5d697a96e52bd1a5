// Package classify maps model elements to classification keys. A key names
// the group an element belongs to; an empty key marks the element ineligible
// and drops it from grouping. Classifiers are pure: they read the element and
// document context and never mutate anything.
package classify

import (
	"fmt"

	"github.com/kokistudios/vfsync/internal/model"
)

// Well-known parameter names read by the built-in classifiers.
const (
	ParamFamilyName = "Family Name"
	ParamSystemType = "System Type"
	ParamTypeName   = "Type Name"
)

// Key is a stable, comparable classification key. Empty means ineligible.
type Key string

// Context is the read-only model access classifiers need. *model.Document
// satisfies it; tests substitute fakes to exercise read-failure paths.
type Context interface {
	ParamValue(el *model.Element, key string) (model.Value, error)
	TypeParamValue(el *model.Element, key string) (model.Value, error)
	ElementByID(id model.ElementID) (*model.Element, bool)
}

// Classifier derives a classification key from an element. A ("", nil)
// return means the element is ineligible; an error is a per-element read
// failure the caller records and skips past.
type Classifier interface {
	// Mode names the classification strategy (used for prefixes and logs).
	Mode() string
	Classify(ctx Context, el *model.Element) (Key, error)
}

// RuleBuilder is implemented by classifiers whose groups become persisted
// filters. Rule constructs the filter predicate for a group, given any
// representative element of that group.
type RuleBuilder interface {
	Classifier
	Rule(ctx Context, key Key, rep *model.Element) (model.FilterRule, error)
}

// FamilyName classifies by the element's family, falling back to the
// "Family Name" parameter for elements without an instance family.
type FamilyName struct{}

func (FamilyName) Mode() string { return "family" }

func (FamilyName) Classify(ctx Context, el *model.Element) (Key, error) {
	if el.Family != "" {
		return Key(el.Family), nil
	}
	v, err := ctx.ParamValue(el, ParamFamilyName)
	if err != nil {
		return "", err
	}
	return Key(v.Str), nil
}

func (FamilyName) Rule(ctx Context, key Key, rep *model.Element) (model.FilterRule, error) {
	return model.FilterRule{
		Kind:      model.RuleEquality,
		Parameter: ParamFamilyName,
		Value:     string(key),
	}, nil
}

// SystemType classifies by the name of the duct or pipe system type the
// element belongs to, read through the "System Type" element reference.
type SystemType struct{}

func (SystemType) Mode() string { return "system" }

func (SystemType) Classify(ctx Context, el *model.Element) (Key, error) {
	id, err := systemTypeID(ctx, el)
	if err != nil || !id.Valid() {
		return "", err
	}
	sys, ok := ctx.ElementByID(id)
	if !ok {
		return "", nil
	}
	return Key(sys.Name), nil
}

func (SystemType) Rule(ctx Context, key Key, rep *model.Element) (model.FilterRule, error) {
	id, err := systemTypeID(ctx, rep)
	if err != nil {
		return model.FilterRule{}, err
	}
	if !id.Valid() {
		return model.FilterRule{}, fmt.Errorf("element %d has no system type", rep.ID)
	}
	return model.FilterRule{
		Kind:      model.RuleElementID,
		Parameter: ParamSystemType,
		ElementID: id,
	}, nil
}

func systemTypeID(ctx Context, el *model.Element) (model.ElementID, error) {
	v, err := ctx.ParamValue(el, ParamSystemType)
	if err != nil {
		return model.InvalidID, err
	}
	if v.Elem == nil {
		return model.InvalidID, nil
	}
	return *v.Elem, nil
}

// TypeName classifies by the "Type Name" parameter of the element's type,
// not the instance.
type TypeName struct{}

func (TypeName) Mode() string { return "typename" }

func (TypeName) Classify(ctx Context, el *model.Element) (Key, error) {
	v, err := ctx.TypeParamValue(el, ParamTypeName)
	if err != nil {
		return "", err
	}
	return Key(v.Str), nil
}

func (TypeName) Rule(ctx Context, key Key, rep *model.Element) (model.FilterRule, error) {
	return model.FilterRule{
		Kind:      model.RuleEquality,
		Parameter: ParamTypeName,
		Value:     string(key),
	}, nil
}
