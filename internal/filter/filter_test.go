package filter

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kokistudios/vfsync/internal/classify"
	"github.com/kokistudios/vfsync/internal/model"
)

func mechDoc() *model.Document {
	return &model.Document{
		Categories: []model.Category{
			{Name: "MechanicalEquipment"},
			{Name: "Ducts"},
		},
		Elements: []model.Element{
			{ID: 1, Family: "Pump-01", Category: "MechanicalEquipment"},
			{ID: 2, Family: "Fan-02", Category: "MechanicalEquipment"},
			{ID: 3, Family: "Pump-01", Category: "Ducts"},
			{ID: 4, Family: "Pump-01", Category: "MechanicalEquipment"},
		},
	}
}

func elemPtrs(doc *model.Document) []*model.Element {
	out := make([]*model.Element, len(doc.Elements))
	for i := range doc.Elements {
		out[i] = &doc.Elements[i]
	}
	return out
}

func TestBuildSpecs_GroupsAndUnions(t *testing.T) {
	doc := mechDoc()
	specs, failures := BuildSpecs(doc, elemPtrs(doc), classify.FamilyName{}, "M-")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	want := []Spec{
		{
			Name:       "M-Fan-02",
			Key:        "Fan-02",
			Categories: []string{"MechanicalEquipment"},
			Rule:       model.FilterRule{Kind: model.RuleEquality, Parameter: classify.ParamFamilyName, Value: "Fan-02"},
		},
		{
			Name:       "M-Pump-01",
			Key:        "Pump-01",
			Categories: []string{"Ducts", "MechanicalEquipment"},
			Rule:       model.FilterRule{Kind: model.RuleEquality, Parameter: classify.ParamFamilyName, Value: "Pump-01"},
		},
	}
	if diff := cmp.Diff(want, specs); diff != "" {
		t.Errorf("specs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSpecs_OrderIndependent(t *testing.T) {
	doc := mechDoc()
	els := elemPtrs(doc)
	forward, _ := BuildSpecs(doc, els, classify.FamilyName{}, "M-")

	reversed := make([]*model.Element, len(els))
	for i, el := range els {
		reversed[len(els)-1-i] = el
	}
	backward, _ := BuildSpecs(doc, reversed, classify.FamilyName{}, "M-")

	if diff := cmp.Diff(forward, backward); diff != "" {
		t.Errorf("specs depend on enumeration order (-forward +backward):\n%s", diff)
	}
}

func TestBuildSpecs_IneligibleSkipped(t *testing.T) {
	doc := mechDoc()
	doc.Elements = append(doc.Elements, model.Element{ID: 5, Category: "MechanicalEquipment"})

	specs, failures := BuildSpecs(doc, elemPtrs(doc), classify.FamilyName{}, "M-")
	if len(failures) != 0 {
		t.Fatalf("ineligible element should not be a failure: %v", failures)
	}
	if len(specs) != 2 {
		t.Errorf("len(specs) = %d, want 2", len(specs))
	}
}

// readErrCtx fails parameter reads for one element id and delegates the rest.
type readErrCtx struct {
	*model.Document
	badID model.ElementID
}

func (c readErrCtx) TypeParamValue(el *model.Element, key string) (model.Value, error) {
	if el.ID == c.badID {
		return model.Value{}, errors.New("parameter storage unavailable")
	}
	return c.Document.TypeParamValue(el, key)
}

func TestBuildSpecs_ReadErrorIsItemFailure(t *testing.T) {
	doc := &model.Document{
		Types: []model.ElementType{
			{ID: 500, Params: map[string]model.Value{classify.ParamTypeName: {Str: "AHU-Large"}}},
		},
		Elements: []model.Element{
			{ID: 1, TypeID: 500, Category: "MechanicalEquipment"},
			{ID: 2, TypeID: 500, Category: "MechanicalEquipment"},
		},
	}
	ctx := readErrCtx{Document: doc, badID: 1}

	specs, failures := BuildSpecs(ctx, elemPtrs(doc), classify.TypeName{}, "T-")
	if len(failures) != 1 {
		t.Fatalf("failures = %v, want exactly one", failures)
	}
	if len(specs) != 1 || specs[0].Name != "T-AHU-Large" {
		t.Errorf("specs = %v, want the surviving element's group", specs)
	}
}

func TestReconcile_CreateAndReuse(t *testing.T) {
	doc := mechDoc()
	specs, _ := BuildSpecs(doc, elemPtrs(doc), classify.FamilyName{}, "M-")

	out, err := Reconcile(specs, doc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(out.Created) != 2 || len(out.Reused) != 0 {
		t.Fatalf("first run: created %d, reused %d, want 2/0", len(out.Created), len(out.Reused))
	}

	out, err = Reconcile(specs, doc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(out.Created) != 0 || len(out.Reused) != 2 {
		t.Errorf("second run: created %d, reused %d, want 0/2", len(out.Created), len(out.Reused))
	}
}

func TestReconcile_ReusePreservesExistingFilter(t *testing.T) {
	doc := mechDoc()
	edited := model.FilterRule{Kind: model.RuleEquality, Parameter: "Comments", Value: "keep me"}
	doc.Filters = []model.FilterDef{{Name: "m-PUMP-01", Categories: []string{"Walls"}, Rule: edited}}

	specs, _ := BuildSpecs(doc, elemPtrs(doc), classify.FamilyName{}, "M-")
	out, err := Reconcile(specs, doc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(out.Reused) != 1 || out.Reused[0].Name != "m-PUMP-01" {
		t.Fatalf("reused = %v, want the pre-existing filter under its stored name", out.Reused)
	}

	got, _ := doc.FindFilter("M-Pump-01")
	if got.Rule != edited {
		t.Errorf("existing rule was overwritten: %+v", got.Rule)
	}
	if diff := cmp.Diff([]string{"Walls"}, got.Categories); diff != "" {
		t.Errorf("existing categories changed (-want +got):\n%s", diff)
	}
}

func TestReconcile_DuplicateNormalizedNames(t *testing.T) {
	doc := mechDoc()
	rule := model.FilterRule{Kind: model.RuleEquality, Parameter: classify.ParamFamilyName, Value: "x"}
	specs := []Spec{
		{Name: "M-pump-01", Key: "pump-01", Categories: []string{"MechanicalEquipment"}, Rule: rule},
		{Name: "M-Pump-01", Key: "Pump-01", Categories: []string{"MechanicalEquipment"}, Rule: rule},
	}

	out, err := Reconcile(specs, doc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(out.Created) != 1 || len(out.Reused) != 1 {
		t.Errorf("created %d, reused %d, want 1/1", len(out.Created), len(out.Reused))
	}
	if len(doc.Filters) != 1 {
		t.Errorf("catalog has %d filters, want 1", len(doc.Filters))
	}
}

func TestReconcile_RuleNotApplicableIsItemFailure(t *testing.T) {
	doc := &model.Document{
		Categories: []model.Category{
			{Name: "Ducts", Parameters: []string{"System Type"}},
			{Name: "MechanicalEquipment"},
		},
	}
	rule := model.FilterRule{Kind: model.RuleEquality, Parameter: classify.ParamFamilyName, Value: "x"}
	specs := []Spec{
		{Name: "M-Bad", Categories: []string{"Ducts"}, Rule: rule},
		{Name: "M-Good", Categories: []string{"MechanicalEquipment"}, Rule: rule},
	}

	out, err := Reconcile(specs, doc)
	if err != nil {
		t.Fatalf("a non-applicable rule must not abort the batch: %v", err)
	}
	if len(out.Failures) != 1 || out.Failures[0].Item != "M-Bad" {
		t.Errorf("failures = %v, want one for M-Bad", out.Failures)
	}
	if len(out.Created) != 1 || out.Created[0].Name != "M-Good" {
		t.Errorf("created = %v, want M-Good", out.Created)
	}
}

// failCatalog rejects every create with a store-level error.
type failCatalog struct{}

var errStore = errors.New("filter store unavailable")

func (failCatalog) FindFilter(string) (*model.FilterDef, bool) { return nil, false }

func (failCatalog) CreateFilter(model.FilterDef) (*model.FilterDef, error) {
	return nil, errStore
}

func TestReconcile_StoreErrorAborts(t *testing.T) {
	specs := []Spec{{Name: "M-Pump-01"}, {Name: "M-Fan-02"}}
	_, err := Reconcile(specs, failCatalog{})
	if !errors.Is(err, errStore) {
		t.Errorf("Reconcile error = %v, want the store error", err)
	}
}

func TestOutcome_Refs(t *testing.T) {
	out := Outcome{
		Created: []Ref{{Name: "A", Created: true}},
		Reused:  []Ref{{Name: "B"}},
	}
	refs := out.Refs()
	if len(refs) != 2 || refs[0].Name != "A" || refs[1].Name != "B" {
		t.Errorf("Refs = %v, want created then reused", refs)
	}
}
