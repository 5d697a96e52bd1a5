package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kokistudios/vfsync/internal/classify"
	"github.com/kokistudios/vfsync/internal/model"
)

// setupDoc builds a two-level mechanical model persisted to a temp file, so
// scope commits and rollbacks are observable on disk.
func setupDoc(t *testing.T) *model.Document {
	t.Helper()
	box := func(z float64) *model.BoundingBox { return &model.BoundingBox{MinZ: z, MaxZ: z} }
	doc := &model.Document{
		Version:    1,
		Name:       "mech-tower",
		ActiveView: "Level 1 - Mechanical",
		Levels: []model.Level{
			{ID: 100, Name: "Level 1", Elevation: 0},
			{ID: 101, Name: "Level 2", Elevation: 10},
		},
		Categories: []model.Category{
			{Name: "MechanicalEquipment"},
			{Name: "Ducts"},
		},
		Elements: []model.Element{
			{ID: 1, Family: "Pump-01", Category: "MechanicalEquipment", BBox: box(0)},
			{ID: 2, Family: "Pump-01", Category: "MechanicalEquipment", BBox: box(0.2)},
			{ID: 3, Family: "Fan-02", Category: "MechanicalEquipment", BBox: box(10)},
			{ID: 4, Family: "Duct", Category: "Ducts", BBox: box(0)},
		},
		Views: []model.View{
			{Name: "Level 1 - Mechanical", Kind: model.ViewFloorPlan, LevelID: 100},
			{Name: "Equipment Schedule", Kind: model.ViewSchedule},
			{Name: "Overview 3D", Kind: model.ViewThreeD},
		},
		Path: filepath.Join(t.TempDir(), "mech-tower.yaml"),
	}
	if err := doc.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return doc
}

func TestSyncFilters_CreatesAndApplies(t *testing.T) {
	doc := setupDoc(t)
	res := SyncFilters(doc, classify.FamilyName{}, Options{
		Prefix:     "M-",
		Categories: []string{"MechanicalEquipment"},
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Message)
	}
	if res.Created != 2 || res.Reused != 0 || res.Applied != 2 {
		t.Errorf("created/reused/applied = %d/%d/%d, want 2/0/2", res.Created, res.Reused, res.Applied)
	}
	if len(res.Failures) != 0 {
		t.Errorf("failures = %v, want none", res.Failures)
	}

	names := make([]string, len(doc.Filters))
	for i, f := range doc.Filters {
		names[i] = f.Name
	}
	if diff := cmp.Diff([]string{"M-Fan-02", "M-Pump-01"}, names); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
	if len(doc.Views[0].Filters) != 2 {
		t.Errorf("view carries %d bindings, want 2", len(doc.Views[0].Filters))
	}

	// The scope committed, so the file must reflect the new catalog.
	loaded, err := model.Load(doc.Path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Filters) != 2 {
		t.Errorf("persisted catalog has %d filters, want 2", len(loaded.Filters))
	}
}

func TestSyncFilters_SecondRunIsIdempotent(t *testing.T) {
	doc := setupDoc(t)
	opts := Options{Prefix: "M-", Categories: []string{"MechanicalEquipment"}}

	SyncFilters(doc, classify.FamilyName{}, opts)
	res := SyncFilters(doc, classify.FamilyName{}, opts)

	if res.Status != StatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Message)
	}
	if res.Created != 0 || res.Reused != 2 {
		t.Errorf("second run created/reused = %d/%d, want 0/2", res.Created, res.Reused)
	}
	if res.Applied != 2 {
		t.Errorf("second run applied = %d, want 2 (already bound still counts)", res.Applied)
	}
	if len(doc.Filters) != 2 || len(doc.Views[0].Filters) != 2 {
		t.Errorf("catalog/bindings = %d/%d, want 2/2", len(doc.Filters), len(doc.Views[0].Filters))
	}
}

func TestSyncFilters_Preconditions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"unknown view", Options{Prefix: "M-", View: "No Such View"}},
		{"view without filter support", Options{Prefix: "M-", View: "Equipment Schedule"}},
		{"empty category scope", Options{Prefix: "M-", Categories: []string{"Nothing"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := setupDoc(t)
			res := SyncFilters(doc, classify.FamilyName{}, tt.opts)
			if res.Status != StatusCancelled {
				t.Fatalf("status = %s, want cancelled", res.Status)
			}
			if len(doc.Filters) != 0 {
				t.Errorf("cancelled run mutated the catalog: %v", doc.Filters)
			}
		})
	}
}

func TestSyncFilters_NoEligibleElements(t *testing.T) {
	doc := setupDoc(t)
	for i := range doc.Elements {
		doc.Elements[i].Family = ""
	}
	res := SyncFilters(doc, classify.FamilyName{}, Options{Prefix: "M-"})
	if res.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled when nothing classifies", res.Status)
	}
}

// brokenCatalog lets a fixed number of creates through, then fails like a
// store outage. Lookups pass through to the document.
type brokenCatalog struct {
	doc       *model.Document
	remaining int
}

var errOutage = errors.New("filter store gone")

func (c *brokenCatalog) FindFilter(name string) (*model.FilterDef, bool) {
	return c.doc.FindFilter(name)
}

func (c *brokenCatalog) CreateFilter(def model.FilterDef) (*model.FilterDef, error) {
	if c.remaining <= 0 {
		return nil, errOutage
	}
	c.remaining--
	return c.doc.CreateFilter(def)
}

func TestSyncFilters_StoreFailureRollsBackEverything(t *testing.T) {
	doc := setupDoc(t)
	catalog := &brokenCatalog{doc: doc, remaining: 1}

	res := syncFilters(doc, catalog, classify.FamilyName{}, Options{
		Prefix:     "M-",
		Categories: []string{"MechanicalEquipment"},
	})

	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.Created != 0 || res.Reused != 0 || res.Applied != 0 {
		t.Errorf("failed run reports %d/%d/%d, want all zero", res.Created, res.Reused, res.Applied)
	}

	// The first create succeeded in memory before the outage; rollback must
	// erase it both in memory and on disk.
	if len(doc.Filters) != 0 {
		t.Errorf("catalog after rollback = %v, want empty", doc.Filters)
	}
	if len(doc.Views[0].Filters) != 0 {
		t.Errorf("view bindings after rollback = %v, want none", doc.Views[0].Filters)
	}
	loaded, err := model.Load(doc.Path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Filters) != 0 {
		t.Errorf("persisted catalog after rollback = %v, want empty", loaded.Filters)
	}
}

func TestHideByLevel(t *testing.T) {
	doc := setupDoc(t)
	res := HideByLevel(doc, Options{Tolerance: 0.5})

	if res.Status != StatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Message)
	}
	// Elements 1, 2, 4 sit on Level 1; element 3 is foreign.
	if res.Hidden != 1 || res.Kept != 3 {
		t.Errorf("hidden/kept = %d/%d, want 1/3", res.Hidden, res.Kept)
	}
	view := &doc.Views[0]
	if !doc.IsHidden(view, 3) {
		t.Error("foreign element 3 should be hidden")
	}

	// Second pass: the foreign element is already hidden.
	res = HideByLevel(doc, Options{Tolerance: 0.5})
	if res.Hidden != 0 || res.Skipped != 1 {
		t.Errorf("second pass hidden/skipped = %d/%d, want 0/1", res.Hidden, res.Skipped)
	}
}

func TestHideByLevel_Preconditions(t *testing.T) {
	doc := setupDoc(t)

	res := HideByLevel(doc, Options{View: "Overview 3D"})
	if res.Status != StatusCancelled {
		t.Errorf("3d view: status = %s, want cancelled", res.Status)
	}

	doc.Views[0].LevelID = 999
	res = HideByLevel(doc, Options{})
	if res.Status != StatusCancelled {
		t.Errorf("dangling level: status = %s, want cancelled", res.Status)
	}
}

func TestResult_Summary(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{
			"ok sync",
			Result{Operation: "sync-family", Status: StatusOK, View: "L1", Created: 2, Reused: 1, Applied: 3},
			`Created 2, reused 1, applied 3 to view "L1"`,
		},
		{
			"ok sync with failures",
			Result{Operation: "sync-family", Status: StatusOK, View: "L1", Failures: []Failure{{Item: "x"}}},
			`Created 0, reused 0, applied 0 to view "L1", 1 item failure(s)`,
		},
		{
			"hide",
			Result{Operation: "hide-by-level", Status: StatusOK, Hidden: 4, Kept: 2, Skipped: 1},
			"Hidden 4, kept 2, skipped 1 already hidden",
		},
		{
			"cancelled",
			Result{Status: StatusCancelled, Message: "no elements in scope"},
			"Cancelled: no elements in scope",
		},
		{
			"failed",
			Result{Status: StatusFailed, Message: "filter store failure"},
			"Failed: filter store failure (all changes rolled back)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Summary(); got != tt.want {
				t.Errorf("Summary = %q, want %q", got, tt.want)
			}
		})
	}
}
