package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	home := filepath.Join(t.TempDir(), ".vfsync")
	if err := Init(home, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	s, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func writeModelDoc(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".yaml")
	content := "version: 1\nname: " + name + "\nelements:\n  - id: 1\n    family: Pump-01\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInit_CreatesStructure(t *testing.T) {
	s := setupStore(t)

	for _, dir := range []string{"models", "runs"} {
		info, err := os.Stat(s.Path(dir))
		if err != nil || !info.IsDir() {
			t.Errorf("missing directory %s after Init", dir)
		}
	}
	if s.Config.Filters.FamilyPrefix != "M-" {
		t.Errorf("FamilyPrefix = %q, want M-", s.Config.Filters.FamilyPrefix)
	}
	if !s.Config.Sync.ConfirmBeforeApply {
		t.Error("ConfirmBeforeApply should default to true")
	}
}

func TestInit_RefusesExistingWithoutForce(t *testing.T) {
	home := filepath.Join(t.TempDir(), ".vfsync")
	if err := Init(home, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(home, false); err == nil {
		t.Error("second Init without force should fail")
	}
	if err := Init(home, true); err != nil {
		t.Errorf("Init with force: %v", err)
	}

	// Any pre-existing directory counts as an existing home, so callers must
	// point Init at a path that does not exist yet.
	if err := Init(t.TempDir(), false); err == nil {
		t.Error("Init into an existing directory should fail without force")
	}
}

func TestPrefix(t *testing.T) {
	s := setupStore(t)
	tests := []struct {
		mode, want string
	}{
		{"family", "M-"},
		{"system", "00-"},
		{"typename", "T-"},
		{"anything-else", "M-"},
	}
	for _, tt := range tests {
		if got := s.Prefix(tt.mode); got != tt.want {
			t.Errorf("Prefix(%q) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestSetConfigValue(t *testing.T) {
	s := setupStore(t)

	if err := s.SetConfigValue("filters.family_prefix", "MECH-"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}
	if err := s.SetConfigValue("level.tolerance", "0.25"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}
	if err := s.SetConfigValue("sync.confirm_before_apply", "false"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}

	reloaded, err := Load(s.Home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Config.Filters.FamilyPrefix != "MECH-" {
		t.Errorf("FamilyPrefix = %q, want MECH-", reloaded.Config.Filters.FamilyPrefix)
	}
	if reloaded.Config.Level.Tolerance != 0.25 {
		t.Errorf("Tolerance = %v, want 0.25", reloaded.Config.Level.Tolerance)
	}
	if reloaded.Config.Sync.ConfirmBeforeApply {
		t.Error("ConfirmBeforeApply should be false after set")
	}

	if err := s.SetConfigValue("level.tolerance", "-1"); err == nil {
		t.Error("negative tolerance should be rejected")
	}
	if err := s.SetConfigValue("no.such.key", "x"); err == nil {
		t.Error("unknown key should be rejected")
	}
}

func TestCheckHealth_And_Fix(t *testing.T) {
	s := setupStore(t)
	if issues := CheckHealth(s.Home); len(issues) != 0 {
		t.Errorf("fresh store has issues: %v", issues)
	}

	if err := os.RemoveAll(s.Path("runs")); err != nil {
		t.Fatal(err)
	}
	issues := CheckHealth(s.Home)
	if len(issues) != 1 || issues[0].Severity != "error" {
		t.Fatalf("issues = %v, want one error for the missing runs dir", issues)
	}

	fixed := FixIssues(s.Home)
	if len(fixed) != 1 {
		t.Errorf("fixed = %v, want one repair", fixed)
	}
	if issues := CheckHealth(s.Home); len(issues) != 0 {
		t.Errorf("issues after fix: %v", issues)
	}
}

func TestRegisterModel(t *testing.T) {
	s := setupStore(t)
	path := writeModelDoc(t, "mech-tower")

	ref, err := RegisterModel(s, path)
	if err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}
	if ref.Name != "mech-tower" {
		t.Errorf("Name = %q, want mech-tower", ref.Name)
	}
	if len(ref.ID) != 12 {
		t.Errorf("ID = %q, want 12 hex chars", ref.ID)
	}

	// Registering the same path again overwrites the same ref.
	again, err := RegisterModel(s, path)
	if err != nil {
		t.Fatalf("RegisterModel again: %v", err)
	}
	if again.ID != ref.ID {
		t.Errorf("re-register changed id: %q vs %q", again.ID, ref.ID)
	}
	refs, err := ListModels(s)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(refs) != 1 {
		t.Errorf("len(refs) = %d, want 1", len(refs))
	}
}

func TestRegisterModel_RejectsInvalidDocument(t *testing.T) {
	s := setupStore(t)
	path := filepath.Join(t.TempDir(), "junk.yaml")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := RegisterModel(s, path); err == nil {
		t.Error("RegisterModel should reject an unparseable document")
	}
}

func TestGetModel_ByIDAndName(t *testing.T) {
	s := setupStore(t)
	ref, err := RegisterModel(s, writeModelDoc(t, "mech-tower"))
	if err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}

	for _, arg := range []string{ref.ID, "mech-tower"} {
		got, err := GetModel(s, arg)
		if err != nil {
			t.Fatalf("GetModel(%q): %v", arg, err)
		}
		if got.ID != ref.ID {
			t.Errorf("GetModel(%q).ID = %q, want %q", arg, got.ID, ref.ID)
		}
	}
	if _, err := GetModel(s, "nope"); err == nil {
		t.Error("GetModel should fail for an unregistered model")
	}
}

func TestRemoveModel(t *testing.T) {
	s := setupStore(t)
	docPath := writeModelDoc(t, "mech-tower")
	if _, err := RegisterModel(s, docPath); err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}

	if err := RemoveModel(s, "mech-tower"); err != nil {
		t.Fatalf("RemoveModel: %v", err)
	}
	refs, _ := ListModels(s)
	if len(refs) != 0 {
		t.Errorf("refs after remove = %v, want none", refs)
	}
	if _, err := os.Stat(docPath); err != nil {
		t.Error("RemoveModel must leave the document file alone")
	}
}

func TestResolveModel(t *testing.T) {
	s := setupStore(t)
	docPath := writeModelDoc(t, "mech-tower")
	if _, err := RegisterModel(s, docPath); err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}

	got, err := ResolveModel(s, docPath)
	if err != nil || got != docPath {
		t.Errorf("ResolveModel(path) = (%q, %v), want the path back", got, err)
	}

	got, err = ResolveModel(s, "mech-tower")
	if err != nil {
		t.Fatalf("ResolveModel(name): %v", err)
	}
	if !strings.HasSuffix(got, "mech-tower.yaml") {
		t.Errorf("ResolveModel(name) = %q, want the registered path", got)
	}

	if _, err := ResolveModel(s, ""); err == nil {
		t.Error("empty argument should be an error")
	}
	if _, err := ResolveModel(s, "missing"); err == nil {
		t.Error("unresolvable argument should be an error")
	}
}

func TestCheckModelIntegrity(t *testing.T) {
	s := setupStore(t)
	docPath := writeModelDoc(t, "mech-tower")
	if _, err := RegisterModel(s, docPath); err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}

	if issues := CheckModelIntegrity(s); len(issues) != 0 {
		t.Errorf("healthy registry has issues: %v", issues)
	}

	if err := os.Remove(docPath); err != nil {
		t.Fatal(err)
	}
	issues := CheckModelIntegrity(s)
	if len(issues) != 1 || issues[0].Severity != "error" {
		t.Errorf("issues = %v, want one error for the missing document", issues)
	}
}
