package store

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/vfsync/internal/model"
)

// ModelRef is a registered model document.
type ModelRef struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name"`
	Path    string    `yaml:"path"`
	AddedAt time.Time `yaml:"added_at"`
}

// DeriveModelID derives a stable short id from the document's absolute path.
func DeriveModelID(absPath string) string {
	h := sha256.Sum256([]byte(absPath))
	return fmt.Sprintf("%x", h[:6]) // 12 hex chars
}

func modelRefPath(s *Store, id string) string {
	return s.Path("models", id+".yaml")
}

// RegisterModel adds a model document to the registry. The file must exist
// and parse as a model document.
func RegisterModel(s *Store, path string) (*ModelRef, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	doc, err := model.Load(absPath)
	if err != nil {
		return nil, fmt.Errorf("not a valid model document: %w", err)
	}

	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	}

	ref := &ModelRef{
		ID:      DeriveModelID(absPath),
		Name:    name,
		Path:    absPath,
		AddedAt: time.Now().UTC(),
	}

	data, err := yaml.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model ref: %w", err)
	}
	if err := os.WriteFile(modelRefPath(s, ref.ID), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write model ref: %w", err)
	}
	return ref, nil
}

// GetModel returns a registered model by id or name.
func GetModel(s *Store, idOrName string) (*ModelRef, error) {
	refs, err := ListModels(s)
	if err != nil {
		return nil, err
	}
	for i := range refs {
		if refs[i].ID == idOrName || refs[i].Name == idOrName {
			return &refs[i], nil
		}
	}
	return nil, fmt.Errorf("model not registered: %s", idOrName)
}

// ListModels returns all registered models, sorted by name.
func ListModels(s *Store) ([]ModelRef, error) {
	dir := s.Path("models")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read models directory: %w", err)
	}

	var refs []ModelRef
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var ref ModelRef
		if err := yaml.Unmarshal(data, &ref); err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// RemoveModel deletes a model from the registry. The document itself is left
// untouched.
func RemoveModel(s *Store, idOrName string) error {
	ref, err := GetModel(s, idOrName)
	if err != nil {
		return err
	}
	if err := os.Remove(modelRefPath(s, ref.ID)); err != nil {
		return fmt.Errorf("failed to remove model ref: %w", err)
	}
	return nil
}

// ResolveModel resolves a command-line model argument: a path to an existing
// document wins, otherwise the registry is consulted by id or name.
func ResolveModel(s *Store, arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("model document required (path or registered id)")
	}
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}
	ref, err := GetModel(s, arg)
	if err != nil {
		return "", err
	}
	return ref.Path, nil
}

// CheckModelIntegrity validates that every registered model still exists and
// parses.
func CheckModelIntegrity(s *Store) []Issue {
	var issues []Issue
	refs, err := ListModels(s)
	if err != nil {
		return []Issue{{"error", err.Error()}}
	}
	for _, ref := range refs {
		if _, err := os.Stat(ref.Path); err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("model %s: missing document at %s", ref.ID, ref.Path)})
			continue
		}
		if _, err := model.Load(ref.Path); err != nil {
			issues = append(issues, Issue{"warning", fmt.Sprintf("model %s: %v", ref.ID, err)})
		}
	}
	return issues
}
