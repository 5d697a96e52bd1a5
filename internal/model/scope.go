package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Scope is an atomic mutation scope over a document. Begin captures a
// snapshot; Commit persists the document; Rollback restores the snapshot.
// Rollback after Commit is a no-op, so `defer scope.Rollback()` gives
// all-or-nothing semantics on every exit path.
type Scope struct {
	doc      *Document
	label    string
	snapshot []byte
	done     bool
}

// Begin opens an atomic scope on the document.
func (d *Document) Begin(label string) (*Scope, error) {
	snap, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot document for %q: %w", label, err)
	}
	return &Scope{doc: d, label: label, snapshot: snap}, nil
}

// Label returns the scope's label.
func (s *Scope) Label() string { return s.label }

// Commit persists the document and closes the scope.
func (s *Scope) Commit() error {
	if s.done {
		return fmt.Errorf("scope %q already closed", s.label)
	}
	if err := s.doc.Save(); err != nil {
		return fmt.Errorf("failed to commit %q: %w", s.label, err)
	}
	s.done = true
	return nil
}

// Rollback restores the document to its state at Begin. Safe to call after
// Commit (no-op) and safe to call more than once.
func (s *Scope) Rollback() {
	if s.done {
		return
	}
	s.done = true
	var restored Document
	if err := yaml.Unmarshal(s.snapshot, &restored); err != nil {
		// The snapshot was produced by Marshal in Begin; if it does not parse
		// the process state is corrupt and there is nothing safer to do.
		panic(fmt.Sprintf("scope %q: snapshot restore failed: %v", s.label, err))
	}
	restored.Path = s.doc.Path
	*s.doc = restored
}

// RunInScope executes fn inside an atomic scope. If fn returns an error the
// document is rolled back to its pre-scope state and the error is returned;
// otherwise the scope commits.
func (d *Document) RunInScope(label string, fn func() error) error {
	scope, err := d.Begin(label)
	if err != nil {
		return err
	}
	defer scope.Rollback()
	if err := fn(); err != nil {
		return err
	}
	return scope.Commit()
}
