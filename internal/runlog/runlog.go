// Package runlog persists one record per synchronization run under
// VFSYNC_HOME/runs, so past runs stay inspectable after the fact.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/vfsync/internal/engine"
	"github.com/kokistudios/vfsync/internal/store"
)

// Record captures the outcome of one run.
type Record struct {
	ID         string           `yaml:"id"`
	Operation  string           `yaml:"operation"`
	Model      string           `yaml:"model"`
	View       string           `yaml:"view,omitempty"`
	Status     engine.Status    `yaml:"status"`
	Message    string           `yaml:"message,omitempty"`
	Created    int              `yaml:"created"`
	Reused     int              `yaml:"reused"`
	Applied    int              `yaml:"applied"`
	Hidden     int              `yaml:"hidden"`
	Skipped    int              `yaml:"skipped"`
	Kept       int              `yaml:"kept"`
	Failures   []engine.Failure `yaml:"failures,omitempty"`
	Log        []string         `yaml:"log,omitempty"`
	StartedAt  time.Time        `yaml:"started_at"`
	FinishedAt time.Time        `yaml:"finished_at"`
}

// NewRecord builds a record from an engine result.
func NewRecord(res *engine.Result, modelPath string, started time.Time) *Record {
	return &Record{
		ID:         fmt.Sprintf("%s-%s", started.UTC().Format("20060102-150405"), res.Operation),
		Operation:  res.Operation,
		Model:      modelPath,
		View:       res.View,
		Status:     res.Status,
		Message:    res.Message,
		Created:    res.Created,
		Reused:     res.Reused,
		Applied:    res.Applied,
		Hidden:     res.Hidden,
		Skipped:    res.Skipped,
		Kept:       res.Kept,
		Failures:   res.Failures,
		Log:        res.Log,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
}

// Dir returns the directory holding a record's files.
func (r *Record) Dir(s *store.Store) string {
	return s.Path("runs", r.ID)
}

// Write persists the record under VFSYNC_HOME/runs/<id>/run.yaml.
func Write(s *store.Store, r *Record) error {
	dir := r.Dir(s)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// Get returns a run record by id.
func Get(s *store.Store, id string) (*Record, error) {
	p := s.Path("runs", id, "run.yaml")
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid run record: %w", err)
	}
	return &r, nil
}

// List returns all run records, newest first.
func List(s *store.Store) ([]Record, error) {
	dir := s.Path("runs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read runs directory: %w", err)
	}

	var records []Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := Get(s, e.Name())
		if err != nil {
			continue
		}
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartedAt.After(records[j].StartedAt) })
	return records, nil
}

// CheckIntegrity flags run directories without a readable record.
func CheckIntegrity(s *store.Store) []store.Issue {
	var issues []store.Issue
	dir := s.Path("runs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return issues
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := Get(s, e.Name()); err != nil {
			issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("run %s: %v", e.Name(), err)})
		}
	}
	return issues
}
