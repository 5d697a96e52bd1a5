// Package report builds markdown run reports with YAML frontmatter. Reports
// are the human-readable companion to the machine-readable run record.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/vfsync/internal/runlog"
	"github.com/kokistudios/vfsync/internal/store"
)

// Meta contains the YAML frontmatter metadata for a run report.
type Meta struct {
	Run       string    `yaml:"run"`
	Operation string    `yaml:"operation"`
	Model     string    `yaml:"model"`
	View      string    `yaml:"view,omitempty"`
	Status    string    `yaml:"status"`
	Timestamp time.Time `yaml:"timestamp"`
}

// Report is a parsed markdown report with YAML frontmatter.
type Report struct {
	Frontmatter Meta
	Body        string
	RawContent  string
}

// Build renders a run record as a markdown report with frontmatter.
func Build(r *runlog.Record) (string, error) {
	meta := Meta{
		Run:       r.ID,
		Operation: r.Operation,
		Model:     r.Model,
		View:      r.View,
		Status:    string(r.Status),
		Timestamp: r.FinishedAt,
	}
	fm, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# Run %s\n\n", r.ID)
	if r.Message != "" {
		fmt.Fprintf(&b, "> %s\n\n", r.Message)
	}
	b.WriteString("## Counts\n\n")
	fmt.Fprintf(&b, "| created | reused | applied | hidden | kept | skipped |\n")
	fmt.Fprintf(&b, "|---------|--------|---------|--------|------|---------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n\n", r.Created, r.Reused, r.Applied, r.Hidden, r.Kept, r.Skipped)

	if len(r.Failures) > 0 {
		b.WriteString("## Item failures\n\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- **%s** — %s\n", f.Item, f.Reason)
		}
		b.WriteString("\n")
	}
	if len(r.Log) > 0 {
		b.WriteString("## Log\n\n")
		for _, line := range r.Log {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String(), nil
}

// Write renders and stores the report next to the run record.
func Write(s *store.Store, r *runlog.Record) (string, error) {
	md, err := Build(r)
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.Dir(s), "report.md")
	if err := os.WriteFile(path, []byte(md), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Parse splits a markdown report into YAML frontmatter and body.
// Frontmatter is delimited by --- lines at the start of the document.
func Parse(raw []byte) (*Report, error) {
	content := string(raw)
	trimmed := strings.TrimSpace(content)

	if !strings.HasPrefix(trimmed, "---") {
		// No frontmatter — treat entire content as body with empty metadata
		return &Report{
			Body:       content,
			RawContent: content,
		}, nil
	}

	rest := trimmed[3:] // skip opening ---
	rest = strings.TrimLeft(rest, " \t")
	if len(rest) > 0 && rest[0] == '\n' {
		rest = rest[1:]
	} else if len(rest) > 1 && rest[0] == '\r' && rest[1] == '\n' {
		rest = rest[2:]
	}

	endIdx := strings.Index(rest, "\n---")
	if endIdx == -1 {
		return nil, fmt.Errorf("unterminated frontmatter: missing closing ---")
	}

	fmRaw := rest[:endIdx]
	body := rest[endIdx+4:] // skip \n---
	body = strings.TrimLeft(body, "\r\n")

	var meta Meta
	if err := yaml.Unmarshal([]byte(fmRaw), &meta); err != nil {
		return nil, fmt.Errorf("invalid frontmatter YAML: %w", err)
	}

	return &Report{
		Frontmatter: meta,
		Body:        body,
		RawContent:  content,
	}, nil
}
