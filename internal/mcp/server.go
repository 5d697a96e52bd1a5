// Package mcp exposes vfsync operations as MCP tools over stdio, so agent
// runtimes can inspect models and drive filter synchronization.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/vfsync/internal/classify"
	"github.com/kokistudios/vfsync/internal/engine"
	"github.com/kokistudios/vfsync/internal/model"
	"github.com/kokistudios/vfsync/internal/runlog"
	"github.com/kokistudios/vfsync/internal/store"
)

// Server wraps the MCP server with vfsync's store.
type Server struct {
	store  *store.Store
	server *mcp.Server
}

// NewServer creates a new vfsync MCP server.
func NewServer(st *store.Store, version string) *Server {
	s := &Server{store: st}

	impl := &mcp.Implementation{
		Name:    "vfsync",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vfsync_model_info",
		Description: "Summarize a model document: levels, views, categories, element and filter counts. START HERE before syncing so you know which views and categories exist.",
	}, s.handleModelInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vfsync_list_filters",
		Description: "List the named filters in a model document's catalog with their rules and categories.",
	}, s.handleListFilters)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vfsync_sync_filters",
		Description: "Synchronize named view filters for a model: classify elements (by family, system type, or type name), create missing filters, reuse existing ones, and apply them to the target view. All changes commit atomically; any store failure rolls everything back.",
	}, s.handleSyncFilters)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vfsync_hide_by_level",
		Description: "Hide elements that do not belong to a plan view's reference level, using elevation proximity within a tolerance. Skips elements already hidden; reports elements the view refuses to hide.",
	}, s.handleHideByLevel)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vfsync_runs",
		Description: "List recent synchronization runs with their status and counts.",
	}, s.handleRuns)
}

// ModelInfoArgs defines input for vfsync_model_info.
type ModelInfoArgs struct {
	Model string `json:"model" jsonschema:"Path to the model document, or a registered model id/name"`
}

// ViewInfo summarizes one view.
type ViewInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Level   string `json:"level,omitempty"`
	Filters int    `json:"filters"`
	Hidden  int    `json:"hidden"`
}

// ModelInfoResult is the output of vfsync_model_info.
type ModelInfoResult struct {
	Name       string     `json:"name,omitempty"`
	Path       string     `json:"path"`
	Elements   int        `json:"elements"`
	Filters    int        `json:"filters"`
	Levels     []string   `json:"levels,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Views      []ViewInfo `json:"views,omitempty"`
}

func (s *Server) handleModelInfo(ctx context.Context, req *mcp.CallToolRequest, args ModelInfoArgs) (*mcp.CallToolResult, any, error) {
	doc, err := s.loadModel(args.Model)
	if err != nil {
		return nil, nil, err
	}

	out := ModelInfoResult{
		Name:     doc.Name,
		Path:     doc.Path,
		Elements: len(doc.Elements),
		Filters:  len(doc.Filters),
	}
	for _, l := range doc.Levels {
		out.Levels = append(out.Levels, fmt.Sprintf("%s (%.3f)", l.Name, l.Elevation))
	}
	for _, c := range doc.Categories {
		out.Categories = append(out.Categories, c.Name)
	}
	for _, v := range doc.Views {
		info := ViewInfo{Name: v.Name, Kind: string(v.Kind), Filters: len(v.Filters), Hidden: len(v.Hidden)}
		if l, ok := doc.LevelByID(v.LevelID); ok {
			info.Level = l.Name
		}
		out.Views = append(out.Views, info)
	}
	return nil, out, nil
}

// ListFiltersArgs defines input for vfsync_list_filters.
type ListFiltersArgs struct {
	Model string `json:"model" jsonschema:"Path to the model document, or a registered model id/name"`
}

// FilterInfo describes one catalog filter.
type FilterInfo struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories,omitempty"`
	Rule       string   `json:"rule"`
}

// ListFiltersResult is the output of vfsync_list_filters.
type ListFiltersResult struct {
	Filters []FilterInfo `json:"filters"`
	Count   int          `json:"count"`
	Message string       `json:"message,omitempty"`
}

func (s *Server) handleListFilters(ctx context.Context, req *mcp.CallToolRequest, args ListFiltersArgs) (*mcp.CallToolResult, any, error) {
	doc, err := s.loadModel(args.Model)
	if err != nil {
		return nil, nil, err
	}

	out := ListFiltersResult{Count: len(doc.Filters)}
	for _, f := range doc.Filters {
		rule := fmt.Sprintf("%s %q", f.Rule.Kind, f.Rule.Parameter)
		if f.Rule.Kind == model.RuleEquality {
			rule += fmt.Sprintf(" = %q", f.Rule.Value)
		} else {
			rule += fmt.Sprintf(" = element %d", f.Rule.ElementID)
		}
		out.Filters = append(out.Filters, FilterInfo{Name: f.Name, Categories: f.Categories, Rule: rule})
	}
	if out.Count == 0 {
		out.Message = "No filters in the catalog yet - run vfsync_sync_filters to create some."
	}
	return nil, out, nil
}

// SyncFiltersArgs defines input for vfsync_sync_filters.
type SyncFiltersArgs struct {
	Model      string   `json:"model" jsonschema:"Path to the model document, or a registered model id/name"`
	Mode       string   `json:"mode" jsonschema:"Classification mode: family, system, or typename"`
	View       string   `json:"view,omitempty" jsonschema:"Target view name (default: the document's active view)"`
	Prefix     string   `json:"prefix,omitempty" jsonschema:"Filter name prefix (default: the configured prefix for the mode)"`
	Categories []string `json:"categories,omitempty" jsonschema:"Category scope (default: all categories)"`
}

// SyncResult is the output of vfsync_sync_filters and vfsync_hide_by_level.
type SyncResult struct {
	Status   string           `json:"status"`
	Summary  string           `json:"summary"`
	Created  int              `json:"created"`
	Reused   int              `json:"reused"`
	Applied  int              `json:"applied"`
	Hidden   int              `json:"hidden"`
	Skipped  int              `json:"skipped"`
	Failures []engine.Failure `json:"failures,omitempty"`
	RunID    string           `json:"run_id,omitempty"`
}

func (s *Server) handleSyncFilters(ctx context.Context, req *mcp.CallToolRequest, args SyncFiltersArgs) (*mcp.CallToolResult, any, error) {
	doc, err := s.loadModel(args.Model)
	if err != nil {
		return nil, nil, err
	}

	var cls classify.RuleBuilder
	switch args.Mode {
	case "family":
		cls = classify.FamilyName{}
	case "system":
		cls = classify.SystemType{}
	case "typename":
		cls = classify.TypeName{}
	default:
		return nil, nil, fmt.Errorf("unknown mode %q (want family, system, or typename)", args.Mode)
	}

	prefix := args.Prefix
	if prefix == "" {
		prefix = s.store.Prefix(args.Mode)
	}

	started := time.Now()
	res := engine.SyncFilters(doc, cls, engine.Options{
		Prefix:     prefix,
		Categories: args.Categories,
		View:       args.View,
	})
	return nil, s.finishRun(res, doc.Path, started), nil
}

// HideByLevelArgs defines input for vfsync_hide_by_level.
type HideByLevelArgs struct {
	Model      string   `json:"model" jsonschema:"Path to the model document, or a registered model id/name"`
	View       string   `json:"view,omitempty" jsonschema:"Target plan view name (default: the document's active view)"`
	Tolerance  float64  `json:"tolerance,omitempty" jsonschema:"Elevation tolerance in model units (default: configured tolerance)"`
	Categories []string `json:"categories,omitempty" jsonschema:"Category scope (default: all categories)"`
}

func (s *Server) handleHideByLevel(ctx context.Context, req *mcp.CallToolRequest, args HideByLevelArgs) (*mcp.CallToolResult, any, error) {
	doc, err := s.loadModel(args.Model)
	if err != nil {
		return nil, nil, err
	}

	tolerance := args.Tolerance
	if tolerance <= 0 {
		tolerance = s.store.Config.Level.Tolerance
	}

	started := time.Now()
	res := engine.HideByLevel(doc, engine.Options{
		Categories: args.Categories,
		View:       args.View,
		Tolerance:  tolerance,
	})
	return nil, s.finishRun(res, doc.Path, started), nil
}

// RunsArgs defines input for vfsync_runs.
type RunsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return (default 15)"`
}

// RunSummary is one run in vfsync_runs output.
type RunSummary struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Model   string `json:"model"`
	View    string `json:"view,omitempty"`
	Summary string `json:"summary"`
}

// RunsResult is the output of vfsync_runs.
type RunsResult struct {
	Runs    []RunSummary `json:"runs"`
	Count   int          `json:"count"`
	Message string       `json:"message,omitempty"`
}

func (s *Server) handleRuns(ctx context.Context, req *mcp.CallToolRequest, args RunsArgs) (*mcp.CallToolResult, any, error) {
	records, err := runlog.List(s.store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list runs: %w", err)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 15
	}
	if len(records) > limit {
		records = records[:limit]
	}

	out := RunsResult{Count: len(records)}
	for _, r := range records {
		out.Runs = append(out.Runs, RunSummary{
			ID:     r.ID,
			Status: string(r.Status),
			Model:  r.Model,
			View:   r.View,
			Summary: fmt.Sprintf("created %d, reused %d, applied %d, hidden %d, %d failure(s)",
				r.Created, r.Reused, r.Applied, r.Hidden, len(r.Failures)),
		})
	}
	if out.Count == 0 {
		out.Message = "No runs recorded yet."
	}
	return nil, out, nil
}

func (s *Server) loadModel(arg string) (*model.Document, error) {
	path, err := store.ResolveModel(s.store, arg)
	if err != nil {
		return nil, err
	}
	return model.Load(path)
}

func (s *Server) finishRun(res *engine.Result, modelPath string, started time.Time) SyncResult {
	out := SyncResult{
		Status:   string(res.Status),
		Summary:  res.Summary(),
		Created:  res.Created,
		Reused:   res.Reused,
		Applied:  res.Applied,
		Hidden:   res.Hidden,
		Skipped:  res.Skipped,
		Failures: res.Failures,
	}
	// Cancelled runs had no side effects and are not worth a record.
	if res.Status != engine.StatusCancelled {
		rec := runlog.NewRecord(res, modelPath, started)
		if err := runlog.Write(s.store, rec); err == nil {
			out.RunID = rec.ID
		}
	}
	return out
}
