package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kokistudios/vfsync/internal/classify"
	"github.com/kokistudios/vfsync/internal/engine"
	vfsmcp "github.com/kokistudios/vfsync/internal/mcp"
	"github.com/kokistudios/vfsync/internal/model"
	"github.com/kokistudios/vfsync/internal/report"
	"github.com/kokistudios/vfsync/internal/runlog"
	"github.com/kokistudios/vfsync/internal/store"
	"github.com/kokistudios/vfsync/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "vfsync",
		Short: "VFS — View Filter Sync",
		Long:  "A local CLI tool that classifies building-services elements and keeps named view filters and per-view visibility in sync with the model.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	initC := initCmd()
	initC.GroupID = "core"
	modelC := modelCmd()
	modelC.GroupID = "core"
	filtersC := filtersCmd()
	filtersC.GroupID = "core"
	runsC := runsCmd()
	runsC.GroupID = "core"
	doctorC := doctorCmd()
	doctorC.GroupID = "core"

	syncC := syncCmd()
	syncC.GroupID = "sync"
	hideC := hideByLevelCmd()
	hideC.GroupID = "sync"

	configC := configCmd()
	configC.GroupID = "config"

	rootCmd.AddCommand(initC)
	rootCmd.AddCommand(modelC)
	rootCmd.AddCommand(filtersC)
	rootCmd.AddCommand(runsC)
	rootCmd.AddCommand(doctorC)
	rootCmd.AddCommand(syncC)
	rootCmd.AddCommand(hideC)
	rootCmd.AddCommand(configC)
	rootCmd.AddCommand(mcpServeCmd())
	rootCmd.AddCommand(completionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadStore() (*store.Store, error) {
	s, err := store.Load(store.Home())
	if err != nil {
		return nil, fmt.Errorf("vfsync not initialized — run 'vfsync init' first: %w", err)
	}
	return s, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize VFSYNC_HOME directory structure",
		Long:    "Create the VFSYNC_HOME directory (~/.vfsync by default) with models/, runs/, and config.yaml. Run this once before using any other vfsync commands.",
		Example: "  vfsync init\n  vfsync init --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()
			if err := store.Init(home, force); err != nil {
				return err
			}
			ui.Success("vfsync initialized")
			ui.Detail("Home:", home)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if VFSYNC_HOME already exists")
	return cmd
}

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage registered model documents",
		Long:  "Register, list, and remove model documents. Models are identified by a stable hash of their absolute path, so sync commands can refer to them by short id or name.",
	}

	cmd.AddCommand(modelAddCmd())
	cmd.AddCommand(modelListCmd())
	cmd.AddCommand(modelRemoveCmd())
	return cmd
}

func modelAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add <path>",
		Short:   "Register a model document",
		Example: "  vfsync model add ./tower.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			ref, err := store.RegisterModel(s, args[0])
			if err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Registered model %s", ref.Name))
			ui.Detail("ID:", ref.ID)
			ui.Detail("Path:", ref.Path)
			return nil
		},
	}
}

func modelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered model documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			refs, err := store.ListModels(s)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				ui.EmptyState("No models registered. Use 'vfsync model add <path>'.")
				return nil
			}
			rows := make([][]string, 0, len(refs))
			for _, r := range refs {
				rows = append(rows, []string{r.ID, r.Name, r.Path})
			}
			ui.Table([]string{"ID", "NAME", "PATH"}, rows)
			return nil
		},
	}
}

func modelRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id|name>",
		Short:   "Remove a model from the registry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := store.RemoveModel(s, args[0]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Removed model %s (document untouched)", args[0]))
			return nil
		},
	}
}

// syncFlags are shared by the sync subcommands.
type syncFlags struct {
	modelArg   string
	view       string
	prefix     string
	categories []string
	yes        bool
	noReport   bool
}

func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.modelArg, "model", "m", "", "Model document path or registered id/name (required)")
	cmd.Flags().StringVarP(&f.view, "view", "v", "", "Target view name (default: the document's active view)")
	cmd.Flags().StringVarP(&f.prefix, "prefix", "p", "", "Filter name prefix (default: configured prefix for the mode)")
	cmd.Flags().StringSliceVarP(&f.categories, "category", "c", nil, "Category scope (repeatable; default: all categories)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&f.noReport, "no-report", false, "Do not write a markdown report for this run")
	_ = cmd.MarkFlagRequired("model")
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize named view filters",
		Long:  "Classify elements into groups, create a named filter per group (reusing existing filters by case-insensitive name), and apply every resolved filter to the target view. All changes commit atomically.",
	}
	cmd.AddCommand(syncModeCmd("family", "Group elements by family name", classify.FamilyName{}))
	cmd.AddCommand(syncModeCmd("system", "Group elements by duct/pipe system type", classify.SystemType{}))
	cmd.AddCommand(syncModeCmd("typename", "Group elements by type name", classify.TypeName{}))
	return cmd
}

func syncModeCmd(mode, short string, cls classify.RuleBuilder) *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:     mode,
		Short:   short,
		Example: fmt.Sprintf("  vfsync sync %s -m tower.yaml -v \"Level 1 - Mechanical\"\n  vfsync sync %s -m tower -c MechanicalEquipment -c GenericModel", mode, mode),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			doc, err := resolveModel(s, flags.modelArg)
			if err != nil {
				return err
			}

			prefix := flags.prefix
			if prefix == "" {
				prefix = s.Prefix(mode)
			}

			ui.CommandBanner("SYNC "+strings.ToUpper(mode), fmt.Sprintf("model: %s", doc.Path))

			if !flags.yes && s.Config.Sync.ConfirmBeforeApply {
				ok, err := ui.Confirm(fmt.Sprintf("Synchronize %s filters (prefix %q) on %s?", mode, prefix, doc.Path))
				if err != nil {
					return err
				}
				if !ok {
					ui.Info("Cancelled — model untouched.")
					return nil
				}
			}

			started := time.Now()
			res := engine.SyncFilters(doc, cls, engine.Options{
				Prefix:     prefix,
				Categories: flags.categories,
				View:       flags.view,
			})
			return finishRun(s, res, doc.Path, started, flags.noReport)
		},
	}
	flags.register(cmd)
	return cmd
}

func hideByLevelCmd() *cobra.Command {
	var flags syncFlags
	var tolerance float64
	cmd := &cobra.Command{
		Use:     "hide-by-level",
		Short:   "Hide elements that belong to other levels",
		Long:    "Classify each element to its nearest level by elevation (within tolerance) and hide, in the target plan view, every element that does not belong to the view's reference level.",
		Example: "  vfsync hide-by-level -m tower.yaml -v \"Level 1\"\n  vfsync hide-by-level -m tower --tolerance 0.01",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			doc, err := resolveModel(s, flags.modelArg)
			if err != nil {
				return err
			}

			tol := tolerance
			if tol <= 0 {
				tol = s.Config.Level.Tolerance
			}

			ui.CommandBanner("HIDE BY LEVEL", fmt.Sprintf("model: %s", doc.Path))

			if !flags.yes && s.Config.Sync.ConfirmBeforeApply {
				ok, err := ui.Confirm(fmt.Sprintf("Hide foreign-level elements (tolerance %g) on %s?", tol, doc.Path))
				if err != nil {
					return err
				}
				if !ok {
					ui.Info("Cancelled — model untouched.")
					return nil
				}
			}

			started := time.Now()
			res := engine.HideByLevel(doc, engine.Options{
				Categories: flags.categories,
				View:       flags.view,
				Tolerance:  tol,
			})
			return finishRun(s, res, doc.Path, started, flags.noReport)
		},
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "Elevation tolerance in model units (default: configured tolerance)")
	return cmd
}

// finishRun prints the result, persists the run record and report, and maps
// the engine status to the process exit.
func finishRun(s *store.Store, res *engine.Result, modelPath string, started time.Time, noReport bool) error {
	for _, line := range res.Log {
		ui.Logger.Debug(line)
	}
	for _, f := range res.Failures {
		ui.Warning(fmt.Sprintf("%s: %s", f.Item, f.Reason))
	}

	switch res.Status {
	case engine.StatusCancelled:
		ui.Info(res.Summary())
		return nil
	case engine.StatusFailed:
		ui.Error(res.Summary())
	default:
		ui.Success(res.Summary())
	}

	rec := runlog.NewRecord(res, modelPath, started)
	if err := runlog.Write(s, rec); err != nil {
		ui.Warning(fmt.Sprintf("Failed to record run: %v", err))
	} else {
		ui.Detail("Run:", rec.ID)
		if !noReport && s.Config.Sync.WriteReports {
			if path, err := report.Write(s, rec); err != nil {
				ui.Warning(fmt.Sprintf("Failed to write report: %v", err))
			} else {
				ui.Detail("Report:", path)
			}
		}
	}

	if res.Status == engine.StatusFailed {
		ui.Notify("vfsync", "Sync failed — all changes rolled back")
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}

func resolveModel(s *store.Store, arg string) (*model.Document, error) {
	path, err := store.ResolveModel(s, arg)
	if err != nil {
		return nil, err
	}
	return model.Load(path)
}

func filtersCmd() *cobra.Command {
	var modelArg string
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "List the named filters in a model's catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			doc, err := resolveModel(s, modelArg)
			if err != nil {
				return err
			}
			if len(doc.Filters) == 0 {
				ui.EmptyState("No filters in the catalog.")
				return nil
			}
			rows := make([][]string, 0, len(doc.Filters))
			for _, f := range doc.Filters {
				rule := fmt.Sprintf("%s %s", f.Rule.Kind, f.Rule.Parameter)
				if f.Rule.Kind == model.RuleEquality {
					rule += fmt.Sprintf(" = %q", f.Rule.Value)
				} else {
					rule += fmt.Sprintf(" = element %d", f.Rule.ElementID)
				}
				rows = append(rows, []string{f.Name, strings.Join(f.Categories, ", "), rule})
			}
			ui.Table([]string{"NAME", "CATEGORIES", "RULE"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelArg, "model", "m", "", "Model document path or registered id/name (required)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func runsCmd() *cobra.Command {
	var show string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded synchronization runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if show != "" {
				rec, err := runlog.Get(s, show)
				if err != nil {
					return err
				}
				md, err := report.Build(rec)
				if err != nil {
					return err
				}
				ui.RenderMarkdown(md)
				return nil
			}
			records, err := runlog.List(s)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				ui.EmptyState("No runs recorded yet.")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.ID,
					string(r.Status),
					r.View,
					fmt.Sprintf("%d/%d/%d", r.Created, r.Reused, r.Applied),
					fmt.Sprintf("%d", len(r.Failures)),
				})
			}
			ui.Table([]string{"RUN", "STATUS", "VIEW", "CRE/REU/APP", "FAILURES"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "Render the report for a single run id")
	return cmd
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check health of the vfsync store and registered models",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()

			s, err := store.Load(home)
			if err != nil {
				return fmt.Errorf("vfsync not initialized — run 'vfsync init' first: %w", err)
			}

			if fix {
				ui.CommandBanner("DOCTOR", "repair mode")
				fixed := store.FixIssues(home)
				for _, f := range fixed {
					ui.Success(fmt.Sprintf("[FIXED] %s", f))
				}
				if len(fixed) == 0 {
					ui.EmptyState("Nothing to fix.")
				}
			} else {
				ui.CommandBanner("DOCTOR", "health check")
			}

			issues := store.CheckHealth(home)
			issues = append(issues, store.CheckModelIntegrity(s)...)
			issues = append(issues, runlog.CheckIntegrity(s)...)

			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}

			if hasError {
				os.Exit(2)
			}
			os.Exit(1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Repair missing directories and config")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit vfsync configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a vfsync configuration value. Valid keys: filters.family_prefix, filters.system_prefix, filters.typename_prefix, level.tolerance, sync.confirm_before_apply, sync.write_reports.",
		Example: `  vfsync config set filters.family_prefix "M-"
  vfsync config set level.tolerance 0.01
  vfsync config set sync.confirm_before_apply false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
			return nil
		},
	}
}

func mcpServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "Run the vfsync MCP server on stdio",
		Long:  "Expose vfsync operations (model info, filter listing, sync, hide-by-level, run history) as MCP tools for agent runtimes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			srv := vfsmcp.NewServer(s, buildVersion())
			return srv.Run(context.Background())
		},
	}
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion script",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}
