// Package store manages VFSYNC_HOME: tool configuration, the registry of
// model documents, and the run history directory.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FilterConfig holds the filter naming conventions, one prefix per
// classification mode.
type FilterConfig struct {
	FamilyPrefix   string `yaml:"family_prefix"`
	SystemPrefix   string `yaml:"system_prefix"`
	TypeNamePrefix string `yaml:"typename_prefix"`
}

// LevelConfig holds spatial classification settings.
type LevelConfig struct {
	Tolerance float64 `yaml:"tolerance"`
}

// SyncConfig holds sync behavior settings.
type SyncConfig struct {
	ConfirmBeforeApply bool `yaml:"confirm_before_apply"`
	WriteReports       bool `yaml:"write_reports"`
}

// Config holds vfsync configuration.
type Config struct {
	Version string       `yaml:"version"`
	Filters FilterConfig `yaml:"filters,omitempty"`
	Level   LevelConfig  `yaml:"level,omitempty"`
	Sync    SyncConfig   `yaml:"sync,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		Filters: FilterConfig{
			FamilyPrefix:   "M-",
			SystemPrefix:   "00-",
			TypeNamePrefix: "T-",
		},
		Level: LevelConfig{
			Tolerance: 0.001,
		},
		Sync: SyncConfig{
			ConfirmBeforeApply: true,
			WriteReports:       true,
		},
	}
}

// Store represents a loaded VFSYNC_HOME.
type Store struct {
	Home   string
	Config Config
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// Home returns the VFSYNC_HOME path, respecting the VFSYNC_HOME env var.
func Home() string {
	if h := os.Getenv("VFSYNC_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vfsync")
	}
	return filepath.Join(home, ".vfsync")
}

// Init creates the VFSYNC_HOME directory structure.
func Init(home string, force bool) error {
	if _, err := os.Stat(home); err == nil && !force {
		return fmt.Errorf("VFSYNC_HOME already exists at %s (use --force to reinitialize)", home)
	}

	dirs := []string{
		home,
		filepath.Join(home, "models"),
		filepath.Join(home, "runs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Load reads and validates an existing VFSYNC_HOME.
// Missing config fields are filled from defaults.
func Load(home string) (*Store, error) {
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read VFSYNC_HOME config at %s: %w", cfgPath, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return &Store{Home: home, Config: cfg}, nil
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	cfgPath := filepath.Join(s.Home, "config.yaml")
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Prefix returns the configured filter name prefix for a classification mode.
func (s *Store) Prefix(mode string) string {
	switch mode {
	case "system":
		return s.Config.Filters.SystemPrefix
	case "typename":
		return s.Config.Filters.TypeNamePrefix
	default:
		return s.Config.Filters.FamilyPrefix
	}
}

// SetConfigValue sets a config value by dot-path key (e.g. "filters.family_prefix").
func (s *Store) SetConfigValue(key, value string) error {
	switch key {
	case "filters.family_prefix":
		s.Config.Filters.FamilyPrefix = value
	case "filters.system_prefix":
		s.Config.Filters.SystemPrefix = value
	case "filters.typename_prefix":
		s.Config.Filters.TypeNamePrefix = value
	case "level.tolerance":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("level.tolerance must be a positive number")
		}
		s.Config.Level.Tolerance = f
	case "sync.confirm_before_apply":
		s.Config.Sync.ConfirmBeforeApply = value == "true"
	case "sync.write_reports":
		s.Config.Sync.WriteReports = value == "true"
	default:
		return fmt.Errorf("unknown config key: %s\nValid keys: filters.family_prefix, filters.system_prefix, filters.typename_prefix, level.tolerance, sync.confirm_before_apply, sync.write_reports", key)
	}
	return s.SaveConfig()
}

// Path resolves a path within VFSYNC_HOME.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// CheckHealth verifies VFSYNC_HOME structure integrity.
func CheckHealth(home string) []Issue {
	var issues []Issue

	for _, dir := range []string{"models", "runs"} {
		p := filepath.Join(home, dir)
		info, err := os.Stat(p)
		if err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("missing directory: %s", p)})
		} else if !info.IsDir() {
			issues = append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", p)})
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
	} else {
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
		}
	}

	return issues
}

// FixIssues attempts to repair simple issues in VFSYNC_HOME.
func FixIssues(home string) []string {
	var fixed []string

	for _, dir := range []string{"models", "runs"} {
		p := filepath.Join(home, dir)
		if _, err := os.Stat(p); err != nil {
			if err := os.MkdirAll(p, 0755); err == nil {
				fixed = append(fixed, fmt.Sprintf("recreated missing directory: %s", dir))
			}
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		cfg := DefaultConfig()
		data, _ := yaml.Marshal(cfg)
		if os.WriteFile(cfgPath, data, 0644) == nil {
			fixed = append(fixed, "recreated missing config.yaml with defaults")
		}
	}

	return fixed
}
