package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
	"github.com/Iron-Ham/swarmcoord/internal/resolve"
)

// Config represents the complete swarmcoord configuration
type Config struct {
	Session    SessionConfig    `mapstructure:"session"`
	Resolution ResolutionConfig `mapstructure:"resolution"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Report     ReportConfig     `mapstructure:"report"`
}

// SessionConfig controls session lifecycle behavior
type SessionConfig struct {
	// Dir is the directory where session state (claims table, logs) is stored.
	// If empty, defaults to ".swarmcoord" relative to the working directory.
	// Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir"`
	// PlanTimeoutSeconds bounds plan collection; agents that have not
	// submitted by then are dropped with a recorded warning (0 = wait forever)
	PlanTimeoutSeconds int `mapstructure:"plan_timeout_seconds"`
	// StaleClaimSeconds is how long a claim may be held without release
	// before the orchestrator logs an escalation (0 = disabled)
	StaleClaimSeconds int `mapstructure:"stale_claim_seconds"`
	// StaleCheckSeconds is how often held claims are scanned for staleness
	StaleCheckSeconds int `mapstructure:"stale_check_seconds"`
	// Remediation selects how unclaimed edits are handled before verification
	// Options: "none", "retroactive_claim", "revert"
	Remediation string `mapstructure:"remediation"`
}

// ResolutionConfig selects conflict resolution strategies. Strategy
// selection is a configuration decision, never inferred by the engine.
type ResolutionConfig struct {
	// Default is the strategy applied to conflicts without a per-conflict
	// entry. Empty means no default: such conflicts abort the session.
	// Options: "sequential", "partition", "merge", "section"
	Default string `mapstructure:"default"`
	// ByConflict maps a conflict key (its sorted file set joined with
	// commas) to a specific choice
	ByConflict map[string]StrategyChoice `mapstructure:"by_conflict"`
}

// StrategyChoice is one configured resolution decision
type StrategyChoice struct {
	// Strategy is one of "sequential", "partition", "merge", "section"
	Strategy string `mapstructure:"strategy"`
	// Absorber names the agent that absorbs the contested files under the
	// merge strategy. Empty lets the engine pick the largest plan.
	Absorber string `mapstructure:"absorber"`
	// Sections maps agent ID to a line/byte range for the section strategy
	// (e.g. "1-120"). Every conflicting agent needs an entry.
	Sections map[string]string `mapstructure:"sections"`
}

// MonitorConfig controls the violation monitor's filesystem tracker
type MonitorConfig struct {
	// Watch enables fsnotify tracking of agent worktrees. Runner-reported
	// file touches are checked either way.
	Watch bool `mapstructure:"watch"`
	// Ignore is extra glob patterns excluded from tracking, on top of the
	// built-in set (.git, node_modules, editor swap files)
	Ignore []string `mapstructure:"ignore"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// ReportConfig controls final report output
type ReportConfig struct {
	// Format is "text" for the styled terminal report or "json" (default: "text")
	Format string `mapstructure:"format"`
}

// PlanTimeout returns the plan collection timeout as a time.Duration (0 means disabled)
func (s *SessionConfig) PlanTimeout() time.Duration {
	return time.Duration(s.PlanTimeoutSeconds) * time.Second
}

// StaleClaimThreshold returns the stale claim threshold as a time.Duration (0 means disabled)
func (s *SessionConfig) StaleClaimThreshold() time.Duration {
	return time.Duration(s.StaleClaimSeconds) * time.Second
}

// StaleCheckInterval returns the stale scan interval as a time.Duration
func (s *SessionConfig) StaleCheckInterval() time.Duration {
	return time.Duration(s.StaleCheckSeconds) * time.Second
}

// ResolveDir returns the resolved session directory path.
// If Dir is empty, it returns the default path relative to baseDir.
// If Dir starts with ~, it expands to the user's home directory.
// If Dir is a relative path, it's resolved relative to baseDir.
func (s *SessionConfig) ResolveDir(baseDir string) string {
	if s.Dir == "" {
		return filepath.Join(baseDir, ".swarmcoord")
	}

	path := s.Dir
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// ChoiceFunc builds the resolution engine's strategy lookup from the
// configured choices: per-conflict entries first, then the default kind.
func (r *ResolutionConfig) ChoiceFunc() resolve.ChoiceFunc {
	return func(c conflict.Conflict) (resolve.Choice, bool) {
		if sc, ok := r.ByConflict[c.Key()]; ok {
			kind, err := resolve.ParseKind(sc.Strategy)
			if err != nil {
				return resolve.Choice{}, false
			}
			return resolve.Choice{
				Kind:     kind,
				Absorber: sc.Absorber,
				Sections: sc.Sections,
			}, true
		}
		if r.Default == "" {
			return resolve.Choice{}, false
		}
		kind, err := resolve.ParseKind(r.Default)
		if err != nil {
			return resolve.Choice{}, false
		}
		return resolve.Choice{Kind: kind}, true
	}
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Dir:                "", // Empty means use default: .swarmcoord
			PlanTimeoutSeconds: 300,
			StaleClaimSeconds:  1800, // 30 minutes holding a claim before escalation
			StaleCheckSeconds:  60,
			Remediation:        "none",
		},
		Resolution: ResolutionConfig{
			Default:    "",
			ByConflict: map[string]StrategyChoice{},
		},
		Monitor: MonitorConfig{
			Watch:  true,
			Ignore: []string{},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Report: ReportConfig{
			Format: "text",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Session defaults
	viper.SetDefault("session.dir", defaults.Session.Dir)
	viper.SetDefault("session.plan_timeout_seconds", defaults.Session.PlanTimeoutSeconds)
	viper.SetDefault("session.stale_claim_seconds", defaults.Session.StaleClaimSeconds)
	viper.SetDefault("session.stale_check_seconds", defaults.Session.StaleCheckSeconds)
	viper.SetDefault("session.remediation", defaults.Session.Remediation)

	// Resolution defaults
	viper.SetDefault("resolution.default", defaults.Resolution.Default)
	viper.SetDefault("resolution.by_conflict", defaults.Resolution.ByConflict)

	// Monitor defaults
	viper.SetDefault("monitor.watch", defaults.Monitor.Watch)
	viper.SetDefault("monitor.ignore", defaults.Monitor.Ignore)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Report defaults
	viper.SetDefault("report.format", defaults.Report.Format)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swarmcoord")
	}
	// Fall back to ~/.config/swarmcoord
	home, err := os.UserHomeDir()
	if err != nil {
		return ".swarmcoord"
	}
	return filepath.Join(home, ".config", "swarmcoord")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
