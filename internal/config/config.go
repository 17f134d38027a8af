// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/linuxassist/internal/util"
)

// CurrentVersion is written into saved config files.
const CurrentVersion = "1"

// DefaultAPIURL is the backend used until the user picks another one.
const DefaultAPIURL = "http://localhost:8000"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete linuxassist configuration.
type Config struct {
	Version string `toml:"version"`

	API       APIConfig       `toml:"api"`
	Session   SessionConfig   `toml:"session"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	UI        UIConfig        `toml:"ui"`
}

// APIConfig holds backend settings. The URL stored in the session state
// takes precedence over DefaultURL once the user has changed it.
type APIConfig struct {
	DefaultURL string `toml:"default_url"`

	HealthTimeoutSecs  int `toml:"health_timeout_secs"`
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	AskTimeoutSecs     int `toml:"ask_timeout_secs"`

	// HealthRetries is used by `linuxassist health` when --retries is unset.
	HealthRetries int `toml:"health_retries"`

	// Startup check run before the conversation list is loaded.
	StartupRetries     int `toml:"startup_retries"`
	StartupTimeoutSecs int `toml:"startup_timeout_secs"`
}

// HealthTimeout returns the per-attempt /health timeout.
func (a APIConfig) HealthTimeout() time.Duration {
	return time.Duration(a.HealthTimeoutSecs) * time.Second
}

// RequestTimeout returns the timeout for conversation CRUD and history.
func (a APIConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSecs) * time.Second
}

// AskTimeout returns the timeout for /ask.
func (a APIConfig) AskTimeout() time.Duration {
	return time.Duration(a.AskTimeoutSecs) * time.Second
}

// StartupTimeout returns the per-attempt timeout of the startup check.
func (a APIConfig) StartupTimeout() time.Duration {
	return time.Duration(a.StartupTimeoutSecs) * time.Second
}

// SessionConfig locates the shared session state.
type SessionConfig struct {
	// StatePath is the SQLite file shared by every linuxassist process.
	StatePath string `toml:"state_path"`

	// SyncIntervalMs is the reconciliation poll used when file change
	// notifications are missed.
	SyncIntervalMs int `toml:"sync_interval_ms"`
}

// SyncInterval returns the reconciliation poll interval.
func (s SessionConfig) SyncInterval() time.Duration {
	return time.Duration(s.SyncIntervalMs) * time.Millisecond
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	TraceFile   string `toml:"trace_file"`
	ServiceName string `toml:"service_name"`
}

// UIConfig holds TUI defaults. Dark mode is a session preference, not a
// config value, so it follows the user across processes.
type UIConfig struct {
	ShowSidebar      bool `toml:"show_sidebar"`
	RenderMarkdown   bool `toml:"render_markdown"`
	WordWrap         int  `toml:"word_wrap"`
	SidebarWidth     int  `toml:"sidebar_width"`
	NetworkCheckSecs int  `toml:"network_check_secs"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with built-in defaults. Paths are left
// empty and resolved against ConfigDir by SetDefaults.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			DefaultURL:         DefaultAPIURL,
			HealthTimeoutSecs:  5,
			RequestTimeoutSecs: 10,
			AskTimeoutSecs:     30,
			HealthRetries:      2,
			StartupRetries:     1,
			StartupTimeoutSecs: 3,
		},
		Session: SessionConfig{
			SyncIntervalMs: 500,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "linuxassist",
		},
		UI: UIConfig{
			ShowSidebar:      true,
			RenderMarkdown:   true,
			WordWrap:         80,
			SidebarWidth:     28,
			NetworkCheckSecs: 5,
		},
	}
}

// SetDefaults fills zero values left by a partial config file and resolves
// file locations.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.DefaultURL == "" {
		c.API.DefaultURL = d.API.DefaultURL
	}
	if c.API.HealthTimeoutSecs <= 0 {
		c.API.HealthTimeoutSecs = d.API.HealthTimeoutSecs
	}
	if c.API.RequestTimeoutSecs <= 0 {
		c.API.RequestTimeoutSecs = d.API.RequestTimeoutSecs
	}
	if c.API.AskTimeoutSecs <= 0 {
		c.API.AskTimeoutSecs = d.API.AskTimeoutSecs
	}
	if c.API.StartupTimeoutSecs <= 0 {
		c.API.StartupTimeoutSecs = d.API.StartupTimeoutSecs
	}
	if c.Session.SyncIntervalMs <= 0 {
		c.Session.SyncIntervalMs = d.Session.SyncIntervalMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
	if c.UI.WordWrap <= 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.UI.SidebarWidth <= 0 {
		c.UI.SidebarWidth = d.UI.SidebarWidth
	}
	if c.UI.NetworkCheckSecs <= 0 {
		c.UI.NetworkCheckSecs = d.UI.NetworkCheckSecs
	}

	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	if c.Session.StatePath == "" {
		c.Session.StatePath = filepath.Join(dir, "state.db")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(dir, "logs", "linuxassist.log")
	}
	if c.Telemetry.TraceFile == "" {
		c.Telemetry.TraceFile = filepath.Join(dir, "logs", "traces.log")
	}
	c.Session.StatePath = expandHome(c.Session.StatePath)
	c.Logging.File = expandHome(c.Logging.File)
	c.Telemetry.TraceFile = expandHome(c.Telemetry.TraceFile)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the linuxassist configuration directory. It honours
// LINUXASSIST_HOME, falling back to ~/.linuxassist.
func ConfigDir() (string, error) {
	if dir := os.Getenv("LINUXASSIST_HOME"); dir != "" {
		return expandHome(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".linuxassist"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the configuration from the default location.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path. A missing file is not an
// error. Environment overrides (including a .env file in the working or
// config directory) are applied after the file, then the result is
// validated.
func LoadFromPath(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads .env files without overriding variables that are
// already set. Missing files are ignored.
func loadDotEnv() {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, file := range candidates {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", file, err)
		}
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default location.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# linuxassist configuration file\n")
	buf.WriteString("# Generated by linuxassist - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<unencodable config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - LINUXASSIST_API_URL: overrides api.default_url
//   - LINUXASSIST_ASK_TIMEOUT: overrides api.ask_timeout_secs
//   - LINUXASSIST_STATE_PATH: overrides session.state_path
//   - LINUXASSIST_LOG_LEVEL: overrides logging.level
//   - LINUXASSIST_LOG_FILE: overrides logging.file
//   - LINUXASSIST_TELEMETRY: "1" or "true" enables tracing
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LINUXASSIST_API_URL"); v != "" {
		c.API.DefaultURL = v
	}
	if v := os.Getenv("LINUXASSIST_ASK_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.API.AskTimeoutSecs = secs
		}
	}
	if v := os.Getenv("LINUXASSIST_STATE_PATH"); v != "" {
		c.Session.StatePath = v
	}
	if v := os.Getenv("LINUXASSIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LINUXASSIST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("LINUXASSIST_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := NormalizeAPIURL(c.API.DefaultURL); err != nil {
		errs = append(errs, ValidationError{Field: "api.default_url", Message: err.Error()})
	}

	timeouts := map[string]int{
		"api.health_timeout_secs":  c.API.HealthTimeoutSecs,
		"api.request_timeout_secs": c.API.RequestTimeoutSecs,
		"api.ask_timeout_secs":     c.API.AskTimeoutSecs,
	}
	for field, secs := range timeouts {
		if secs < 0 || secs > 600 {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("must be between 1 and 600, got %d", secs)})
		}
	}
	if c.API.HealthRetries < 0 || c.API.HealthRetries > 10 {
		errs = append(errs, ValidationError{Field: "api.health_retries", Message: "must be between 0 and 10"})
	}
	if c.API.StartupRetries < 0 || c.API.StartupRetries > 10 {
		errs = append(errs, ValidationError{Field: "api.startup_retries", Message: "must be between 0 and 10"})
	}
	if c.Session.SyncIntervalMs < 0 || c.Session.SyncIntervalMs > 60000 {
		errs = append(errs, ValidationError{Field: "session.sync_interval_ms", Message: "must be at most 60000"})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
