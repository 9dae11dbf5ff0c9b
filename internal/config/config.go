// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// LegalX terminal client.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides, loaded from ~/.legalx/config.toml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	Version string `toml:"version"`

	// Server holds backend connection settings.
	Server ServerConfig `toml:"server"`

	// User identifies the account all requests run under.
	User UserConfig `toml:"user"`

	// Chat holds job submission settings.
	Chat ChatConfig `toml:"chat"`

	// Upload holds watched-directory upload settings.
	Upload UploadConfig `toml:"upload"`

	// UI holds presentation settings.
	UI UIConfig `toml:"ui"`

	// Log holds diagnostic log settings.
	Log LogConfig `toml:"log"`
}

// ServerConfig contains backend connection settings.
type ServerConfig struct {
	// BaseURL is the backend address; ws/wss for the push channel is
	// derived from it.
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-request HTTP timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is the retry budget for idempotent requests.
	MaxRetries int `toml:"max_retries"`
}

// UserConfig identifies the user.
type UserConfig struct {
	// ID is the account identifier sent with every job and document
	// operation. Required: the backend scopes all state by it.
	ID string `toml:"id"`
	// StateDir is where sessions and transcripts are stored
	// (empty = ~/.legalx/state).
	StateDir string `toml:"state_dir"`
}

// ChatConfig contains job submission settings.
type ChatConfig struct {
	// Priority is the default job priority: "low", "normal", "high".
	Priority string `toml:"priority"`
}

// UploadConfig contains watched-directory upload settings.
type UploadConfig struct {
	// WatchDir, when set, is watched for new documents to upload.
	WatchDir string `toml:"watch_dir"`
	// Category is applied to documents uploaded from the watch dir.
	Category string `toml:"category"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto".
	Theme string `toml:"theme"`
	// CompactMode trims vertical whitespace in the transcript.
	CompactMode bool `toml:"compact_mode"`
	// ShowQueueStats shows backend queue stats in the status bar.
	ShowQueueStats bool `toml:"show_queue_stats"`
}

// LogConfig contains diagnostic log settings.
type LogConfig struct {
	// File is the log destination (empty = ~/.legalx/legalx.log).
	// The TUI owns the terminal, so logs never go to stderr while the
	// program runs.
	File string `toml:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:     "http://localhost:8000",
			TimeoutSecs: 30,
			MaxRetries:  3,
		},

		User: UserConfig{
			ID:       "",
			StateDir: "",
		},

		Chat: ChatConfig{
			Priority: "normal",
		},

		Upload: UploadConfig{
			WatchDir: "",
			Category: "general",
		},

		UI: UIConfig{
			Theme:          "dark",
			CompactMode:    false,
			ShowQueueStats: true,
		},

		Log: LogConfig{
			File: "",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the legalx configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".legalx"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// StateDir resolves the state directory, falling back to the default
// under the config dir.
func (c *Config) StateDir() (string, error) {
	if c.User.StateDir != "" {
		return c.User.StateDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state"), nil
}

// LogFile resolves the log destination, falling back to the default
// under the config dir.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "legalx.log"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back
// to defaults when no file exists. Environment overrides are applied
// last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if c.Server.MaxRetries == 0 {
		c.Server.MaxRetries = defaults.Server.MaxRetries
	}
	if c.Chat.Priority == "" {
		c.Chat.Priority = defaults.Chat.Priority
	}
	if c.Upload.Category == "" {
		c.Upload.Category = defaults.Upload.Category
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600
// permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# legalx configuration file")
	fmt.Fprintln(file, "# Generated by legalx - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
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
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Server.BaseURL),
		})
	}

	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Server.TimeoutSecs),
		})
	}

	if c.Server.MaxRetries < 1 || c.Server.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "server.max_retries",
			Message: fmt.Sprintf("must be 1-10, got %d", c.Server.MaxRetries),
		})
	}

	validPriorities := map[string]bool{"low": true, "normal": true, "high": true}
	if !validPriorities[strings.ToLower(c.Chat.Priority)] {
		errs = append(errs, ValidationError{
			Field:   "chat.priority",
			Message: fmt.Sprintf("invalid priority '%s', must be one of: low, normal, high", c.Chat.Priority),
		})
	}

	if c.Upload.WatchDir != "" {
		if info, err := os.Stat(c.Upload.WatchDir); err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "upload.watch_dir",
				Message: fmt.Sprintf("'%s' is not a readable directory", c.Upload.WatchDir),
			})
		}
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LEGALX_SERVER_URL: overrides server.base_url
//   - LEGALX_USER_ID: overrides user.id
//   - LEGALX_STATE_DIR: overrides user.state_dir
//   - LEGALX_WATCH_DIR: overrides upload.watch_dir
//   - LEGALX_THEME: overrides ui.theme
//   - LEGALX_TIMEOUT_SECS: overrides server.timeout_secs
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LEGALX_SERVER_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("LEGALX_USER_ID"); v != "" {
		c.User.ID = v
	}
	if v := os.Getenv("LEGALX_STATE_DIR"); v != "" {
		c.User.StateDir = v
	}
	if v := os.Getenv("LEGALX_WATCH_DIR"); v != "" {
		c.Upload.WatchDir = v
	}
	if v := os.Getenv("LEGALX_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("LEGALX_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Server.TimeoutSecs = secs
		}
	}
}
