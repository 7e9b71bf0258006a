// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/chatsync/lib/ref"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "CHATSYNC_CONFIG"

// Config is the configuration for a chatsync client.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Account identifies the signed-in user.
	Account AccountConfig `yaml:"account"`

	// History configures archive backfill.
	History HistoryConfig `yaml:"history"`

	// Typing configures outgoing chat state notifications.
	Typing TypingConfig `yaml:"typing"`

	// Store configures local timeline persistence.
	Store StoreConfig `yaml:"store"`

	// Backend configures the REST backend used for health checks.
	Backend BackendConfig `yaml:"backend"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	History *HistoryConfig `yaml:"history,omitempty"`
	Typing  *TypingConfig  `yaml:"typing,omitempty"`
	Store   *StoreConfig   `yaml:"store,omitempty"`
	Backend *BackendConfig `yaml:"backend,omitempty"`
}

// AccountConfig identifies the signed-in user.
type AccountConfig struct {
	// JID is the account address, optionally with a resource
	// ("alice@chat.example/laptop"). Its localpart is the user's
	// nickname in rooms.
	JID string `yaml:"jid"`
}

// HistoryConfig configures archive backfill.
type HistoryConfig struct {
	// PageSize is the number of messages per history page.
	// Default: 30
	PageSize int `yaml:"page_size"`

	// Timezone is the IANA zone day separators are computed in. Empty
	// means the system zone.
	Timezone string `yaml:"timezone"`
}

// TypingConfig configures outgoing chat state notifications.
type TypingConfig struct {
	// Throttle is the minimum interval between composing signals.
	// Default: 3s
	Throttle time.Duration `yaml:"throttle"`

	// PausedAfter is the idle time before paused is sent.
	// Default: 3.5s
	PausedAfter time.Duration `yaml:"paused_after"`
}

// StoreConfig configures local timeline persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	// Default: ${HOME}/.local/state/chatsync/chatsync.db
	Path string `yaml:"path"`

	// Compression is "zstd" or "none".
	// Default: zstd
	Compression string `yaml:"compression"`
}

// BackendConfig configures the REST backend.
type BackendConfig struct {
	// URL is the backend base URL. Empty disables backend checks.
	URL string `yaml:"url"`
}

// Default returns the default configuration. The account JID has no
// default; the config file must provide it.
func Default() *Config {
	return &Config{
		Environment: Development,
		History: HistoryConfig{
			PageSize: 30,
		},
		Typing: TypingConfig{
			Throttle:    3 * time.Second,
			PausedAfter: 3500 * time.Millisecond,
		},
		Store: StoreConfig{
			Path:        "${HOME}/.local/state/chatsync/chatsync.db",
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the file named by CHATSYNC_CONFIG.
// There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your chatsync config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Files named
// *.json or *.jsonc may carry comments and trailing commas; anything
// else is parsed as YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data, isJSON(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration data over the defaults, applies the
// overrides for the selected environment, and expands variables.
func Parse(data []byte, jsonWithComments bool) (*Config, error) {
	cfg := Default()
	if jsonWithComments {
		// JSON is a subset of YAML, so the stripped document goes
		// through the same decoder and struct tags.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func isJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return true
	}
	return false
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.History != nil {
		if overrides.History.PageSize != 0 {
			c.History.PageSize = overrides.History.PageSize
		}
		if overrides.History.Timezone != "" {
			c.History.Timezone = overrides.History.Timezone
		}
	}

	if overrides.Typing != nil {
		if overrides.Typing.Throttle != 0 {
			c.Typing.Throttle = overrides.Typing.Throttle
		}
		if overrides.Typing.PausedAfter != 0 {
			c.Typing.PausedAfter = overrides.Typing.PausedAfter
		}
	}

	if overrides.Store != nil {
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.Compression != "" {
			c.Store.Compression = overrides.Store.Compression
		}
	}

	if overrides.Backend != nil && overrides.Backend.URL != "" {
		c.Backend.URL = overrides.Backend.URL
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// string fields that name places.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Account.JID = expandVars(c.Account.JID, vars)
	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Backend.URL = expandVars(c.Backend.URL, vars)
	c.History.Timezone = expandVars(c.History.Timezone, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Account.JID == "" {
		errs = append(errs, fmt.Errorf("account.jid is required"))
	} else if _, err := c.Self(); err != nil {
		errs = append(errs, err)
	}

	if c.History.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("history.page_size must be positive, got %d", c.History.PageSize))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if c.Typing.Throttle <= 0 {
		errs = append(errs, fmt.Errorf("typing.throttle must be positive"))
	}
	if c.Typing.PausedAfter <= 0 {
		errs = append(errs, fmt.Errorf("typing.paused_after must be positive"))
	}

	compressionValues := []string{"zstd", "none"}
	if !contains(compressionValues, c.Store.Compression) {
		errs = append(errs, fmt.Errorf("store.compression must be one of: %v", compressionValues))
	}

	if c.Backend.URL != "" {
		parsed, err := url.Parse(c.Backend.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("backend.url must be an http or https URL, got %q", c.Backend.URL))
		}
	}

	return errors.Join(errs...)
}

// Self parses the account JID. The JID must have a localpart, since
// that is the user's nickname in rooms.
func (c *Config) Self() (ref.JID, error) {
	jid, err := ref.ParseJID(c.Account.JID)
	if err != nil {
		return ref.JID{}, fmt.Errorf("account.jid: %w", err)
	}
	if jid.Local() == "" {
		return ref.JID{}, fmt.Errorf("account.jid %q has no localpart", c.Account.JID)
	}
	return jid, nil
}

// Location loads the history time zone. An empty zone is time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.History.Timezone == "" {
		return time.Local, nil
	}
	location, err := time.LoadLocation(c.History.Timezone)
	if err != nil {
		return nil, fmt.Errorf("history.timezone: %w", err)
	}
	return location, nil
}

// EnsureStoreDirectory creates the directory holding the store file.
func (c *Config) EnsureStoreDirectory() error {
	if c.Store.Path == "" || c.Store.Path == ":memory:" {
		return nil
	}
	directory := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
