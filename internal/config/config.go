// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/streamchat/internal/assistant"
	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/util"
)

const (
	dirName  = ".streamchat"
	fileName = "config.toml"
)

// MaxPrompts is the most quick-start prompts that can be configured; each
// is picked with a single digit.
const MaxPrompts = 9

// Themes accepted by UIConfig.Theme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the root configuration.
type Config struct {
	Assistant AssistantConfig `toml:"assistant"`
	UI        UIConfig        `toml:"ui"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Server    ServerConfig    `toml:"server"`
}

// AssistantConfig points the client at the remote assistant.
type AssistantConfig struct {
	BaseURL           string   `toml:"base_url"`
	ChatPath          string   `toml:"chat_path"`
	ThreadPath        string   `toml:"thread_path"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	ChunkSize         int      `toml:"chunk_size"`
}

// UIConfig controls the terminal interface.
type UIConfig struct {
	Theme          string `toml:"theme"`
	RenderMarkdown bool   `toml:"render_markdown"`
	WordWrap       int    `toml:"word_wrap"`
	ShowTimestamps bool   `toml:"show_timestamps"`

	// Prompts are the quick-start messages offered on an empty
	// conversation. An empty list hides them.
	Prompts []string `toml:"prompts"`
}

// LoggingConfig selects log level and destination. An empty File discards
// logs in the TUI and writes to stderr elsewhere.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// ServerConfig configures the local mock assistant.
type ServerConfig struct {
	Addr              string            `toml:"addr"`
	WordDelay         Duration          `toml:"word_delay"`
	RequestsPerSecond float64           `toml:"requests_per_second"`
	Burst             int               `toml:"burst"`
	AllowedOrigins    []string          `toml:"allowed_origins"`
	Script            map[string]string `toml:"script"`
}

// Duration is a time.Duration encoded as a string such as "1m30s".
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// defaultPrompts returns a fresh copy of the built-in quick-start prompts.
func defaultPrompts() []string {
	return []string{
		"What can you help me with?",
		"Summarize our conversation so far.",
		"Explain the last answer in simpler terms.",
		"Give me three follow-up questions I could ask.",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	def := assistant.DefaultConfig()
	return &Config{
		Assistant: AssistantConfig{
			BaseURL:           def.BaseURL,
			ChatPath:          def.ChatPath,
			ThreadPath:        def.ThreadPath,
			Timeout:           Duration{def.Timeout},
			RequestsPerSecond: def.RequestsPerSecond,
			ChunkSize:         4096,
		},
		UI: UIConfig{
			Theme:          ThemeAuto,
			RenderMarkdown: true,
			WordWrap:       100,
			ShowTimestamps: true,
			Prompts:        defaultPrompts(),
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8000",
			WordDelay:         Duration{40 * time.Millisecond},
			RequestsPerSecond: 5,
			Burst:             10,
			AllowedOrigins:    []string{"*"},
		},
	}
}

// AssistantClientConfig converts the assistant section for assistant.NewClient.
func (c *Config) AssistantClientConfig() assistant.Config {
	return assistant.Config{
		BaseURL:           c.Assistant.BaseURL,
		ChatPath:          c.Assistant.ChatPath,
		ThreadPath:        c.Assistant.ThreadPath,
		Timeout:           c.Assistant.Timeout.Duration,
		RequestsPerSecond: c.Assistant.RequestsPerSecond,
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if dir := os.Getenv("STREAMCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// ConfigPath returns the configuration file path.
func ConfigPath() (string, error) {
	if p := os.Getenv("STREAMCHAT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the configuration from ConfigPath. A missing file yields the
// defaults. Environment overrides and validation are applied either way.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadOrDefault(path)
}

// LoadOrDefault is Load for an explicit path.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadFromPath(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadFile reads path and applies overrides, defaults and validation.
func LoadFile(path string) (*Config, error) {
	cfg, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath decodes the TOML file at path over the defaults. Keys absent
// from the file keep their default values; unknown keys are an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("decode %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Save writes cfg to ConfigPath.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# streamchat configuration\n")
	buf.WriteString("# Durations use Go syntax, e.g. \"15s\" or \"250ms\".\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// String renders cfg as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("# encode error: %v\n", err)
	}
	return buf.String()
}

// =============================================================================
// DEFAULTS AND OVERRIDES
// =============================================================================

// SetDefaults fills fields that must not be zero.
func (c *Config) SetDefaults() {
	def := Default()
	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = def.Assistant.BaseURL
	}
	if c.Assistant.ChatPath == "" {
		c.Assistant.ChatPath = def.Assistant.ChatPath
	}
	if c.Assistant.ThreadPath == "" {
		c.Assistant.ThreadPath = def.Assistant.ThreadPath
	}
	if c.Assistant.Timeout.Duration == 0 {
		c.Assistant.Timeout = def.Assistant.Timeout
	}
	if c.Assistant.ChunkSize == 0 {
		c.Assistant.ChunkSize = def.Assistant.ChunkSize
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = def.Server.Burst
	}
}

// ApplyEnvOverrides applies STREAMCHAT_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("STREAMCHAT_ENDPOINT"); v != "" {
		c.Assistant.BaseURL = v
	}
	if v := os.Getenv("STREAMCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STREAMCHAT_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("STREAMCHAT_THEME"); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidationErrors if any
// field is invalid.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Assistant.BaseURL); err != nil {
		add("assistant.base_url", "not a URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("assistant.base_url", "scheme must be http or https, got %q", u.Scheme)
	} else if u.Host == "" {
		add("assistant.base_url", "missing host")
	}
	if !strings.HasPrefix(c.Assistant.ChatPath, "/") {
		add("assistant.chat_path", "must start with /")
	}
	if !strings.HasPrefix(c.Assistant.ThreadPath, "/") {
		add("assistant.thread_path", "must start with /")
	}
	if c.Assistant.Timeout.Duration < 0 {
		add("assistant.timeout", "must not be negative")
	}
	if c.Assistant.RequestsPerSecond < 0 {
		add("assistant.requests_per_second", "must not be negative")
	}
	if c.Assistant.ChunkSize < 0 || c.Assistant.ChunkSize > 1<<20 {
		add("assistant.chunk_size", "must be between 1 and 1048576")
	}

	switch c.UI.Theme {
	case ThemeAuto, ThemeDark, ThemeLight:
	default:
		add("ui.theme", "must be auto, dark or light, got %q", c.UI.Theme)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative")
	}
	if len(c.UI.Prompts) > MaxPrompts {
		add("ui.prompts", "at most %d prompts, got %d", MaxPrompts, len(c.UI.Prompts))
	}
	for i, p := range c.UI.Prompts {
		if strings.TrimSpace(p) == "" {
			add("ui.prompts", "prompt %d is blank", i+1)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}

	if c.Server.WordDelay.Duration < 0 {
		add("server.word_delay", "must not be negative")
	}
	if c.Server.RequestsPerSecond < 0 {
		add("server.requests_per_second", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide configuration, loading it on first use.
// A load failure falls back to the defaults.
func Global() *Config {
	globalMu.RLock()
	cfg := globalCfg
	globalMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		loaded, err := Load()
		if err != nil {
			loaded = Default()
		}
		globalCfg = loaded
	}
	return globalCfg
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
}

// ResetGlobalForTesting clears the process-wide configuration.
func ResetGlobalForTesting() {
	SetGlobal(nil)
}
