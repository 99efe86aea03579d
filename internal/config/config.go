// Package config loads textdex configuration from defaults, YAML files and
// TEXTDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".textdex.yaml"

// Config represents the complete textdex configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	DataDir   string          `yaml:"data_dir" json:"data_dir"`
	Backend   string          `yaml:"backend" json:"backend"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Indexing  IndexingConfig  `yaml:"indexing" json:"indexing"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// SearchConfig configures query execution.
type SearchConfig struct {
	// MaxResults is the number of hits a search returns (default: 20).
	MaxResults int `yaml:"max_results" json:"max_results"`

	// MaxGroups is the number of groups a group-by requests (default: 1000).
	MaxGroups int `yaml:"max_groups" json:"max_groups"`

	// QueryCacheSize is the number of parsed queries kept (default: 256).
	// Zero disables the cache.
	QueryCacheSize int `yaml:"query_cache_size" json:"query_cache_size"`
}

// IndexingConfig configures document indexing.
type IndexingConfig struct {
	// BatchMode is "best_effort" (skip and report bad documents, default) or
	// "fail_fast" (one bad document rejects the whole batch).
	BatchMode string `yaml:"batch_mode" json:"batch_mode"`

	// Workers bounds concurrent document mapping (default: NumCPU).
	Workers int `yaml:"workers" json:"workers"`
}

// TelemetryConfig configures local query statistics.
type TelemetryConfig struct {
	// Enabled records query statistics in a SQLite database under the data
	// root (default: true). A pointer so an explicit false survives merging.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// FlushInterval is how often statistics are written, as a Go duration
	// (default: 1m).
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`
}

// IsEnabled reports whether query statistics are recorded.
func (t TelemetryConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Interval returns FlushInterval parsed, or zero when it is unset or invalid.
func (t TelemetryConfig) Interval() time.Duration {
	d, err := time.ParseDuration(t.FlushInterval)
	if err != nil {
		return 0
	}
	return d
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error (default: warn).
	Level string `yaml:"level" json:"level"`

	// File enables the rotating log file under ~/.textdex/logs.
	File bool `yaml:"file" json:"file"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Backend: "disk",
		Search: SearchConfig{
			MaxResults:     20,
			MaxGroups:      1000,
			QueryCacheSize: 256,
		},
		Indexing: IndexingConfig{
			BatchMode: "best_effort",
			Workers:   runtime.NumCPU(),
		},
		Log: LogConfig{
			Level: "warn",
		},
		Telemetry: TelemetryConfig{
			FlushInterval: "1m",
		},
	}
}

// defaultDataDir returns the default data root.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".textdex", "data")
	}
	return filepath.Join(home, ".textdex", "data")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory layout:
//   - $XDG_CONFIG_HOME/textdex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/textdex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "textdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "textdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "textdex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the working directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/textdex/config.yaml)
//  3. Project config (.textdex.yaml in dir)
//  4. Environment variables (TEXTDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads .textdex.yaml or .textdex.yml from dir if present.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".textdex.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Parse into an empty struct so unset keys stay zero and don't override.
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// data_dir in a project file is relative to that file.
	if parsed.DataDir != "" && !filepath.IsAbs(parsed.DataDir) {
		parsed.DataDir = filepath.Join(filepath.Dir(path), parsed.DataDir)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.Backend != "" {
		c.Backend = other.Backend
	}

	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.MaxGroups != 0 {
		c.Search.MaxGroups = other.Search.MaxGroups
	}
	// Zero is meaningful (cache disabled) but indistinguishable from unset,
	// so only TEXTDEX_QUERY_CACHE_SIZE=0 can disable the cache.
	if other.Search.QueryCacheSize != 0 {
		c.Search.QueryCacheSize = other.Search.QueryCacheSize
	}

	if other.Indexing.BatchMode != "" {
		c.Indexing.BatchMode = other.Indexing.BatchMode
	}
	if other.Indexing.Workers != 0 {
		c.Indexing.Workers = other.Indexing.Workers
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.File {
		c.Log.File = true
	}

	if other.Telemetry.Enabled != nil {
		enabled := *other.Telemetry.Enabled
		c.Telemetry.Enabled = &enabled
	}
	if other.Telemetry.FlushInterval != "" {
		c.Telemetry.FlushInterval = other.Telemetry.FlushInterval
	}
}

// applyEnvOverrides applies TEXTDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TEXTDEX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TEXTDEX_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("TEXTDEX_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("TEXTDEX_MAX_GROUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxGroups = n
		}
	}
	if v := os.Getenv("TEXTDEX_QUERY_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Search.QueryCacheSize = n
		}
	}
	if v := os.Getenv("TEXTDEX_BATCH_MODE"); v != "" {
		c.Indexing.BatchMode = v
	}
	if v := os.Getenv("TEXTDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.Workers = n
		}
	}
	if v := os.Getenv("TEXTDEX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TEXTDEX_LOG_FILE"); v != "" {
		c.Log.File = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("TEXTDEX_TELEMETRY"); v != "" {
		enabled := strings.ToLower(v) == "true" || v == "1"
		c.Telemetry.Enabled = &enabled
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" && c.Backend != "memory" {
		return fmt.Errorf("data_dir must be set for the disk backend")
	}

	validBackends := map[string]bool{"disk": true, "memory": true}
	if !validBackends[c.Backend] {
		return fmt.Errorf("backend must be 'disk' or 'memory', got %s", c.Backend)
	}

	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.MaxGroups <= 0 {
		return fmt.Errorf("search.max_groups must be positive, got %d", c.Search.MaxGroups)
	}
	if c.Search.QueryCacheSize < 0 {
		return fmt.Errorf("search.query_cache_size must be non-negative, got %d", c.Search.QueryCacheSize)
	}

	validModes := map[string]bool{"best_effort": true, "fail_fast": true}
	if !validModes[c.Indexing.BatchMode] {
		return fmt.Errorf("indexing.batch_mode must be 'best_effort' or 'fail_fast', got %s", c.Indexing.BatchMode)
	}
	if c.Indexing.Workers < 0 {
		return fmt.Errorf("indexing.workers must be non-negative, got %d", c.Indexing.Workers)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}

	if c.Telemetry.FlushInterval != "" {
		d, err := time.ParseDuration(c.Telemetry.FlushInterval)
		if err != nil || d < 0 {
			return fmt.Errorf("telemetry.flush_interval must be a non-negative duration, got %s", c.Telemetry.FlushInterval)
		}
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
