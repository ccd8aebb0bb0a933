package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	jerrors "jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
)

// FileName is the configuration file looked up in the project directory.
const FileName = "jsonopt.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JSONOPT"

// CurrentVersion is the config schema version written by init.
const CurrentVersion = 1

// Config represents the complete jsonopt configuration
type Config struct {
	Version int `json:"version" toml:"version" mapstructure:"version"`

	AccessorFunctionName string `json:"accessorFunctionName" toml:"accessorFunctionName" mapstructure:"accessorFunctionName"`
	ValidateOnly         bool   `json:"validateOnly" toml:"validateOnly" mapstructure:"validateOnly"`

	// Context is the directory entries resolve against. Relative paths are
	// relative to the config file.
	Context string            `json:"context" toml:"context" mapstructure:"context"`
	Entry   map[string]string `json:"entry" toml:"entry" mapstructure:"entry"`

	Output  OutputConfig  `json:"output" toml:"output" mapstructure:"output"`
	Rules   []RuleConfig  `json:"rules" toml:"rules" mapstructure:"rules"`
	Cache   CacheConfig   `json:"cache" toml:"cache" mapstructure:"cache"`
	Logging LoggingConfig `json:"logging" toml:"logging" mapstructure:"logging"`
	Watch   WatchConfig   `json:"watch" toml:"watch" mapstructure:"watch"`

	// path is where the config was loaded from; empty for defaults.
	path string
}

// OutputConfig controls where bundles are written
type OutputConfig struct {
	Path     string `json:"path" toml:"path" mapstructure:"path"`
	Filename string `json:"filename" toml:"filename" mapstructure:"filename"`
}

// RuleConfig routes matching files through a loader and/or module type
type RuleConfig struct {
	Test   string `json:"test" toml:"test" mapstructure:"test"`
	Loader string `json:"loader,omitempty" toml:"loader,omitempty" mapstructure:"loader"`
	Type   string `json:"type,omitempty" toml:"type,omitempty" mapstructure:"type"`
}

// CacheConfig contains persistent cache settings
type CacheConfig struct {
	Enabled       bool   `json:"enabled" toml:"enabled" mapstructure:"enabled"`
	Dir           string `json:"dir" toml:"dir" mapstructure:"dir"`
	MemoryEntries int    `json:"memoryEntries" toml:"memoryEntries" mapstructure:"memoryEntries"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" toml:"format" mapstructure:"format"`
	Level  string `json:"level" toml:"level" mapstructure:"level"`
}

// WatchConfig contains watch mode settings
type WatchConfig struct {
	DebounceMs int      `json:"debounceMs" toml:"debounceMs" mapstructure:"debounceMs"`
	Ignore     []string `json:"ignore" toml:"ignore" mapstructure:"ignore"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:              CurrentVersion,
		AccessorFunctionName: "__",
		Context:              "src",
		Entry:                map[string]string{"main": "./index.js"},
		Output: OutputConfig{
			Path:     "dist",
			Filename: "[name].js",
		},
		Rules: []RuleConfig{
			{Test: `\.json$`, Loader: "jsonopt-loader"},
		},
		Cache: CacheConfig{
			Enabled:       true,
			Dir:           ".jsonopt",
			MemoryEntries: 1024,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
		Watch: WatchConfig{
			DebounceMs: 200,
			Ignore:     []string{"node_modules", ".git", ".jsonopt", "dist"},
		},
	}
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"accessorFunctionName": EnvPrefix + "_ACCESSOR_FUNCTION_NAME",
	"validateOnly":         EnvPrefix + "_VALIDATE_ONLY",
	"context":              EnvPrefix + "_CONTEXT",
	"output.path":          EnvPrefix + "_OUTPUT_PATH",
	"output.filename":      EnvPrefix + "_OUTPUT_FILENAME",
	"cache.enabled":        EnvPrefix + "_CACHE_ENABLED",
	"cache.dir":            EnvPrefix + "_CACHE_DIR",
	"cache.memoryEntries":  EnvPrefix + "_CACHE_MEMORY_ENTRIES",
	"logging.level":        EnvPrefix + "_LOG_LEVEL",
	"logging.format":       EnvPrefix + "_LOG_FORMAT",
	"watch.debounceMs":     EnvPrefix + "_WATCH_DEBOUNCE_MS",
}

// SupportedEnvVars lists the environment variables LoadConfig honours.
func SupportedEnvVars() []string {
	vars := make([]string, 0, len(envBindings))
	for _, env := range envBindings {
		vars = append(vars, env)
	}
	slices.Sort(vars)
	return vars
}

// LoadConfig loads jsonopt.toml (or jsonopt.json / jsonopt.yaml) from dir,
// falling back to defaults when none exists. Environment overrides apply
// either way.
func LoadConfig(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, jerrors.Wrap(jerrors.ConfigInvalid, "failed to read config", err)
		}
	}
	return decode(v, dir)
}

// LoadConfigFromPath loads configuration from an explicit file.
func LoadConfigFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, jerrors.Wrap(jerrors.ConfigInvalid, "failed to read config "+path, err)
	}
	return decode(v, filepath.Dir(path))
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("accessorFunctionName", d.AccessorFunctionName)
	v.SetDefault("validateOnly", d.ValidateOnly)
	v.SetDefault("context", d.Context)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.filename", d.Output.Filename)
	v.SetDefault("rules", d.Rules)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memoryEntries", d.Cache.MemoryEntries)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("watch.debounceMs", d.Watch.DebounceMs)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
}

func decode(v *viper.Viper, dir string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, jerrors.Wrap(jerrors.ConfigInvalid, "failed to decode config", err)
	}
	// Entries replace the default rather than merging with it.
	if len(cfg.Entry) == 0 {
		cfg.Entry = DefaultConfig().Entry
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.path = used
	} else {
		cfg.path = filepath.Join(dir, FileName)
	}
	return &cfg, nil
}

// Path returns the file the config was loaded from, or where it would be.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory relative paths in the config resolve against.
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// Write stores the configuration as TOML at path.
func (c *Config) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.AccessorFunctionName == "" {
		return &ConfigError{Field: "accessorFunctionName", Message: "must be provided"}
	}
	if len(c.Entry) == 0 {
		return &ConfigError{Field: "entry", Message: "at least one entry is required"}
	}
	for i, r := range c.Rules {
		if _, err := regexp.Compile(r.Test); err != nil {
			return &ConfigError{Field: fmt.Sprintf("rules[%d].test", i), Message: err.Error()}
		}
		if r.Type != "" && !validModuleType(pipeline.ModuleType(r.Type)) {
			return &ConfigError{Field: fmt.Sprintf("rules[%d].type", i), Message: "unknown module type " + r.Type}
		}
	}
	if c.Logging.Format != "human" && c.Logging.Format != "json" {
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	if c.Cache.MemoryEntries < 0 {
		return &ConfigError{Field: "cache.memoryEntries", Message: "must not be negative"}
	}
	if c.Watch.DebounceMs < 0 {
		return &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	return nil
}

func validModuleType(t pipeline.ModuleType) bool {
	return t == pipeline.TypeJSON || t.IsScript()
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
