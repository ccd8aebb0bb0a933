package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	jerrors "jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.AccessorFunctionName != "__" {
		t.Errorf("AccessorFunctionName = %q, want __", cfg.AccessorFunctionName)
	}
	if cfg.ValidateOnly {
		t.Error("ValidateOnly should be off by default")
	}
	if cfg.Entry["main"] != "./index.js" {
		t.Errorf("Entry = %v, want main=./index.js", cfg.Entry)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Loader != "jsonopt-loader" {
		t.Errorf("Rules = %+v, want one jsonopt-loader rule", cfg.Rules)
	}
	if !cfg.Cache.Enabled || cfg.Cache.MemoryEntries != 1024 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad version", func(c *Config) { c.Version = 9 }, "version"},
		{"empty accessor", func(c *Config) { c.AccessorFunctionName = "" }, "accessorFunctionName"},
		{"no entry", func(c *Config) { c.Entry = nil }, "entry"},
		{"bad rule regexp", func(c *Config) { c.Rules = []RuleConfig{{Test: "("}} }, "rules[0].test"},
		{"bad rule type", func(c *Config) { c.Rules = []RuleConfig{{Test: `\.x$`, Type: "css"}} }, "rules[0].type"},
		{"json rule type", func(c *Config) { c.Rules = []RuleConfig{{Test: `\.x$`, Type: "json"}} }, ""},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative memory entries", func(c *Config) { c.Cache.MemoryEntries = -1 }, "cache.memoryEntries"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -5 }, "watch.debounceMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "entry", Message: "at least one entry is required"}
	want := "config error in field 'entry': at least one entry is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.AccessorFunctionName != "__" {
		t.Errorf("AccessorFunctionName = %q, want default", cfg.AccessorFunctionName)
	}
	if cfg.Path() != filepath.Join(dir, FileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
	if cfg.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), dir)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
version = 1
accessorFunctionName = "t"
validateOnly = true
context = "app"

[entry]
main = "./main.js"

[[rules]]
test = '\.i18n$'
loader = "jsonopt-loader"
type = "json"

[cache]
enabled = false
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.AccessorFunctionName != "t" || !cfg.ValidateOnly {
		t.Errorf("accessor/validateOnly = %q/%v", cfg.AccessorFunctionName, cfg.ValidateOnly)
	}
	if cfg.Context != "app" || cfg.Entry["main"] != "./main.js" {
		t.Errorf("context/entry = %q/%v", cfg.Context, cfg.Entry)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Test != `\.i18n$` || cfg.Rules[0].Type != "json" {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled")
	}
	// Unset keys keep their defaults.
	if cfg.Cache.MemoryEntries != 1024 || cfg.Logging.Format != "human" {
		t.Errorf("defaults lost: cache=%+v logging=%+v", cfg.Cache, cfg.Logging)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JSONOPT_ACCESSOR_FUNCTION_NAME", "i18n")
	t.Setenv("JSONOPT_VALIDATE_ONLY", "true")
	t.Setenv("JSONOPT_CACHE_MEMORY_ENTRIES", "16")
	t.Setenv("JSONOPT_LOG_FORMAT", "json")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.AccessorFunctionName != "i18n" {
		t.Errorf("AccessorFunctionName = %q, want i18n", cfg.AccessorFunctionName)
	}
	if !cfg.ValidateOnly {
		t.Error("ValidateOnly should come from env")
	}
	if cfg.Cache.MemoryEntries != 16 {
		t.Errorf("MemoryEntries = %d, want 16", cfg.Cache.MemoryEntries)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadConfigFromPath(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(path, []byte(`{"accessorFunctionName": "tr", "entry": {"app": "./app.js"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFromPath(path)
	if err != nil {
		t.Fatalf("LoadConfigFromPath() error = %v", err)
	}
	if cfg.AccessorFunctionName != "tr" || cfg.Entry["app"] != "./app.js" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}

	t.Run("invalid", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(bad, []byte(`{invalid`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfigFromPath(bad)
		if jerrors.CodeOf(err) != jerrors.ConfigInvalid {
			t.Errorf("error = %v, want CONFIG_INVALID", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadConfigFromPath(filepath.Join(dir, "missing.toml"))
		if err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestConfig_WriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.AccessorFunctionName = "t"
	cfg.Rules = append(cfg.Rules, RuleConfig{Test: `\.mjs$`, Type: "javascript/esm"})

	path := filepath.Join(dir, FileName)
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `accessorFunctionName = "t"`) {
		t.Errorf("written config missing accessor:\n%s", data)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.AccessorFunctionName != "t" || len(loaded.Rules) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Rules[1].Type != "javascript/esm" || loaded.Rules[1].Loader != "" {
		t.Errorf("Rules[1] = %+v", loaded.Rules[1])
	}
}

func TestSupportedEnvVars(t *testing.T) {
	vars := SupportedEnvVars()
	if len(vars) != len(envBindings) {
		t.Fatalf("got %d vars, want %d", len(vars), len(envBindings))
	}
	for i, v := range vars {
		if !strings.HasPrefix(v, EnvPrefix+"_") {
			t.Errorf("%q lacks prefix", v)
		}
		if i > 0 && vars[i-1] > v {
			t.Errorf("vars not sorted: %q before %q", vars[i-1], v)
		}
	}
}

func TestConfig_PipelineOptions(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Rules = append(cfg.Rules, RuleConfig{Test: `\.data$`, Type: "json"})

	opts, err := cfg.PipelineOptions()
	if err != nil {
		t.Fatalf("PipelineOptions() error = %v", err)
	}
	if opts.Context != filepath.ToSlash(filepath.Join(dir, "src")) {
		t.Errorf("Context = %q", opts.Context)
	}
	if opts.Output.Path != filepath.ToSlash(filepath.Join(dir, "dist")) || opts.Output.Filename != "[name].js" {
		t.Errorf("Output = %+v", opts.Output)
	}
	if opts.Entry["main"] != "./index.js" {
		t.Errorf("Entry = %v", opts.Entry)
	}
	if len(opts.Rules) != 2 {
		t.Fatalf("Rules = %+v", opts.Rules)
	}
	if !opts.Rules[0].Test.MatchString("/src/en.json") || opts.Rules[0].Loaders[0] != "jsonopt-loader" {
		t.Errorf("Rules[0] = %+v", opts.Rules[0])
	}
	if opts.Rules[1].Type != pipeline.TypeJSON || opts.Rules[1].Loaders != nil {
		t.Errorf("Rules[1] = %+v", opts.Rules[1])
	}

	other := *cfg
	other.AccessorFunctionName = "t"
	otherOpts, err := other.PipelineOptions()
	if err != nil {
		t.Fatal(err)
	}
	if otherOpts.CacheVersion == opts.CacheVersion {
		t.Error("changing the accessor should change the cache version")
	}

	cfg.Rules = []RuleConfig{{Test: "("}}
	if _, err := cfg.PipelineOptions(); err == nil {
		t.Error("expected error for invalid rule regexp")
	}
}
