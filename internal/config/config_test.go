package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func envMap(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.MaxResults != 12 || cfg.MaxSuggestions != 10 || cfg.MinQueryLength != 1 {
		t.Errorf("Default() = %+v", cfg)
	}

	// callers get their own copy
	cfg.MaxResults = 1
	if Default().MaxResults != 12 {
		t.Error("Default() shares state between calls")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[defaults]
data_dir = "/srv/catalog"
log_level = "debug"
max_results = 20
redis_addr = "localhost:6379"
redis_ttl = "15m"
warm_on_start = true
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.DataDir != "/srv/catalog" || cfg.LogLevel != "debug" || cfg.MaxResults != 20 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisTTL != 15*time.Minute || !cfg.WarmOnStart {
		t.Errorf("redis values not applied: %+v", cfg)
	}
	// missing keys keep fallbacks
	if cfg.MaxSuggestions != 10 || cfg.LogFormat != "console" {
		t.Errorf("fallbacks lost: %+v", cfg)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFile of missing file should fail")
	}
	if _, err := LoadFile(writeConfig(t, "[defaults\nbroken")); err == nil {
		t.Error("LoadFile of malformed file should fail")
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeConfig(t, "[defaults]\nmax_results = 0\n")
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load error = %v, want ErrInvalidConfig", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"LOCSEARCH_DATA_DIR":      "./data",
		"LOCSEARCH_LOG_FORMAT":    "json",
		"LOCSEARCH_MAX_RESULTS":   "5",
		"LOCSEARCH_WORKERS":       "3",
		"LOCSEARCH_REDIS_DB":      "2",
		"LOCSEARCH_REDIS_TTL":     "30s",
		"LOCSEARCH_METRICS":       "true",
		"LOCSEARCH_WARM_ON_START": "1",
		"LOG_LEVEL":               "error",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	want := Default()
	want.DataDir = "./data"
	want.LogFormat = "json"
	want.MaxResults = 5
	want.Workers = 3
	want.RedisDB = 2
	want.RedisTTL = 30 * time.Second
	want.Metrics = true
	want.WarmOnStart = true
	if *cfg != *want {
		t.Errorf("ApplyEnv = %+v, want %+v", cfg, want)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"LOCSEARCH_MAX_RESULTS": "many"}},
		{"bad bool", map[string]string{"LOCSEARCH_METRICS": "sometimes"}},
		{"bad duration", map[string]string{"LOCSEARCH_REDIS_TTL": "forever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default().ApplyEnv(envMap(tt.env))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ApplyEnv error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"max results", func(c *Config) { c.MaxResults = 101 }},
		{"max suggestions", func(c *Config) { c.MaxSuggestions = 0 }},
		{"min query length", func(c *Config) { c.MinQueryLength = 0 }},
		{"workers", func(c *Config) { c.Workers = MaxWorkers + 1 }},
		{"redis db", func(c *Config) { c.RedisDB = -1 }},
		{"redis ttl", func(c *Config) { c.RedisTTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
