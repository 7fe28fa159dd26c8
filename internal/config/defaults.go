// Package config loads locsearch settings from config.toml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned when a setting is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix prefixes every environment override, e.g. LOCSEARCH_LOG_LEVEL.
const EnvPrefix = "LOCSEARCH_"

// MaxWorkers is the cap for parallel shard loading
const MaxWorkers = 8

// File represents the structure of config.toml
type File struct {
	Defaults Config `toml:"defaults"`
}

// Config holds every setting
type Config struct {
	DataDir        string        `toml:"data_dir"` // empty serves the embedded catalog
	LogLevel       string        `toml:"log_level"`
	LogFormat      string        `toml:"log_format"`
	MaxResults     int           `toml:"max_results"`
	MaxSuggestions int           `toml:"max_suggestions"`
	MinQueryLength int           `toml:"min_query_length"`
	WarmOnStart    bool          `toml:"warm_on_start"`
	Workers        int           `toml:"workers"` // 0 picks the default
	RedisAddr      string        `toml:"redis_addr"`
	RedisPassword  string        `toml:"redis_password"`
	RedisDB        int           `toml:"redis_db"`
	RedisTTL       time.Duration `toml:"redis_ttl"`
	Metrics        bool          `toml:"metrics"`
	OutputDir      string        `toml:"output_dir"`

	// Source is the file the settings were read from, empty for fallbacks.
	Source string `toml:"-"`
}

// Hardcoded fallback defaults (used if config.toml not found)
var fallbackDefaults = Config{
	LogLevel:       "info",
	LogFormat:      "console",
	MaxResults:     12,
	MaxSuggestions: 10,
	MinQueryLength: 1,
	WarmOnStart:    false,
	Workers:        0,
	RedisDB:        0,
	RedisTTL:       time.Hour,
	Metrics:        false,
	OutputDir:      "output/metrics",
}

// Default returns the fallback settings.
func Default() *Config {
	cfg := fallbackDefaults
	return &cfg
}

// Load reads path, or the first config.toml found near the working
// directory or executable when path is empty, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = LoadFile(path)
	} else if found := find(); found != "" {
		cfg, err = LoadFile(found)
	} else {
		cfg = Default()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a config.toml. Keys missing from the file keep their
// fallback values.
func LoadFile(path string) (*Config, error) {
	file := File{Defaults: fallbackDefaults}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := file.Defaults
	cfg.Source = path
	return &cfg, nil
}

// find walks up from cwd and from the executable looking for config.toml.
func find() string {
	paths := []string{
		"config.toml",
		"../config.toml",
		"../../config.toml",
	}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(dir, "config.toml"),
			filepath.Join(dir, "..", "config.toml"),
			filepath.Join(dir, "..", "..", "config.toml"),
		)
	}

	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ApplyEnv overrides settings from LOCSEARCH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("DATA_DIR", &c.DataDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("OUTPUT_DIR", &c.OutputDir)

	for name, dst := range map[string]*int{
		"MAX_RESULTS":      &c.MaxResults,
		"MAX_SUGGESTIONS":  &c.MaxSuggestions,
		"MIN_QUERY_LENGTH": &c.MinQueryLength,
		"WORKERS":          &c.Workers,
		"REDIS_DB":         &c.RedisDB,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*bool{
		"WARM_ON_START": &c.WarmOnStart,
		"METRICS":       &c.Metrics,
	} {
		if err := flag(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "REDIS_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sREDIS_TTL: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		c.RedisTTL = d
	}
	return nil
}

// Validate checks every setting is in range.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxResults < 1 || c.MaxResults > 100 {
		return fmt.Errorf("%w: max results must be between 1 and 100", ErrInvalidConfig)
	}
	if c.MaxSuggestions < 1 || c.MaxSuggestions > 100 {
		return fmt.Errorf("%w: max suggestions must be between 1 and 100", ErrInvalidConfig)
	}
	if c.MinQueryLength < 1 {
		return fmt.Errorf("%w: min query length must be at least 1", ErrInvalidConfig)
	}
	if c.Workers < 0 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: workers must be between 0 and %d", ErrInvalidConfig, MaxWorkers)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("%w: redis db %d", ErrInvalidConfig, c.RedisDB)
	}
	if c.RedisTTL < 0 {
		return fmt.Errorf("%w: redis ttl %v", ErrInvalidConfig, c.RedisTTL)
	}
	return nil
}
