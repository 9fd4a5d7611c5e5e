// Package config provides configuration structures and defaults for uldb.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultInitialHeapSize = 16
	defaultCompactionRatio = 2
	defaultTableExtension  = ".table"
	defaultLogLevel        = "info"
)

// Config holds the tunable parameters of a uldb database.
type Config struct {
	// InitialHeapSize is the string heap size of newly created tables.
	// Must be a power of two.
	InitialHeapSize int64 `yaml:"initial_heap_size"`
	// CompactionRatio is the slots-on-disk to live-rows ratio at which a
	// delete rewrites the table.
	CompactionRatio int `yaml:"compaction_ratio"`
	// DisableCompaction turns off automatic compaction after deletes.
	DisableCompaction bool `yaml:"disable_compaction"`
	// TableExtension is the file name suffix of table files.
	TableExtension string `yaml:"table_extension"`
	// SyncWrites fsyncs a table file after every mutating operation.
	SyncWrites bool `yaml:"sync_writes"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Logger receives engine logs. Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a Config struct populated with default values.
func DefaultConfig() *Config {
	return &Config{
		InitialHeapSize: defaultInitialHeapSize,
		CompactionRatio: defaultCompactionRatio,
		TableExtension:  defaultTableExtension,
		LogLevel:        defaultLogLevel,
	}
}

// FillDefaults sets any zero-value fields in the Config to their default values.
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.InitialHeapSize == 0 {
		c.InitialHeapSize = def.InitialHeapSize
	}
	if c.CompactionRatio == 0 {
		c.CompactionRatio = def.CompactionRatio
	}
	if c.TableExtension == "" {
		c.TableExtension = def.TableExtension
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate reports settings the engine cannot work with.
func (c *Config) Validate() error {
	if c.InitialHeapSize <= 0 || c.InitialHeapSize&(c.InitialHeapSize-1) != 0 {
		return fmt.Errorf("initial_heap_size %d is not a positive power of two", c.InitialHeapSize)
	}
	if c.CompactionRatio < 1 {
		return fmt.Errorf("compaction_ratio %d must be at least 1", c.CompactionRatio)
	}
	if !strings.HasPrefix(c.TableExtension, ".") || strings.ContainsAny(c.TableExtension, `/\`) {
		return fmt.Errorf("table_extension %q must start with a dot and contain no separator", c.TableExtension)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// EffectiveRatio is the ratio to compact at, 0 when compaction is disabled.
func (c *Config) EffectiveRatio() int {
	if c.DisableCompaction {
		return 0
	}
	return c.CompactionRatio
}

// Load reads a YAML configuration file. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
