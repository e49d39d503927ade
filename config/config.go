// Package config holds ambient process configuration for an embedded
// kvstore process: where the pool file lives, how it logs, how often
// it checkpoints, and how its health check judges staleness. Trimmed
// from the teacher's Config: the Server/Backup/Memory/Security
// sub-structs assumed a networked, multi-tenant server process (ports,
// TLS, CORS, admin tokens, rate limits, cache eviction policy) that
// has no place in front of a single-process, single-pool store (spec
// Non-goals: no networked access, no concurrent writers in the same
// pool).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
}

// DatabaseConfig locates and sizes the pool file.
type DatabaseConfig struct {
	DataDir        string `yaml:"data_dir" env:"KVSTORE_DATA_DIR"`
	Size           string `yaml:"size" env:"KVSTORE_SIZE"`
	ForceCreate    bool   `yaml:"force_create" env:"KVSTORE_FORCE_CREATE"`
	ComparatorName string `yaml:"comparator" env:"KVSTORE_COMPARATOR"`
}

// CheckpointConfig holds checkpoint settings. cmd/kvstore passes only Dir
// on to the engine (as the "checkpoint_dir" bag option) and uses Interval
// as its shutdown timeout; the engine's checkpoint.Manager runs with
// checkpoint.DefaultConfig values, so CommitInterval, MaxCheckpoints and
// ValidateOnCreate here do not affect it.
type CheckpointConfig struct {
	Dir              string        `yaml:"dir" env:"KVSTORE_CHECKPOINT_DIR"`
	Interval         time.Duration `yaml:"interval" env:"KVSTORE_CHECKPOINT_INTERVAL"`
	CommitInterval   uint64        `yaml:"commit_interval" env:"KVSTORE_CHECKPOINT_COMMIT_INTERVAL"`
	MaxCheckpoints   int           `yaml:"max_checkpoints" env:"KVSTORE_CHECKPOINT_MAX"`
	ValidateOnCreate bool          `yaml:"validate_on_create" env:"KVSTORE_CHECKPOINT_VALIDATE_ON_CREATE"`
}

// LoggingConfig holds logging settings loaded from YAML or the
// environment. kvstore/logging's constructors do not read it.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"KVSTORE_LOG_LEVEL"`
	Format string `yaml:"format" env:"KVSTORE_LOG_FORMAT"`
	Output string `yaml:"output" env:"KVSTORE_LOG_OUTPUT"`
}

// HealthConfig holds a checkpoint-staleness threshold. engine.OpenSorted
// does not read it; its health.Checker uses a fixed one-hour threshold.
type HealthConfig struct {
	MaxCheckpointAge time.Duration `yaml:"max_checkpoint_age" env:"KVSTORE_HEALTH_MAX_CHECKPOINT_AGE"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataDir:        "./data",
			Size:           "64MB",
			ForceCreate:    false,
			ComparatorName: "bytes",
		},
		Checkpoint: CheckpointConfig{
			Dir:              "./checkpoints",
			Interval:         5 * time.Minute,
			CommitInterval:   10000,
			MaxCheckpoints:   5,
			ValidateOnCreate: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Health: HealthConfig{
			MaxCheckpointAge: time.Hour,
		},
	}
}

// LoadFromFile overlays a YAML config file onto c. Unset fields in the
// file leave c's existing values untouched, since yaml.Unmarshal only
// writes keys present in the document.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overlays environment variables onto c.
func (c *Config) LoadFromEnv() error {
	if dataDir := os.Getenv("KVSTORE_DATA_DIR"); dataDir != "" {
		c.Database.DataDir = dataDir
	}
	if size := os.Getenv("KVSTORE_SIZE"); size != "" {
		c.Database.Size = size
	}
	if forceCreate := os.Getenv("KVSTORE_FORCE_CREATE"); forceCreate != "" {
		c.Database.ForceCreate = strings.ToLower(forceCreate) == "true"
	}
	if cmp := os.Getenv("KVSTORE_COMPARATOR"); cmp != "" {
		c.Database.ComparatorName = cmp
	}

	if dir := os.Getenv("KVSTORE_CHECKPOINT_DIR"); dir != "" {
		c.Checkpoint.Dir = dir
	}
	if interval := os.Getenv("KVSTORE_CHECKPOINT_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Checkpoint.Interval = d
		}
	}
	if commitInterval := os.Getenv("KVSTORE_CHECKPOINT_COMMIT_INTERVAL"); commitInterval != "" {
		if ci, err := strconv.ParseUint(commitInterval, 10, 64); err == nil {
			c.Checkpoint.CommitInterval = ci
		}
	}
	if maxCkpt := os.Getenv("KVSTORE_CHECKPOINT_MAX"); maxCkpt != "" {
		if mc, err := strconv.Atoi(maxCkpt); err == nil {
			c.Checkpoint.MaxCheckpoints = mc
		}
	}
	if validate := os.Getenv("KVSTORE_CHECKPOINT_VALIDATE_ON_CREATE"); validate != "" {
		c.Checkpoint.ValidateOnCreate = strings.ToLower(validate) == "true"
	}

	if level := os.Getenv("KVSTORE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("KVSTORE_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if output := os.Getenv("KVSTORE_LOG_OUTPUT"); output != "" {
		c.Logging.Output = output
	}

	if maxAge := os.Getenv("KVSTORE_HEALTH_MAX_CHECKPOINT_AGE"); maxAge != "" {
		if d, err := time.ParseDuration(maxAge); err == nil {
			c.Health.MaxCheckpointAge = d
		}
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.Checkpoint.Dir != "" && c.Checkpoint.MaxCheckpoints < 1 {
		return fmt.Errorf("checkpoint max_checkpoints must be at least 1")
	}
	if c.Checkpoint.Interval < 0 {
		return fmt.Errorf("checkpoint interval cannot be negative")
	}
	return nil
}

// ParseSize parses a size string like "100MB" into bytes.
func ParseSize(sizeStr string) (int64, error) {
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(sizeStr, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(sizeStr, "KB")
	case strings.HasSuffix(sizeStr, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(sizeStr, "MB")
	case strings.HasSuffix(sizeStr, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(sizeStr, "GB")
	case strings.HasSuffix(sizeStr, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(sizeStr, "B")
	default:
		numStr = sizeStr
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", sizeStr)
	}

	return num * multiplier, nil
}
