package checkpoint

import (
	"fmt"
	"time"
)

// Config holds configuration for checkpoint operations, trimmed from the
// teacher's CheckpointConfig: encryption, parallel-worker creation, and
// multi-tier retention policy all assumed a networked multi-tenant
// deployment and are dropped (see DESIGN.md).
type Config struct {
	// Dir is where checkpoint and archived-backup files are written.
	Dir string

	// Interval triggers an automatic checkpoint this often when the
	// manager's background loop is running; zero disables the loop
	// (callers still may call Create directly).
	Interval time.Duration

	// CommitInterval is the minimum number of commits since the previous
	// checkpoint for a timed Interval tick to take one; ticks with fewer
	// commits are skipped. Commits alone never trigger a checkpoint.
	// Zero takes a checkpoint on every tick.
	CommitInterval uint64

	// MaxCheckpoints bounds how many snapshot files are retained;
	// Cleanup deletes the oldest beyond this count.
	MaxCheckpoints int

	ValidateOnCreate bool
	ValidateOnLoad   bool
}

// DefaultConfig mirrors the teacher's DefaultCheckpointConfig values
// where they still make sense for an embedded single-pool store.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:              dir,
		Interval:         5 * time.Minute,
		CommitInterval:   10000,
		MaxCheckpoints:   5,
		ValidateOnCreate: true,
		ValidateOnLoad:   true,
	}
}

// Validate reports a configuration error, matching the teacher's
// fail-fast construction discipline.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("checkpoint: Dir must not be empty")
	}
	if c.MaxCheckpoints < 1 {
		return fmt.Errorf("checkpoint: MaxCheckpoints must be at least 1")
	}
	return nil
}
