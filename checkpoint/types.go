// Package checkpoint periodically snapshots a pool's mapped region to a
// sidecar file so WAL replay on reopen only has to cover the commits
// since the last snapshot, not the pool's entire lifetime (SPEC_FULL.md
// §10.1). Adapted from the teacher's checkpoint/manager.go and
// checkpoint/validator.go, trimmed from a distributed, LSN-sharded,
// encryption-capable design down to the single-pool-file model spec §5
// assumes: one writer, one pool, checkpoints taken synchronously on
// request or on a timer.
package checkpoint

import "time"

// CheckpointID names one checkpoint file.
type CheckpointID string

// Status is a checkpoint's lifecycle state.
type Status int

const (
	StatusCreating Status = iota
	StatusCompleted
	StatusFailed
	StatusCorrupted
)

func (s Status) String() string {
	switch s {
	case StatusCreating:
		return "creating"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCorrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}

// Checkpoint is one snapshot's metadata, persisted in the manager's
// index file alongside the compressed snapshot itself.
type Checkpoint struct {
	ID          CheckpointID
	Status      Status
	CommitSeq   uint64 // pool.Pool.CommitSeq() at the moment of the snapshot
	Timestamp   time.Time
	Size        int64 // compressed size on disk
	FilePath    string
	Checksum    uint32 // CRC32 over the compressed payload
	RawChecksum uint32 // CRC32 over the uncompressed pool snapshot, via integrity.ChecksumEngine
	ValidatedAt *time.Time
}

// IsCompleted reports whether the checkpoint finished successfully.
func (c *Checkpoint) IsCompleted() bool { return c.Status == StatusCompleted }

// Age is how long ago the checkpoint was taken.
func (c *Checkpoint) Age() time.Duration { return time.Since(c.Timestamp) }

// Stats tracks checkpoint activity across a Manager's lifetime.
type Stats struct {
	TotalCheckpoints    int
	SuccessfulCreations int
	FailedCreations     int
	TotalSize           int64
	LastCheckpointTime  time.Time
	ValidationFailures  int
}

// ValidationResult reports the outcome of validating one checkpoint.
type ValidationResult struct {
	Valid       bool
	ChecksumOK  bool
	SizeOK      bool
	Errors      []ValidationError
	ValidatedAt time.Time
}

// ValidationError describes one problem found while validating a
// checkpoint file.
type ValidationError struct {
	Field   string
	Message string
}
