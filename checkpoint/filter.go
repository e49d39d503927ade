package checkpoint

import "time"

// Filter selects a subset of checkpoints for Manager.List, trimmed from
// the teacher's CheckpointFilter: LSN ranges become CommitSeq ranges (a
// single pool has one sequence, not a shard per tenant), and the
// creator/tag builder methods are dropped since nothing in this
// codebase attaches multi-tenant metadata to a checkpoint.
type Filter struct {
	statuses       map[Status]bool
	minCommitSeq   uint64
	maxCommitSeq   uint64
	hasCommitRange bool
	after          time.Time
	before         time.Time
	hasTimeRange   bool
	minSize        int64
	maxSize        int64
	hasSizeRange   bool
	validatedOnly  bool
	limit          int
	offset         int
}

// NewFilter returns a filter that matches every checkpoint.
func NewFilter() *Filter {
	return &Filter{statuses: make(map[Status]bool)}
}

func (f *Filter) WithStatus(statuses ...Status) *Filter {
	for _, s := range statuses {
		f.statuses[s] = true
	}
	return f
}

func (f *Filter) WithCommitSeqRange(min, max uint64) *Filter {
	f.minCommitSeq, f.maxCommitSeq, f.hasCommitRange = min, max, true
	return f
}

func (f *Filter) WithTimeRange(after, before time.Time) *Filter {
	f.after, f.before, f.hasTimeRange = after, before, true
	return f
}

func (f *Filter) WithSizeRange(min, max int64) *Filter {
	f.minSize, f.maxSize, f.hasSizeRange = min, max, true
	return f
}

func (f *Filter) WithValidatedOnly() *Filter {
	f.validatedOnly = true
	return f
}

func (f *Filter) WithLimit(limit int) *Filter {
	f.limit = limit
	return f
}

func (f *Filter) WithOffset(offset int) *Filter {
	f.offset = offset
	return f
}

// Matches reports whether cp satisfies every constraint set on f.
func (f *Filter) Matches(cp *Checkpoint) bool {
	if len(f.statuses) > 0 && !f.statuses[cp.Status] {
		return false
	}
	if f.hasCommitRange && (cp.CommitSeq < f.minCommitSeq || cp.CommitSeq > f.maxCommitSeq) {
		return false
	}
	if f.hasTimeRange {
		if !f.after.IsZero() && cp.Timestamp.Before(f.after) {
			return false
		}
		if !f.before.IsZero() && cp.Timestamp.After(f.before) {
			return false
		}
	}
	if f.hasSizeRange && (cp.Size < f.minSize || cp.Size > f.maxSize) {
		return false
	}
	if f.validatedOnly && cp.ValidatedAt == nil {
		return false
	}
	return true
}

// Apply filters and paginates a checkpoint list according to f.
func (f *Filter) Apply(checkpoints []*Checkpoint) []*Checkpoint {
	matched := make([]*Checkpoint, 0, len(checkpoints))
	for _, cp := range checkpoints {
		if f.Matches(cp) {
			matched = append(matched, cp)
		}
	}
	if f.offset > 0 {
		if f.offset >= len(matched) {
			return nil
		}
		matched = matched[f.offset:]
	}
	if f.limit > 0 && f.limit < len(matched) {
		matched = matched[:f.limit]
	}
	return matched
}

// CompletedCheckpoints matches only successfully completed checkpoints.
func CompletedCheckpoints() *Filter { return NewFilter().WithStatus(StatusCompleted) }

// RecentCheckpoints matches checkpoints taken within the last duration.
func RecentCheckpoints(d time.Duration) *Filter {
	return NewFilter().WithTimeRange(time.Now().Add(-d), time.Time{})
}

// OldCheckpoints matches checkpoints older than duration, a convenience
// for Manager.Cleanup callers that want an age-based policy instead of
// (or alongside) Config.MaxCheckpoints.
func OldCheckpoints(d time.Duration) *Filter {
	return NewFilter().WithTimeRange(time.Time{}, time.Now().Add(-d))
}

// LargeCheckpoints matches checkpoints at or above minSize bytes.
func LargeCheckpoints(minSize int64) *Filter {
	return NewFilter().WithSizeRange(minSize, 1<<62)
}
