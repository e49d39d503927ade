// Package health reports an embedded pool's operating condition for
// operator tooling, trimmed from the teacher's health.HealthChecker:
// the registry-of-pluggable-Check-interfaces design, timeout/panic
// recovery per check, and background polling loop all assumed an
// HTTP-facing liveness/readiness surface serving a cluster's
// orchestrator. An in-process embedded store has only a few things
// worth reporting - the bound comparator's name, the element count and
// commit sequence, operation counters, and how stale the last checkpoint
// is - so Check collapses the registry down to a single report built
// from the objects that already know those answers.
package health

import (
	"sync/atomic"
	"time"

	"kvstore/checkpoint"
	"kvstore/pool"
)

// Status summarizes a Report's overall condition.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Report is one point-in-time snapshot of a pool's health.
type Report struct {
	Status            Status
	ComparatorName    string
	ElementCount      uint64
	CommitSeq         uint64
	LastCheckpointAge time.Duration
	HasCheckpoint     bool
	OperationCounts   map[string]uint64
	CheckedAt         time.Time
}

// Checker holds the running operation counters an embedding process
// feeds via CountGet/CountPut/CountRemove, and the pool/checkpoint
// manager Check reads from.
type Checker struct {
	pool        *pool.Pool
	checkpoints *checkpoint.Manager
	maxCkptAge  time.Duration

	gets    uint64
	puts    uint64
	removes uint64
}

// NewChecker returns a Checker. checkpoints may be nil if the pool runs
// without a checkpoint manager; maxCkptAge governs when Check reports
// StatusDegraded for checkpoint staleness (zero disables the check).
func NewChecker(p *pool.Pool, checkpoints *checkpoint.Manager, maxCkptAge time.Duration) *Checker {
	return &Checker{pool: p, checkpoints: checkpoints, maxCkptAge: maxCkptAge}
}

// CountGet, CountPut and CountRemove record one operation each, for
// engine.SortedEngine to call on every Get/Put/Remove.
func (c *Checker) CountGet()    { atomic.AddUint64(&c.gets, 1) }
func (c *Checker) CountPut()    { atomic.AddUint64(&c.puts, 1) }
func (c *Checker) CountRemove() { atomic.AddUint64(&c.removes, 1) }

// Check builds a Report from the pool's current state and, if a
// checkpoint manager is attached, its most recent completed checkpoint.
func (c *Checker) Check() Report {
	report := Report{
		Status:         StatusHealthy,
		ComparatorName: c.pool.ComparatorName(),
		ElementCount:   c.pool.ElementCount(),
		CommitSeq:      c.pool.CommitSeq(),
		CheckedAt:      time.Now(),
		OperationCounts: map[string]uint64{
			"get":    atomic.LoadUint64(&c.gets),
			"put":    atomic.LoadUint64(&c.puts),
			"remove": atomic.LoadUint64(&c.removes),
		},
	}

	if c.checkpoints == nil {
		return report
	}
	latest, err := c.checkpoints.Latest()
	if err != nil {
		return report
	}
	report.HasCheckpoint = true
	report.LastCheckpointAge = latest.Age()
	if c.maxCkptAge > 0 && report.LastCheckpointAge > c.maxCkptAge {
		report.Status = StatusDegraded
	}
	return report
}
