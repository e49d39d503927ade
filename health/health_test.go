package health

import (
	"path/filepath"
	"testing"
	"time"

	"kvstore/checkpoint"
	"kvstore/comparator"
	"kvstore/pool"
)

func openTestPool(t *testing.T, path string) *pool.Pool {
	t.Helper()
	p, err := pool.Open(pool.Options{
		Path:           path,
		Size:           4 << 20,
		ForceCreate:    true,
		Degree:         4,
		KeyMax:         64,
		ValueMax:       64,
		ComparatorName: comparator.Default().Name(),
	})
	if err != nil {
		t.Fatalf("pool.Open: %v", err)
	}
	return p
}

func TestCheckReportsHealthyWithoutCheckpoints(t *testing.T) {
	dir := t.TempDir()
	p := openTestPool(t, filepath.Join(dir, "store.kv"))
	defer p.Close()

	c := NewChecker(p, nil, time.Hour)
	report := c.Check()

	if report.Status != StatusHealthy {
		t.Fatalf("Status = %v, want %v", report.Status, StatusHealthy)
	}
	if report.HasCheckpoint {
		t.Fatal("expected HasCheckpoint = false with no checkpoint manager")
	}
	if report.ComparatorName != comparator.Default().Name() {
		t.Fatalf("ComparatorName = %q, want %q", report.ComparatorName, comparator.Default().Name())
	}
}

func TestCheckCountsOperations(t *testing.T) {
	dir := t.TempDir()
	p := openTestPool(t, filepath.Join(dir, "store.kv"))
	defer p.Close()

	c := NewChecker(p, nil, time.Hour)
	c.CountGet()
	c.CountGet()
	c.CountPut()
	c.CountRemove()

	report := c.Check()
	if report.OperationCounts["get"] != 2 {
		t.Fatalf("get count = %d, want 2", report.OperationCounts["get"])
	}
	if report.OperationCounts["put"] != 1 {
		t.Fatalf("put count = %d, want 1", report.OperationCounts["put"])
	}
	if report.OperationCounts["remove"] != 1 {
		t.Fatalf("remove count = %d, want 1", report.OperationCounts["remove"])
	}
}

func TestCheckDegradesOnStaleCheckpoint(t *testing.T) {
	dir := t.TempDir()
	p := openTestPool(t, filepath.Join(dir, "store.kv"))
	defer p.Close()

	mgr, err := checkpoint.NewManager(p, checkpoint.DefaultConfig(filepath.Join(dir, "ckpts")))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := mgr.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	c := NewChecker(p, mgr, 0)
	report := c.Check()
	if !report.HasCheckpoint {
		t.Fatal("expected HasCheckpoint = true")
	}
	if report.Status != StatusHealthy {
		t.Fatalf("Status = %v, want healthy with maxCkptAge=0 (check disabled)", report.Status)
	}

	c2 := NewChecker(p, mgr, time.Nanosecond)
	time.Sleep(time.Millisecond)
	report2 := c2.Check()
	if report2.Status != StatusDegraded {
		t.Fatalf("Status = %v, want degraded with a 1ns max age", report2.Status)
	}
}
