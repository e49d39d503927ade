package checkpoint

import (
	"path/filepath"
	"testing"

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

func TestCreateProducesValidatedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	p := openTestPool(t, filepath.Join(dir, "store.kv"))
	defer p.Close()

	m, err := NewManager(p, DefaultConfig(filepath.Join(dir, "ckpts")))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cp, err := m.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !cp.IsCompleted() {
		t.Fatalf("checkpoint status = %v, want completed", cp.Status)
	}
	if cp.ValidatedAt == nil {
		t.Fatal("expected ValidateOnCreate to stamp ValidatedAt")
	}

	result, err := m.Validate(cp.ID)
	if err != nil || !result.Valid {
		t.Fatalf("Validate: result=%+v err=%v", result, err)
	}
}

func TestRestoreRoundTripsSnapshotBytes(t *testing.T) {
	dir := t.TempDir()
	p := openTestPool(t, filepath.Join(dir, "store.kv"))
	defer p.Close()

	m, err := NewManager(p, DefaultConfig(filepath.Join(dir, "ckpts")))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cp, err := m.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := p.Snapshot()
	got, err := m.Restore(cp.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("restored snapshot length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("restored snapshot diverges at byte %d", i)
			break
		}
	}
}

func TestCleanupKeepsOnlyMaxCheckpoints(t *testing.T) {
	dir := t.TempDir()
	p := openTestPool(t, filepath.Join(dir, "store.kv"))
	defer p.Close()

	cfg := DefaultConfig(filepath.Join(dir, "ckpts"))
	cfg.MaxCheckpoints = 2
	m, err := NewManager(p, cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := m.Create(); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	if err := m.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	remaining := CompletedCheckpoints().Apply(m.List(nil))
	if len(remaining) != 2 {
		t.Fatalf("remaining checkpoints = %d, want 2", len(remaining))
	}
}

func TestListFiltersByCommitSeqRange(t *testing.T) {
	dir := t.TempDir()
	p := openTestPool(t, filepath.Join(dir, "store.kv"))
	defer p.Close()

	m, err := NewManager(p, DefaultConfig(filepath.Join(dir, "ckpts")))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	txn := p.Begin()
	addr, ok := txn.Allocate(8)
	if !ok {
		t.Fatal("allocate failed")
	}
	txn.Write(addr, []byte("touched!"))
	if err := p.Commit(txn); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := m.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all := m.List(NewFilter().WithCommitSeqRange(0, p.CommitSeq()))
	if len(all) != 1 {
		t.Fatalf("filtered list = %d, want 1", len(all))
	}
	none := m.List(NewFilter().WithCommitSeqRange(p.CommitSeq()+1, p.CommitSeq()+10))
	if len(none) != 0 {
		t.Fatalf("out-of-range filtered list = %d, want 0", len(none))
	}
}
