package btree

import (
	"fmt"
	"testing"

	"kvstore/cache"
	"kvstore/comparator"
	"kvstore/status"
)

// fakeArena is a minimal in-memory stand-in for pool.Txn, giving tree_test
// a writer without opening a memory-mapped pool file.
type fakeArena struct {
	next uint64
	data map[uint64][]byte
}

func newFakeArena() *fakeArena {
	return &fakeArena{next: 8, data: make(map[uint64][]byte)}
}

func (a *fakeArena) Allocate(size uint64) (uint64, bool) {
	addr := a.next
	a.next += size + 8 // pad so different-size nodes never overlap
	return addr, true
}

func (a *fakeArena) Free(addr, size uint64) { delete(a.data, addr) }

func (a *fakeArena) Write(addr uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	a.data[addr] = cp
}

func (a *fakeArena) Read(addr uint64, length int) []byte {
	out := make([]byte, length)
	copy(out, a.data[addr])
	return out
}

func collect(t *testing.T, tr *Tree, a *fakeArena, root uint64, lo, hi Endpoint) [][2]string {
	t.Helper()
	var got [][2]string
	_, _, err := tr.Range(a, root, lo, hi, func(k, v []byte) bool {
		got = append(got, [2]string{string(k), string(v)})
		return false
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	return got
}

func TestPutGetRoundTrip(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 1024, 1024)
	var root, count uint64

	pairs := [][2]string{{"A", "1"}, {"AB", "2"}, {"AC", "3"}, {"B", "4"}, {"BB", "5"}, {"BC", "6"}}
	for _, p := range pairs {
		newRoot, newCount, st := tr.Put(a, root, count, []byte(p[0]), []byte(p[1]))
		if !st.Ok() {
			t.Fatalf("put %s: %v", p[0], st)
		}
		root, count = newRoot, newCount
	}
	if count != uint64(len(pairs)) {
		t.Fatalf("count = %d, want %d", count, len(pairs))
	}

	for _, p := range pairs {
		v, found, err := tr.Get(a, root, []byte(p[0]))
		if err != nil {
			t.Fatalf("get %s: %v", p[0], err)
		}
		if !found || string(v) != p[1] {
			t.Fatalf("get %s = %q,%v want %q", p[0], v, found, p[1])
		}
	}
}

func TestGetBetweenScenario1(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 1024, 1024)
	var root, count uint64
	for _, p := range [][2]string{{"A", "1"}, {"AB", "2"}, {"AC", "3"}, {"B", "4"}, {"BB", "5"}, {"BC", "6"}} {
		root, count, _ = tr.Put(a, root, count, []byte(p[0]), []byte(p[1]))
	}

	got := collect(t, tr, a, root, Key([]byte("A")), Key([]byte("C")))
	want := [][2]string{{"AB", "2"}, {"AC", "3"}, {"B", "4"}, {"BB", "5"}, {"BC", "6"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	root, count, _ = tr.Put(a, root, count, []byte("BD"), []byte("7"))
	got2 := collect(t, tr, a, root, Key([]byte("AZ")), Key([]byte("BE")))
	want2 := [][2]string{{"B", "4"}, {"BB", "5"}, {"BC", "6"}, {"BD", "7"}}
	if fmt.Sprint(got2) != fmt.Sprint(want2) {
		t.Fatalf("got %v, want %v", got2, want2)
	}
}

func TestNulByteKeyIsDistinctFromPrefix(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 1024, 1024)
	root, count, st := tr.Put(a, 0, 0, []byte("a"), []byte("should_not_change"))
	if !st.Ok() {
		t.Fatalf("put: %v", st)
	}
	root, count, st = tr.Put(a, root, count, []byte("a\x00b"), []byte("stuff"))
	if !st.Ok() {
		t.Fatalf("put: %v", st)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	root, count, st = tr.Remove(a, root, count, []byte("a\x00b"))
	if !st.Ok() {
		t.Fatalf("remove: %v", st)
	}
	if count != 1 {
		t.Fatalf("count after remove = %d, want 1", count)
	}

	v, found, err := tr.Get(a, root, []byte("a"))
	if err != nil || !found || string(v) != "should_not_change" {
		t.Fatalf("get(a) = %q,%v,%v", v, found, err)
	}
	_, found, _ = tr.Get(a, root, []byte("a\x00b"))
	if found {
		t.Fatal("expected a\\0b to be gone")
	}
}

func TestRemoveAbsentKeyReturnsNotFound(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 1024, 1024)
	root, count, st := tr.Put(a, 0, 0, []byte("key1"), []byte("value1"))
	if !st.Ok() {
		t.Fatalf("put: %v", st)
	}
	_, _, st = tr.Remove(a, root, count, []byte("missing"))
	if st != status.NotFound {
		t.Fatalf("remove missing = %v, want NotFound", st)
	}
}

func TestRangeEmptyWhenLowGEHigh(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 1024, 1024)
	root, count, _ := tr.Put(a, 0, 0, []byte("m"), []byte("1"))
	n, err := tr.Count(a, root, Key([]byte("z")), Key([]byte("a")))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
	_ = count
}

func TestSplitAndMergeUnderRemoval(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 64, 64) // small degree forces splits quickly
	var root, count uint64
	keys := []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12"}
	for _, k := range keys {
		root, count, _ = tr.Put(a, root, count, []byte(k), []byte("v"+k))
	}
	if count != uint64(len(keys)) {
		t.Fatalf("count = %d, want %d", count, len(keys))
	}
	for i := 0; i < len(keys)-2; i++ {
		var st status.Status
		root, count, st = tr.Remove(a, root, count, []byte(keys[i]))
		if !st.Ok() {
			t.Fatalf("remove %s: %v", keys[i], st)
		}
	}
	if count != 2 {
		t.Fatalf("count after removals = %d, want 2", count)
	}
	for _, k := range keys[len(keys)-2:] {
		_, found, err := tr.Get(a, root, []byte(k))
		if err != nil || !found {
			t.Fatalf("expected %s to survive, found=%v err=%v", k, found, err)
		}
	}
}

// TestNodeCacheSurvivesOverwritesAndSplits exercises the decoded-node
// cache across puts, a replace, and a removal that frees a node,
// confirming a cache hit never returns a superseded node.
func TestNodeCacheSurvivesOverwritesAndSplits(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 64, 64)
	tr.SetCache(cache.NewNodeCache(8))
	var root, count uint64

	keys := []string{"01", "02", "03", "04", "05", "06", "07", "08"}
	for _, k := range keys {
		var st status.Status
		root, count, st = tr.Put(a, root, count, []byte(k), []byte("v"+k))
		if !st.Ok() {
			t.Fatalf("put %s: %v", k, st)
		}
	}

	root, count, _ = tr.Put(a, root, count, []byte("01"), []byte("replaced"))
	v, found, err := tr.Get(a, root, []byte("01"))
	if err != nil || !found || string(v) != "replaced" {
		t.Fatalf("get(01) after replace = %q,%v,%v", v, found, err)
	}

	var st status.Status
	root, count, st = tr.Remove(a, root, count, []byte("02"))
	if !st.Ok() {
		t.Fatalf("remove 02: %v", st)
	}
	if _, found, _ := tr.Get(a, root, []byte("02")); found {
		t.Fatal("expected 02 to be gone after remove, cache returned stale hit")
	}
	for _, k := range []string{"01", "03", "08"} {
		if _, found, _ := tr.Get(a, root, []byte(k)); !found {
			t.Fatalf("expected %s to survive", k)
		}
	}
}

func TestMinMaxSentinelEndpoints(t *testing.T) {
	a := newFakeArena()
	tr := New(comparator.Default(), 4, 1024, 1024)
	var root, count uint64
	for _, k := range []string{"b", "a", "c"} {
		root, count, _ = tr.Put(a, root, count, []byte(k), []byte(k))
	}
	got := collect(t, tr, a, root, MinKey(), MaxKey())
	want := [][2]string{{"a", "a"}, {"b", "b"}, {"c", "c"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("all() = %v, want %v", got, want)
	}
}
