package engine

import (
	"path/filepath"
	"testing"

	"kvstore/comparator"
	"kvstore/configbag"
	"kvstore/status"
)

func openTestEngine(t *testing.T, path string) *SortedEngine {
	t.Helper()
	bag := configbag.New()
	bag.PutString("path", path)
	bag.PutUint64("size", 4<<20)
	bag.PutInt64("force_create", 1)
	e, st := OpenSorted(bag)
	if !st.Ok() {
		t.Fatalf("OpenSorted: %v (%s)", st, status.LastError())
	}
	return e
}

func TestPutGetExistsRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.kv")
	e := openTestEngine(t, path)
	defer e.Close()

	if st := e.Put([]byte("key1"), []byte("value1")); !st.Ok() {
		t.Fatalf("put: %v", st)
	}
	if st := e.Exists([]byte("key1")); !st.Ok() {
		t.Fatalf("exists: %v", st)
	}
	var got []byte
	if st := e.Get([]byte("key1"), func(v []byte) { got = append([]byte(nil), v...) }); !st.Ok() {
		t.Fatalf("get: %v", st)
	}
	if string(got) != "value1" {
		t.Fatalf("get = %q, want value1", got)
	}

	if st := e.Remove([]byte("key1")); !st.Ok() {
		t.Fatalf("remove: %v", st)
	}
	if st := e.Exists([]byte("key1")); st != status.NotFound {
		t.Fatalf("exists after remove = %v, want NotFound", st)
	}
	if st := e.Remove([]byte("key1")); st != status.NotFound {
		t.Fatalf("remove absent = %v, want NotFound", st)
	}
}

func TestCountAllTracksLiveEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.kv")
	e := openTestEngine(t, path)
	defer e.Close()

	for _, k := range []string{"a", "b", "c"} {
		if st := e.Put([]byte(k), []byte("v")); !st.Ok() {
			t.Fatalf("put %s: %v", k, st)
		}
	}
	if n, st := e.CountAll(); !st.Ok() || n != 3 {
		t.Fatalf("CountAll = %d,%v want 3,OK", n, st)
	}
	if st := e.Remove([]byte("b")); !st.Ok() {
		t.Fatalf("remove: %v", st)
	}
	if n, st := e.CountAll(); !st.Ok() || n != 2 {
		t.Fatalf("CountAll = %d,%v want 2,OK", n, st)
	}

	if st := e.Put([]byte("a"), []byte("replacement")); !st.Ok() {
		t.Fatalf("replace put: %v", st)
	}
	if n, _ := e.CountAll(); n != 2 {
		t.Fatalf("CountAll after replace = %d, want 2 (replace must not bump count)", n)
	}
}

func TestGetBetweenExclusiveEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.kv")
	e := openTestEngine(t, path)
	defer e.Close()

	for _, k := range []string{"key1", "key2", "key3"} {
		e.Put([]byte(k), []byte(k))
	}
	var got []string
	st := e.GetBetween([]byte("key1"), []byte("key3"), func(k, v []byte) bool {
		got = append(got, string(k))
		return false
	})
	if !st.Ok() {
		t.Fatalf("GetBetween: %v", st)
	}
	if len(got) != 1 || got[0] != "key2" {
		t.Fatalf("GetBetween(key1,key3) = %v, want [key2]", got)
	}
}

func TestGetAllStopsOnCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.kv")
	e := openTestEngine(t, path)
	defer e.Close()

	for _, k := range []string{"a", "b", "c"} {
		e.Put([]byte(k), []byte(k))
	}
	seen := 0
	st := e.GetAll(func(k, v []byte) bool {
		seen++
		return true
	})
	if st != status.StoppedByCB {
		t.Fatalf("GetAll = %v, want StoppedByCB", st)
	}
	if seen != 1 {
		t.Fatalf("seen = %d, want 1", seen)
	}
}

func TestReopenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.kv")
	e := openTestEngine(t, path)
	e.Put([]byte("key1"), []byte("value1"))
	e.Put([]byte("key2"), []byte("value2"))
	e.Remove([]byte("key2"))
	e.Put([]byte("key3"), []byte("VALUE3"))
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bag := configbag.New()
	bag.PutString("path", path)
	e2, st := OpenSorted(bag)
	if !st.Ok() {
		t.Fatalf("reopen: %v", st)
	}
	defer e2.Close()

	if n, _ := e2.CountAll(); n != 2 {
		t.Fatalf("count_all after reopen = %d, want 2", n)
	}
	var v []byte
	e2.Get([]byte("key1"), func(b []byte) { v = append([]byte(nil), b...) })
	if string(v) != "value1" {
		t.Fatalf("key1 = %q, want value1", v)
	}
	if st := e2.Exists([]byte("key2")); st != status.NotFound {
		t.Fatalf("key2 exists = %v, want NotFound", st)
	}
}

type namedComparator struct{ name string }

func (namedComparator) Compare(a, b []byte) int { return comparator.Default().Compare(a, b) }
func (c namedComparator) Name() string          { return c.name }

func TestComparatorMismatchOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.kv")
	e := openTestEngine(t, path)
	e.Put([]byte("A"), []byte("1"))
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bag := configbag.New()
	bag.PutString("path", path)
	bag.PutComparator(namedComparator{name: "custom_order"})
	_, st := OpenSorted(bag)
	if st != status.ComparatorMismatch {
		t.Fatalf("reopen with different comparator = %v, want ComparatorMismatch", st)
	}
	if status.LastError() == "" {
		t.Fatal("expected diagnostic naming the expected comparator")
	}
}

func TestBlackholeDiscardsWrites(t *testing.T) {
	b := NewBlackhole()
	if st := b.Put([]byte("k"), []byte("v")); !st.Ok() {
		t.Fatalf("put: %v", st)
	}
	if st := b.Exists([]byte("k")); st != status.NotFound {
		t.Fatalf("exists: %v, want NotFound", st)
	}
	if _, st := b.CountAbove([]byte("k")); st != status.NotSupported {
		t.Fatalf("count_above: %v, want NotSupported", st)
	}
}
