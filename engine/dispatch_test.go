package engine

import (
	"path/filepath"
	"testing"

	"kvstore/configbag"
	"kvstore/status"
)

func TestDispatchOpenSortedAndBlackhole(t *testing.T) {
	var d Dispatch

	bag := configbag.New()
	bag.PutString("path", filepath.Join(t.TempDir(), "store.kv"))
	bag.PutUint64("size", 4<<20)
	bag.PutInt64("force_create", 1)
	eng, st := d.Open("sorted", bag)
	if !st.Ok() {
		t.Fatalf("open sorted: %v", st)
	}
	if st := eng.Put([]byte("a"), []byte("1")); !st.Ok() {
		t.Fatalf("put: %v", st)
	}
	if st := d.Close(eng); !st.Ok() {
		t.Fatalf("close: %v", st)
	}

	bhBag := configbag.New()
	bh, st := d.Open("blackhole", bhBag)
	if !st.Ok() {
		t.Fatalf("open blackhole: %v", st)
	}
	if st := bh.Put([]byte("a"), []byte("1")); !st.Ok() {
		t.Fatalf("blackhole put: %v", st)
	}
	d.Close(bh)
}

func TestDispatchUnknownEngineName(t *testing.T) {
	var d Dispatch
	_, st := d.Open("nonexistent", configbag.New())
	if st != status.WrongEngineName {
		t.Fatalf("open unknown = %v, want WrongEngineName", st)
	}
}
