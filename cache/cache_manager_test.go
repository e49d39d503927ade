package cache

import "testing"

func TestPutGetAndEviction(t *testing.T) {
	c := NewNodeCache(2)
	c.Put(1, "one")
	c.Put(2, "two")
	if v, ok := c.Get(1); !ok || v != "one" {
		t.Fatalf("Get(1) = %v,%v", v, ok)
	}
	// 2 is now LRU; inserting 3 should evict it, not 1 (just touched).
	c.Put(3, "three")
	if _, ok := c.Get(2); ok {
		t.Fatal("expected 2 to be evicted")
	}
	if v, ok := c.Get(1); !ok || v != "one" {
		t.Fatalf("expected 1 to survive eviction, got %v,%v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestInvalidate(t *testing.T) {
	c := NewNodeCache(4)
	c.Put(5, "five")
	c.Invalidate(5)
	if _, ok := c.Get(5); ok {
		t.Fatal("expected 5 to be invalidated")
	}
}
