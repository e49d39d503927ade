package comparator

import "testing"

func TestDefaultNameIsStable(t *testing.T) {
	if Default().Name() != "__pmemkv_binary_comparator" {
		t.Fatalf("default comparator name changed: %q", Default().Name())
	}
}

func TestBinaryComparatorOrdering(t *testing.T) {
	cmp := Default()
	cases := []struct {
		a, b []byte
		want int
	}{
		{[]byte("A"), []byte("B"), -1},
		{[]byte("B"), []byte("A"), 1},
		{[]byte("A"), []byte("A"), 0},
		{[]byte(""), []byte("A"), -1},
		{[]byte("A"), []byte(""), 1},
		{[]byte(""), []byte(""), 0},
		{[]byte("AB"), []byte("A"), 1},
		{[]byte("a\x00b"), []byte("a"), 1},
	}
	for _, c := range cases {
		got := sign(cmp.Compare(c.a, c.b))
		if got != c.want {
			t.Errorf("Compare(%q,%q) sign = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
