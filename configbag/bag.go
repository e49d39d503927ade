// Package configbag implements the typed configuration mapping described
// in spec §4.1: a closed set of value kinds, one binding per name, with
// disposer-based ownership for externally-owned objects. Engines consume
// or discard a Bag at open time; dispatch.Open takes ownership of it.
package configbag

import "fmt"

// Kind identifies which of the closed set of value types a binding holds.
type Kind int

const (
	KindInt64 Kind = iota
	KindUint64
	KindDouble
	KindString
	KindData
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindData:
		return "data"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Disposer is invoked exactly once, at bag destruction or at replacement
// of the binding it belongs to, for every object-kind value.
type Disposer func(obj interface{})

type binding struct {
	kind     Kind
	i64      int64
	u64      uint64
	f64      float64
	str      string
	data     []byte
	obj      interface{}
	disposer Disposer
	seq      int // insertion order, for reverse-order disposal
}

// Bag is a typed, ordered mapping from option name to a single value of a
// single kind. It is not safe for concurrent use without external
// synchronization, matching the single-threaded-mutation contract of the
// engines that consume it.
type Bag struct {
	entries map[string]*binding
	nextSeq int
}

// New returns an empty configuration bag.
func New() *Bag {
	return &Bag{entries: make(map[string]*binding)}
}

func (b *Bag) put(name string, bd *binding) {
	if prev, ok := b.entries[name]; ok && prev.kind == KindObject && prev.disposer != nil {
		prev.disposer(prev.obj)
	}
	bd.seq = b.nextSeq
	b.nextSeq++
	b.entries[name] = bd
}

// PutInt64 binds name to a signed 64-bit value, replacing any prior
// binding (and disposing it, if it was an object).
func (b *Bag) PutInt64(name string, v int64) { b.put(name, &binding{kind: KindInt64, i64: v}) }

// PutUint64 binds name to an unsigned 64-bit value.
func (b *Bag) PutUint64(name string, v uint64) { b.put(name, &binding{kind: KindUint64, u64: v}) }

// PutDouble binds name to a double value.
func (b *Bag) PutDouble(name string, v float64) { b.put(name, &binding{kind: KindDouble, f64: v}) }

// PutString binds name to a string value.
func (b *Bag) PutString(name string, v string) { b.put(name, &binding{kind: KindString, str: v}) }

// PutData binds name to an explicit-length byte buffer. The bag keeps its
// own copy so callers may reuse the slice they passed in.
func (b *Bag) PutData(name string, v []byte) {
	cp := make([]byte, len(v))
	copy(cp, v)
	b.put(name, &binding{kind: KindData, data: cp})
}

// PutObject binds name to an externally-owned object. disposer, if
// non-nil, is invoked exactly once when the binding is replaced or the
// bag is destroyed.
func (b *Bag) PutObject(name string, obj interface{}, disposer Disposer) {
	b.put(name, &binding{kind: KindObject, obj: obj, disposer: disposer})
}

// ReservedComparatorKey is the reserved binding name PutComparator uses.
const ReservedComparatorKey = "__comparator"

// PutComparator stores cmp as an owned object under the reserved
// comparator key, per spec §4.1.
func (b *Bag) PutComparator(cmp interface{}) {
	b.PutObject(ReservedComparatorKey, cmp, nil)
}

func (b *Bag) get(name string, wantKind Kind) (*binding, bool) {
	bd, ok := b.entries[name]
	if !ok || bd.kind != wantKind {
		return nil, false
	}
	return bd, true
}

// GetInt64 retrieves a signed 64-bit binding.
func (b *Bag) GetInt64(name string) (int64, bool) {
	bd, ok := b.get(name, KindInt64)
	if !ok {
		return 0, false
	}
	return bd.i64, true
}

// GetUint64 retrieves an unsigned 64-bit binding.
func (b *Bag) GetUint64(name string) (uint64, bool) {
	bd, ok := b.get(name, KindUint64)
	if !ok {
		return 0, false
	}
	return bd.u64, true
}

// GetDouble retrieves a double binding.
func (b *Bag) GetDouble(name string) (float64, bool) {
	bd, ok := b.get(name, KindDouble)
	if !ok {
		return 0, false
	}
	return bd.f64, true
}

// GetString retrieves a string binding.
func (b *Bag) GetString(name string) (string, bool) {
	bd, ok := b.get(name, KindString)
	if !ok {
		return "", false
	}
	return bd.str, true
}

// GetData retrieves a data binding. The returned slice is owned by the
// bag; callers must not mutate it.
func (b *Bag) GetData(name string) ([]byte, bool) {
	bd, ok := b.get(name, KindData)
	if !ok {
		return nil, false
	}
	return bd.data, true
}

// GetObject retrieves an object binding.
func (b *Bag) GetObject(name string) (interface{}, bool) {
	bd, ok := b.get(name, KindObject)
	if !ok {
		return nil, false
	}
	return bd.obj, true
}

// Has reports whether name is bound, regardless of kind.
func (b *Bag) Has(name string) bool {
	_, ok := b.entries[name]
	return ok
}

// KindOf reports the kind of the binding for name, if any.
func (b *Bag) KindOf(name string) (Kind, bool) {
	bd, ok := b.entries[name]
	if !ok {
		return 0, false
	}
	return bd.kind, true
}

// TypeMismatchError is returned by strongly-typed accessors layered on
// top of Bag (see RequireString etc.) when a name exists under a
// different kind than requested.
type TypeMismatchError struct {
	Name string
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("config option %q has type %s, want %s", e.Name, e.Got, e.Want)
}

// RequireString returns the string bound to name, or a TypeMismatchError
// if name is bound under a different kind, or (nil, false) if unbound.
func (b *Bag) RequireString(name string) (string, error, bool) {
	bd, ok := b.entries[name]
	if !ok {
		return "", nil, false
	}
	if bd.kind != KindString {
		return "", &TypeMismatchError{Name: name, Want: KindString, Got: bd.kind}, true
	}
	return bd.str, nil, true
}

// Destroy runs the disposer for every object binding exactly once, in
// reverse insertion order, then empties the bag. A bag must not be used
// after Destroy.
func (b *Bag) Destroy() {
	ordered := make([]*binding, 0, len(b.entries))
	for _, bd := range b.entries {
		ordered = append(ordered, bd)
	}
	// insertion-order descending = reverse insertion order
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].seq > ordered[i].seq {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	for _, bd := range ordered {
		if bd.kind == KindObject && bd.disposer != nil {
			bd.disposer(bd.obj)
		}
	}
	b.entries = make(map[string]*binding)
}
