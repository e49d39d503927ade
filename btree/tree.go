package btree

import (
	"errors"
	"sync/atomic"

	"kvstore/cache"
	"kvstore/comparator"
	"kvstore/status"
)

// ErrOutOfMemory is returned by the allocator-facing helpers when the
// pool has no room left; Put/Remove translate it to status.OutOfMemory.
var ErrOutOfMemory = errors.New("btree: pool out of memory")

// writer is the capability a mutating operation needs from a
// transaction: read the last-committed-or-staged view, stage a write,
// and allocate/free arena space. Satisfied by *pool.Txn.
type writer interface {
	byteReader
	Allocate(size uint64) (uint64, bool)
	Free(addr, size uint64)
	Write(addr uint64, data []byte)
}

// Tree is the sorted engine's in-memory view of the structural
// parameters needed to interpret and rebuild a persistent B+-tree: the
// active comparator and the DEGREE-derived capacity/underflow
// thresholds from spec §3.
type Tree struct {
	cmp      comparator.Comparator
	keyMax   uint64
	valueMax uint64

	leafCap  int
	innerCap int
	minLeaf  int
	minInner int

	seq uint64 // monotonically increasing per-process node sequence counter

	nodes *cache.NodeCache // optional decoded-node cache, nil disables caching
}

// SetCache attaches a volatile decoded-node cache (spec §3's Ownership
// section: caches derived from the pool are not durable state). Every
// copy-on-write replacement invalidates the address it frees, so a hit
// can never return a node some other writer has already superseded.
func (t *Tree) SetCache(c *cache.NodeCache) { t.nodes = c }

type decodedNode struct {
	leaf  *leafNode
	inner *innerNode
	size  uint64
}

// readNode decodes the node at addr, consulting t.nodes first when a
// cache is attached.
func (t *Tree) readNode(r byteReader, addr uint64) (*leafNode, *innerNode, uint64, error) {
	if t.nodes != nil {
		if v, ok := t.nodes.Get(addr); ok {
			d := v.(*decodedNode)
			return d.leaf, d.inner, d.size, nil
		}
	}
	leaf, inner, size, err := readNode(r, addr)
	if err == nil && t.nodes != nil {
		t.nodes.Put(addr, &decodedNode{leaf: leaf, inner: inner, size: size})
	}
	return leaf, inner, size, err
}

// free releases addr back to the allocator and drops it from the node
// cache, since the allocator may hand the byte range to a new,
// unrelated node once freed.
func (t *Tree) free(w writer, addr, size uint64) {
	if t.nodes != nil {
		t.nodes.Invalidate(addr)
	}
	w.Free(addr, size)
}

// New builds a Tree for the given comparator, degree, and key/value
// length limits (spec §3's DEGREE, KEY_MAX, VALUE_MAX).
func New(cmp comparator.Comparator, degree uint32, keyMax, valueMax uint64) *Tree {
	cap := int(degree) - 1
	if cap < 1 {
		cap = 1
	}
	return &Tree{
		cmp:      cmp,
		keyMax:   keyMax,
		valueMax: valueMax,
		leafCap:  cap,
		innerCap: cap,
		minLeaf:  (cap + 1) / 2,
		minInner: (cap + 1) / 2,
	}
}

func (t *Tree) nextSeq() uint64 { return atomic.AddUint64(&t.seq, 1) }

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (t *Tree) writeLeaf(w writer, n *leafNode) (uint64, error) {
	buf := encodeLeaf(n)
	addr, ok := w.Allocate(uint64(len(buf)))
	if !ok {
		return 0, ErrOutOfMemory
	}
	w.Write(addr, buf)
	return addr, nil
}

func (t *Tree) writeInner(w writer, n *innerNode) (uint64, error) {
	buf := encodeInner(n)
	addr, ok := w.Allocate(uint64(len(buf)))
	if !ok {
		return 0, ErrOutOfMemory
	}
	w.Write(addr, buf)
	return addr, nil
}

// searchLeaf returns the index at which key is found, or the index at
// which it should be inserted to keep entries sorted, plus whether it
// was found.
func (t *Tree) searchLeaf(n *leafNode, key []byte) (idx int, found bool) {
	lo, hi := 0, len(n.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		c := t.cmp.Compare(n.entries[mid].key, key)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// chooseChild implements spec §4.3's lookup descent rule: the smallest
// i such that key < separator[i], or the last child if none qualifies.
func (t *Tree) chooseChild(n *innerNode, key []byte) int {
	for i, sep := range n.seps {
		if t.cmp.Compare(key, sep) < 0 {
			return i
		}
	}
	return len(n.children) - 1
}

// Get performs a point lookup, descending from root.
func (t *Tree) Get(r byteReader, root uint64, key []byte) (value []byte, found bool, err error) {
	if root == 0 {
		return nil, false, nil
	}
	addr := root
	for {
		leaf, inner, _, rerr := t.readNode(r, addr)
		if rerr != nil {
			return nil, false, rerr
		}
		if leaf != nil {
			idx, ok := t.searchLeaf(leaf, key)
			if !ok {
				return nil, false, nil
			}
			return copyBytes(leaf.entries[idx].value), true, nil
		}
		addr = inner.children[t.chooseChild(inner, key)]
	}
}

// Exists reports whether key is present, sharing Get's descent.
func (t *Tree) Exists(r byteReader, root uint64, key []byte) (bool, error) {
	_, found, err := t.Get(r, root, key)
	return found, err
}

type splitResult struct {
	sepKey    []byte
	rightAddr uint64
}

// insert descends from addr, applying a copy-on-write update at every
// level on the path to the target leaf (spec §4.3 Insert/Update).
func (t *Tree) insert(w writer, addr uint64, key, value []byte) (newAddr uint64, split *splitResult, replaced bool, err error) {
	if addr == 0 {
		leaf := &leafNode{seq: t.nextSeq(), entries: []entry{{key: copyBytes(key), value: copyBytes(value)}}}
		a, werr := t.writeLeaf(w, leaf)
		return a, nil, false, werr
	}

	leaf, inner, size, rerr := t.readNode(w, addr)
	if rerr != nil {
		return 0, nil, false, rerr
	}

	if leaf != nil {
		idx, found := t.searchLeaf(leaf, key)
		switch {
		case found:
			newEntries := append([]entry(nil), leaf.entries...)
			newEntries[idx] = entry{key: copyBytes(key), value: copyBytes(value)}
			n := &leafNode{seq: t.nextSeq(), entries: newEntries, next: leaf.next}
			a, werr := t.writeLeaf(w, n)
			if werr != nil {
				return 0, nil, false, werr
			}
			t.free(w, addr, size)
			return a, nil, true, nil

		case len(leaf.entries) < t.leafCap:
			newEntries := make([]entry, 0, len(leaf.entries)+1)
			newEntries = append(newEntries, leaf.entries[:idx]...)
			newEntries = append(newEntries, entry{key: copyBytes(key), value: copyBytes(value)})
			newEntries = append(newEntries, leaf.entries[idx:]...)
			n := &leafNode{seq: t.nextSeq(), entries: newEntries, next: leaf.next}
			a, werr := t.writeLeaf(w, n)
			if werr != nil {
				return 0, nil, false, werr
			}
			t.free(w, addr, size)
			return a, nil, false, nil

		default:
			all := make([]entry, 0, len(leaf.entries)+1)
			all = append(all, leaf.entries[:idx]...)
			all = append(all, entry{key: copyBytes(key), value: copyBytes(value)})
			all = append(all, leaf.entries[idx:]...)
			mid := (len(all) + 1) / 2

			right := &leafNode{seq: t.nextSeq(), entries: append([]entry(nil), all[mid:]...), next: leaf.next}
			rightAddr, werr := t.writeLeaf(w, right)
			if werr != nil {
				return 0, nil, false, werr
			}
			left := &leafNode{seq: t.nextSeq(), entries: append([]entry(nil), all[:mid]...), next: rightAddr}
			leftAddr, werr := t.writeLeaf(w, left)
			if werr != nil {
				return 0, nil, false, werr
			}
			t.free(w, addr, size)
			return leftAddr, &splitResult{sepKey: copyBytes(right.entries[0].key), rightAddr: rightAddr}, false, nil
		}
	}

	// inner node
	i := t.chooseChild(inner, key)
	newChildAddr, childSplit, replaced, ierr := t.insert(w, inner.children[i], key, value)
	if ierr != nil {
		return 0, nil, false, ierr
	}

	newChildren := append([]uint64(nil), inner.children...)
	newSeps := append([][]byte(nil), inner.seps...)
	newChildren[i] = newChildAddr
	if childSplit != nil {
		newSeps = append(newSeps, nil)
		copy(newSeps[i+1:], newSeps[i:])
		newSeps[i] = childSplit.sepKey

		newChildren = append(newChildren, 0)
		copy(newChildren[i+2:], newChildren[i+1:])
		newChildren[i+1] = childSplit.rightAddr
	}

	if len(newSeps) <= t.innerCap {
		n := &innerNode{seq: t.nextSeq(), seps: newSeps, children: newChildren}
		a, werr := t.writeInner(w, n)
		if werr != nil {
			return 0, nil, false, werr
		}
		t.free(w, addr, size)
		return a, nil, replaced, nil
	}

	mid := len(newSeps) / 2
	promoted := newSeps[mid]
	left := &innerNode{seq: t.nextSeq(), seps: append([][]byte(nil), newSeps[:mid]...), children: append([]uint64(nil), newChildren[:mid+1]...)}
	right := &innerNode{seq: t.nextSeq(), seps: append([][]byte(nil), newSeps[mid+1:]...), children: append([]uint64(nil), newChildren[mid+1:]...)}
	leftAddr, werr := t.writeInner(w, left)
	if werr != nil {
		return 0, nil, false, werr
	}
	rightAddr, werr := t.writeInner(w, right)
	if werr != nil {
		return 0, nil, false, werr
	}
	t.free(w, addr, size)
	return leftAddr, &splitResult{sepKey: promoted, rightAddr: rightAddr}, replaced, nil
}

// Put inserts or replaces key/value and returns the new root and
// element count to stage into the enclosing transaction.
func (t *Tree) Put(w writer, root, count uint64, key, value []byte) (newRoot, newCount uint64, st status.Status) {
	if uint64(len(key)) > t.keyMax || uint64(len(value)) > t.valueMax {
		return root, count, status.InvalidArgument
	}
	newAddr, split, replaced, err := t.insert(w, root, key, value)
	if err != nil {
		if errors.Is(err, ErrOutOfMemory) {
			return root, count, status.OutOfMemory
		}
		return root, count, status.Failed
	}
	finalRoot := newAddr
	if split != nil {
		rootInner := &innerNode{seq: t.nextSeq(), seps: [][]byte{split.sepKey}, children: []uint64{newAddr, split.rightAddr}}
		a, werr := t.writeInner(w, rootInner)
		if werr != nil {
			return root, count, status.OutOfMemory
		}
		finalRoot = a
	}
	nc := count
	if !replaced {
		nc++
	}
	return finalRoot, nc, status.OK
}

type pair struct{ leftAddr, rightAddr uint64 }

func (t *Tree) tryBorrowRight(w writer, leftAddr, rightAddr uint64, parentSep []byte) (*pair, []byte, error) {
	ll, li, lsize, err := t.readNode(w, leftAddr)
	if err != nil {
		return nil, nil, err
	}
	rl, ri, rsize, err := t.readNode(w, rightAddr)
	if err != nil {
		return nil, nil, err
	}

	if ll != nil {
		if len(rl.entries) <= t.minLeaf {
			return nil, nil, nil
		}
		borrowed := rl.entries[0]
		newRightEntries := append([]entry(nil), rl.entries[1:]...)
		newRight := &leafNode{seq: t.nextSeq(), entries: newRightEntries, next: rl.next}
		newRightAddr, werr := t.writeLeaf(w, newRight)
		if werr != nil {
			return nil, nil, werr
		}
		newLeftEntries := append(append([]entry(nil), ll.entries...), borrowed)
		newLeft := &leafNode{seq: t.nextSeq(), entries: newLeftEntries, next: newRightAddr}
		newLeftAddr, werr := t.writeLeaf(w, newLeft)
		if werr != nil {
			return nil, nil, werr
		}
		t.free(w, leftAddr, lsize)
		t.free(w, rightAddr, rsize)
		return &pair{newLeftAddr, newRightAddr}, copyBytes(newRightEntries[0].key), nil
	}

	if len(ri.seps) <= t.minInner {
		return nil, nil, nil
	}
	newLeftSeps := append(append([][]byte(nil), li.seps...), parentSep)
	newLeftChildren := append(append([]uint64(nil), li.children...), ri.children[0])
	newRightSeps := append([][]byte(nil), ri.seps[1:]...)
	newRightChildren := append([]uint64(nil), ri.children[1:]...)
	newRightAddr, werr := t.writeInner(w, &innerNode{seq: t.nextSeq(), seps: newRightSeps, children: newRightChildren})
	if werr != nil {
		return nil, nil, werr
	}
	newLeftAddr, werr := t.writeInner(w, &innerNode{seq: t.nextSeq(), seps: newLeftSeps, children: newLeftChildren})
	if werr != nil {
		return nil, nil, werr
	}
	t.free(w, leftAddr, lsize)
	t.free(w, rightAddr, rsize)
	return &pair{newLeftAddr, newRightAddr}, ri.seps[0], nil
}

func (t *Tree) tryBorrowLeft(w writer, leftAddr, rightAddr uint64, parentSep []byte) (*pair, []byte, error) {
	ll, li, lsize, err := t.readNode(w, leftAddr)
	if err != nil {
		return nil, nil, err
	}
	rl, ri, rsize, err := t.readNode(w, rightAddr)
	if err != nil {
		return nil, nil, err
	}

	if ll != nil {
		if len(ll.entries) <= t.minLeaf {
			return nil, nil, nil
		}
		borrowed := ll.entries[len(ll.entries)-1]
		newLeftEntries := append([]entry(nil), ll.entries[:len(ll.entries)-1]...)
		newRightEntries := append([]entry{borrowed}, rl.entries...)
		newRight := &leafNode{seq: t.nextSeq(), entries: newRightEntries, next: rl.next}
		newRightAddr, werr := t.writeLeaf(w, newRight)
		if werr != nil {
			return nil, nil, werr
		}
		newLeft := &leafNode{seq: t.nextSeq(), entries: newLeftEntries, next: newRightAddr}
		newLeftAddr, werr := t.writeLeaf(w, newLeft)
		if werr != nil {
			return nil, nil, werr
		}
		t.free(w, leftAddr, lsize)
		t.free(w, rightAddr, rsize)
		return &pair{newLeftAddr, newRightAddr}, copyBytes(borrowed.key), nil
	}

	if len(li.seps) <= t.minInner {
		return nil, nil, nil
	}
	lastSep := li.seps[len(li.seps)-1]
	lastChild := li.children[len(li.children)-1]
	newLeftSeps := append([][]byte(nil), li.seps[:len(li.seps)-1]...)
	newLeftChildren := append([]uint64(nil), li.children[:len(li.children)-1]...)
	newRightSeps := append([][]byte{parentSep}, ri.seps...)
	newRightChildren := append([]uint64{lastChild}, ri.children...)
	newLeftAddr, werr := t.writeInner(w, &innerNode{seq: t.nextSeq(), seps: newLeftSeps, children: newLeftChildren})
	if werr != nil {
		return nil, nil, werr
	}
	newRightAddr, werr := t.writeInner(w, &innerNode{seq: t.nextSeq(), seps: newRightSeps, children: newRightChildren})
	if werr != nil {
		return nil, nil, werr
	}
	t.free(w, leftAddr, lsize)
	t.free(w, rightAddr, rsize)
	return &pair{newLeftAddr, newRightAddr}, lastSep, nil
}

func (t *Tree) mergeChildren(w writer, leftAddr, rightAddr uint64, parentSep []byte) (uint64, error) {
	ll, li, lsize, err := t.readNode(w, leftAddr)
	if err != nil {
		return 0, err
	}
	rl, ri, rsize, err := t.readNode(w, rightAddr)
	if err != nil {
		return 0, err
	}
	var mergedAddr uint64
	if ll != nil {
		merged := &leafNode{seq: t.nextSeq(), entries: append(append([]entry(nil), ll.entries...), rl.entries...), next: rl.next}
		a, werr := t.writeLeaf(w, merged)
		if werr != nil {
			return 0, werr
		}
		mergedAddr = a
	} else {
		seps := append(append(append([][]byte(nil), li.seps...), parentSep), ri.seps...)
		children := append(append([]uint64(nil), li.children...), ri.children...)
		a, werr := t.writeInner(w, &innerNode{seq: t.nextSeq(), seps: seps, children: children})
		if werr != nil {
			return 0, werr
		}
		mergedAddr = a
	}
	t.free(w, leftAddr, lsize)
	t.free(w, rightAddr, rsize)
	return mergedAddr, nil
}

// remove descends from addr, removing key if present and rebalancing
// (borrow then merge) any node that underflows below its minimum
// occupancy on the way back up (spec §4.3 Remove).
func (t *Tree) remove(w writer, addr uint64, key []byte) (newAddr uint64, found bool, underflow bool, err error) {
	leaf, inner, size, rerr := t.readNode(w, addr)
	if rerr != nil {
		return 0, false, false, rerr
	}

	if leaf != nil {
		idx, ok := t.searchLeaf(leaf, key)
		if !ok {
			return addr, false, false, nil
		}
		newEntries := append(append([]entry(nil), leaf.entries[:idx]...), leaf.entries[idx+1:]...)
		n := &leafNode{seq: t.nextSeq(), entries: newEntries, next: leaf.next}
		a, werr := t.writeLeaf(w, n)
		if werr != nil {
			return 0, false, false, werr
		}
		t.free(w, addr, size)
		return a, true, len(newEntries) < t.minLeaf, nil
	}

	i := t.chooseChild(inner, key)
	newChildAddr, found, childUnderflow, rerr2 := t.remove(w, inner.children[i], key)
	if rerr2 != nil {
		return 0, false, false, rerr2
	}
	if !found {
		return addr, false, false, nil
	}

	newChildren := append([]uint64(nil), inner.children...)
	newSeps := append([][]byte(nil), inner.seps...)
	newChildren[i] = newChildAddr

	if !childUnderflow {
		n := &innerNode{seq: t.nextSeq(), seps: newSeps, children: newChildren}
		a, werr := t.writeInner(w, n)
		if werr != nil {
			return 0, false, false, werr
		}
		t.free(w, addr, size)
		return a, true, false, nil
	}

	switch {
	case i+1 < len(newChildren):
		p, newSep, berr := t.tryBorrowRight(w, newChildren[i], newChildren[i+1], newSeps[i])
		if berr != nil {
			return 0, false, false, berr
		}
		if p != nil {
			newChildren[i], newChildren[i+1] = p.leftAddr, p.rightAddr
			newSeps[i] = newSep
			break
		}
		mergedAddr, merr := t.mergeChildren(w, newChildren[i], newChildren[i+1], newSeps[i])
		if merr != nil {
			return 0, false, false, merr
		}
		newChildren = append(append([]uint64(nil), newChildren[:i]...), append([]uint64{mergedAddr}, newChildren[i+2:]...)...)
		newSeps = append(append([][]byte(nil), newSeps[:i]...), newSeps[i+1:]...)

	case i > 0:
		p, newSep, berr := t.tryBorrowLeft(w, newChildren[i-1], newChildren[i], newSeps[i-1])
		if berr != nil {
			return 0, false, false, berr
		}
		if p != nil {
			newChildren[i-1], newChildren[i] = p.leftAddr, p.rightAddr
			newSeps[i-1] = newSep
			break
		}
		mergedAddr, merr := t.mergeChildren(w, newChildren[i-1], newChildren[i], newSeps[i-1])
		if merr != nil {
			return 0, false, false, merr
		}
		newChildren = append(append([]uint64(nil), newChildren[:i-1]...), append([]uint64{mergedAddr}, newChildren[i+1:]...)...)
		newSeps = append(append([][]byte(nil), newSeps[:i-1]...), newSeps[i:]...)
	}

	n := &innerNode{seq: t.nextSeq(), seps: newSeps, children: newChildren}
	a, werr := t.writeInner(w, n)
	if werr != nil {
		return 0, false, false, werr
	}
	t.free(w, addr, size)
	return a, true, len(newSeps) < t.minInner, nil
}

// Remove deletes key, returning the new root/count to stage, or
// status.NotFound (with root/count unchanged) if key was absent.
func (t *Tree) Remove(w writer, root, count uint64, key []byte) (newRoot, newCount uint64, st status.Status) {
	if root == 0 {
		return root, count, status.NotFound
	}
	newAddr, found, _, err := t.remove(w, root, key)
	if err != nil {
		if errors.Is(err, ErrOutOfMemory) {
			return root, count, status.OutOfMemory
		}
		return root, count, status.Failed
	}
	if !found {
		return root, count, status.NotFound
	}

	finalRoot := newAddr
	if finalRoot != 0 {
		if _, inner, sz, rerr := t.readNode(w, finalRoot); rerr == nil && inner != nil && len(inner.children) == 1 {
			t.free(w, finalRoot, sz)
			finalRoot = inner.children[0]
		}
	}
	if finalRoot != 0 {
		if leaf, _, sz, rerr := t.readNode(w, finalRoot); rerr == nil && leaf != nil && len(leaf.entries) == 0 {
			t.free(w, finalRoot, sz)
			finalRoot = 0
		}
	}
	return finalRoot, count - 1, status.OK
}
