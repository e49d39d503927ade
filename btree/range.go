package btree

// endpointKind distinguishes the two sentinel range endpoints from an
// explicit key, modeled as a variant type per spec §9's open question
// on MIN_KEY/MAX_KEY encoding rather than as reserved byte strings.
type endpointKind int

const (
	endKey endpointKind = iota
	endMin
	endMax
)

// Endpoint is one bound of a range query: either a caller-supplied key
// or one of the two sentinels meaning "below all keys" / "above all
// keys".
type Endpoint struct {
	kind endpointKind
	key  []byte
}

// MinKey is the sentinel less than every possible key.
func MinKey() Endpoint { return Endpoint{kind: endMin} }

// MaxKey is the sentinel greater than every possible key.
func MaxKey() Endpoint { return Endpoint{kind: endMax} }

// Key wraps an explicit key as a range endpoint.
func Key(k []byte) Endpoint { return Endpoint{kind: endKey, key: k} }

// RangeFunc is the callback delivered one matching entry at a time
// (spec §4.3 Callback delivery); returning true stops iteration early
// (status.StoppedByCB at the call site).
type RangeFunc func(key, value []byte) (stop bool)

func (t *Tree) satisfiesLower(key []byte, lo Endpoint) bool {
	switch lo.kind {
	case endMin:
		return true
	case endMax:
		return false
	default:
		return t.cmp.Compare(key, lo.key) > 0
	}
}

func (t *Tree) satisfiesUpper(key []byte, hi Endpoint) bool {
	switch hi.kind {
	case endMax:
		return true
	case endMin:
		return false
	default:
		return t.cmp.Compare(key, hi.key) < 0
	}
}

// rangeEmpty implements "if compare(k1,k2) >= 0, the range is empty; no
// error" (spec §4.3), generalized to the sentinel endpoints.
func (t *Tree) rangeEmpty(lo, hi Endpoint) bool {
	if lo.kind == endMax || hi.kind == endMin {
		return true
	}
	if lo.kind == endMin || hi.kind == endMax {
		return false
	}
	return t.cmp.Compare(lo.key, hi.key) >= 0
}

// firstLeafAddr descends to the leaf that would hold the first entry
// qualifying for lo, sharing Get's descent rule.
func (t *Tree) firstLeafAddr(r byteReader, root uint64, lo Endpoint) (uint64, error) {
	if root == 0 {
		return 0, nil
	}
	addr := root
	for {
		leaf, inner, _, err := t.readNode(r, addr)
		if err != nil {
			return 0, err
		}
		if leaf != nil {
			return addr, nil
		}
		if lo.kind == endMin {
			addr = inner.children[0]
			continue
		}
		addr = inner.children[t.chooseChild(inner, lo.key)]
	}
}

// Range walks the leaf chain from the first qualifying leaf, invoking
// fn for every entry strictly between lo and hi, in ascending order.
// count_* operations share this traversal by passing a callback that
// never stops and discarding the delivered values.
func (t *Tree) Range(r byteReader, root uint64, lo, hi Endpoint, fn RangeFunc) (visited int, stoppedByCB bool, err error) {
	if t.rangeEmpty(lo, hi) || root == 0 {
		return 0, false, nil
	}
	addr, err := t.firstLeafAddr(r, root, lo)
	if err != nil {
		return 0, false, err
	}
	for addr != 0 {
		leaf, _, _, rerr := t.readNode(r, addr)
		if rerr != nil {
			return visited, false, rerr
		}
		for _, e := range leaf.entries {
			if !t.satisfiesLower(e.key, lo) {
				continue
			}
			if !t.satisfiesUpper(e.key, hi) {
				return visited, false, nil
			}
			visited++
			if fn(e.key, e.value) {
				return visited, true, nil
			}
		}
		addr = leaf.next
	}
	return visited, false, nil
}

// Count returns the cardinality of the range without delivering values,
// sharing Range's traversal code per spec §4.3.
func (t *Tree) Count(r byteReader, root uint64, lo, hi Endpoint) (int, error) {
	n, _, err := t.Range(r, root, lo, hi, func(_, _ []byte) bool { return false })
	return n, err
}
