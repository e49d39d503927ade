// Package btree is the sorted engine's structural core (spec §4.3): an
// ordered, persistent B+-tree over byte-string keys, copy-on-write at
// node granularity so a transaction either durably replaces every node
// on a mutated path or none of them. Grounded on the teacher's
// storage/storage_engine.go (page-oriented node layout) and
// transaction/transaction.go (the staged-write/commit discipline it
// borrows pool.Txn from), generalized from the teacher's fixed-width
// page records to the spec's variable-length keys and values.
package btree

import (
	"encoding/binary"
	"fmt"

	"kvstore/integrity"
)

// nodeKind tags an encoded node as a leaf or an inner node.
type nodeKind byte

const (
	kindLeaf  nodeKind = 0
	kindInner nodeKind = 1
)

const (
	lengthPrefixSize = 4
	checksumSize     = 4
	nodeHeaderSize   = lengthPrefixSize + 1 + 8 // length + kind + seq
)

var checksums = integrity.NewChecksumEngine()

// byteReader is satisfied by both *pool.Pool and *pool.Txn: read length
// bytes at addr from the last-committed-or-staged view.
type byteReader interface {
	Read(addr uint64, length int) []byte
}

// entry is one (key, value) pair held in a leaf.
type entry struct {
	key   []byte
	value []byte
}

// leafNode is spec §3's leaf: an ordered, fixed-capacity bucket of
// entries linked into the chain via next.
type leafNode struct {
	seq     uint64
	entries []entry
	next    uint64 // pool address of the next leaf in chain order, 0 = none
}

// innerNode is spec §3's inner node: up to DEGREE-1 separators and up to
// DEGREE children. children[i] holds keys >= seps[i-1] (no lower bound
// when i==0) and < seps[i] (no upper bound for the last child).
type innerNode struct {
	seq      uint64
	seps     [][]byte
	children []uint64
}

// readNode fetches and decodes the node at addr, verifying its
// checksum, and reports its total encoded size so the caller can Free
// it correctly when replacing it (copy-on-write). It returns
// (leaf, nil, size, nil) or (nil, inner, size, nil) depending on kind.
func readNode(r byteReader, addr uint64) (*leafNode, *innerNode, uint64, error) {
	lenBuf := r.Read(addr, lengthPrefixSize)
	total := binary.LittleEndian.Uint32(lenBuf)
	full := r.Read(addr, int(total))
	if len(full) < nodeHeaderSize+checksumSize {
		return nil, nil, 0, fmt.Errorf("btree: node at %#x too short (%d bytes)", addr, len(full))
	}

	body := full[:len(full)-checksumSize]
	wantSum := binary.LittleEndian.Uint32(full[len(full)-checksumSize:])
	if err := checksums.VerifyAt(addr, body, wantSum); err != nil {
		return nil, nil, 0, err
	}

	kind := nodeKind(full[lengthPrefixSize])
	seq := binary.LittleEndian.Uint64(full[lengthPrefixSize+1:])
	payload := full[nodeHeaderSize : len(full)-checksumSize]

	switch kind {
	case kindLeaf:
		n, err := decodeLeafPayload(seq, payload)
		return n, nil, uint64(total), err
	case kindInner:
		n, err := decodeInnerPayload(seq, payload)
		return nil, n, uint64(total), err
	default:
		return nil, nil, 0, fmt.Errorf("btree: node at %#x has unknown kind %d", addr, kind)
	}
}

// NodeSize reports the on-disk encoded length of the node beginning at
// addr, verifying its checksum. It decodes the node through readNode and
// discards the decoded entries. Exported for engine.OpenSorted's
// free-list reconstruction (see pool.Pool.RebuildFreeList), which needs
// to step across the arena one node at a time.
func NodeSize(r byteReader, addr uint64) (uint64, bool) {
	_, _, size, err := readNode(r, addr)
	if err != nil {
		return 0, false
	}
	return size, true
}

// LiveAddrs walks the persisted node graph reachable from root and
// returns the set of every node address it visits, leaf and inner
// alike. root == 0 denotes an empty tree (no live addresses). This is
// a package-level function rather than a Tree method because
// engine.OpenSorted needs it before a Tree/NodeCache exists for the
// pool being opened, and the walk needs nothing from Tree beyond the
// node format itself.
func LiveAddrs(r byteReader, root uint64) (map[uint64]bool, error) {
	live := make(map[uint64]bool)
	if root == 0 {
		return live, nil
	}
	var walk func(addr uint64) error
	walk = func(addr uint64) error {
		if live[addr] {
			return nil
		}
		leaf, inner, _, err := readNode(r, addr)
		if err != nil {
			return err
		}
		live[addr] = true
		if leaf != nil {
			return nil
		}
		for _, child := range inner.children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return live, nil
}

func encodeLeaf(n *leafNode) []byte {
	payload := encodeLeafPayload(n)
	return finish(kindLeaf, n.seq, payload)
}

func encodeInner(n *innerNode) []byte {
	payload := encodeInnerPayload(n)
	return finish(kindInner, n.seq, payload)
}

func finish(kind nodeKind, seq uint64, payload []byte) []byte {
	total := nodeHeaderSize + len(payload) + checksumSize
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf, uint32(total))
	buf[lengthPrefixSize] = byte(kind)
	binary.LittleEndian.PutUint64(buf[lengthPrefixSize+1:], seq)
	copy(buf[nodeHeaderSize:], payload)

	body := buf[:total-checksumSize]
	sum := checksums.Calculate(body)
	binary.LittleEndian.PutUint32(buf[total-checksumSize:], sum)
	return buf
}

func encodeLeafPayload(n *leafNode) []byte {
	size := 8 // next
	for _, e := range n.entries {
		size += 4 + len(e.key) + 4 + len(e.value)
	}
	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], n.next)
	off += 8
	for _, e := range n.entries {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.key)))
		off += 4
		copy(buf[off:], e.key)
		off += len(e.key)
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.value)))
		off += 4
		copy(buf[off:], e.value)
		off += len(e.value)
	}
	return buf
}

func decodeLeafPayload(seq uint64, b []byte) (*leafNode, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("btree: truncated leaf payload")
	}
	n := &leafNode{seq: seq}
	n.next = binary.LittleEndian.Uint64(b)
	b = b[8:]
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("btree: truncated leaf entry")
		}
		klen := binary.LittleEndian.Uint32(b)
		b = b[4:]
		if uint32(len(b)) < klen+4 {
			return nil, fmt.Errorf("btree: truncated leaf key")
		}
		key := append([]byte(nil), b[:klen]...)
		b = b[klen:]
		vlen := binary.LittleEndian.Uint32(b)
		b = b[4:]
		if uint32(len(b)) < vlen {
			return nil, fmt.Errorf("btree: truncated leaf value")
		}
		value := append([]byte(nil), b[:vlen]...)
		b = b[vlen:]
		n.entries = append(n.entries, entry{key: key, value: value})
	}
	return n, nil
}

func encodeInnerPayload(n *innerNode) []byte {
	size := 4 // num children
	for _, s := range n.seps {
		size += 4 + len(s)
	}
	size += 8 * len(n.children)
	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(n.children)))
	off += 4
	for _, s := range n.seps {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
		off += 4
		copy(buf[off:], s)
		off += len(s)
	}
	for _, c := range n.children {
		binary.LittleEndian.PutUint64(buf[off:], c)
		off += 8
	}
	return buf
}

func decodeInnerPayload(seq uint64, b []byte) (*innerNode, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("btree: truncated inner payload")
	}
	n := &innerNode{seq: seq}
	numChildren := binary.LittleEndian.Uint32(b)
	b = b[4:]
	for i := uint32(0); i < numChildren-1; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("btree: truncated separator")
		}
		slen := binary.LittleEndian.Uint32(b)
		b = b[4:]
		if uint32(len(b)) < slen {
			return nil, fmt.Errorf("btree: truncated separator bytes")
		}
		sep := append([]byte(nil), b[:slen]...)
		b = b[slen:]
		n.seps = append(n.seps, sep)
	}
	if uint32(len(b)) < numChildren*8 {
		return nil, fmt.Errorf("btree: truncated children")
	}
	for i := uint32(0); i < numChildren; i++ {
		n.children = append(n.children, binary.LittleEndian.Uint64(b))
		b = b[8:]
	}
	return n, nil
}
