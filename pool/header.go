package pool

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a kvstore pool file. Version gates the on-disk layout.
const (
	magic          uint64 = 0x4B56535453524554 // "KVSTSRET"
	currentVersion uint32 = 1

	maxComparatorNameLen = 255
	comparatorFieldLen   = 256 // 1-byte length prefix lives outside this, padded region is 256 bytes

	// headerSize is the fixed size, in bytes, of the region at offset 0
	// reserved for the tree header. Matches spec §6's field list:
	// magic(8) version(4) degree(4) keymax(8) valuemax(8) count(8)
	// comparator-name-length(1) comparator-name(256, padded) root(8),
	// plus an 8-byte allocator bump pointer so the arena allocator can
	// resume correctly across reopen (spec §6 lists the tree header
	// fields; the allocator's free pointer is private pool bookkeeping
	// appended after them, not part of the spec's documented fields).
	headerSize = 8 + 4 + 4 + 8 + 8 + 8 + 1 + comparatorFieldLen + 8 + 8
)

// header is the in-memory view of the pool's root object, described in
// spec §3 "Root pointer" and laid out on disk per spec §6. All multi-byte
// integers are native-endian on disk (pools are not portable across
// endiannesses, per spec); we fix little-endian here since that's the
// native order on every platform this module targets.
type header struct {
	Magic          uint64
	Version        uint32
	Degree         uint32
	KeyMax         uint64
	ValueMax       uint64
	ElementCount   uint64
	ComparatorName string
	Root           uint64 // 0 means null / empty tree
	FreePtr        uint64 // allocator bump pointer, private bookkeeping
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < headerSize {
		return header{}, fmt.Errorf("pool: header region too small: %d bytes", len(b))
	}
	var h header
	off := 0
	h.Magic = binary.LittleEndian.Uint64(b[off:])
	off += 8
	if h.Magic != magic {
		return header{}, fmt.Errorf("pool: bad magic %x, not a kvstore pool file", h.Magic)
	}
	h.Version = binary.LittleEndian.Uint32(b[off:])
	off += 4
	if h.Version != currentVersion {
		return header{}, fmt.Errorf("pool: unsupported version %d", h.Version)
	}
	h.Degree = binary.LittleEndian.Uint32(b[off:])
	off += 4
	h.KeyMax = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.ValueMax = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.ElementCount = binary.LittleEndian.Uint64(b[off:])
	off += 8
	nameLen := int(b[off])
	off++
	if nameLen > maxComparatorNameLen {
		return header{}, fmt.Errorf("pool: corrupt comparator name length %d", nameLen)
	}
	h.ComparatorName = string(b[off : off+nameLen])
	off += comparatorFieldLen
	h.Root = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.FreePtr = binary.LittleEndian.Uint64(b[off:])
	return h, nil
}

func encodeHeader(h header) []byte {
	if len(h.ComparatorName) > maxComparatorNameLen {
		panic("pool: comparator name exceeds 255 bytes")
	}
	b := make([]byte, headerSize)
	off := 0
	binary.LittleEndian.PutUint64(b[off:], magic)
	off += 8
	binary.LittleEndian.PutUint32(b[off:], currentVersion)
	off += 4
	binary.LittleEndian.PutUint32(b[off:], h.Degree)
	off += 4
	binary.LittleEndian.PutUint64(b[off:], h.KeyMax)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], h.ValueMax)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], h.ElementCount)
	off += 8
	b[off] = byte(len(h.ComparatorName))
	off++
	copy(b[off:off+comparatorFieldLen], h.ComparatorName)
	off += comparatorFieldLen
	binary.LittleEndian.PutUint64(b[off:], h.Root)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], h.FreePtr)
	return b
}
