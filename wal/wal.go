// Package wal is the write-ahead log backing pool.Txn's commit path,
// adapted from the teacher's wal/entry.go and wal/file_manager.go: a
// fixed-header entry format with a CRC32 integrity checksum, an
// append-only file manager, and replay-based recovery. Unlike the
// teacher's multi-file rotating WAL (sized for a networked server under
// sustained write load), this is a single append-only segment per pool,
// truncated at each successful checkpoint — sized for the single-writer,
// single-pool-file model spec §5 requires.
package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// ErrCorruptEntry is returned when a WAL entry's checksum does not match
// its payload, meaning the entry was torn by a crash mid-write.
var ErrCorruptEntry = errors.New("wal: checksum mismatch, torn entry")

// Write is one staged byte-range write captured by a committed
// transaction, replayed verbatim during recovery.
type Write struct {
	Addr uint64
	Data []byte
}

// Entry is a single durable transaction record: the full write-set of a
// committed pool.Txn plus the header fields it changed.
type Entry struct {
	TxnID    uint64
	Writes   []Write
	HasRoot  bool
	Root     uint64
	HasCount bool
	Count    uint64
	FreePtr  uint64
}

// entryHeaderSize: TxnID(8) NumWrites(4) HasRoot(1) Root(8) HasCount(1)
// Count(8) FreePtr(8) PayloadLen(4) Checksum(4), adapted from
// wal/entry.go's WALEntryHeader layout.
const entryHeaderSize = 8 + 4 + 1 + 8 + 1 + 8 + 8 + 4 + 4

// Serialize encodes the entry as a checksummed binary record, grounded
// on wal/entry.go's Serialize (header-then-payload, checksum over the
// whole record with the checksum field itself zeroed).
func (e Entry) Serialize() []byte {
	payload := e.serializePayload()

	buf := make([]byte, entryHeaderSize+len(payload))
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], e.TxnID)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Writes)))
	off += 4
	if e.HasRoot {
		buf[off] = 1
	}
	off++
	binary.LittleEndian.PutUint64(buf[off:], e.Root)
	off += 8
	if e.HasCount {
		buf[off] = 1
	}
	off++
	binary.LittleEndian.PutUint64(buf[off:], e.Count)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.FreePtr)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(payload)))
	off += 4
	// checksum field left zero for the checksum computation below
	off += 4
	copy(buf[entryHeaderSize:], payload)

	sum := crc32.ChecksumIEEE(buf)
	binary.LittleEndian.PutUint32(buf[entryHeaderSize-4:], sum)
	return buf
}

func (e Entry) serializePayload() []byte {
	size := 0
	for _, w := range e.Writes {
		size += 8 + 4 + len(w.Data)
	}
	buf := make([]byte, size)
	off := 0
	for _, w := range e.Writes {
		binary.LittleEndian.PutUint64(buf[off:], w.Addr)
		off += 8
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(w.Data)))
		off += 4
		copy(buf[off:], w.Data)
		off += len(w.Data)
	}
	return buf
}

// deserializeEntry parses one entry starting at the given buffer; it
// returns the entry, bytes consumed, and an error if the checksum or
// lengths don't check out (a torn write at the tail of the log, which
// recovery treats as "this entry never committed" rather than fatal).
func deserializeEntry(buf []byte) (Entry, int, error) {
	if len(buf) < entryHeaderSize {
		return Entry{}, 0, io.ErrUnexpectedEOF
	}
	var e Entry
	off := 0
	e.TxnID = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	numWrites := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.HasRoot = buf[off] != 0
	off++
	e.Root = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.HasCount = buf[off] != 0
	off++
	e.Count = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.FreePtr = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	payloadLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	wantSum := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	total := entryHeaderSize + int(payloadLen)
	if len(buf) < total {
		return Entry{}, 0, io.ErrUnexpectedEOF
	}

	check := make([]byte, total)
	copy(check, buf[:total])
	binary.LittleEndian.PutUint32(check[entryHeaderSize-4:], 0)
	if crc32.ChecksumIEEE(check) != wantSum {
		return Entry{}, 0, ErrCorruptEntry
	}

	payload := buf[entryHeaderSize:total]
	e.Writes = make([]Write, 0, numWrites)
	for i := uint32(0); i < numWrites; i++ {
		if len(payload) < 12 {
			return Entry{}, 0, io.ErrUnexpectedEOF
		}
		addr := binary.LittleEndian.Uint64(payload)
		dlen := binary.LittleEndian.Uint32(payload[8:])
		payload = payload[12:]
		if uint32(len(payload)) < dlen {
			return Entry{}, 0, io.ErrUnexpectedEOF
		}
		data := make([]byte, dlen)
		copy(data, payload[:dlen])
		payload = payload[dlen:]
		e.Writes = append(e.Writes, Write{Addr: addr, Data: data})
	}
	return e, total, nil
}

// Log is an append-only on-disk journal of committed Entry records.
type Log struct {
	path string
	f    *os.File
}

// Open opens (creating if necessary) the WAL file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &Log{path: path, f: f}, nil
}

// Append serializes and fsyncs entry, making it durable before returning.
func (l *Log) Append(e Entry) error {
	buf := e.Serialize()
	if _, err := l.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := l.f.Write(buf); err != nil {
		return fmt.Errorf("wal: write: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// ReadAll replays every well-formed entry currently in the log, in
// commit order. A checksum failure (partial write at the tail from a
// mid-append crash) stops replay at that point rather than erroring,
// matching "next open resumes from the last committed transaction"
// (spec §3 Lifecycle).
func (l *Log) ReadAll() ([]Entry, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(bufio.NewReader(l.f))
	if err != nil {
		return nil, fmt.Errorf("wal: read: %w", err)
	}
	var entries []Entry
	for len(raw) > 0 {
		e, n, err := deserializeEntry(raw)
		if err != nil {
			break
		}
		entries = append(entries, e)
		raw = raw[n:]
	}
	return entries, nil
}

// Reset truncates the log to empty, called after a checkpoint confirms
// every entry in it is already durable in the pool's data file.
func (l *Log) Reset() error {
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	_, err := l.f.Seek(0, io.SeekStart)
	return err
}

// Close closes the underlying file.
func (l *Log) Close() error { return l.f.Close() }
