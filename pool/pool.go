// Package pool is the reference implementation of spec §1's "external
// pool library": a byte-addressable region of a file mapped into the
// process's address space, with atomic allocation and transactional
// scope (begin/commit/abort), and a root pointer slot. spec.md treats
// this as an out-of-scope black box; SPEC_FULL.md §10.1 explains why we
// still ship one, grounded on the teacher's wal/durability/checkpoint
// stack rather than its cgo connection-pool (pool/pool.go originally
// wrapped a Rust FFI connection pool — a different "pool" concept
// entirely, superseded here).
package pool

import (
	"fmt"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"kvstore/durability"
	"kvstore/logging"
	"kvstore/wal"
)

// Options configure a pool. Size, Degree, KeyMax and ValueMax are only
// consulted when the backing file does not yet exist, or ForceCreate is
// set (spec §4.1's path/size/force_create options); on an existing pool
// ComparatorName is checked against the persisted name.
type Options struct {
	Path           string
	Size           uint64 // bytes; ignored if the file already exists
	ForceCreate    bool
	Degree         uint32
	KeyMax         uint64
	ValueMax       uint64
	ComparatorName string
	SyncPolicy     durability.Policy
	Logger         *zap.Logger
}

// Pool is a single open, memory-mapped pool file plus its WAL.
type Pool struct {
	path string

	file *os.File
	mm   mmap.MMap // mm[0:] is the full mapped region, including the header
	lock *flock.Flock

	header    header
	allocator *Allocator

	walLog *wal.Log
	flush  *durability.FlushManager

	// mu serializes writers and lets readers run concurrently, matching
	// spec §5: "a single mutex... allow concurrent readers via a
	// readers-writer discipline". There is only ever one Pool per
	// process per file (enforced by lock), so this is the entirety of
	// the engine's internal concurrency control; the teacher's
	// transaction/ package's multi-resource 2PL and deadlock detector
	// assumed multiple concurrent writers across independent resources,
	// which spec's single-writer model never produces (see DESIGN.md).
	mu sync.RWMutex

	log    *zap.Logger
	closed bool

	commitSeq uint64 // monotonically increasing; checkpoint's substitute for an LSN
}

// Open opens an existing pool, or creates one if absent (or ForceCreate
// is set). comparatorName is validated against the persisted name on an
// existing pool; mismatch returns a *ComparatorMismatchError without mutating
// the file.
func Open(opts Options) (*Pool, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	fl := flock.New(opts.Path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("pool: acquiring lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("pool: %s is already open by another process", opts.Path)
	}

	_, statErr := os.Stat(opts.Path)
	exists := statErr == nil
	var p *Pool
	if !exists || opts.ForceCreate {
		log.Info("creating pool", zap.String("path", opts.Path), zap.Uint64("size", opts.Size))
		p, err = create(opts)
	} else {
		log.Info("opening existing pool", zap.String("path", opts.Path))
		p, err = openExisting(opts)
	}
	if err != nil {
		fl.Unlock()
		log.Error("pool open failed", zap.Error(err))
		return nil, err
	}
	p.lock = fl
	p.log = log

	if err := p.recover(); err != nil {
		p.mm.Unmap()
		p.file.Close()
		p.walLog.Close()
		fl.Unlock()
		log.Error("wal recovery failed", zap.Error(err))
		return nil, err
	}

	policy := opts.SyncPolicy
	if policy == (durability.Policy{}) {
		policy = durability.DefaultPolicy()
	}
	p.flush = durability.NewFlushManager(policy, p)
	return p, nil
}

func create(opts Options) (*Pool, error) {
	if opts.Size < headerSize {
		return nil, fmt.Errorf("pool: size %d too small for header (%d)", opts.Size, headerSize)
	}
	f, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pool: create %s: %w", opts.Path, err)
	}
	if err := f.Truncate(int64(opts.Size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("pool: truncate: %w", err)
	}
	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pool: mmap: %w", err)
	}

	h := header{
		Degree:         opts.Degree,
		KeyMax:         opts.KeyMax,
		ValueMax:       opts.ValueMax,
		ElementCount:   0,
		ComparatorName: opts.ComparatorName,
		Root:           0,
		FreePtr:        headerSize,
	}
	copy(mm, encodeHeader(h))
	if err := mm.Flush(); err != nil {
		mm.Unmap()
		f.Close()
		return nil, fmt.Errorf("pool: initial flush: %w", err)
	}

	wl, err := wal.Open(opts.Path + ".wal")
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}

	return &Pool{
		path:      opts.Path,
		file:      f,
		mm:        mm,
		header:    h,
		allocator: newAllocator(headerSize, opts.Size, h.FreePtr),
		walLog:    wl,
	}, nil
}

func openExisting(opts Options) (*Pool, error) {
	f, err := os.OpenFile(opts.Path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pool: open %s: %w", opts.Path, err)
	}
	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pool: mmap: %w", err)
	}
	h, err := decodeHeader(mm)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}
	if opts.ComparatorName != "" && h.ComparatorName != opts.ComparatorName {
		mm.Unmap()
		f.Close()
		return nil, &ComparatorMismatchError{Expected: h.ComparatorName, Got: opts.ComparatorName}
	}

	wl, err := wal.Open(opts.Path + ".wal")
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		mm.Unmap()
		f.Close()
		wl.Close()
		return nil, err
	}

	return &Pool{
		path:      opts.Path,
		file:      f,
		mm:        mm,
		header:    h,
		allocator: newAllocator(headerSize, uint64(info.Size()), h.FreePtr),
		walLog:    wl,
	}, nil
}

// ComparatorMismatchError is returned when the comparator name supplied
// at open does not match the name persisted in the pool header
// (spec §4.2, §8 invariant 8).
type ComparatorMismatchError struct {
	Expected string
	Got      string
}

func (e *ComparatorMismatchError) Error() string {
	return fmt.Sprintf("pool: comparator mismatch: pool was created with %q, opened with %q", e.Expected, e.Got)
}

// recover replays any WAL entries left over from an unclean shutdown.
// Replay is idempotent (whole-node byte-range writes), so re-applying
// already-durable entries is harmless (spec §8 invariant 7).
func (p *Pool) recover() error {
	entries, err := p.walLog.ReadAll()
	if err != nil {
		return fmt.Errorf("pool: wal recovery: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	p.log.Info("replaying wal entries", zap.Int("count", len(entries)))
	for _, e := range entries {
		for _, w := range e.Writes {
			copy(p.mm[w.Addr:w.Addr+uint64(len(w.Data))], w.Data)
		}
		if e.HasRoot {
			p.header.Root = e.Root
		}
		if e.HasCount {
			p.header.ElementCount = e.Count
		}
		p.header.FreePtr = e.FreePtr
	}
	copy(p.mm[:headerSize], encodeHeader(p.header))
	if err := p.mm.Flush(); err != nil {
		return fmt.Errorf("pool: post-recovery flush: %w", err)
	}
	p.allocator.freePtr = p.header.FreePtr
	return p.walLog.Reset()
}

// Begin starts a new transaction. Callers must hold the engine's own
// writer discipline (e.g. via Lock/Unlock) for the duration; Begin
// itself does not block.
func (p *Pool) Begin() *Txn { return newTxn(p) }

// Lock acquires the pool's writer lock. Call before Begin for a mutating
// operation; Unlock after Commit or Abort.
func (p *Pool) Lock() { p.mu.Lock() }

// Unlock releases the pool's writer lock.
func (p *Pool) Unlock() { p.mu.Unlock() }

// RLock acquires the pool's reader lock for the duration of a read-only
// operation or range scan (spec §5: "while inside a range call, the
// engine holds at least a read lock").
func (p *Pool) RLock() { p.mu.RLock() }

// RUnlock releases the pool's reader lock.
func (p *Pool) RUnlock() { p.mu.RUnlock() }

// Commit durably applies all of txn's staged writes, new root, and new
// element count in one WAL record, then applies them to the mapped
// region and asks the flush manager whether this is the moment to msync
// and truncate the WAL (spec §5's "one pool transaction" discipline).
func (p *Pool) Commit(txn *Txn) error {
	if txn.done {
		return fmt.Errorf("pool: transaction already committed or aborted")
	}
	txn.done = true

	p.commitSeq++
	entry := walEntryFor(txn)
	entry.TxnID = p.commitSeq
	if err := p.walLog.Append(entry); err != nil {
		return fmt.Errorf("pool: wal append: %w", err)
	}

	for _, addr := range txn.order {
		data := txn.writes[addr]
		copy(p.mm[addr:addr+uint64(len(data))], data)
	}
	if txn.newRoot != nil {
		p.header.Root = *txn.newRoot
	}
	if txn.newCount != nil {
		p.header.ElementCount = *txn.newCount
	}
	p.header.FreePtr = p.allocator.freePtr
	copy(p.mm[:headerSize], encodeHeader(p.header))

	return p.flush.AfterCommit()
}

func walEntryFor(txn *Txn) wal.Entry {
	e := wal.Entry{Writes: make([]wal.Write, 0, len(txn.order)), FreePtr: txn.p.allocator.freePtr}
	for _, addr := range txn.order {
		e.Writes = append(e.Writes, wal.Write{Addr: addr, Data: txn.writes[addr]})
	}
	if txn.newRoot != nil {
		e.HasRoot = true
		e.Root = *txn.newRoot
	}
	if txn.newCount != nil {
		e.HasCount = true
		e.Count = *txn.newCount
	}
	return e
}

// Abort discards txn's staged writes and restores the allocator to its
// pre-transaction state; no durable state changes (spec §5, §7).
func (p *Pool) Abort(txn *Txn) {
	if txn.done {
		return
	}
	txn.done = true
	p.allocator.restore(txn.allocSeq)
}

// Flush msyncs the mapped region and truncates the WAL; implements
// durability.Flusher so FlushManager can call it directly.
func (p *Pool) Flush() error {
	if err := p.mm.Flush(); err != nil {
		return fmt.Errorf("pool: msync: %w", err)
	}
	return p.walLog.Reset()
}

// readArena returns a copy of length bytes at addr from the last
// committed state of the mapped region.
func (p *Pool) readArena(addr uint64, length int) []byte {
	out := make([]byte, length)
	copy(out, p.mm[addr:addr+uint64(length)])
	return out
}

// Root returns the last-committed root address (0 = empty tree).
func (p *Pool) Root() uint64 { return p.header.Root }

// ElementCount returns the last-committed element count.
func (p *Pool) ElementCount() uint64 { return p.header.ElementCount }

// ComparatorName returns the comparator name persisted in the header.
func (p *Pool) ComparatorName() string { return p.header.ComparatorName }

// Degree, KeyMax, ValueMax expose the compile-time-ish parameters
// persisted at first open.
func (p *Pool) Degree() uint32    { return p.header.Degree }
func (p *Pool) KeyMax() uint64    { return p.header.KeyMax }
func (p *Pool) ValueMax() uint64  { return p.header.ValueMax }
func (p *Pool) Path() string      { return p.path }

// Read exposes a read-only view of length bytes at addr for callers
// (the btree package) outside of a transaction.
func (p *Pool) Read(addr uint64, length int) []byte { return p.readArena(addr, length) }

// RebuildFreeList reconstructs the allocator's size-class free lists by
// scanning the arena between arenaBase and the current high-water
// mark. The allocator itself has no notion of node formats, so it
// cannot tell live blocks from leaked ones on its own; callers that do
// understand the arena's contents (engine.OpenSorted, which owns both
// this Pool and the btree.Tree built on top of it) pass scan and
// isLive closures built from that knowledge. Must run after Open's WAL
// replay has settled header.FreePtr and header.Root, which is why this
// is exposed as a separate call rather than folded into Open itself:
// Open has no access to a btree.Tree to compute isLive from.
func (p *Pool) RebuildFreeList(scan func(addr uint64) (uint64, bool), isLive func(addr uint64) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocator.reclaim(scan, isLive)
}

// CommitSeq returns the number of transactions committed so far, used by
// checkpoint.Manager as a substitute for pmemkv's LSN: it identifies how
// much of the WAL a given checkpoint has absorbed.
func (p *Pool) CommitSeq() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.commitSeq
}

// Snapshot returns a point-in-time copy of the entire mapped region
// (header plus arena), for checkpoint.Manager to archive. Taken under
// the writer lock so it never observes a partially-applied commit.
func (p *Pool) Snapshot() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.mm))
	copy(out, p.mm)
	return out
}

// ArchiveWAL snappy-compresses the WAL's current content to dstPath,
// for checkpoint.Manager to call just before TruncateWAL discards the
// entries a checkpoint has already absorbed into its snapshot.
func (p *Pool) ArchiveWAL(dstPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.walLog.Archive(dstPath)
}

// TruncateWAL discards WAL entries preceding a successful checkpoint;
// the checkpoint file itself is now the durable baseline. Must be
// called with a Snapshot taken at the same commitSeq, or entries
// between the two would be lost.
func (p *Pool) TruncateWAL() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.walLog.Reset()
}

// Close flushes pending state and releases the OS-level file handles.
// No durable state changes (spec §4.4: close "releases the pool handle
// but leaves durable state intact").
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var firstErr error
	if err := p.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.mm.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.walLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		p.log.Error("pool close failed", zap.Error(firstErr))
	} else {
		p.log.Info("pool closed", zap.String("path", p.path))
	}
	return firstErr
}
