package pool

// Txn is the atomic scope spec §5 requires every durable mutation to run
// inside. Allocation is immediate (so split/merge code can reference the
// address of a node it just allocated), guarded by a snapshot that Abort
// restores; byte writes are staged in memory and only applied to the
// pool's mapped region at Commit, so a crash or panic before Commit never
// touches durable state.
type Txn struct {
	p        *Pool
	writes   map[uint64][]byte
	order    []uint64 // insertion order of writes, for deterministic WAL encoding
	allocSeq allocatorSnapshot
	newRoot  *uint64
	newCount *uint64
	done     bool
}

func newTxn(p *Pool) *Txn {
	return &Txn{
		p:        p,
		writes:   make(map[uint64][]byte),
		allocSeq: p.allocator.snapshot(),
	}
}

// Allocate reserves size bytes in the arena and returns their address.
// Returns ok=false on out-of-memory (spec §7: transaction aborts,
// structure unchanged — the caller is expected to Abort the txn).
func (t *Txn) Allocate(size uint64) (addr uint64, ok bool) {
	return t.p.allocator.allocate(size)
}

// Free returns addr (of the given size) to the allocator's free list.
func (t *Txn) Free(addr, size uint64) {
	t.p.allocator.free(addr, size)
}

// Write stages a byte-range write at addr, visible to Read within this
// transaction but not durable (or visible to other transactions, which
// cannot exist concurrently with a writer per spec §5) until Commit.
func (t *Txn) Write(addr uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	if _, exists := t.writes[addr]; !exists {
		t.order = append(t.order, addr)
	}
	t.writes[addr] = cp
}

// Read returns length bytes at addr, preferring this transaction's own
// staged writes over the pool's last-committed bytes.
func (t *Txn) Read(addr uint64, length int) []byte {
	if data, ok := t.writes[addr]; ok {
		out := make([]byte, length)
		copy(out, data)
		return out
	}
	return t.p.readArena(addr, length)
}

// SetRoot stages a new root pointer for the header, applied at Commit.
func (t *Txn) SetRoot(addr uint64) { t.newRoot = &addr }

// SetElementCount stages a new element count, applied at Commit.
func (t *Txn) SetElementCount(n uint64) { t.newCount = &n }

// ElementCount returns the element count as of the start of this
// transaction (or as set by a prior SetElementCount within it).
func (t *Txn) ElementCount() uint64 {
	if t.newCount != nil {
		return *t.newCount
	}
	return t.p.header.ElementCount
}

// Root returns the current root address as of the start of this
// transaction (or as set by a prior SetRoot within it).
func (t *Txn) Root() uint64 {
	if t.newRoot != nil {
		return *t.newRoot
	}
	return t.p.header.Root
}
