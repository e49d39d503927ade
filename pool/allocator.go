package pool

// Allocator is a bump allocator with a per-size-class free list over the
// pool's byte-addressable arena, implementing spec §4's "allocate/free"
// primitive. It has no teacher equivalent (the teacher's "pool" package
// was a connection pool, not a page allocator) and is new code grounded
// directly on spec §3/§6's persistent-layout requirements.
//
// Address 0 is reserved to mean "null" (spec's empty-tree root), so the
// arena never hands out address 0; the first real address is arenaBase.
type Allocator struct {
	arenaBase uint64
	capacity  uint64
	freePtr   uint64
	freeLists map[uint64][]uint64 // size class (8-byte aligned) -> free addresses
}

func newAllocator(arenaBase, capacity, freePtr uint64) *Allocator {
	if freePtr < arenaBase {
		freePtr = arenaBase
	}
	return &Allocator{
		arenaBase: arenaBase,
		capacity:  capacity,
		freePtr:   freePtr,
		freeLists: make(map[uint64][]uint64),
	}
}

func align8(n uint64) uint64 {
	return (n + 7) &^ 7
}

// snapshot captures enough state to undo every Allocate/Free call made
// since it was taken (used by Txn.Abort).
type allocatorSnapshot struct {
	freePtr   uint64
	freeLists map[uint64][]uint64
}

func (a *Allocator) snapshot() allocatorSnapshot {
	cp := make(map[uint64][]uint64, len(a.freeLists))
	for k, v := range a.freeLists {
		dup := make([]uint64, len(v))
		copy(dup, v)
		cp[k] = dup
	}
	return allocatorSnapshot{freePtr: a.freePtr, freeLists: cp}
}

func (a *Allocator) restore(s allocatorSnapshot) {
	a.freePtr = s.freePtr
	a.freeLists = s.freeLists
}

// allocate reserves size bytes (rounded up to an 8-byte size class),
// preferring a freed block of the exact size class before bumping the
// arena pointer. It returns ok=false on out-of-memory.
func (a *Allocator) allocate(size uint64) (addr uint64, ok bool) {
	cls := align8(size)
	if list := a.freeLists[cls]; len(list) > 0 {
		addr = list[len(list)-1]
		a.freeLists[cls] = list[:len(list)-1]
		return addr, true
	}
	if a.freePtr+cls > a.capacity {
		return 0, false
	}
	addr = a.freePtr
	a.freePtr += cls
	return addr, true
}

// free returns a previously allocated block of the given size to the
// free list for its size class.
func (a *Allocator) free(addr, size uint64) {
	cls := align8(size)
	a.freeLists[cls] = append(a.freeLists[cls], addr)
}

// reclaim rebuilds the free lists by scanning the arena from arenaBase
// up to the current high-water mark, one block at a time. newAllocator
// only ever seeds freePtr from the persisted header; it has no way to
// tell which bytes below freePtr were live at last close and which
// were freed, so every reopen otherwise starts with empty free lists
// and leaks whatever was freed before the pool's last close. scan
// reports the size of the block starting at addr (every byte below
// freePtr was written by some allocation, so scan must succeed there
// or the scan stops rather than guess); isLive reports whether addr is
// still reachable from current durable state. Blocks isLive reports
// live are left out of the free lists; everything else is handed back
// to its size class.
func (a *Allocator) reclaim(scan func(addr uint64) (size uint64, ok bool), isLive func(addr uint64) bool) {
	for addr := a.arenaBase; addr < a.freePtr; {
		size, ok := scan(addr)
		cls := align8(size)
		if !ok || cls == 0 {
			break
		}
		if !isLive(addr) {
			a.freeLists[cls] = append(a.freeLists[cls], addr)
		}
		addr += cls
	}
}
