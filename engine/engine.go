// Package engine is the public contract operation surface spec §4.5
// describes, plus the sorted B+-tree engine that implements it and the
// dispatch layer (§4.4) that selects and opens engines by name. Grounded
// on the teacher's store/mantis_store.go (the uniform operation surface
// over a pluggable backing structure) and transaction/transaction.go
// (the begin/commit/abort discipline around every mutation).
package engine

import "kvstore/status"

// RangeCallback delivers one matching (key, value) pair during a range
// read; returning true stops iteration early (spec §4.3 Callback
// delivery), surfaced to the caller as status.StoppedByCB. The slices
// are only valid for the duration of the call; callbacks that need to
// keep data past the call must copy it.
type RangeCallback func(key, value []byte) (stop bool)

// ValueCallback delivers the value found by Get. Point reads have no
// stop semantics in the public contract (spec §4.5's get row never
// yields STOPPED_BY_CB), so this returns nothing.
type ValueCallback func(value []byte)

// Engine is the uniform operation surface every engine implements
// (spec §4.5). Engines that cannot order keys (e.g. Blackhole) answer
// ordered operations with status.NotSupported rather than implementing
// them partially.
type Engine interface {
	CountAll() (uint64, status.Status)
	CountAbove(key []byte) (uint64, status.Status)
	CountBelow(key []byte) (uint64, status.Status)
	CountBetween(k1, k2 []byte) (uint64, status.Status)

	GetAll(fn RangeCallback) status.Status
	GetAbove(key []byte, fn RangeCallback) status.Status
	GetBelow(key []byte, fn RangeCallback) status.Status
	GetBetween(k1, k2 []byte, fn RangeCallback) status.Status

	Exists(key []byte) status.Status
	Get(key []byte, fn ValueCallback) status.Status
	Put(key, value []byte) status.Status
	Remove(key []byte) status.Status

	Close() error
}
