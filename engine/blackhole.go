package engine

import "kvstore/status"

// Blackhole is the no-op engine spec §1 lists among the out-of-scope
// "alternative engines", kept in scope here as the thinnest possible
// implementation of the public contract: it discards every write and
// never finds anything, and rejects ordered queries with NotSupported
// since it imposes no order at all.
type Blackhole struct{}

// NewBlackhole returns a ready-to-use no-op engine.
func NewBlackhole() *Blackhole { return &Blackhole{} }

func (b *Blackhole) CountAll() (uint64, status.Status) {
	status.Begin()
	return 0, status.OK
}

func (b *Blackhole) CountAbove(key []byte) (uint64, status.Status) {
	status.Begin()
	return 0, status.Fail(status.NotSupported, "blackhole engine has no order")
}

func (b *Blackhole) CountBelow(key []byte) (uint64, status.Status) {
	status.Begin()
	return 0, status.Fail(status.NotSupported, "blackhole engine has no order")
}

func (b *Blackhole) CountBetween(k1, k2 []byte) (uint64, status.Status) {
	status.Begin()
	return 0, status.Fail(status.NotSupported, "blackhole engine has no order")
}

func (b *Blackhole) GetAll(fn RangeCallback) status.Status {
	status.Begin()
	return status.Fail(status.NotSupported, "blackhole engine has no order")
}

func (b *Blackhole) GetAbove(key []byte, fn RangeCallback) status.Status {
	status.Begin()
	return status.Fail(status.NotSupported, "blackhole engine has no order")
}

func (b *Blackhole) GetBelow(key []byte, fn RangeCallback) status.Status {
	status.Begin()
	return status.Fail(status.NotSupported, "blackhole engine has no order")
}

func (b *Blackhole) GetBetween(k1, k2 []byte, fn RangeCallback) status.Status {
	status.Begin()
	return status.Fail(status.NotSupported, "blackhole engine has no order")
}

func (b *Blackhole) Exists(key []byte) status.Status {
	status.Begin()
	return status.NotFound
}

func (b *Blackhole) Get(key []byte, fn ValueCallback) status.Status {
	status.Begin()
	return status.NotFound
}

func (b *Blackhole) Put(key, value []byte) status.Status {
	status.Begin()
	return status.OK
}

func (b *Blackhole) Remove(key []byte) status.Status {
	status.Begin()
	return status.NotFound
}

func (b *Blackhole) Close() error { return nil }
