package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kvstore/btree"
	"kvstore/cache"
	"kvstore/checkpoint"
	"kvstore/comparator"
	"kvstore/configbag"
	"kvstore/health"
	"kvstore/logging"
	"kvstore/pool"
	"kvstore/status"
)

// Compile-time tree parameters (spec §3: DEGREE, KEY_MAX, VALUE_MAX are
// compile-time parameters of the sorted engine, not bag-configurable
// options — §4.1 only lists path/size/force_create/__comparator).
const (
	defaultDegree   = 128
	defaultKeyMax   = 1024
	defaultValueMax = 1 << 20

	// defaultNodeCacheEntries bounds the volatile decoded-node cache
	// (spec §3 Ownership); it holds decoded nodes, not their encoded
	// bytes, so sizing is by entry count rather than bytes.
	defaultNodeCacheEntries = 4096
)

// SortedEngine is the persistent B+-tree engine (spec §2.4, §4.3): a
// pool.Pool for durable storage plus a btree.Tree for the structural
// algorithms, bound to one comparator for the engine's lifetime.
type SortedEngine struct {
	pool *pool.Pool
	tree *btree.Tree
	cmp  comparator.Comparator
	log  *zap.Logger

	checkpoints *checkpoint.Manager // nil unless bag sets "checkpoint_dir"
	health      *health.Checker
}

// OpenSorted constructs and opens a sorted engine from a configuration
// bag per spec §4.1/§4.4: required "path", optional "size" and
// "force_create", optional __comparator object.
func OpenSorted(bag *configbag.Bag) (*SortedEngine, status.Status) {
	path, typeErr, found := bag.RequireString("path")
	if typeErr != nil {
		return nil, status.Fail(status.ConfigTypeError, typeErr.Error())
	}
	if !found {
		return nil, status.Fail(status.ConfigParsingError, `missing required config option "path"`)
	}

	size, _ := bag.GetUint64("size")

	forceCreate := false
	if v, ok := bag.GetInt64("force_create"); ok && v != 0 {
		forceCreate = true
	}

	cmp := comparator.Default()
	if obj, ok := bag.GetObject(configbag.ReservedComparatorKey); ok {
		c, ok2 := obj.(comparator.Comparator)
		if !ok2 {
			return nil, status.Fail(status.ConfigTypeError, "__comparator binding does not implement comparator.Comparator")
		}
		cmp = c
	}

	log := logging.New("engine")
	p, err := pool.Open(pool.Options{
		Path:           path,
		Size:           size,
		ForceCreate:    forceCreate,
		Degree:         defaultDegree,
		KeyMax:         defaultKeyMax,
		ValueMax:       defaultValueMax,
		ComparatorName: cmp.Name(),
		Logger:         log,
	})
	if err != nil {
		var mismatch *pool.ComparatorMismatchError
		if errors.As(err, &mismatch) {
			log.Error("comparator mismatch on open", zap.String("path", path), zap.Error(err))
			return nil, status.Fail(status.ComparatorMismatch, err.Error())
		}
		log.Error("open failed", zap.String("path", path), zap.Error(err))
		return nil, status.Fail(status.Failed, err.Error())
	}

	if live, lerr := btree.LiveAddrs(p, p.Root()); lerr != nil {
		log.Error("free-list reconstruction: live-set scan failed, arena will bump-allocate only", zap.Error(lerr))
	} else {
		p.RebuildFreeList(func(addr uint64) (uint64, bool) { return btree.NodeSize(p, addr) }, func(addr uint64) bool { return live[addr] })
	}

	tree := btree.New(cmp, p.Degree(), p.KeyMax(), p.ValueMax())
	cacheEntries := defaultNodeCacheEntries
	if n, ok := bag.GetUint64("node_cache_entries"); ok && n > 0 {
		cacheEntries = int(n)
	}
	tree.SetCache(cache.NewNodeCache(cacheEntries))

	var checkpoints *checkpoint.Manager
	if dir, ok := bag.GetString("checkpoint_dir"); ok && dir != "" {
		cfg := checkpoint.DefaultConfig(dir)
		mgr, cerr := checkpoint.NewManager(p, cfg)
		if cerr != nil {
			log.Error("checkpoint manager init failed", zap.Error(cerr))
		} else {
			checkpoints = mgr
			if serr := mgr.Start(); serr != nil {
				log.Error("checkpoint manager start failed", zap.Error(serr))
			}
		}
	}

	maxCheckpointAge := time.Hour
	checker := health.NewChecker(p, checkpoints, maxCheckpointAge)

	return &SortedEngine{pool: p, tree: tree, cmp: cmp, log: log, checkpoints: checkpoints, health: checker}, status.OK
}

// Checkpoint takes an on-demand durability snapshot of the engine's
// pool through its checkpoint.Manager.
// It returns status.NotSupported if the engine was opened without a
// "checkpoint_dir" bag option.
func (e *SortedEngine) Checkpoint() (*checkpoint.Checkpoint, status.Status) {
	status.Begin()
	if e.checkpoints == nil {
		return nil, status.Fail(status.NotSupported, "engine: opened without checkpoint_dir")
	}
	cp, err := e.checkpoints.Create()
	if err != nil {
		return nil, status.Fail(status.FromError(err), err.Error())
	}
	return cp, status.OK
}

// Health reports the engine's current operating condition (spec's
// supplemented health check surface, SPEC_FULL.md §12.3).
func (e *SortedEngine) Health() health.Report {
	return e.health.Check()
}

// CountAll is the tracked element counter (spec §4.5: "cheap for
// sorted"), not a traversal.
func (e *SortedEngine) CountAll() (uint64, status.Status) {
	status.Begin()
	e.pool.RLock()
	defer e.pool.RUnlock()
	return e.pool.ElementCount(), status.OK
}

func (e *SortedEngine) countRange(lo, hi btree.Endpoint) (uint64, status.Status) {
	status.Begin()
	e.pool.RLock()
	defer e.pool.RUnlock()
	n, err := e.tree.Count(e.pool, e.pool.Root(), lo, hi)
	if err != nil {
		return 0, status.Fail(status.FromError(err), err.Error())
	}
	return uint64(n), status.OK
}

func (e *SortedEngine) CountAbove(key []byte) (uint64, status.Status) {
	return e.countRange(btree.Key(key), btree.MaxKey())
}

func (e *SortedEngine) CountBelow(key []byte) (uint64, status.Status) {
	return e.countRange(btree.MinKey(), btree.Key(key))
}

func (e *SortedEngine) CountBetween(k1, k2 []byte) (uint64, status.Status) {
	return e.countRange(btree.Key(k1), btree.Key(k2))
}

func (e *SortedEngine) getRange(lo, hi btree.Endpoint, fn RangeCallback) status.Status {
	status.Begin()
	e.pool.RLock()
	defer e.pool.RUnlock()
	_, stopped, err := e.tree.Range(e.pool, e.pool.Root(), lo, hi, func(k, v []byte) bool {
		return fn(k, v)
	})
	if err != nil {
		return status.Fail(status.FromError(err), err.Error())
	}
	if stopped {
		return status.StoppedByCB
	}
	return status.OK
}

func (e *SortedEngine) GetAll(fn RangeCallback) status.Status {
	return e.getRange(btree.MinKey(), btree.MaxKey(), fn)
}

func (e *SortedEngine) GetAbove(key []byte, fn RangeCallback) status.Status {
	return e.getRange(btree.Key(key), btree.MaxKey(), fn)
}

func (e *SortedEngine) GetBelow(key []byte, fn RangeCallback) status.Status {
	return e.getRange(btree.MinKey(), btree.Key(key), fn)
}

func (e *SortedEngine) GetBetween(k1, k2 []byte, fn RangeCallback) status.Status {
	return e.getRange(btree.Key(k1), btree.Key(k2), fn)
}

func (e *SortedEngine) Exists(key []byte) status.Status {
	status.Begin()
	e.pool.RLock()
	defer e.pool.RUnlock()
	found, err := e.tree.Exists(e.pool, e.pool.Root(), key)
	if err != nil {
		return status.Fail(status.FromError(err), err.Error())
	}
	if !found {
		return status.NotFound
	}
	return status.OK
}

func (e *SortedEngine) Get(key []byte, fn ValueCallback) status.Status {
	status.Begin()
	e.health.CountGet()
	e.pool.RLock()
	defer e.pool.RUnlock()
	value, found, err := e.tree.Get(e.pool, e.pool.Root(), key)
	if err != nil {
		return status.Fail(status.FromError(err), err.Error())
	}
	if !found {
		return status.NotFound
	}
	if fn != nil {
		fn(value)
	}
	return status.OK
}

// Put inserts or replaces key/value inside one pool transaction (spec
// §4.3 Insert/Update, §5 Transactional discipline). An oversize key or
// value is rejected by btree.Tree.Put before the transaction's writes
// are ever staged; the Txn value Begin() returns here is an in-memory
// staging object with no durable side effects, so aborting it is
// indistinguishable from "no transaction opened".
func (e *SortedEngine) Put(key, value []byte) status.Status {
	status.Begin()
	e.health.CountPut()
	e.pool.Lock()
	defer e.pool.Unlock()

	txn := e.pool.Begin()
	newRoot, newCount, st := e.tree.Put(txn, e.pool.Root(), e.pool.ElementCount(), key, value)
	if !st.Ok() {
		e.pool.Abort(txn)
		e.log.Error("put rejected", zap.String("status", st.String()), zap.Int("key_len", len(key)), zap.Int("value_len", len(value)))
		return status.Fail(st, fmt.Sprintf("put: %s", st))
	}
	txn.SetRoot(newRoot)
	txn.SetElementCount(newCount)
	if err := e.pool.Commit(txn); err != nil {
		e.log.Error("put commit failed", zap.Error(err))
		return status.Fail(status.TransactionScopeError, err.Error())
	}
	return status.OK
}

// Remove deletes key inside one pool transaction (spec §4.3 Remove).
func (e *SortedEngine) Remove(key []byte) status.Status {
	status.Begin()
	e.health.CountRemove()
	e.pool.Lock()
	defer e.pool.Unlock()

	txn := e.pool.Begin()
	newRoot, newCount, st := e.tree.Remove(txn, e.pool.Root(), e.pool.ElementCount(), key)
	if st == status.NotFound {
		e.pool.Abort(txn)
		return status.NotFound
	}
	if !st.Ok() {
		e.pool.Abort(txn)
		e.log.Error("remove rejected", zap.String("status", st.String()), zap.Int("key_len", len(key)))
		return status.Fail(st, fmt.Sprintf("remove: %s", st))
	}
	txn.SetRoot(newRoot)
	txn.SetElementCount(newCount)
	if err := e.pool.Commit(txn); err != nil {
		e.log.Error("remove commit failed", zap.Error(err))
		return status.Fail(status.TransactionScopeError, err.Error())
	}
	return status.OK
}

// Close releases the engine's pool handle without touching durable
// state (spec §4.4).
func (e *SortedEngine) Close() error {
	if e.checkpoints != nil {
		if err := e.checkpoints.Stop(); err != nil {
			e.log.Error("checkpoint manager stop failed", zap.Error(err))
		}
	}
	return e.pool.Close()
}
