package checkpoint

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"kvstore/integrity"
	"kvstore/logging"
	"kvstore/pool"
)

// Manager creates, lists, validates and prunes checkpoints for a single
// pool, trimmed from the teacher's Manager: LSN-sharded incremental
// checkpoints, a WALReaderInterface/DataProvider hook pair, and an
// encryption path all assumed a networked multi-tenant deployment with
// independent readers replaying someone else's WAL. Here there is one
// pool, one writer, and pool.Pool itself already knows how to produce
// its own durable snapshot and archive its own WAL, so the manager's
// job shrinks to: take a snapshot, compress it, track it, prune it.
type Manager struct {
	config *Config
	pool   *pool.Pool
	val    *Validator
	log    *zap.Logger

	mu        sync.RWMutex
	index     []*Checkpoint
	stats     Stats
	indexPath string

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager validates cfg, ensures cfg.Dir exists, and loads any
// existing checkpoint index found there.
func NewManager(p *pool.Pool, cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig(filepath.Join(p.Path() + ".checkpoints"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir %s: %w", cfg.Dir, err)
	}

	m := &Manager{
		config:    cfg,
		pool:      p,
		val:       NewValidator(cfg.ValidateOnCreate),
		log:       logging.New("checkpoint"),
		indexPath: filepath.Join(cfg.Dir, "index.json"),
		stopChan:  make(chan struct{}),
	}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// Start runs the background checkpoint/cleanup loop when cfg.Interval
// is nonzero. A manager with Interval == 0 is usable purely on demand
// via Create.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("checkpoint: manager already running")
	}
	m.running = true
	m.mu.Unlock()

	if m.config.Interval <= 0 {
		return nil
	}

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop signals the background loop to exit and waits for it.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	return nil
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			seq := m.pool.CommitSeq()
			if m.config.CommitInterval > 0 && seq-lastSeq < m.config.CommitInterval {
				continue
			}
			if _, err := m.Create(); err != nil {
				m.log.Error("automatic checkpoint failed", zap.Error(err))
				continue
			}
			lastSeq = seq
			if err := m.Cleanup(); err != nil {
				m.log.Error("checkpoint cleanup failed", zap.Error(err))
			}
		}
	}
}

// Create snapshots the pool's current mapped region, zstd-compresses
// it, writes it under cfg.Dir, and records it in the index. It then
// archives and truncates the pool's WAL, since every write up to this
// CommitSeq is now durable in the snapshot itself.
func (m *Manager) Create() (*Checkpoint, error) {
	seq := m.pool.CommitSeq()
	id := CheckpointID(fmt.Sprintf("ckpt-%020d-%d", seq, time.Now().UnixNano()))
	cp := &Checkpoint{
		ID:        id,
		Status:    StatusCreating,
		CommitSeq: seq,
		Timestamp: time.Now(),
		FilePath:  filepath.Join(m.config.Dir, string(id)+".zst"),
	}

	raw := m.pool.Snapshot()
	cp.RawChecksum = integrity.NewChecksumEngine().Calculate(raw)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		cp.Status = StatusFailed
		return cp, fmt.Errorf("checkpoint: build zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw, nil)

	if err := os.WriteFile(cp.FilePath, compressed, 0o644); err != nil {
		cp.Status = StatusFailed
		return cp, fmt.Errorf("checkpoint: write %s: %w", cp.FilePath, err)
	}
	cp.Size = int64(len(compressed))
	cp.Checksum = crc32.ChecksumIEEE(compressed)
	cp.Status = StatusCompleted

	if m.config.ValidateOnCreate {
		result, verr := m.val.Validate(cp)
		if verr != nil || !result.Valid {
			cp.Status = StatusCorrupted
			m.recordResult(cp, false)
			return cp, fmt.Errorf("checkpoint: validation failed for %s", cp.ID)
		}
		now := time.Now()
		cp.ValidatedAt = &now
	}

	archivePath := filepath.Join(m.config.Dir, string(id)+".wal.snappy")
	if err := m.pool.ArchiveWAL(archivePath); err != nil {
		m.log.Error("wal archive failed", zap.Error(err), zap.String("checkpoint", string(id)))
	} else if err := m.pool.TruncateWAL(); err != nil {
		m.log.Error("wal truncate failed", zap.Error(err), zap.String("checkpoint", string(id)))
	}

	m.mu.Lock()
	m.index = append(m.index, cp)
	m.mu.Unlock()
	m.recordResult(cp, true)

	if err := m.saveIndex(); err != nil {
		m.log.Error("checkpoint index save failed", zap.Error(err))
	}
	m.log.Info("checkpoint created", zap.String("id", string(id)), zap.Uint64("commit_seq", seq), zap.Int64("size", cp.Size))
	return cp, nil
}

func (m *Manager) recordResult(cp *Checkpoint, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalCheckpoints++
	if ok {
		m.stats.SuccessfulCreations++
		m.stats.TotalSize += cp.Size
		m.stats.LastCheckpointTime = cp.Timestamp
	} else {
		m.stats.FailedCreations++
		m.stats.ValidationFailures++
	}
}

// Backup recompresses an existing checkpoint's snapshot with lz4 into
// dstPath, for long-term cold storage where restore latency matters
// less than it does for the zstd-compressed working checkpoint.
func (m *Manager) Backup(id CheckpointID, dstPath string) error {
	cp, err := m.Get(id)
	if err != nil {
		return err
	}
	raw, err := m.readSnapshot(cp)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("checkpoint: open backup %s: %w", dstPath, err)
	}
	defer out.Close()

	w := lz4.NewWriter(out)
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("checkpoint: lz4 backup write: %w", err)
	}
	return w.Close()
}

// Restore decompresses a checkpoint back into raw pool bytes, ready to
// be written to a fresh pool file ahead of replaying any WAL archived
// after it.
func (m *Manager) Restore(id CheckpointID) ([]byte, error) {
	cp, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return m.readSnapshot(cp)
}

func (m *Manager) readSnapshot(cp *Checkpoint) ([]byte, error) {
	compressed, err := os.ReadFile(cp.FilePath)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", cp.FilePath, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: build zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", cp.FilePath, err)
	}
	if cp.RawChecksum != 0 && !integrity.NewChecksumEngine().Verify(raw, cp.RawChecksum) {
		return nil, &integrity.CorruptionError{Addr: 0, Want: cp.RawChecksum, Got: integrity.NewChecksumEngine().Calculate(raw)}
	}
	return raw, nil
}

// Get returns the checkpoint with the given ID.
func (m *Manager) Get(id CheckpointID) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cp := range m.index {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, fmt.Errorf("checkpoint: %s not found", id)
}

// List returns checkpoints matching filter, or every checkpoint if
// filter is nil, newest first.
func (m *Manager) List(filter *Filter) []*Checkpoint {
	m.mu.RLock()
	snapshot := make([]*Checkpoint, len(m.index))
	copy(snapshot, m.index)
	m.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].CommitSeq > snapshot[j].CommitSeq })
	if filter == nil {
		return snapshot
	}
	return filter.Apply(snapshot)
}

// Latest returns the most recently completed checkpoint.
func (m *Manager) Latest() (*Checkpoint, error) {
	completed := CompletedCheckpoints().Apply(m.List(nil))
	if len(completed) == 0 {
		return nil, fmt.Errorf("checkpoint: no completed checkpoints")
	}
	return completed[0], nil
}

// Validate re-checks a checkpoint's file against its recorded size and
// checksum.
func (m *Manager) Validate(id CheckpointID) (*ValidationResult, error) {
	cp, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	result, err := m.val.Validate(cp)
	if err == nil && result.Valid {
		m.mu.Lock()
		now := time.Now()
		cp.ValidatedAt = &now
		m.mu.Unlock()
	} else {
		m.mu.Lock()
		m.stats.ValidationFailures++
		m.mu.Unlock()
	}
	return result, err
}

// Delete removes a checkpoint's file and index entry.
func (m *Manager) Delete(id CheckpointID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cp := range m.index {
		if cp.ID != id {
			continue
		}
		if err := os.Remove(cp.FilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("checkpoint: delete %s: %w", cp.FilePath, err)
		}
		m.index = append(m.index[:i], m.index[i+1:]...)
		return m.saveIndexLocked()
	}
	return fmt.Errorf("checkpoint: %s not found", id)
}

// Cleanup deletes completed checkpoints beyond Config.MaxCheckpoints,
// oldest first.
func (m *Manager) Cleanup() error {
	completed := CompletedCheckpoints().Apply(m.List(nil))
	if len(completed) <= m.config.MaxCheckpoints {
		return nil
	}
	for _, cp := range completed[m.config.MaxCheckpoints:] {
		if err := m.Delete(cp.ID); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the manager's running counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *Manager) loadIndex() error {
	data, err := os.ReadFile(m.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checkpoint: read index: %w", err)
	}
	var index []*Checkpoint
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("checkpoint: decode index: %w", err)
	}
	m.index = index
	return nil
}

func (m *Manager) saveIndex() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveIndexLocked()
}

// saveIndexLocked requires m.mu to be held (read or write).
func (m *Manager) saveIndexLocked() error {
	data, err := json.MarshalIndent(m.index, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode index: %w", err)
	}
	tmp := m.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write index: %w", err)
	}
	return os.Rename(tmp, m.indexPath)
}
