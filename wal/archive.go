package wal

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
)

// Archive snappy-compresses the WAL's current on-disk content to
// dstPath, for checkpoint.Manager to call just before Reset() discards
// the entries a checkpoint has already absorbed. Snappy is chosen over
// the checkpoint snapshot's zstd for the same reason the teacher's
// advanced/compression picks it for hot-path data: WAL truncation sits
// on the commit-adjacent path, so low latency matters more here than
// the better ratio zstd/lz4 give the colder checkpoint and backup files.
func (l *Log) Archive(dstPath string) error {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: archive seek: %w", err)
	}
	raw, err := io.ReadAll(l.f)
	if err != nil {
		return fmt.Errorf("wal: archive read: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("wal: archive open %s: %w", dstPath, err)
	}
	defer out.Close()

	compressed := snappy.Encode(nil, raw)
	if _, err := out.Write(compressed); err != nil {
		return fmt.Errorf("wal: archive write: %w", err)
	}
	return out.Sync()
}
