package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
)

func TestArchiveCompressesCurrentContent(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "test.wal"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	e := Entry{TxnID: 1, Writes: []Write{{Addr: 8, Data: []byte("archived")}}}
	if err := l.Append(e); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "segment-1.wal.snappy")
	if err := l.Archive(dst); err != nil {
		t.Fatal(err)
	}

	compressed, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		t.Fatalf("decode archived segment: %v", err)
	}

	entries, _, decErr := deserializeEntry(raw)
	if decErr != nil {
		t.Fatalf("decode archived entry: %v", decErr)
	}
	if entries.TxnID != 1 || string(entries.Writes[0].Data) != "archived" {
		t.Fatalf("archived entry = %+v", entries)
	}
}

func TestArchiveOfEmptyLogIsNoop(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "test.wal"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	dst := filepath.Join(dir, "segment-empty.wal.snappy")
	if err := l.Archive(dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("expected no archive file for an empty log")
	}
}
