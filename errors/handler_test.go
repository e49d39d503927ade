package errors

import (
	"testing"

	"kvstore/integrity"
	"kvstore/wal"
)

func TestClassifyCorruptionIsUnrecoverable(t *testing.T) {
	h := NewDefaultHandler()
	ctx := h.ClassifyError(&integrity.CorruptionError{Addr: 0x100, Want: 1, Got: 2})
	if ctx.Category != ErrorCategoryCorruption || ctx.Recoverable {
		t.Fatalf("ctx = %+v, want corruption/unrecoverable", ctx)
	}
	strategy := h.GetRecoveryStrategy(ctx)
	if strategy.Action != ErrorActionFail {
		t.Fatalf("action = %v, want Fail", strategy.Action)
	}
}

func TestClassifyTornWALEntryShutsDown(t *testing.T) {
	h := NewDefaultHandler()
	ctx := h.ClassifyError(wal.ErrCorruptEntry)
	if ctx.Category != ErrorCategoryWAL {
		t.Fatalf("category = %v, want WAL", ctx.Category)
	}
	if h.GetRecoveryStrategy(ctx).Action != ErrorActionShutdown {
		t.Fatal("expected shutdown action for a torn WAL entry")
	}
}

func TestClassifyOutOfSpaceFailsCleanly(t *testing.T) {
	h := NewDefaultHandler()
	ctx := h.ClassifyError(ErrOutOfSpace)
	if ctx.Category != ErrorCategoryDisk || ctx.Recoverable {
		t.Fatalf("ctx = %+v, want disk/unrecoverable", ctx)
	}
}

func TestHandleErrorNilIsRetry(t *testing.T) {
	h := NewDefaultHandler()
	if h.HandleError(nil, ErrorContext{}) != ErrorActionRetry {
		t.Fatal("expected retry action for nil error")
	}
}
