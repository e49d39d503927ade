package errors

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"kvstore/integrity"
	"kvstore/wal"
)

// DefaultHandler is the kvstore classification/recovery policy, trimmed
// from the teacher's DefaultErrorHandler: no background disk/memory
// monitor goroutines, just classify-and-decide at the call site. It
// carries no retry-timing configuration because nothing in this module
// drives an actual retry loop off GetRecoveryStrategy's result yet —
// status.FromError only reads the classified category, and
// RecoverFromError below only distinguishes recoverable from not.
type DefaultHandler struct{}

// NewDefaultHandler builds a handler.
func NewDefaultHandler() *DefaultHandler {
	return &DefaultHandler{}
}

// ClassifyError maps a raw error from pool/wal/checkpoint/integrity into
// an ErrorContext, matching the teacher's category taxonomy.
func (h *DefaultHandler) ClassifyError(err error) ErrorContext {
	ctx := ErrorContext{
		Severity:    ErrorSeverityMedium,
		Category:    ErrorCategorySystem,
		Recoverable: true,
		Timestamp:   time.Now(),
	}

	var corrupt *integrity.CorruptionError
	switch {
	case errors.As(err, &corrupt):
		ctx.Category = ErrorCategoryCorruption
		ctx.Severity = ErrorSeverityCritical
		ctx.Recoverable = false
		ctx.Metadata = map[string]interface{}{"addr": corrupt.Addr}

	case errors.Is(err, wal.ErrCorruptEntry):
		ctx.Category = ErrorCategoryWAL
		ctx.Severity = ErrorSeverityCritical
		ctx.Recoverable = false

	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		ctx.Category = ErrorCategoryIO
		ctx.Severity = ErrorSeverityHigh
		ctx.Recoverable = false

	case errors.Is(err, io.ErrShortWrite), errors.Is(err, io.ErrUnexpectedEOF):
		ctx.Category = ErrorCategoryIO
		ctx.Severity = ErrorSeverityHigh
		ctx.Recoverable = true

	case errors.Is(err, ErrOutOfSpace):
		ctx.Category = ErrorCategoryDisk
		ctx.Severity = ErrorSeverityCritical
		ctx.Recoverable = false
	}
	return ctx
}

// ErrOutOfSpace is classified as an unrecoverable disk-category error.
// btree.ErrOutOfMemory and pool allocator exhaustion are separate errors
// and do not wrap it.
var ErrOutOfSpace = errors.New("errors: arena exhausted")

// GetRecoveryStrategy picks an action per category/severity, mirroring
// the teacher's decision table.
func (h *DefaultHandler) GetRecoveryStrategy(ctx ErrorContext) RecoveryStrategy {
	switch ctx.Category {
	case ErrorCategoryCorruption:
		return RecoveryStrategy{Action: ErrorActionFail, Recoverable: false}
	case ErrorCategoryDisk:
		return RecoveryStrategy{Action: ErrorActionFail, Recoverable: false}
	case ErrorCategoryWAL:
		return RecoveryStrategy{Action: ErrorActionShutdown, Recoverable: false}
	case ErrorCategoryIO:
		if ctx.Recoverable {
			return RecoveryStrategy{Action: ErrorActionRetry, Recoverable: true}
		}
		return RecoveryStrategy{Action: ErrorActionFail, Recoverable: false}
	default:
		return RecoveryStrategy{Action: ErrorActionRetry, Recoverable: true}
	}
}

// HandleError classifies err (if not already classified) and returns
// the action its recovery strategy prescribes.
func (h *DefaultHandler) HandleError(err error, ctx ErrorContext) ErrorAction {
	if err == nil {
		return ErrorActionRetry
	}
	if ctx.Category == 0 && ctx.Severity == 0 {
		ctx = h.ClassifyError(err)
	}
	return h.GetRecoveryStrategy(ctx).Action
}

// RecoverFromError refuses to proceed unless ctx is both recoverable and
// prescribes a retry; it signals that the caller may retry but does not
// perform the retry itself.
func (h *DefaultHandler) RecoverFromError(err error, ctx ErrorContext) error {
	strategy := h.GetRecoveryStrategy(ctx)
	if !strategy.Recoverable {
		return fmt.Errorf("error is not recoverable: %w", err)
	}
	if strategy.Action != ErrorActionRetry {
		return fmt.Errorf("no retry strategy for action %s: %w", strategy.Action, err)
	}
	return nil
}
