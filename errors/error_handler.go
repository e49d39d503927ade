// Package errors is the internal error classification layer (spec
// SPEC_FULL.md §10.3): DefaultHandler classifies a raw error from
// pool/wal/checkpoint/integrity into an ErrorContext and picks a
// RecoveryStrategy from it. None of this is public — exported
// engine/pool methods translate it to a status.Status at the boundary,
// so a classification never escapes as an open-ended Go error type.
// Adapted from the teacher's errors/error_handler.go, with the
// ErrorHandler interface and MantisError wrapper type dropped: nothing
// in this module builds a MantisError or holds a value through the
// ErrorHandler interface rather than the concrete DefaultHandler, so
// both were unreachable generality the teacher's networked server
// needed (multiple handler implementations behind the interface,
// errors crossing process boundaries as a wrapped type) and this
// module does not.
package errors

import (
	"time"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	ErrorSeverityLow ErrorSeverity = iota
	ErrorSeverityMedium
	ErrorSeverityHigh
	ErrorSeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityLow:
		return "LOW"
	case ErrorSeverityMedium:
		return "MEDIUM"
	case ErrorSeverityHigh:
		return "HIGH"
	case ErrorSeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorCategory represents the category of an error
type ErrorCategory int

const (
	ErrorCategoryIO ErrorCategory = iota
	ErrorCategoryMemory
	ErrorCategoryDisk
	ErrorCategoryCorruption
	ErrorCategoryTransaction
	ErrorCategoryWAL
	ErrorCategoryNetwork
	ErrorCategorySystem
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryIO:
		return "IO"
	case ErrorCategoryMemory:
		return "MEMORY"
	case ErrorCategoryDisk:
		return "DISK"
	case ErrorCategoryCorruption:
		return "CORRUPTION"
	case ErrorCategoryTransaction:
		return "TRANSACTION"
	case ErrorCategoryWAL:
		return "WAL"
	case ErrorCategoryNetwork:
		return "NETWORK"
	case ErrorCategorySystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// ErrorAction represents the action to take when handling an error
type ErrorAction int

const (
	ErrorActionRetry ErrorAction = iota
	ErrorActionFail
	ErrorActionDegrade
	ErrorActionRecover
	ErrorActionShutdown
)

func (a ErrorAction) String() string {
	switch a {
	case ErrorActionRetry:
		return "RETRY"
	case ErrorActionFail:
		return "FAIL"
	case ErrorActionDegrade:
		return "DEGRADE"
	case ErrorActionRecover:
		return "RECOVER"
	case ErrorActionShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// ErrorContext provides context information about an error
type ErrorContext struct {
	Operation   string                 `json:"operation"`
	Resource    string                 `json:"resource"`
	Severity    ErrorSeverity          `json:"severity"`
	Category    ErrorCategory          `json:"category"`
	Recoverable bool                   `json:"recoverable"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// RecoveryStrategy defines how to recover from an error
type RecoveryStrategy struct {
	Action      ErrorAction `json:"action"`
	Recoverable bool        `json:"recoverable"`
}
