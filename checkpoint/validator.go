package checkpoint

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"
)

// Validator checks a checkpoint file's integrity, trimmed from the
// teacher's DefaultValidator: metadata/format/chain validation assumed
// multiple concurrent checkpoint producers disagreeing about a shared
// index, which cannot happen with the single-writer model this package
// now implements. What remains - file existence, size, checksum - is
// exactly what matters before handing a snapshot to pool.Open for
// restore.
type Validator struct {
	strictMode bool
}

// NewValidator returns a validator. In strict mode a checkpoint whose
// Status is not StatusCompleted fails validation even when its size and
// checksum match.
func NewValidator(strictMode bool) *Validator {
	return &Validator{strictMode: strictMode}
}

// Validate checks cp's file on disk against its recorded size and
// checksum.
func (v *Validator) Validate(cp *Checkpoint) (*ValidationResult, error) {
	start := time.Now()
	result := &ValidationResult{Valid: true, ValidatedAt: start}

	info, err := os.Stat(cp.FilePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{Field: "FilePath", Message: err.Error()})
		return result, fmt.Errorf("checkpoint: validate %s: %w", cp.ID, err)
	}

	result.SizeOK = info.Size() == cp.Size
	if !result.SizeOK {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "Size",
			Message: fmt.Sprintf("recorded %d, on disk %d", cp.Size, info.Size()),
		})
	}

	sum, err := fileChecksum(cp.FilePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{Field: "Checksum", Message: err.Error()})
		return result, err
	}
	result.ChecksumOK = sum == cp.Checksum
	if !result.ChecksumOK {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "Checksum",
			Message: fmt.Sprintf("recorded %08x, computed %08x", cp.Checksum, sum),
		})
	}

	result.Valid = result.SizeOK && result.ChecksumOK
	if v.strictMode && cp.Status != StatusCompleted {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{Field: "Status", Message: cp.Status.String()})
	}
	return result, nil
}

func fileChecksum(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
