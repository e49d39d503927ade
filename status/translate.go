package status

import (
	"errors"

	kverrors "kvstore/errors"
	"kvstore/integrity"
	"kvstore/wal"
)

var classifier = kverrors.NewDefaultHandler()

// FromError translates an internal error into the public ordinal Status
// surface (spec §7: "the internal core is free to use exceptions or
// result types but never lets them escape" the public API). After checking
// the corruption and out-of-space sentinels it classifies err with
// kvstore/errors' DefaultHandler, so a caller sees a stable Status even
// though the internal error types evolve freely.
func FromError(err error) Status {
	if err == nil {
		return OK
	}

	var corrupt *integrity.CorruptionError
	switch {
	case errors.As(err, &corrupt):
		return Failed
	case errors.Is(err, wal.ErrCorruptEntry):
		return Failed
	case errors.Is(err, kverrors.ErrOutOfSpace):
		return OutOfMemory
	}

	ctx := classifier.ClassifyError(err)
	switch ctx.Category {
	case kverrors.ErrorCategoryCorruption, kverrors.ErrorCategoryWAL:
		return Failed
	case kverrors.ErrorCategoryDisk:
		return OutOfMemory
	default:
		return UnknownError
	}
}
