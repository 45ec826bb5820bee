package kvstore

import "errors"

// Internal-level errors (spec.md §7). The public API maps every one of
// these to either a domain Status or StatusStorageFailure; callers of the
// package-level Store API never see these directly.
var (
	errInvalidParam        = errors.New("kvstore: invalid parameter")
	errReadFailed          = errors.New("kvstore: read failed")
	errWriteFailed         = errors.New("kvstore: write failed")
	errEraseFailed         = errors.New("kvstore: erase failed")
	errFileOpenFailed      = errors.New("kvstore: file open failed")
	errNoFreeMetadataSpace = errors.New("kvstore: no free metadata space")
	errKeyIndexFull        = errors.New("kvstore: key index full")
	errCorruptSuperblock   = errors.New("kvstore: corrupt superblock")

	// errNoSpace is the internal counterpart of [StatusNoSpace]; it is what a
	// data or metadata GC pass returns when it finds no garbage page to
	// reclaim, and what a data GC pass returns when it cannot evacuate.
	errNoSpace = errors.New("kvstore: no space")
)
