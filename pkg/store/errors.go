package store

import "errors"

// ErrMalformedRecord is returned by Load when a non-empty line in the store
// file is not a valid entity or relation record. Loading is strict: the
// whole load aborts rather than skipping the bad line.
var ErrMalformedRecord = errors.New("store: malformed record")

// ErrStoreIO wraps an underlying filesystem error encountered while reading
// or writing the store file (other than a missing file on read, which is
// not an error — see Load).
var ErrStoreIO = errors.New("store: io error")
