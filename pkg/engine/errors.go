package engine

import "errors"

// ErrEntityNotFound is returned by AddObservations when it names an entity
// that does not exist. The whole call fails atomically: nothing is
// persisted and the lock is released without a write.
var ErrEntityNotFound = errors.New("engine: entity not found")

// ErrLockAcquisitionFailed is surfaced when a mutation cannot claim the
// store's lock after exhausting retries.
var ErrLockAcquisitionFailed = errors.New("engine: lock acquisition failed")

// ErrStoreIO wraps a read/write failure against the store file.
var ErrStoreIO = errors.New("engine: store io error")

// ErrMalformedRecord is returned when the store file contains a line that
// does not parse as a valid entity or relation record.
var ErrMalformedRecord = errors.New("engine: malformed record")
