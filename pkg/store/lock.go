package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	// StaleTimeout is how long a lock can go untouched before a contender
	// may forcibly claim it.
	StaleTimeout = 10 * time.Second
	// RefreshInterval is how often a holder must touch its lock to stay
	// under StaleTimeout.
	RefreshInterval = 5 * time.Second

	lockRetryAttempts = 5
	lockRetryMin      = 100 * time.Millisecond
	lockRetryMax      = 2 * time.Second
)

// ErrLockAcquisitionFailed is returned when all retries are exhausted
// without successfully claiming the lock.
var ErrLockAcquisitionFailed = errors.New("store: lock acquisition failed")

// leaseBody is the JSON content of the lease file.
type leaseBody struct {
	Holder      string `json:"holder"`
	AcquiredAtMs int64  `json:"acquiredAtMs"`
	TouchedAtMs  int64  `json:"touchedAtMs"`
}

// Lock is a cooperative, advisory file lock over a sibling "<path>.lock"
// file. It is enforced only by convention: any well-behaved cooperator must
// go through Lock.Acquire/Release before touching the guarded store file.
type Lock struct {
	path   string
	holder string

	mu       sync.Mutex
	held     bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLock returns a Lock guarding storePath's sibling "<storePath>.lock"
// file. holder is a fresh UUID generated for this Lock, so a holder
// recognizes its own lease across refresh ticks and restarts don't collide.
func NewLock(storePath string) *Lock {
	return &Lock{
		path:   storePath + ".lock",
		holder: uuid.NewString(),
	}
}

// Acquire blocks until the lock is claimed or all retries are exhausted,
// whichever comes first. On success it starts a background goroutine that
// refreshes ("touches") the lease every RefreshInterval until Release is
// called. Acquire is not reentrant: calling it twice on the same Lock
// without an intervening Release is a programming error.
func (l *Lock) Acquire(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = lockRetryMin
	policy.MaxInterval = lockRetryMax
	policy.Multiplier = 2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, claimErr := l.tryClaim()
		if claimErr != nil {
			// A real I/O failure is not worth retrying against the backoff
			// policy meant for contention; surface it immediately.
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %v", ErrLockAcquisitionFailed, claimErr))
		}
		if !ok {
			return struct{}{}, errNotYetClaimed
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(lockRetryAttempts))

	if err != nil {
		if errors.Is(err, ErrLockAcquisitionFailed) {
			return err
		}
		return ErrLockAcquisitionFailed
	}

	l.mu.Lock()
	l.held = true
	l.stopChan = make(chan struct{})
	l.mu.Unlock()

	l.wg.Add(1)
	go l.refreshLoop()
	return nil
}

// errNotYetClaimed signals "still contended, try again" to the backoff
// loop without being a terminal failure.
var errNotYetClaimed = errors.New("store: lock currently held")

// tryClaim attempts a single, non-blocking claim of the lease file. It
// succeeds if the file does not exist, or exists but is stale (untouched
// for longer than StaleTimeout).
func (l *Lock) tryClaim() (bool, error) {
	existing, err := readLease(l.path)
	if err == nil {
		age := time.Since(msToTime(existing.TouchedAtMs))
		if age <= StaleTimeout {
			return false, nil
		}
		// Stale: fall through and forcibly overwrite it.
	} else if !os.IsNotExist(err) {
		return false, err
	}

	now := time.Now()
	body := leaseBody{Holder: l.holder, AcquiredAtMs: timeToMs(now), TouchedAtMs: timeToMs(now)}
	if err := writeLease(l.path, body); err != nil {
		return false, err
	}

	// Re-read to detect the (rare) race where two contenders both saw a
	// stale/missing lease and wrote concurrently; only the winner whose
	// write is still on disk proceeds.
	confirmed, err := readLease(l.path)
	if err != nil {
		return false, err
	}
	return confirmed.Holder == l.holder, nil
}

// refreshLoop touches the lease every RefreshInterval until stopChan is
// closed by Release.
func (l *Lock) refreshLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			_ = l.touch()
		}
	}
}

func (l *Lock) touch() error {
	now := timeToMs(time.Now())
	acquired := now
	if existing, err := readLease(l.path); err == nil && existing.Holder == l.holder {
		acquired = existing.AcquiredAtMs
	}
	body := leaseBody{Holder: l.holder, AcquiredAtMs: acquired, TouchedAtMs: now}
	return writeLease(l.path, body)
}

// Release stops the refresh goroutine and removes the lease file, if this
// Lock still owns it. Release is safe to call on every exit path —
// success, error, or cancellation — and is a no-op if the lock was never
// held or was already released.
func (l *Lock) Release() error {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		return nil
	}
	l.held = false
	stopChan := l.stopChan
	l.mu.Unlock()

	close(stopChan)
	l.wg.Wait()

	existing, err := readLease(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if existing.Holder != l.holder {
		// Someone else forcibly reclaimed it as stale; nothing to remove.
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readLease(path string) (leaseBody, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return leaseBody{}, err
	}
	var body leaseBody
	if err := json.Unmarshal(data, &body); err != nil {
		return leaseBody{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return body, nil
}

func writeLease(path string, body leaseBody) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func timeToMs(t time.Time) int64 {
	return t.UnixMilli()
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
