package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLock_AcquireReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	l := NewLock(path)

	require.NoError(t, l.Acquire(context.Background()))
	_, err := os.Stat(l.path)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	_, err = os.Stat(l.path)
	assert.True(t, os.IsNotExist(err))
}

func TestLock_SecondAcquireFailsWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	first := NewLock(path)
	require.NoError(t, first.Acquire(context.Background()))
	defer first.Release()

	second := NewLock(path)
	err := second.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLockAcquisitionFailed)
}

func TestLock_StaleLockIsReclaimable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	lockPath := path + ".lock"

	stale := leaseBody{Holder: "ghost", AcquiredAtMs: 1, TouchedAtMs: 1}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath, data, 0o644))

	l := NewLock(path)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	got, err := readLease(lockPath)
	require.NoError(t, err)
	assert.Equal(t, l.holder, got.Holder)
}

func TestLock_RefreshKeepsLeaseFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	l := NewLock(path)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	before, err := readLease(l.path)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_ = l.touch()

	after, err := readLease(l.path)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.TouchedAtMs, before.TouchedAtMs)
}
