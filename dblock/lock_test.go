package dblock

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lock")
	lock := NewFileLock(path, "worker-1", time.Minute)

	require.NoError(t, lock.Acquire(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var info LockInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "worker-1", info.Holder)
	assert.False(t, info.AcquiredAt.IsZero())

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileLock_ReleaseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lock")
	lock := NewFileLock(path, "worker-1", time.Minute)

	require.NoError(t, lock.Acquire(context.Background()))
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())
}

func TestFileLock_BlocksWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lock")
	first := NewFileLock(path, "worker-1", time.Minute)
	second := NewFileLock(path, "worker-2", time.Minute)

	require.NoError(t, first.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := second.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileLock_StealsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lock")

	// A lock file from a holder that died long ago.
	stale := LockInfo{Holder: "dead-worker", AcquiredAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	lock := NewFileLock(path, "worker-2", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, lock.Acquire(ctx))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var info LockInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "worker-2", info.Holder)
}

func TestFileLock_RemovesUnreadableLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lock")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	lock := NewFileLock(path, "worker-1", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, lock.Acquire(ctx))
	require.NoError(t, lock.Release())
}

func TestFileLock_RefreshUpdatesTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lock")
	lock := NewFileLock(path, "worker-1", time.Minute)
	require.NoError(t, lock.Acquire(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var before LockInfo
	require.NoError(t, json.Unmarshal(data, &before))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, lock.Refresh())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var after LockInfo
	require.NoError(t, json.Unmarshal(data, &after))

	assert.Equal(t, "worker-1", after.Holder)
	assert.True(t, after.AcquiredAt.After(before.AcquiredAt))
}

func TestFileLock_HeartbeatPreventsSteal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lock")

	// The holder keeps the lock far longer than the steal timeout but
	// heartbeats, so it must not lose the lock to a second process.
	holder := NewFileLock(path, "worker-1", 300*time.Millisecond)
	require.NoError(t, holder.Acquire(context.Background()))
	stop := holder.Heartbeat(50 * time.Millisecond)
	defer stop()

	thief := NewFileLock(path, "worker-2", 300*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := thief.Acquire(ctx)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var info LockInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "worker-1", info.Holder)
}

func TestDirRemote_RoundTrip(t *testing.T) {
	remote, err := NewDirRemote(filepath.Join(t.TempDir(), "remote"))
	require.NoError(t, err)

	exists, err := remote.Exists("app.db")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, remote.Store("app.db", []byte("payload")))

	exists, err = remote.Exists("app.db")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := remote.Fetch("app.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestSyncedDB_WithLock(t *testing.T) {
	dir := t.TempDir()
	remote, err := NewDirRemote(filepath.Join(dir, "remote"))
	require.NoError(t, err)
	lock := NewFileLock(filepath.Join(dir, "db.lock"), "worker-1", time.Minute)
	localPath := filepath.Join(dir, "local.db")

	synced := NewSyncedDB(remote, lock, "app.db", localPath)

	// First run: no remote copy, fn creates the database.
	err = synced.WithLock(context.Background(), func(path string) error {
		return os.WriteFile(path, []byte("v1"), 0644)
	})
	require.NoError(t, err)

	data, err := remote.Fetch("app.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	// Second run: downloads v1, mutates to v2, uploads.
	err = synced.WithLock(context.Background(), func(path string) error {
		got, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("v1"), got)
		return os.WriteFile(path, []byte("v2"), 0644)
	})
	require.NoError(t, err)

	data, err = remote.Fetch("app.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	// The lock is released after each run.
	_, err = os.Stat(filepath.Join(dir, "db.lock"))
	assert.True(t, os.IsNotExist(err))
}

func TestSyncedDB_NoUploadOnError(t *testing.T) {
	dir := t.TempDir()
	remote, err := NewDirRemote(filepath.Join(dir, "remote"))
	require.NoError(t, err)
	lock := NewFileLock(filepath.Join(dir, "db.lock"), "worker-1", time.Minute)
	localPath := filepath.Join(dir, "local.db")

	synced := NewSyncedDB(remote, lock, "app.db", localPath)
	require.NoError(t, synced.WithLock(context.Background(), func(path string) error {
		return os.WriteFile(path, []byte("v1"), 0644)
	}))

	failure := os.ErrPermission
	err = synced.WithLock(context.Background(), func(path string) error {
		if writeErr := os.WriteFile(path, []byte("corrupt"), 0644); writeErr != nil {
			return writeErr
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	// The shared copy keeps its pre-mutation state.
	data, err := remote.Fetch("app.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)
}
