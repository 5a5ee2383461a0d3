// Package dblock synchronizes a shared database file across independent
// processes with a coarse advisory lock: acquire, download, mutate, upload,
// release. The lock is non-reentrant and blocks all writers; it is not a
// per-row lock. A time-boxed timeout recovers from a crashed holder.
package dblock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultLockTimeout is how long a lock may be held before another process
// may steal it from a presumed-dead holder.
const DefaultLockTimeout = 600 * time.Second

const pollInterval = 2 * time.Second

// LockInfo is the content of the lock file.
type LockInfo struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// FileLock is an advisory lock backed by an exclusively-created lock file.
type FileLock struct {
	path    string
	holder  string
	timeout time.Duration
}

// NewFileLock creates a lock handle. holder identifies this process in the
// lock file. A timeout <= 0 uses DefaultLockTimeout.
func NewFileLock(path, holder string, timeout time.Duration) *FileLock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &FileLock{path: path, holder: holder, timeout: timeout}
}

// Acquire blocks until the lock is obtained or ctx is done. A lock held
// longer than the timeout is considered stale and stolen.
func (l *FileLock) Acquire(ctx context.Context) error {
	for {
		acquired, err := l.tryAcquire()
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to acquire lock %s: %w", l.path, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (l *FileLock) tryAcquire() (bool, error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		info := LockInfo{Holder: l.holder, AcquiredAt: time.Now().UTC()}
		encodeErr := json.NewEncoder(file).Encode(info)
		closeErr := file.Close()
		if encodeErr != nil {
			os.Remove(l.path)
			return false, fmt.Errorf("failed to write lock file: %w", encodeErr)
		}
		if closeErr != nil {
			os.Remove(l.path)
			return false, fmt.Errorf("failed to close lock file: %w", closeErr)
		}
		return true, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}

	// Lock exists; steal it if the holder looks dead.
	data, readErr := os.ReadFile(l.path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return false, nil // released between our attempts
		}
		return false, fmt.Errorf("failed to read lock file: %w", readErr)
	}

	var info LockInfo
	if json.Unmarshal(data, &info) != nil || time.Since(info.AcquiredAt) > l.timeout {
		// Unreadable or expired lock: remove and retry on the next poll.
		os.Remove(l.path)
	}
	return false, nil
}

// Refresh rewrites the lock file with a current timestamp so a live holder
// is not mistaken for a dead one. Call only while holding the lock.
func (l *FileLock) Refresh() error {
	info := LockInfo{Holder: l.holder, AcquiredAt: time.Now().UTC()}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode lock info: %w", err)
	}
	// Rename keeps the lock file readable at every instant; a torn write
	// would look like a corrupt lock and get removed by another process.
	tmp := l.path + ".refresh"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", l.path, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to refresh lock %s: %w", l.path, err)
	}
	return nil
}

// Heartbeat refreshes the lock periodically until the returned stop
// function is called. An interval <= 0 refreshes at a third of the steal
// timeout. Call only while holding the lock; holds longer than the timeout
// (a serve session, a long ingestion) need it to keep other processes from
// stealing the lock.
func (l *FileLock) Heartbeat(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = l.timeout / 3
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.Refresh()
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// Release removes the lock file. Releasing an already-released lock is not
// an error.
func (l *FileLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}
