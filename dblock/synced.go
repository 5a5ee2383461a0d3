package dblock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Remote stores named blobs somewhere shared between processes.
type Remote interface {
	Fetch(name string) ([]byte, error)
	Store(name string, data []byte) error
	// Exists reports whether the named blob is present.
	Exists(name string) (bool, error)
}

// DirRemote is a Remote backed by a shared directory (NFS mount, synced
// folder, and the like).
type DirRemote struct {
	root string
}

func NewDirRemote(root string) (*DirRemote, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create remote directory: %w", err)
	}
	return &DirRemote{root: root}, nil
}

func (r *DirRemote) Fetch(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.root, name))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	return data, nil
}

func (r *DirRemote) Store(name string, data []byte) error {
	dest := filepath.Join(r.root, name)
	// Write to a temp file first so a crashed upload never leaves a
	// truncated database behind.
	tmp := dest + ".upload"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

func (r *DirRemote) Exists(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(r.root, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// SyncedDB coordinates exclusive mutation of a shared database file:
// acquire the lock, download the current copy, let the caller mutate it
// locally, upload the result, release the lock.
type SyncedDB struct {
	remote    Remote
	lock      *FileLock
	name      string
	localPath string
}

func NewSyncedDB(remote Remote, lock *FileLock, name, localPath string) *SyncedDB {
	return &SyncedDB{remote: remote, lock: lock, name: name, localPath: localPath}
}

// WithLock runs fn with exclusive access to the local copy of the shared
// database. A missing remote copy is treated as a fresh database. When fn
// fails the local copy is not uploaded, so the shared copy keeps its
// pre-mutation state.
func (s *SyncedDB) WithLock(ctx context.Context, fn func(localPath string) error) error {
	if err := s.lock.Acquire(ctx); err != nil {
		return err
	}
	defer s.lock.Release()

	// fn may hold the lock far longer than the steal timeout.
	stopHeartbeat := s.lock.Heartbeat(0)
	defer stopHeartbeat()

	exists, err := s.remote.Exists(s.name)
	if err != nil {
		return fmt.Errorf("failed to check remote database: %w", err)
	}
	if exists {
		data, err := s.remote.Fetch(s.name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(s.localPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write local database copy: %w", err)
		}
	}

	if err := fn(s.localPath); err != nil {
		return err
	}

	data, err := os.ReadFile(s.localPath)
	if err != nil {
		return fmt.Errorf("failed to read mutated database: %w", err)
	}
	return s.remote.Store(s.name, data)
}
