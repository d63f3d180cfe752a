package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store is a flat JSON blob key-value store with versioned,
// compare-and-swap updates. All mutation goes through Update, which
// holds the store lock for the whole read-modify-write cycle, so two
// overlapping scheduler passes can never both act on the same stale
// snapshot.
type Store struct {
	mu      sync.Mutex
	path    string
	state   State
	version uint64
}

// ErrStaleVersion is returned by Commit when the caller's snapshot no
// longer matches the committed version.
var ErrStaleVersion = errors.New("store: stale version")

// fileBlob is the on-disk shape: the version counter travels with the
// state so restarts keep CAS semantics meaningful.
type fileBlob struct {
	Version uint64 `json:"version"`
	State   State  `json:"state"`
}

// Open loads the state blob at path, initializing an empty one if the
// file does not exist. Path may be empty for an in-memory store
// (used by tests).
func Open(path string) (*Store, error) {
	s := &Store{path: path, state: newState()}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}

	var blob fileBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	blob.State.normalize()
	s.state = blob.State
	s.version = blob.Version
	return s, nil
}

// Version returns the current committed version.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns a deep copy of the current state and its version.
func (s *Store) Snapshot() (State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone(), s.version
}

// View runs fn against a read-only snapshot of the state.
func (s *Store) View(fn func(State)) {
	snap, _ := s.Snapshot()
	fn(snap)
}

// Update runs fn against a mutable copy of the state and, if fn
// returns nil, persists and commits it as one atomic step. The lock is
// held for the whole cycle.
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	return s.commitLocked(next, s.version)
}

// Commit applies a snapshot produced from the given version, failing
// with ErrStaleVersion if another writer committed in between. Callers
// that can tolerate blocking should prefer Update.
func (s *Store) Commit(next State, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(next.clone(), version)
}

func (s *Store) commitLocked(next State, version uint64) error {
	if version != s.version {
		return ErrStaleVersion
	}
	if err := s.persist(next, version+1); err != nil {
		return err
	}
	s.state = next
	s.version = version + 1
	return nil
}

// persist writes the blob atomically via a temp file + rename, 0600.
func (s *Store) persist(st State, version uint64) error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileBlob{Version: version, State: st}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".remindd-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
