package rescue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
)

// SnapshotStore is a single-file JSON cache of the simulation state. Saves
// write a temporary file in the same directory and rename it over the
// target, so readers never observe a partial file.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore returns a store backed by path. An empty path disables
// persistence.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the backing file path.
func (s *SnapshotStore) Path() string { return s.path }

// Enabled reports whether the store has a backing file.
func (s *SnapshotStore) Enabled() bool { return s != nil && s.path != "" }

// Save atomically replaces the snapshot file with snap.
func (s *SnapshotStore) Save(snap state.Snapshot) error {
	if !s.Enabled() {
		return nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads and validates the snapshot. It returns ok=false without error
// when no snapshot exists. Malformed files yield an error wrapping
// state.ErrInvalidSnapshot.
func (s *SnapshotStore) Load() (snap state.Snapshot, ok bool, err error) {
	if !s.Enabled() {
		return state.Snapshot{}, false, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state.Snapshot{}, false, nil
	}
	if err != nil {
		return state.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return state.Snapshot{}, false, fmt.Errorf("%w: decode: %v", state.ErrInvalidSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return state.Snapshot{}, false, err
	}
	return snap, true, nil
}
