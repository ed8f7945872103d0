package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshotFile is the on-disk form of a session snapshot: the session fields
// plus the save timestamp and a provenance marker for recovered loads.
type snapshotFile struct {
	Session
	SavedAt time.Time `json:"savedAt"`
}

// SnapshotStore persists full session state as one JSON file per session id.
// Writes go to a temporary file first and are atomically renamed into place,
// so a crash mid-write can never corrupt the previous snapshot.
//
// Snapshots are advisory: crash recovery and polling fallback, never the
// source of truth while the session is live.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates the snapshot directory if needed.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

func (ss *SnapshotStore) path(sessionID string) string {
	return filepath.Join(ss.dir, sessionID+".json")
}

// Save writes the session state durably under <id>.json.
func (ss *SnapshotStore) Save(s Session) error {
	s.Provenance = "" // provenance describes the load path, never the stored state
	data, err := json.MarshalIndent(snapshotFile{Session: s, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", s.ID, err)
	}

	tmp, err := os.CreateTemp(ss.dir, s.ID+".json.tmp-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot %s: %w", s.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, ss.path(s.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing snapshot %s: %w", s.ID, err)
	}
	return nil
}

// Load reads the latest snapshot for the session id. Snapshots missing a
// valid id or status are treated as not found. The returned session carries
// recovered provenance.
func (ss *SnapshotStore) Load(sessionID string) (Session, error) {
	data, err := os.ReadFile(ss.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
		}
		return Session{}, fmt.Errorf("reading snapshot %s: %w", sessionID, err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return Session{}, fmt.Errorf("decoding snapshot %s: %w", sessionID, err)
	}
	if snap.ID == "" || !snap.Status.valid() {
		return Session{}, fmt.Errorf("snapshot %s missing id or status: %w", sessionID, ErrNotFound)
	}

	s := snap.Session
	s.Provenance = ProvenanceRecovered
	return s, nil
}

// Remove deletes the snapshot for a session id, if present.
func (ss *SnapshotStore) Remove(sessionID string) error {
	err := os.Remove(ss.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
