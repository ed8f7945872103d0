package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/pyre/wipe"
)

func testSession(id string) Session {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	return Session{
		ID:     id,
		Owner:  "carol",
		Status: StatusInProgress,
		Paths: []wipe.ValidatedPath{
			{Relative: "docs", Full: "/srv/files/docs"},
		},
		Settings:       wipe.Settings{Passes: 3, RemoveEmptyDirs: true},
		FilesWiped:     2,
		TotalSize:      512,
		Progress:       40,
		TotalItems:     5,
		ProcessedItems: 2,
		Errors:         []ErrorEntry{{Path: "/srv/files/docs/x", Message: "boom"}},
		StartTime:      now,
		LastAccessed:   now,
	}
}

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	ss, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	want := testSession("sess-1")
	require.NoError(t, ss.Save(want))

	got, err := ss.Load("sess-1")
	require.NoError(t, err)

	assert.Equal(t, ProvenanceRecovered, got.Provenance)
	got.Provenance = ""
	assert.Equal(t, want, got)
}

func TestSnapshotLoadIsIdempotent(t *testing.T) {
	ss, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ss.Save(testSession("sess-1")))

	first, err := ss.Load("sess-1")
	require.NoError(t, err)
	second, err := ss.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSnapshotSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	ss, err := NewSnapshotStore(dir)
	require.NoError(t, err)
	require.NoError(t, ss.Save(testSession("sess-1")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sess-1.json", entries[0].Name())
}

func TestSnapshotSaveRecordsSavedAt(t *testing.T) {
	dir := t.TempDir()
	ss, err := NewSnapshotStore(dir)
	require.NoError(t, err)
	require.NoError(t, ss.Save(testSession("sess-1")))

	data, err := os.ReadFile(filepath.Join(dir, "sess-1.json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "savedAt")
	assert.NotContains(t, raw, "provenance")
}

func TestSnapshotLoadMissing(t *testing.T) {
	ss, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	_, err = ss.Load("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing id", body: `{"status":"completed","savedAt":"2026-05-04T12:00:00Z"}`},
		{name: "missing status", body: `{"id":"sess-1","savedAt":"2026-05-04T12:00:00Z"}`},
		{name: "unknown status", body: `{"id":"sess-1","status":"exploded"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ss, err := NewSnapshotStore(dir)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "sess-1.json"), []byte(tt.body), 0o600))

			_, err = ss.Load("sess-1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSnapshotRemove(t *testing.T) {
	ss, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ss.Save(testSession("sess-1")))

	require.NoError(t, ss.Remove("sess-1"))
	_, err = ss.Load("sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing twice is not an error.
	require.NoError(t, ss.Remove("sess-1"))
}

func TestSnapshotFileNameContainsSessionID(t *testing.T) {
	dir := t.TempDir()
	ss, err := NewSnapshotStore(dir)
	require.NoError(t, err)
	require.NoError(t, ss.Save(testSession("abc-123")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "abc-123"))
}
