package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/pyre/artifact"
	"github.com/jmcleod/pyre/session"
	"github.com/jmcleod/pyre/storage"
	"github.com/jmcleod/pyre/storage/memory"
	"github.com/jmcleod/pyre/wipe"
)

// captureUploader records uploaded payloads keyed by artifact name.
type captureUploader struct {
	mu       sync.Mutex
	payloads map[string]string
	failWith error
}

func newCaptureUploader() *captureUploader {
	return &captureUploader{payloads: make(map[string]string)}
}

func (u *captureUploader) Upload(_ context.Context, localPath, name string) (storage.UploadResult, error) {
	if u.failWith != nil {
		return storage.UploadResult{Error: u.failWith.Error()}, u.failWith
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return storage.UploadResult{Error: err.Error()}, err
	}
	u.mu.Lock()
	u.payloads[name] = string(data)
	u.mu.Unlock()
	return storage.UploadResult{URL: "/artifacts/" + name, Success: true}, nil
}

func (u *captureUploader) payload(name string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.payloads[name]
}

func completedTestSession(t *testing.T, store *session.Store) session.Session {
	t.Helper()
	paths := []wipe.ValidatedPath{{Relative: "docs", Full: "/srv/files/docs"}}
	sess := store.Create("carol", paths, wipe.Settings{Passes: 7, RemoveEmptyDirs: true})
	require.NoError(t, store.Begin(sess.ID, 2))
	store.RecordFile(sess.ID, wipe.Outcome{Path: "/srv/files/docs/a.txt", Size: 1024, PassesCompleted: 7, Success: true})
	store.RecordDirectory(sess.ID, "/srv/files/docs", true)
	require.NoError(t, store.Complete(sess.ID, false))
	return sess
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	snapshots, err := session.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	store := session.NewStore(snapshots)
	t.Cleanup(store.Close)
	return store
}

func TestRunShipsArtifacts(t *testing.T) {
	store := newTestStore(t)
	uploader := newCaptureUploader()
	records := memory.NewRecordStore()
	p := New(store, uploader, records,
		WithTempDir(t.TempDir()),
		WithSystemInfo(artifact.SystemInfo{Hostname: "node-1", OS: "linux", Arch: "amd64", Runtime: "go1.26"}))

	sess := completedTestSession(t, store)
	p.Run(sess.ID)

	certName := "wipe_certificate_" + sess.ID + ".txt"
	logName := "wipe_log_" + sess.ID + ".txt"

	assert.Contains(t, uploader.payload(certName), "CERTIFICATE OF DATA DESTRUCTION")
	assert.Contains(t, uploader.payload(logName), "WIPE SESSION LOG")

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.AutoUploaded)
	assert.False(t, got.AutoUploadFailed)
	assert.Equal(t, "/artifacts/"+certName, got.CertificateURL)
	assert.Equal(t, certName, got.CertificateFile)
	assert.Equal(t, "/artifacts/"+logName, got.LogsURL)
	assert.Equal(t, logName, got.LogsFile)

	record, err := records.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, record.RecordID)
	assert.Equal(t, "carol", record.Username)
	assert.Equal(t, 1, record.FilesWiped)
	assert.Equal(t, 1, record.DirectoriesWiped)
	assert.Equal(t, int64(1024), record.TotalSize)
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, []string{"docs"}, record.Paths)
	assert.Equal(t, 7, record.Settings.Passes)
}

func TestRunIsIdempotentPerSession(t *testing.T) {
	store := newTestStore(t)
	uploader := newCaptureUploader()
	records := memory.NewRecordStore()
	p := New(store, uploader, records, WithTempDir(t.TempDir()))

	sess := completedTestSession(t, store)
	p.Run(sess.ID)
	first, err := records.Get(context.Background(), sess.ID)
	require.NoError(t, err)

	p.Run(sess.ID)
	second, err := records.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, second.RecordID)

	all, err := records.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunUploadFailureFlagsSession(t *testing.T) {
	store := newTestStore(t)
	uploader := newCaptureUploader()
	uploader.failWith = errors.New("object store unreachable")
	records := memory.NewRecordStore()
	p := New(store, uploader, records, WithTempDir(t.TempDir()))

	sess := completedTestSession(t, store)
	p.Run(sess.ID)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, got.Status, "pipeline failure must not change session status")
	assert.False(t, got.AutoUploaded)
	assert.True(t, got.AutoUploadFailed)
	assert.Contains(t, got.AutoUploadError, "object store unreachable")
	assert.Empty(t, got.CertificateURL)

	_, err = records.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunUnsuccessfulResultFlagsSession(t *testing.T) {
	store := newTestStore(t)
	records := memory.NewRecordStore()
	p := New(store, resultFailUploader{}, records, WithTempDir(t.TempDir()))

	sess := completedTestSession(t, store)
	p.Run(sess.ID)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.AutoUploadFailed)
	assert.Contains(t, got.AutoUploadError, "quota exceeded")
}

// resultFailUploader reports failure through the result rather than an error.
type resultFailUploader struct{}

func (resultFailUploader) Upload(context.Context, string, string) (storage.UploadResult, error) {
	return storage.UploadResult{Success: false, Error: "quota exceeded"}, nil
}

func TestRunRequiresCompletedSession(t *testing.T) {
	store := newTestStore(t)
	records := memory.NewRecordStore()
	p := New(store, newCaptureUploader(), records, WithTempDir(t.TempDir()))

	sess := store.Create("carol", []wipe.ValidatedPath{{Relative: "docs", Full: "/srv/files/docs"}}, wipe.Settings{Passes: 3})
	p.Run(sess.ID)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPending, got.Status)
	assert.True(t, got.AutoUploadFailed)

	_, err = records.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunFailedSessionShipsNothing(t *testing.T) {
	store := newTestStore(t)
	records := memory.NewRecordStore()
	uploader := newCaptureUploader()
	p := New(store, uploader, records, WithTempDir(t.TempDir()))

	sess := store.Create("carol", []wipe.ValidatedPath{{Relative: "docs", Full: "/srv/files/docs"}}, wipe.Settings{Passes: 3})
	require.NoError(t, store.Begin(sess.ID, 1))
	require.NoError(t, store.Complete(sess.ID, true))

	p.Run(sess.ID)

	uploader.mu.Lock()
	uploaded := len(uploader.payloads)
	uploader.mu.Unlock()
	assert.Zero(t, uploaded)
}

func TestRunCleansStagedFiles(t *testing.T) {
	store := newTestStore(t)
	tmpDir := t.TempDir()
	p := New(store, newCaptureUploader(), memory.NewRecordStore(), WithTempDir(tmpDir))

	sess := completedTestSession(t, store)
	p.Run(sess.ID)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "wipe_"), "staged artifact %s left behind", e.Name())
	}
}

func TestRunHonorsUploadTimeout(t *testing.T) {
	store := newTestStore(t)
	p := New(store, slowUploader{}, memory.NewRecordStore(),
		WithTempDir(t.TempDir()),
		WithUploadTimeout(50*time.Millisecond))

	sess := completedTestSession(t, store)
	p.Run(sess.ID)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.AutoUploadFailed)
}

// slowUploader blocks until the context expires.
type slowUploader struct{}

func (slowUploader) Upload(ctx context.Context, _, _ string) (storage.UploadResult, error) {
	<-ctx.Done()
	return storage.UploadResult{Error: ctx.Err().Error()}, ctx.Err()
}
