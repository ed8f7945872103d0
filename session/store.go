package session

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/pyre/wipe"
)

const (
	defaultQueueSize = 64
	sweepInterval    = 5 * time.Minute
)

// CompletionHook is invoked exactly once when a session transitions into
// StatusCompleted. It runs on its own goroutine so the walker that triggered
// the transition never blocks on artifact work.
type CompletionHook func(sessionID string)

// Store is the session registry: the walker is the sole writer for a given
// session, pollers read detached copies. All durable snapshot writes are
// funneled through a bounded background queue so no mutation ever blocks on
// disk I/O.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	snapshots  *SnapshotStore
	queue      chan string
	onComplete CompletionHook
	retention  time.Duration
	logger     *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ wipe.Tracker = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the structured logger for snapshot and sweep events.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithCompletionHook registers the pipeline trigger fired on completion.
func WithCompletionHook(hook CompletionHook) StoreOption {
	return func(s *Store) { s.onComplete = hook }
}

// WithRetention sets how long terminal sessions stay in live memory after
// their last access. Expired sessions remain recoverable from snapshots.
// Zero disables the sweep.
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) { s.retention = d }
}

// WithQueueSize bounds the background snapshot queue.
func WithQueueSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.queue = make(chan string, n)
		}
	}
}

// NewStore creates a session store persisting snapshots through the given
// snapshot store.
func NewStore(snapshots *SnapshotStore, opts ...StoreOption) *Store {
	s := &Store{
		sessions:  make(map[string]*Session),
		snapshots: snapshots,
		queue:     make(chan string, defaultQueueSize),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s.wg.Add(1)
	go s.persistLoop()
	if s.retention > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

// SetCompletionHook registers the pipeline trigger after construction, for
// wiring where the pipeline itself depends on the store.
func (s *Store) SetCompletionHook(hook CompletionHook) {
	s.mu.Lock()
	s.onComplete = hook
	s.mu.Unlock()
}

// Close stops the background workers. Pending snapshot writes already queued
// are flushed before Close returns.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
}

// Create registers a new pending session and returns a detached copy.
func (s *Store) Create(owner string, paths []wipe.ValidatedPath, settings wipe.Settings) Session {
	now := time.Now().UTC()
	sess := &Session{
		ID:           uuid.NewString(),
		Owner:        owner,
		Status:       StatusPending,
		Paths:        append([]wipe.ValidatedPath(nil), paths...),
		Settings:     settings,
		StartTime:    now,
		LastAccessed: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	out := sess.clone()
	s.mu.Unlock()

	s.enqueueSnapshot(sess.ID)
	return out
}

// Begin moves a pending session to in-progress and sizes its progress
// denominator. The transition happens at most once.
func (s *Store) Begin(sessionID string, totalItems int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	if sess.Status != StatusPending {
		return fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, ErrAlreadyTerminal)
	}
	sess.Status = StatusInProgress
	sess.TotalItems = totalItems
	sess.LastAccessed = time.Now().UTC()
	s.enqueueSnapshot(sessionID)
	return nil
}

// Get returns a consistent detached snapshot of the session. On a live-map
// miss the latest durable snapshot is deserialized, re-installed, and served
// with recovered provenance.
func (s *Store) Get(sessionID string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	if ok {
		out := sess.clone()
		s.mu.RUnlock()
		out.Provenance = ProvenanceLive
		return out, nil
	}
	s.mu.RUnlock()

	recovered, err := s.snapshots.Load(sessionID)
	if err != nil {
		return Session{}, err
	}
	recovered.LastAccessed = time.Now().UTC()

	s.mu.Lock()
	// Another reader may have raced the recovery; keep whichever landed first.
	if live, ok := s.sessions[sessionID]; ok {
		out := live.clone()
		s.mu.Unlock()
		out.Provenance = ProvenanceLive
		return out, nil
	}
	installed := recovered
	installed.Provenance = ""
	s.sessions[sessionID] = &installed
	s.mu.Unlock()

	s.logger.Info("session recovered from snapshot", "session_id", sessionID, "status", recovered.Status)
	return recovered, nil
}

// Update is a mergeable delta against a live session. Counter fields are
// added, list fields appended; Progress, when set, overrides the recomputed
// value.
type Update struct {
	FilesWiped       int
	DirectoriesWiped int
	TotalSize        int64
	Processed        int
	Errors           []ErrorEntry
	Files            []wipe.Outcome
	Directories      []string
	Progress         *int
}

// ApplyUpdate merges the delta, recomputes progress when no explicit value
// is supplied, and schedules a durable snapshot write.
func (s *Store) ApplyUpdate(sessionID string, delta Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}

	sess.FilesWiped += delta.FilesWiped
	sess.DirectoriesWiped += delta.DirectoriesWiped
	sess.TotalSize += delta.TotalSize
	sess.ProcessedItems += delta.Processed
	sess.Errors = append(sess.Errors, delta.Errors...)
	sess.WipedFiles = append(sess.WipedFiles, delta.Files...)
	sess.WipedDirectories = append(sess.WipedDirectories, delta.Directories...)

	if delta.Progress != nil {
		sess.Progress = clampProgress(*delta.Progress, sess.Progress)
	} else if sess.TotalItems > 0 {
		computed := int(math.Round(float64(sess.ProcessedItems) / float64(sess.TotalItems) * 100))
		sess.Progress = clampProgress(computed, sess.Progress)
	}
	sess.LastAccessed = time.Now().UTC()

	s.enqueueSnapshot(sessionID)
	return nil
}

// clampProgress keeps progress within 0-100 and monotonically non-decreasing.
func clampProgress(next, current int) int {
	if next < current {
		return current
	}
	if next > 100 {
		return 100
	}
	return next
}

// Complete moves the session to its terminal state exactly once. The
// transition into StatusCompleted schedules the completion hook on its own
// goroutine, guarded so a session can never trigger the pipeline twice.
func (s *Store) Complete(sessionID string, failed bool) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	if sess.Status.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionID, ErrAlreadyTerminal)
	}

	now := time.Now().UTC()
	sess.EndTime = now
	sess.LastAccessed = now
	if failed {
		sess.Status = StatusFailed
	} else {
		sess.Status = StatusCompleted
		sess.Progress = 100
	}

	fireHook := sess.Status == StatusCompleted && !sess.completionFired && s.onComplete != nil
	if fireHook {
		sess.completionFired = true
	}
	s.mu.Unlock()

	s.enqueueSnapshot(sessionID)
	if fireHook {
		go s.onComplete(sessionID)
	}
	return nil
}

// SetArtifacts records the uploaded artifact locations. Called only by the
// completion pipeline, after which the URL fields are immutable.
func (s *Store) SetArtifacts(sessionID, certURL, certFile, logsURL, logsFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	sess.CertificateURL = certURL
	sess.CertificateFile = certFile
	sess.LogsURL = logsURL
	sess.LogsFile = logsFile
	sess.AutoUploaded = true
	sess.LastAccessed = time.Now().UTC()
	s.enqueueSnapshot(sessionID)
	return nil
}

// SetUploadFailed flags the session after a pipeline failure. The session
// status itself is never altered here.
func (s *Store) SetUploadFailed(sessionID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	sess.AutoUploadFailed = true
	sess.AutoUploadError = message
	sess.LastAccessed = time.Now().UTC()
	s.enqueueSnapshot(sessionID)
	return nil
}

// RecordFile implements wipe.Tracker.
func (s *Store) RecordFile(sessionID string, outcome wipe.Outcome) {
	err := s.ApplyUpdate(sessionID, Update{
		FilesWiped: 1,
		TotalSize:  outcome.Size,
		Processed:  1,
		Files:      []wipe.Outcome{outcome},
	})
	if err != nil {
		s.logger.Warn("dropping progress update", "session_id", sessionID, "error", err)
	}
}

// RecordDirectory implements wipe.Tracker.
func (s *Store) RecordDirectory(sessionID, path string, removed bool) {
	delta := Update{Processed: 1}
	if removed {
		delta.DirectoriesWiped = 1
		delta.Directories = []string{path}
	}
	if err := s.ApplyUpdate(sessionID, delta); err != nil {
		s.logger.Warn("dropping progress update", "session_id", sessionID, "error", err)
	}
}

// RecordError implements wipe.Tracker.
func (s *Store) RecordError(sessionID, path, message string) {
	err := s.ApplyUpdate(sessionID, Update{
		Processed: 1,
		Errors:    []ErrorEntry{{Path: path, Message: message}},
	})
	if err != nil {
		s.logger.Warn("dropping progress update", "session_id", sessionID, "error", err)
	}
}

// enqueueSnapshot schedules a non-blocking durable write of the session's
// full state. A full queue is logged and the write skipped; the next update
// for the session re-enqueues it, and the worker always serializes the
// state current at write time, so last-write-wins.
func (s *Store) enqueueSnapshot(sessionID string) {
	select {
	case s.queue <- sessionID:
	default:
		s.logger.Warn("snapshot queue full, write coalesced", "session_id", sessionID)
	}
}

func (s *Store) persistLoop() {
	defer s.wg.Done()
	for {
		select {
		case sessionID := <-s.queue:
			s.writeSnapshot(sessionID)
		case <-s.stopCh:
			// Flush whatever is still queued before shutting down.
			for {
				select {
				case sessionID := <-s.queue:
					s.writeSnapshot(sessionID)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) writeSnapshot(sessionID string) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	var snap Session
	if ok {
		snap = sess.clone()
	}
	s.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.snapshots.Save(snap); err != nil {
		s.logger.Error("snapshot write failed", "session_id", sessionID, "error", err)
	}
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired drops terminal sessions idle beyond the retention window from
// live memory. Their snapshots remain on disk for recovery.
func (s *Store) sweepExpired() {
	cutoff := time.Now().UTC().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.Status.Terminal() && sess.LastAccessed.Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Info("expired session from live memory", "session_id", id)
		}
	}
}
