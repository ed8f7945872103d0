// Package session tracks wipe runs: lifecycle state, live counters and
// progress, crash-survivable snapshots, and recovery.
package session

import (
	"errors"
	"time"

	"github.com/jmcleod/pyre/wipe"
)

// Status is the lifecycle state of a wipe session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is one of the two terminal states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Provenance values for a session snapshot served to a caller.
const (
	ProvenanceLive      = "live"
	ProvenanceRecovered = "recovered from durable storage"
)

var (
	// ErrNotFound indicates an unknown or expired session id.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyTerminal indicates a second terminal transition was attempted.
	ErrAlreadyTerminal = errors.New("session already terminal")
	// ErrNotTerminal indicates an operation that requires a finished session,
	// such as artifact retrieval, was attempted while the run is still live.
	ErrNotTerminal = errors.New("session not yet terminal")
)

// ErrorEntry is one recorded per-path failure, append-only for the life of
// the session.
type ErrorEntry struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Session is the full state of one wipe run. The store owns the canonical
// copy; every Session handed to a caller is a detached value copy.
type Session struct {
	ID       string               `json:"id"`
	Owner    string               `json:"owner"`
	Status   Status               `json:"status"`
	Paths    []wipe.ValidatedPath `json:"paths"`
	Settings wipe.Settings        `json:"settings"`

	FilesWiped       int   `json:"filesWiped"`
	DirectoriesWiped int   `json:"directoriesWiped"`
	TotalSize        int64 `json:"totalSize"`

	Errors   []ErrorEntry `json:"errors"`
	Progress int          `json:"progress"`

	// TotalItems and ProcessedItems drive progress recomputation; they are
	// sized before destruction starts and ticked once per item.
	TotalItems     int `json:"totalItems"`
	ProcessedItems int `json:"processedItems"`

	WipedFiles       []wipe.Outcome `json:"wipedFiles"`
	WipedDirectories []string       `json:"wipedDirectories"`

	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime,omitzero"`
	LastAccessed time.Time `json:"lastAccessed"`

	// Artifact fields, set only by the completion pipeline.
	CertificateURL   string `json:"certificateUrl,omitempty"`
	CertificateFile  string `json:"certificateFile,omitempty"`
	LogsURL          string `json:"logsUrl,omitempty"`
	LogsFile         string `json:"logsFile,omitempty"`
	AutoUploaded     bool   `json:"autoUploaded"`
	AutoUploadFailed bool   `json:"autoUploadFailed"`
	AutoUploadError  string `json:"autoUploadError,omitempty"`

	// Provenance records whether this snapshot came from live memory or was
	// recovered from durable storage. Never persisted as "recovered".
	Provenance string `json:"provenance,omitempty"`

	completionFired bool
}

// clone returns a deep copy safe to hand outside the store's lock.
func (s *Session) clone() Session {
	out := *s
	out.Paths = append([]wipe.ValidatedPath(nil), s.Paths...)
	out.Errors = append([]ErrorEntry(nil), s.Errors...)
	out.WipedFiles = append([]wipe.Outcome(nil), s.WipedFiles...)
	out.WipedDirectories = append([]string(nil), s.WipedDirectories...)
	return out
}

// RelativePaths returns the validated relative path specs in processing order.
func (s *Session) RelativePaths() []string {
	out := make([]string, len(s.Paths))
	for i, p := range s.Paths {
		out[i] = p.Relative
	}
	return out
}
