// Package storage defines the external collaborator contracts the wipe core
// depends on: artifact upload and durable run records.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no durable record exists for a session id.
var ErrNotFound = errors.New("record not found")

// UploadResult reports the outcome of shipping one artifact.
type UploadResult struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Uploader ships a local artifact file to object storage under the given
// name. Implementations must honor ctx cancellation.
type Uploader interface {
	Upload(ctx context.Context, localPath, name string) (UploadResult, error)
}

// RecordSettings echoes the wipe settings into the durable record.
type RecordSettings struct {
	Passes          int  `json:"passes"`
	Verify          bool `json:"verify"`
	RemoveEmptyDirs bool `json:"removeEmptyDirs"`
}

// Record is the durable trace of a completed wipe run.
type Record struct {
	RecordID         string         `json:"recordId"`
	Username         string         `json:"username"`
	SessionID        string         `json:"sessionId"`
	CertificateURL   string         `json:"certificateUrl"`
	CertificateFile  string         `json:"certificateFile"`
	LogsURL          string         `json:"logsUrl"`
	LogsFile         string         `json:"logsFile"`
	FilesWiped       int            `json:"filesWiped"`
	DirectoriesWiped int            `json:"directoriesWiped"`
	TotalSize        int64          `json:"totalSize"`
	Status           string         `json:"status"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          time.Time      `json:"endTime"`
	Paths            []string       `json:"paths"`
	Settings         RecordSettings `json:"settings"`
}

// RecordStore persists durable records keyed by session id. Upsert is
// idempotent: repeated calls with the same session id update the record in
// place and return the record id assigned on first insert.
type RecordStore interface {
	Upsert(ctx context.Context, sessionID string, record Record) (string, error)
	Get(ctx context.Context, sessionID string) (Record, error)
	List(ctx context.Context) ([]Record, error)
}
