// Package pipeline ships audit artifacts for completed wipe sessions:
// certificate and log generation, object-storage upload, and the durable
// run record.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmcleod/pyre/artifact"
	"github.com/jmcleod/pyre/session"
	"github.com/jmcleod/pyre/storage"
)

const defaultUploadTimeout = 30 * time.Second

// Pipeline runs once per completed session. Its failures are recorded on
// the session and never escalate to wipe failure: the destruction already
// happened and its status is immutable here.
type Pipeline struct {
	store         *session.Store
	uploader      storage.Uploader
	records       storage.RecordStore
	tmpDir        string
	uploadTimeout time.Duration
	sysInfo       artifact.SystemInfo
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempDir overrides where intermediate artifact files are staged.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tmpDir = dir }
}

// WithUploadTimeout bounds each storage upload.
func WithUploadTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.uploadTimeout = d }
}

// WithSystemInfo overrides the host details rendered into certificates.
func WithSystemInfo(sys artifact.SystemInfo) Option {
	return func(p *Pipeline) { p.sysInfo = sys }
}

// WithLogger sets the structured logger for pipeline events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New creates a completion pipeline over the given collaborators.
func New(store *session.Store, uploader storage.Uploader, records storage.RecordStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		uploader:      uploader,
		records:       records,
		tmpDir:        os.TempDir(),
		uploadTimeout: defaultUploadTimeout,
		sysInfo:       artifact.CollectSystemInfo(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Run generates, uploads, and records the artifacts for one completed
// session. Intended as the session store's completion hook; it never
// returns an error to the trigger, failures are flagged on the session.
func (p *Pipeline) Run(sessionID string) {
	if err := p.run(sessionID); err != nil {
		p.logger.Error("artifact pipeline failed", "session_id", sessionID, "error", err)
		if ferr := p.store.SetUploadFailed(sessionID, err.Error()); ferr != nil {
			p.logger.Error("flagging upload failure", "session_id", sessionID, "error", ferr)
		}
	}
}

func (p *Pipeline) run(sessionID string) error {
	snap, err := p.store.Get(sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if snap.Status != session.StatusCompleted {
		return fmt.Errorf("session is %s, artifacts require completion", snap.Status)
	}

	certName := fmt.Sprintf("wipe_certificate_%s.txt", sessionID)
	logName := fmt.Sprintf("wipe_log_%s.txt", sessionID)

	certPath, err := p.stageArtifact(certName, artifact.Certificate(snap, p.sysInfo))
	if err != nil {
		return err
	}
	defer p.cleanup(certPath)

	logPath, err := p.stageArtifact(logName, artifact.Log(snap))
	if err != nil {
		return err
	}
	defer p.cleanup(logPath)

	ctx, cancel := context.WithTimeout(context.Background(), p.uploadTimeout)
	defer cancel()

	certResult, err := p.uploader.Upload(ctx, certPath, certName)
	if err != nil {
		return fmt.Errorf("uploading certificate: %w", err)
	}
	if !certResult.Success {
		return fmt.Errorf("uploading certificate: %s", certResult.Error)
	}
	logResult, err := p.uploader.Upload(ctx, logPath, logName)
	if err != nil {
		return fmt.Errorf("uploading log: %w", err)
	}
	if !logResult.Success {
		return fmt.Errorf("uploading log: %s", logResult.Error)
	}

	record := storage.Record{
		Username:         snap.Owner,
		SessionID:        snap.ID,
		CertificateURL:   certResult.URL,
		CertificateFile:  certName,
		LogsURL:          logResult.URL,
		LogsFile:         logName,
		FilesWiped:       snap.FilesWiped,
		DirectoriesWiped: snap.DirectoriesWiped,
		TotalSize:        snap.TotalSize,
		Status:           string(snap.Status),
		StartTime:        snap.StartTime,
		EndTime:          snap.EndTime,
		Paths:            snap.RelativePaths(),
		Settings: storage.RecordSettings{
			Passes:          snap.Settings.Passes,
			Verify:          snap.Settings.Verify,
			RemoveEmptyDirs: snap.Settings.RemoveEmptyDirs,
		},
	}
	recordID, err := p.records.Upsert(ctx, sessionID, record)
	if err != nil {
		return fmt.Errorf("persisting durable record: %w", err)
	}

	if err := p.store.SetArtifacts(sessionID, certResult.URL, certName, logResult.URL, logName); err != nil {
		return fmt.Errorf("updating session artifacts: %w", err)
	}

	p.logger.Info("artifacts shipped",
		"session_id", sessionID,
		"record_id", recordID,
		"certificate_url", certResult.URL,
		"logs_url", logResult.URL)
	return nil
}

// stageArtifact writes rendered artifact bytes to a temporary local file.
func (p *Pipeline) stageArtifact(name string, data []byte) (string, error) {
	f, err := os.CreateTemp(p.tmpDir, name+"-*")
	if err != nil {
		return "", fmt.Errorf("staging %s: %w", name, err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing %s: %w", name, err)
	}
	return path, nil
}

// cleanup is best-effort removal of a staged artifact, run regardless of
// how far the pipeline got.
func (p *Pipeline) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("leaving staged artifact behind", "path", path, "error", err)
	}
}
