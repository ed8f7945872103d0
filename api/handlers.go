package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/pyre/artifact"
	"github.com/jmcleod/pyre/session"
	"github.com/jmcleod/pyre/wipe"
)

const defaultPasses = 3

// StartWipe validates the requested paths, creates a session, and launches
// the walker. Validation failures reject the whole request before any
// destructive action; paths that merely do not exist are reported back as
// warnings and skipped.
func (a *API) StartWipe(w http.ResponseWriter, r *http.Request) {
	var req StartWipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "at least one path is required")
		return
	}

	settings := wipe.Settings{
		Passes:          req.Passes,
		Verify:          req.Verify,
		RemoveEmptyDirs: true,
	}
	if settings.Passes == 0 {
		settings.Passes = defaultPasses
	}
	if req.RemoveEmptyDirs != nil {
		settings.RemoveEmptyDirs = *req.RemoveEmptyDirs
	}

	var (
		validated []wipe.ValidatedPath
		warnings  []string
	)
	for _, raw := range req.Paths {
		vp, err := wipe.ValidatePath(raw, a.baseDir)
		if err != nil {
			a.audit.log(AuditWipeRejected, r, slog.String("path", raw))
			mapError(w, err)
			return
		}
		if !wipe.Exists(vp.Full) {
			warnings = append(warnings, fmt.Sprintf("path does not exist: %s", vp.Relative))
			continue
		}
		validated = append(validated, vp)
	}
	if len(validated) == 0 {
		writeError(w, http.StatusBadRequest, "none of the requested paths exist")
		return
	}

	sess := a.store.Create(ownerFrom(r), validated, settings)
	a.audit.logSession(AuditWipeStarted, r, sess.ID)

	go a.runSession(sess.ID, validated, settings)

	writeJSON(w, http.StatusAccepted, StartWipeResponse{
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Warnings:  warnings,
	})
}

// runSession drives the walker across the session's paths and flips the
// session to its terminal state. Runs on its own goroutine; one walker per
// session, files strictly sequential within it.
func (a *API) runSession(sessionID string, paths []wipe.ValidatedPath, settings wipe.Settings) {
	total := 0
	for _, p := range paths {
		total += wipe.CountItems(p.Full)
	}
	if err := a.store.Begin(sessionID, total); err != nil {
		return
	}

	for _, p := range paths {
		a.walker.WipePath(p.Full, sessionID, settings)
	}

	snap, err := a.store.Get(sessionID)
	if err != nil {
		return
	}
	// Best-effort semantics: per-item failures never fail the run. Only a
	// run where nothing at all could be destroyed is marked failed.
	failed := snap.FilesWiped == 0 && snap.DirectoriesWiped == 0 && len(snap.Errors) > 0
	if err := a.store.Complete(sessionID, failed); err != nil {
		return
	}
}

// GetWipe returns the best currently-known session snapshot. Healthy ids
// never raise; sessions expired from live memory are served from their
// durable snapshot with recovered provenance.
func (a *API) GetWipe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, err := a.store.Get(sessionID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: snap})
}

// GetCertificate returns the certificate bytes, regenerated on demand from
// the current session snapshot when no stored artifact is available yet.
func (a *API) GetCertificate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, err := a.terminalSession(sessionID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logSession(AuditCertificateRetrieved, r, sessionID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(artifact.Certificate(snap, a.sysInfo))
}

// GetLog returns the detailed log bytes, regenerated on demand from the
// current session snapshot when no stored artifact is available yet.
func (a *API) GetLog(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, err := a.terminalSession(sessionID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logSession(AuditLogRetrieved, r, sessionID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(artifact.Log(snap))
}

// terminalSession loads a session and requires it to have reached a
// terminal state, since artifacts attest a finished run.
func (a *API) terminalSession(sessionID string) (session.Session, error) {
	snap, err := a.store.Get(sessionID)
	if err != nil {
		return session.Session{}, err
	}
	if !snap.Status.Terminal() {
		return session.Session{}, fmt.Errorf("session %s is %s: %w", sessionID, snap.Status, session.ErrNotTerminal)
	}
	return snap, nil
}

// ListRecords returns summaries of all durable wipe records.
func (a *API) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := a.records.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	out := ListRecordsResponse{Records: make([]RecordSummary, 0, len(records))}
	for _, rec := range records {
		out.Records = append(out.Records, RecordSummary{
			SessionID:        rec.SessionID,
			Username:         rec.Username,
			Status:           rec.Status,
			FilesWiped:       rec.FilesWiped,
			DirectoriesWiped: rec.DirectoriesWiped,
			TotalSize:        rec.TotalSize,
			CertificateURL:   rec.CertificateURL,
			LogsURL:          rec.LogsURL,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRecord returns the full durable record for a session.
func (a *API) GetRecord(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	record, err := a.records.Get(r.Context(), sessionID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logSession(AuditRecordAccessed, r, sessionID)
	writeJSON(w, http.StatusOK, record)
}
