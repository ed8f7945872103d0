package api

import "github.com/jmcleod/pyre/session"

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StartWipeRequest is the JSON body for POST /wipes.
type StartWipeRequest struct {
	Paths           []string `json:"paths"`
	Passes          int      `json:"passes,omitempty"`
	Verify          bool     `json:"verify,omitempty"`
	RemoveEmptyDirs *bool    `json:"removeEmptyDirs,omitempty"`
}

// StartWipeResponse is returned from POST /wipes.
type StartWipeResponse struct {
	SessionID string   `json:"sessionId"`
	Status    string   `json:"status"`
	Warnings  []string `json:"warnings,omitempty"`
}

// SessionResponse is returned from GET /wipes/{sessionID}.
type SessionResponse struct {
	Session session.Session `json:"session"`
}

// ListRecordsResponse is returned from GET /records.
type ListRecordsResponse struct {
	Records []RecordSummary `json:"records"`
}

// RecordSummary is the list view of a durable wipe record.
type RecordSummary struct {
	SessionID        string `json:"sessionId"`
	Username         string `json:"username"`
	Status           string `json:"status"`
	FilesWiped       int    `json:"filesWiped"`
	DirectoriesWiped int    `json:"directoriesWiped"`
	TotalSize        int64  `json:"totalSize"`
	CertificateURL   string `json:"certificateUrl,omitempty"`
	LogsURL          string `json:"logsUrl,omitempty"`
}
