// Package api exposes the wipe service over HTTP: starting runs, polling
// session state, retrieving artifacts, and listing durable records.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/pyre/artifact"
	"github.com/jmcleod/pyre/session"
	"github.com/jmcleod/pyre/storage"
	"github.com/jmcleod/pyre/wipe"
)

// ownerHeader carries the caller identity. Token issuance and authorization
// live outside this service; an absent header maps to "anonymous".
const ownerHeader = "X-Owner"

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	store   *session.Store
	walker  *wipe.Walker
	records storage.RecordStore
	baseDir string
	sysInfo artifact.SystemInfo
	audit   *auditLogger
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSystemInfo overrides the host details rendered into on-demand
// certificates. Intended for tests.
func WithSystemInfo(sys artifact.SystemInfo) Option {
	return func(a *API) {
		a.sysInfo = sys
	}
}

// New creates a new API instance. baseDir is the directory all wipe targets
// must resolve inside of.
func New(store *session.Store, walker *wipe.Walker, records storage.RecordStore, baseDir string, opts ...Option) *API {
	a := &API{
		store:   store,
		walker:  walker,
		records: records,
		baseDir: baseDir,
		sysInfo: artifact.CollectSystemInfo(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/wipes", a.StartWipe)
	r.Get("/wipes/{sessionID}", a.GetWipe)
	r.Get("/wipes/{sessionID}/certificate", a.GetCertificate)
	r.Get("/wipes/{sessionID}/log", a.GetLog)

	r.Get("/records", a.ListRecords)
	r.Get("/records/{sessionID}", a.GetRecord)

	return r
}

func ownerFrom(r *http.Request) string {
	if owner := r.Header.Get(ownerHeader); owner != "" {
		return owner
	}
	return "anonymous"
}
