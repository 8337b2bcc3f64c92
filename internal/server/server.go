// Package server is the HTTP host for the reconciliation engine. It adapts
// the engine's buildSnapshot/compare/classify/applyFix surface to JSON
// endpoints; all hierarchy logic lives in internal/sync and
// internal/hierarchy.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"orgsync/internal/domain"
	"orgsync/internal/providers"
	syncengine "orgsync/internal/sync"
)

// Options wires the server's collaborators.
type Options struct {
	Log    *logrus.Logger
	Source providers.DirectoryProvider // source of record (msgraph)
	Target providers.DirectoryProvider // target directory read side (slack)
	Writer syncengine.TargetDirectory  // target directory write side

	// CSVLoader returns the newest HR snapshot file contents, when an
	// SFTP drop is configured. nil disables the "csv" source.
	CSVLoader func(ctx context.Context) (string, []byte, error)

	// Auth. Empty JWTSecret disables the authorizer (local dev).
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// run is one comparison run: the classified records plus the reconciler
// bound to the snapshots the records were classified against. Replaced
// wholesale by the next compare call.
type run struct {
	target     domain.Snapshot
	source     domain.Snapshot
	records    []*domain.ReconciliationRecord
	reconciler *syncengine.Reconciler
}

type Server struct {
	opts Options
	log  *logrus.Logger

	mu  sync.Mutex
	cur *run
}

func New(opts Options) *Server {
	return &Server{opts: opts, log: opts.Log}
}

// Router builds the HTTP routes. /healthz is open; everything under /api
// goes through the request-id, logging and (when configured) JWT
// middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requestID, s.accessLog)
	if s.opts.JWTSecret != "" {
		api.Use(s.authorize)
	}

	api.HandleFunc("/users/{source}", s.handleGetUsers).Methods(http.MethodGet)
	api.HandleFunc("/compare", s.handleCompare).Methods(http.MethodPost)
	api.HandleFunc("/fix", s.handleFix).Methods(http.MethodPost)
	api.HandleFunc("/slack/users", s.handlePatchSlackUser).Methods(http.MethodPatch)
	api.HandleFunc("/slack/users", s.handlePostSlackUser).Methods(http.MethodPost)
	api.HandleFunc("/export/{source}", s.handleExport).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
