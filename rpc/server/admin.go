package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"net"
	"net/http"
	"strconv"
	"time"
)

// AdminHandler returns the admin API of the server:
//
//	GET    /metrics                 prometheus metrics
//	GET    /claims                  all claims
//	GET    /claims/owner/{owner}    all claims of owner
//	GET    /claims/home/{owner}     the claim of owner with the lowest location
//	GET    /sessions                connected users
//	DELETE /claims/{location}       remove a claim as the system
//	DELETE /claims/owner/{owner}    remove every claim of owner as the system
func (s *RPCServer) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /claims", s.handleListClaims)
	mux.HandleFunc("GET /claims/owner/{owner}", s.handleListOwnerClaims)
	mux.HandleFunc("GET /claims/home/{owner}", s.handleHomeClaim)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("DELETE /claims/{location}", s.handleRemoveClaim)
	mux.HandleFunc("DELETE /claims/owner/{owner}", s.handleRemoveOwnerClaims)
	return mux
}

// serveAdmin binds the admin endpoint and serves it in the background
func (s *RPCServer) serveAdmin() error {
	listener, err := net.Listen("tcp", s.config.AdminEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on admin endpoint: %w", err)
	}

	srv := &http.Server{
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.adminMu.Lock()
	s.admin = srv
	s.adminMu.Unlock()

	Logger.Infof("Starting admin endpoint on %s", listener.Addr())
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Admin endpoint failed: %v", err)
		}
	}()
	return nil
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *RPCServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WritePrometheus(w)
}

func (s *RPCServer) handleListClaims(w http.ResponseWriter, _ *http.Request) {
	records, err := s.store.ListAll()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": nonNil(records), "count": len(records)})
}

func (s *RPCServer) handleListOwnerClaims(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListByOwner(r.PathValue("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": nonNil(records), "count": len(records)})
}

func (s *RPCServer) handleHomeClaim(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	record, found, err := s.store.FindByOwner(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, claimstore.NewError(claimstore.RetCNotFound, fmt.Sprintf("%s has no claim", owner)))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *RPCServer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	users := []string{}
	for _, session := range s.sessions.ConnectedClients() {
		users = append(users, session.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

func (s *RPCServer) handleRemoveClaim(w http.ResponseWriter, r *http.Request) {
	location, err := strconv.Atoi(r.PathValue("location"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location must be an integer"})
		return
	}
	if err := s.claims.RemoveAsSystem(location); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": 1})
}

func (s *RPCServer) handleRemoveOwnerClaims(w http.ResponseWriter, r *http.Request) {
	removed, err := s.claims.RemoveAllOf(r.PathValue("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warningf("Failed to write admin response: %v", err)
	}
}

// writeError maps store errors to http status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, claimstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, claimstore.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, claimstore.ErrUnauthorized):
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func nonNil(records []claimstore.ClaimRecord) []claimstore.ClaimRecord {
	if records == nil {
		return []claimstore.ClaimRecord{}
	}
	return records
}
