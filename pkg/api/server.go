// Package api exposes the session manager and mailbox service over HTTP.
// The layer is deliberately thin: it translates requests into service calls
// and service errors into status codes, nothing more.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/driftmail/driftmail/pkg/logging"
	"github.com/driftmail/driftmail/pkg/mailbox"
	"github.com/driftmail/driftmail/pkg/session"
)

// Server is the HTTP front of the service.
type Server struct {
	mailbox *mailbox.Service
	manager *session.Manager
	log     *logging.Logger
	httpSrv *http.Server
}

// NewServer wires the routes and returns a server listening on addr once
// ListenAndServe is called.
func NewServer(addr string, mbx *mailbox.Service, manager *session.Manager, log *logging.Logger) *Server {
	s := &Server{
		mailbox: mbx,
		manager: manager,
		log:     log,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /create-email", s.handleCreateEmail)
	mux.HandleFunc("GET /get-inbox/{sessionId}", s.handleGetInbox)
	mux.HandleFunc("GET /kill-session/{sessionId}", s.handleKillSession)
	mux.HandleFunc("POST /kill-session/{sessionId}", s.handleKillSession)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.log.Infof("listening on %s", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops accepting new connections and waits for in-flight requests,
// bounded by ctx. Session draining is the caller's job.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleCreateEmail(w http.ResponseWriter, r *http.Request) {
	id, email, err := s.mailbox.CreateInbox(r.Context())
	if err != nil {
		s.log.Errorf("create-email failed: %v", err)
		if errors.Is(err, session.ErrCapacityExceeded) {
			writeError(w, http.StatusServiceUnavailable, "Too many active sessions, try again later")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": id,
		"email":     email,
	})
}

func (s *Server) handleGetInbox(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")

	messages, err := s.mailbox.FetchInbox(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrSessionClosed) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		s.log.Errorf("get-inbox failed for session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch inbox")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"inbox": messages,
	})
}

func (s *Server) handleKillSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")

	err := s.manager.Close(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session killed"})
	case errors.Is(err, session.ErrNotFound):
		// Killing an already-dead session is fine.
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session already closed"})
	default:
		s.log.Errorf("kill-session failed for session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to kill session")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  s.manager.Active(),
	})
}
