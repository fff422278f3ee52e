// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

// Package verify provides the HTTP verification surface consumed by world
// servers.
//
// The service answers one question: is this credential currently valid for
// this account, and where does the account redirect. It never mutates
// anything and never discloses more than validity and the redirect target.
//
// Integrator note: a transient store failure is reported as 503 (legacy
// route: 500), never as "invalid". A world server must not treat an outage
// as proof that a player is logged out; the recommended policy is to fail
// closed and deny access until the authority answers.
package verify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/lusso/lusso/internal/auth"
)

// maxBodyBytes bounds the JSON request body. Username plus credential fit in
// well under a kilobyte.
const maxBodyBytes = 1024

// Verifier defines the credential check the handlers need.
type Verifier interface {
	Verify(ctx context.Context, username, credential string) (auth.Verification, error)
}

// MetricsRecorder records verification outcomes.
type MetricsRecorder interface {
	RecordVerification(result string)
}

// Server serves the verification API.
type Server struct {
	addr       string
	tlsConfig  *tls.Config
	verifier   Verifier
	metrics    MetricsRecorder
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	mu         sync.RWMutex
}

// NewServer creates a verification server. tlsConfig and metrics may be nil.
func NewServer(addr string, tlsConfig *tls.Config, verifier Verifier, metrics MetricsRecorder, logger *slog.Logger) (*Server, error) {
	if verifier == nil {
		return nil, oops.Errorf("verifier is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:      addr,
		tlsConfig: tlsConfig,
		verifier:  verifier,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Addr returns the server's listen address, or "" before Run has bound it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Router builds the HTTP routes. Exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/verify", s.handleVerify).Methods(http.MethodPost)
	// Legacy route kept for world servers that predate the JSON API.
	r.HandleFunc("/verify/{username}/{credential}", s.handleLegacyVerify).Methods(http.MethodGet)
	return r
}

// Run starts the server and blocks until the context is cancelled. A bind
// failure is returned immediately so startup can abort before any surface is
// partially live.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("VERIFY_BIND_FAILED").With("addr", s.addr).Wrap(err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	httpServer := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info("verification server started", "addr", listener.Addr().String(), "tls", s.tlsConfig != nil)

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Warn("verification server shutdown error", "error", shutdownErr)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return oops.Code("VERIFY_SERVE_FAILED").Wrap(err)
		}
		return nil
	}
}

type verifyRequest struct {
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

type verifyResponse struct {
	Valid        bool   `json:"valid"`
	RedirectHost string `json:"redirect_host,omitempty"`
	RedirectPort uint16 `json:"redirect_port,omitempty"`
	Error        string `json:"error,omitempty"`
}

// handleVerify serves POST /v1/verify.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.record("malformed")
		writeJSON(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "malformed_request"})
		return
	}
	if req.Username == "" || req.Credential == "" {
		s.record("malformed")
		writeJSON(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "malformed_request"})
		return
	}

	result, err := s.verifier.Verify(r.Context(), req.Username, req.Credential)
	if err != nil {
		s.record("transient")
		s.logger.Error("verification failed",
			"event", "verify_error",
			"username", req.Username,
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, verifyResponse{Valid: false, Error: "transient"})
		return
	}

	switch result.Status {
	case auth.StatusValid:
		s.record("valid")
		writeJSON(w, http.StatusOK, verifyResponse{
			Valid:        true,
			RedirectHost: result.RedirectHost,
			RedirectPort: result.RedirectPort,
		})
	case auth.StatusUnknownAccount:
		// Safe to disclose here: callers are trusted world-server operators,
		// unlike the player-facing login surface.
		s.record("unknown_account")
		writeJSON(w, http.StatusNotFound, verifyResponse{Valid: false, Error: "unknown_account"})
	default:
		s.record("invalid")
		writeJSON(w, http.StatusOK, verifyResponse{Valid: false})
	}
}

// handleLegacyVerify serves GET /verify/{username}/{credential} with the
// original plain-text contract: 200 with body "1" or "0", 500 on store
// failure. Unknown accounts answer "0" on this route.
func (s *Server) handleLegacyVerify(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	username := vars["username"]
	credential := vars["credential"]

	result, err := s.verifier.Verify(r.Context(), username, credential)
	if err != nil {
		s.record("transient")
		s.logger.Error("verification failed",
			"event", "verify_error",
			"username", username,
			"error", err,
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if result.Status == auth.StatusValid {
		s.record("valid")
		w.Write([]byte("1")) //nolint:errcheck // client may disconnect
		return
	}
	if result.Status == auth.StatusUnknownAccount {
		s.record("unknown_account")
	} else {
		s.record("invalid")
	}
	w.Write([]byte("0")) //nolint:errcheck // client may disconnect
}

func (s *Server) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordVerification(result)
	}
}

func writeJSON(w http.ResponseWriter, status int, body verifyResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	_ = json.NewEncoder(w).Encode(body)
}
