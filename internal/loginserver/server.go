// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

// Package loginserver provides the binary login protocol surface.
package loginserver

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"
)

// Server accepts login protocol connections. Each connection is serviced by
// its own goroutine; connections share nothing but the auth service, so one
// slow client never blocks another except through the store's per-row
// serialization.
type Server struct {
	addr      string
	tlsConfig *tls.Config
	service   LoginService
	metrics   MetricsRecorder
	logger    *slog.Logger
	listener  net.Listener
	mu        sync.RWMutex
}

// NewServer creates a login server. tlsConfig may be nil for plaintext
// operation (LAN hosting); metrics may be nil.
func NewServer(addr string, tlsConfig *tls.Config, service LoginService, metrics MetricsRecorder, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, oops.Errorf("login service is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:      addr,
		tlsConfig: tlsConfig,
		service:   service,
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

// Run starts the server and blocks until the context is cancelled. A bind
// failure is returned immediately so startup can abort before any surface
// is partially live.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("LOGIN_BIND_FAILED").With("addr", s.addr).Wrap(err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("login server started", "addr", listener.Addr().String(), "tls", s.tlsConfig != nil)

	go func() {
		<-ctx.Done()
		if closeErr := listener.Close(); closeErr != nil {
			s.logger.Debug("error closing login listener", "error", closeErr)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Error("accept failed", "error", err)
				continue
			}
		}
		if s.metrics != nil {
			s.metrics.RecordLoginConnection()
		}
		handler := NewConnectionHandler(conn, s.service, s.metrics, s.logger)
		go handler.Handle(ctx)
	}
}
