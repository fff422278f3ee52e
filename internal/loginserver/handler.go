// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package loginserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/samber/oops"

	"github.com/lusso/lusso/internal/auth"
	"github.com/lusso/lusso/internal/wire"
)

// idleTimeout bounds how long a connection may sit between frames. A client
// that connects and sends nothing is dropped; it holds no server state worth
// keeping.
const idleTimeout = 2 * time.Minute

// LoginService defines the authentication operation needed by the handler.
type LoginService interface {
	// Login authenticates an account and issues a session credential.
	Login(ctx context.Context, username, password, clientMeta string) (*auth.Grant, error)
}

// MetricsRecorder records login surface events.
type MetricsRecorder interface {
	RecordLoginConnection()
	RecordLogin(result string)
}

// ConnectionHandler services a single login protocol connection. The
// per-connection state machine is: await frame, decode, authenticate,
// respond, await next frame. Malformed input terminates the connection
// without a structured response; that is a protocol-layer defense, not an
// authentication outcome.
type ConnectionHandler struct {
	conn    net.Conn
	service LoginService
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewConnectionHandler creates a handler for one accepted connection.
func NewConnectionHandler(conn net.Conn, service LoginService, metrics MetricsRecorder, logger *slog.Logger) *ConnectionHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConnectionHandler{
		conn:    conn,
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// Handle processes the connection until closed, the context is cancelled, or
// a protocol violation occurs.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	defer func() {
		if err := h.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			h.logger.Debug("error closing connection", "error", err)
		}
	}()

	remote := h.conn.RemoteAddr().String()

	// Close the connection as soon as the server shuts down; otherwise a
	// blocked ReadFrame would hold it until the idle deadline. Close (not a
	// deadline) so the per-iteration deadline reset can't revive the read.
	stopWatch := context.AfterFunc(ctx, func() {
		_ = h.conn.Close()
	})
	defer stopWatch()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := h.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}

		payload, err := wire.ReadFrame(h.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("dropping connection",
					"event", "protocol_error",
					"remote_addr", remote,
					"error", err,
				)
			}
			return
		}

		req, err := wire.DecodeLoginRequest(payload)
		if err != nil {
			// Connection-fatal: no structured response for unparseable input.
			h.logger.Warn("malformed login request",
				"event", "protocol_error",
				"remote_addr", remote,
				"error", err,
			)
			return
		}

		resp := h.login(ctx, req, remote)

		out, err := resp.Encode()
		if err != nil {
			h.logger.Error("failed to encode login response", "error", err)
			return
		}
		if err := wire.WriteFrame(h.conn, out); err != nil {
			h.logger.Debug("failed to write login response",
				"remote_addr", remote,
				"error", err,
			)
			return
		}
	}
}

// login invokes the auth service and maps its outcome onto wire status
// codes. Unknown user and wrong password are indistinguishable on the wire;
// store trouble is a distinct "try again" status, never conflated with bad
// credentials.
func (h *ConnectionHandler) login(ctx context.Context, req *wire.LoginRequest, remote string) *wire.LoginResponse {
	grant, err := h.service.Login(ctx, req.Username, req.Password, req.ClientMeta)
	if err != nil {
		result := "transient"
		status := wire.StatusTransientFailure
		if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == "AUTH_INVALID_CREDENTIALS" {
			result = "rejected"
			status = wire.StatusInvalidCredentials
		} else {
			h.logger.Error("login failed",
				"event", "login_error",
				"remote_addr", remote,
				"error", err,
			)
		}
		if h.metrics != nil {
			h.metrics.RecordLogin(result)
		}
		return &wire.LoginResponse{Status: status}
	}

	if h.metrics != nil {
		h.metrics.RecordLogin("ok")
	}
	return &wire.LoginResponse{
		Status:       wire.StatusOK,
		Credential:   grant.Credential,
		RedirectHost: grant.RedirectHost,
		RedirectPort: grant.RedirectPort,
	}
}
