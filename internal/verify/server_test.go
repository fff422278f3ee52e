// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusso/lusso/internal/auth"
)

// stubVerifier returns canned results.
type stubVerifier struct {
	verify func(ctx context.Context, username, credential string) (auth.Verification, error)
}

func (s *stubVerifier) Verify(ctx context.Context, username, credential string) (auth.Verification, error) {
	return s.verify(ctx, username, credential)
}

// stubMetrics counts recorded verification results.
type stubMetrics struct {
	results map[string]int
}

func (m *stubMetrics) RecordVerification(result string) {
	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[result]++
}

func newTestRouter(t *testing.T, verifier Verifier, metrics MetricsRecorder) http.Handler {
	t.Helper()
	server, err := NewServer("127.0.0.1:0", nil, verifier, metrics, nil)
	require.NoError(t, err)
	return server.Router()
}

func postVerify(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/verify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) verifyResponse {
	t.Helper()
	var resp verifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestNewServer_RequiresVerifier(t *testing.T) {
	_, err := NewServer("127.0.0.1:0", nil, nil, nil, nil)
	require.Error(t, err)
}

func TestHandleVerify_Valid(t *testing.T) {
	verifier := &stubVerifier{
		verify: func(_ context.Context, username, credential string) (auth.Verification, error) {
			assert.Equal(t, "alice", username)
			assert.Equal(t, "cred-1", credential)
			return auth.Verification{
				Status:       auth.StatusValid,
				RedirectHost: "lu1.example.com",
				RedirectPort: 2000,
			}, nil
		},
	}
	metrics := &stubMetrics{}
	handler := newTestRouter(t, verifier, metrics)

	rec := postVerify(t, handler, `{"username":"alice","credential":"cred-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Valid)
	assert.Equal(t, "lu1.example.com", resp.RedirectHost)
	assert.Equal(t, uint16(2000), resp.RedirectPort)
	assert.Equal(t, 1, metrics.results["valid"])
}

func TestHandleVerify_Invalid(t *testing.T) {
	verifier := &stubVerifier{
		verify: func(_ context.Context, _, _ string) (auth.Verification, error) {
			return auth.Verification{Status: auth.StatusInvalid}, nil
		},
	}
	handler := newTestRouter(t, verifier, nil)

	rec := postVerify(t, handler, `{"username":"alice","credential":"stale"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Valid)
	assert.Empty(t, resp.RedirectHost)
}

func TestHandleVerify_UnknownAccount(t *testing.T) {
	verifier := &stubVerifier{
		verify: func(_ context.Context, _, _ string) (auth.Verification, error) {
			return auth.Verification{Status: auth.StatusUnknownAccount}, nil
		},
	}
	handler := newTestRouter(t, verifier, nil)

	rec := postVerify(t, handler, `{"username":"nobody","credential":"cred-1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Valid)
	assert.Equal(t, "unknown_account", resp.Error)
}

func TestHandleVerify_TransientFailure(t *testing.T) {
	verifier := &stubVerifier{
		verify: func(_ context.Context, _, _ string) (auth.Verification, error) {
			return auth.Verification{}, errors.New("store down")
		},
	}
	metrics := &stubMetrics{}
	handler := newTestRouter(t, verifier, metrics)

	rec := postVerify(t, handler, `{"username":"alice","credential":"cred-1"}`)

	// An outage is 503, never a definitive "invalid".
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Valid)
	assert.Equal(t, "transient", resp.Error)
	assert.Equal(t, 1, metrics.results["transient"])
}

func TestHandleVerify_MalformedRequests(t *testing.T) {
	verifier := &stubVerifier{
		verify: func(_ context.Context, _, _ string) (auth.Verification, error) {
			t.Error("verifier must not be called for malformed input")
			return auth.Verification{}, nil
		},
	}
	handler := newTestRouter(t, verifier, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"empty body", ""},
		{"missing username", `{"credential":"cred-1"}`},
		{"missing credential", `{"username":"alice"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postVerify(t, handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleVerify_WrongMethod(t *testing.T) {
	verifier := &stubVerifier{
		verify: func(_ context.Context, _, _ string) (auth.Verification, error) {
			return auth.Verification{}, nil
		},
	}
	handler := newTestRouter(t, verifier, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/verify", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleLegacyVerify(t *testing.T) {
	tests := []struct {
		name     string
		result   auth.Verification
		err      error
		wantCode int
		wantBody string
	}{
		{
			name: "valid",
			result: auth.Verification{
				Status:       auth.StatusValid,
				RedirectHost: "lu1.example.com",
				RedirectPort: 2000,
			},
			wantCode: http.StatusOK,
			wantBody: "1",
		},
		{
			name:     "invalid",
			result:   auth.Verification{Status: auth.StatusInvalid},
			wantCode: http.StatusOK,
			wantBody: "0",
		},
		{
			name:     "unknown account",
			result:   auth.Verification{Status: auth.StatusUnknownAccount},
			wantCode: http.StatusOK,
			wantBody: "0",
		},
		{
			name:     "store failure",
			err:      errors.New("store down"),
			wantCode: http.StatusInternalServerError,
			wantBody: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &stubVerifier{
				verify: func(_ context.Context, username, credential string) (auth.Verification, error) {
					assert.Equal(t, "alice", username)
					assert.Equal(t, "cred-1", credential)
					return tt.result, tt.err
				},
			}
			handler := newTestRouter(t, verifier, nil)

			req := httptest.NewRequest(http.MethodGet, "/verify/alice/cred-1", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestServer_RunAndShutdown(t *testing.T) {
	verifier := &stubVerifier{
		verify: func(_ context.Context, _, _ string) (auth.Verification, error) {
			return auth.Verification{Status: auth.StatusValid, RedirectHost: "h", RedirectPort: 1}, nil
		},
	}
	server, err := NewServer("127.0.0.1:0", nil, verifier, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- server.Run(ctx) }()

	require.Eventually(t, func() bool { return server.Addr() != "" },
		5*time.Second, 10*time.Millisecond, "server never bound")

	resp, err := http.Get("http://" + server.Addr() + "/verify/alice/cred-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on context cancellation")
	}
}
