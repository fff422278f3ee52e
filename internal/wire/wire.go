// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

// Package wire implements the binary login protocol codec.
//
// The protocol rides a reliable stream (TCP, optionally TLS-wrapped) and
// leans on the transport for ordering and reliability; the only mechanism it
// adds is message framing. Every message is prefixed with a 32-bit
// little-endian byte length. Inside a frame, the first byte is the message
// ID and strings are 16-bit little-endian length-prefixed UTF-8.
//
// The byte layout is an external contract with the existing client
// ecosystem; changing it breaks deployed clients.
package wire

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Framing limits. Anything outside these is treated as a protocol violation
// and the connection is dropped without a structured response.
const (
	// MaxFrameSize caps a frame's payload. Login requests are tiny; a large
	// length prefix is an attack or a desynchronized stream.
	MaxFrameSize = 4096

	// MaxFieldBytes caps any single string field inside a message.
	MaxFieldBytes = 256
)

// Message IDs.
const (
	MsgLoginRequest  byte = 0x00
	MsgLoginResponse byte = 0x01
)

// LoginResponse status codes.
const (
	StatusOK                 byte = 0x00
	StatusInvalidCredentials byte = 0x01
	StatusTransientFailure   byte = 0x02
)

// ErrMalformed wraps every parse failure. It is connection-fatal: the server
// closes the stream without responding.
var ErrMalformed = oops.Code("WIRE_MALFORMED").Errorf("malformed frame")

// LoginRequest is the single request message of the login protocol.
// ClientMeta carries client/environment metadata forwarded for server-side
// logging only; it is never persisted as a credential.
type LoginRequest struct {
	Username   string
	Password   string
	ClientMeta string
}

// LoginResponse is the reply to a LoginRequest. Credential, RedirectHost and
// RedirectPort are only meaningful when Status is StatusOK.
type LoginResponse struct {
	Status       byte
	Credential   string
	RedirectHost string
	RedirectPort uint16
}

// ReadFrame reads one length-prefixed frame payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, err //nolint:wrapcheck // io.EOF must pass through for clean-close detection
	}
	length := binary.LittleEndian.Uint32(lengthBuf[:])
	if length == 0 || length > MaxFrameSize {
		return nil, oops.With("frame_length", length).Wrap(ErrMalformed)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, oops.With("operation", "read frame payload").Wrap(ErrMalformed)
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return oops.With("frame_length", len(payload)).Wrap(ErrMalformed)
	}
	var lengthBuf [4]byte
	binary.LittleEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return oops.With("operation", "write frame length").Wrap(err)
	}
	if _, err := w.Write(payload); err != nil {
		return oops.With("operation", "write frame payload").Wrap(err)
	}
	return nil
}

// DecodeLoginRequest parses a frame payload as a LoginRequest.
func DecodeLoginRequest(payload []byte) (*LoginRequest, error) {
	if len(payload) < 1 || payload[0] != MsgLoginRequest {
		return nil, oops.With("operation", "decode message id").Wrap(ErrMalformed)
	}
	rest := payload[1:]

	username, rest, err := readString(rest)
	if err != nil {
		return nil, err
	}
	password, rest, err := readString(rest)
	if err != nil {
		return nil, err
	}
	clientMeta, rest, err := readString(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, oops.With("trailing_bytes", len(rest)).Wrap(ErrMalformed)
	}

	return &LoginRequest{
		Username:   username,
		Password:   password,
		ClientMeta: clientMeta,
	}, nil
}

// Encode serializes the request as a frame payload.
func (m *LoginRequest) Encode() ([]byte, error) {
	buf := []byte{MsgLoginRequest}
	var err error
	for _, s := range []string{m.Username, m.Password, m.ClientMeta} {
		if buf, err = appendString(buf, s); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeLoginResponse parses a frame payload as a LoginResponse.
func DecodeLoginResponse(payload []byte) (*LoginResponse, error) {
	if len(payload) < 2 || payload[0] != MsgLoginResponse {
		return nil, oops.With("operation", "decode message id").Wrap(ErrMalformed)
	}
	resp := &LoginResponse{Status: payload[1]}
	rest := payload[2:]

	if resp.Status != StatusOK {
		if len(rest) != 0 {
			return nil, oops.With("trailing_bytes", len(rest)).Wrap(ErrMalformed)
		}
		return resp, nil
	}

	var err error
	resp.Credential, rest, err = readString(rest)
	if err != nil {
		return nil, err
	}
	resp.RedirectHost, rest, err = readString(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 2 {
		return nil, oops.With("operation", "decode redirect port").Wrap(ErrMalformed)
	}
	resp.RedirectPort = binary.LittleEndian.Uint16(rest)
	return resp, nil
}

// Encode serializes the response as a frame payload.
func (m *LoginResponse) Encode() ([]byte, error) {
	buf := []byte{MsgLoginResponse, m.Status}
	if m.Status != StatusOK {
		return buf, nil
	}
	var err error
	if buf, err = appendString(buf, m.Credential); err != nil {
		return nil, err
	}
	if buf, err = appendString(buf, m.RedirectHost); err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint16(buf, m.RedirectPort), nil
}

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, oops.With("operation", "decode string length").Wrap(ErrMalformed)
	}
	length := int(binary.LittleEndian.Uint16(buf))
	buf = buf[2:]
	if length > MaxFieldBytes {
		return "", nil, oops.With("field_length", length).Wrap(ErrMalformed)
	}
	if len(buf) < length {
		return "", nil, oops.With("operation", "decode string bytes").Wrap(ErrMalformed)
	}
	raw := buf[:length]
	if !utf8.Valid(raw) {
		return "", nil, oops.With("operation", "validate utf8").Wrap(ErrMalformed)
	}
	return string(raw), buf[length:], nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > MaxFieldBytes {
		return nil, oops.With("field_length", len(s)).Wrap(ErrMalformed)
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}
