// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package tls

import (
	"crypto/tls"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSigned(t *testing.T) {
	cert, key, err := GenerateSelfSigned("lusso.example.com", "10.0.0.5")
	require.NoError(t, err)
	require.NotNil(t, key)

	assert.Contains(t, cert.DNSNames, "localhost")
	assert.Contains(t, cert.DNSNames, "lusso.example.com")

	var ips []string
	for _, ip := range cert.IPAddresses {
		ips = append(ips, ip.String())
	}
	assert.Contains(t, ips, "127.0.0.1")
	assert.Contains(t, ips, "10.0.0.5")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cert, key, err := GenerateSelfSigned()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "certs")
	require.NoError(t, SaveCertificate(dir, cert, key))

	cfg, err := LoadServerConfig(filepath.Join(dir, "lusso.crt"), filepath.Join(dir, "lusso.key"))
	require.NoError(t, err)

	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestLoadServerConfig_MissingFiles(t *testing.T) {
	_, err := LoadServerConfig("missing.crt", "missing.key")
	require.Error(t, err)
}
