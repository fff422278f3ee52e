// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusso/lusso/internal/auth"
)

func TestHashpwCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("hunter2\n"))
	cmd.SetArgs([]string{"hashpw"})

	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"), "got %q", hash)

	valid, err := auth.NewArgon2idHasher().Verify("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestHashpwCmd_EmptyPassword(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"hashpw"})

	err := cmd.Execute()
	require.Error(t, err)
}
