// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lusso/lusso/internal/auth"
)

// NewHashpwCmd creates the hashpw subcommand.
func NewHashpwCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hashpw",
		Short: "Hash a password for manual account provisioning",
		Long: `Read a password and print its hash in the format the authority
stores. Reads from the terminal without echo when stdin is a TTY, otherwise
reads one line from stdin.`,
		RunE: runHashpw,
	}
}

func runHashpw(cmd *cobra.Command, _ []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	hasher := auth.NewArgon2idHasher()
	hash, err := hasher.Hash(password)
	if err != nil {
		return oops.Code("HASH_FAILED").Wrap(err)
	}

	cmd.Println(hash)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", oops.Code("HASH_FAILED").With("operation", "read password").Wrap(err)
		}
		return string(raw), nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", oops.Code("HASH_FAILED").With("operation", "read password").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
