// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	lussotls "github.com/lusso/lusso/internal/tls"
)

// NewCertgenCmd creates the certgen subcommand.
func NewCertgenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certgen [host ...]",
		Short: "Generate a self-signed TLS certificate for development",
		Long: `Generate a self-signed server certificate covering localhost plus
any hosts given as arguments, and write lusso.crt and lusso.key to the output
directory. Not for production use.`,
		RunE: runCertgen,
	}
	cmd.Flags().String("out", "certs", "output directory")
	return cmd
}

func runCertgen(cmd *cobra.Command, args []string) error {
	cert, key, err := lussotls.GenerateSelfSigned(args...)
	if err != nil {
		return oops.Code("CERTGEN_FAILED").Wrap(err)
	}

	outDir, _ := cmd.Flags().GetString("out")
	if err := lussotls.SaveCertificate(outDir, cert, key); err != nil {
		return oops.Code("CERTGEN_FAILED").With("dir", outDir).Wrap(err)
	}

	cmd.Printf("Wrote lusso.crt and lusso.key to %s\n", outDir)
	return nil
}
