package main

import (
	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Certificate utilities",
	Long: `Utilities for the TLS certificate bundles bastiond serves.

Subcommands generate self-signed test certificates and inspect existing
certificate files.`,
}

func init() {
	rootCmd.AddCommand(certsCmd)
}
