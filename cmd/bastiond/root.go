package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// DefaultConfigPath is where bastiond looks for its configuration when -f
// is not given.
const DefaultConfigPath = "/etc/bastiond.conf"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bastiond",
	Short: "bastiond - chrooted static HTTP server",
	Long: `Bastiond is a security-focused HTTP server for static content.

It serves any number of virtual hosts from a chrooted document tree,
terminating TLS per virtual host and dropping privileges before the first
request is accepted:
  - Native directive configuration (YAML also accepted)
  - Virtual hosting with exact and wildcard name matching
  - Per-host TLS certificate bundles selected by SNI
  - Generated directory listings and block-return redirects
  - Access logging to a file or a queryable SQLite database`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "file", "f", DefaultConfigPath, "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
