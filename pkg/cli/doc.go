// Package cli provides shared helpers for the bastiond command: typed
// command errors, signal handling, and output formatting for subcommands
// that print structured results (certs info, logs query).
package cli
