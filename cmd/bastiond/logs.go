package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bastion-web/bastion/pkg/accesslog"
	"github.com/bastion-web/bastion/pkg/cli"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Access log utilities",
}

var queryFlags struct {
	db     string
	server string
	status int
	since  string
	until  string
	limit  int
	format string
}

var logsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the SQLite access log",
	Long: `Query an access log recorded with the sqlite backend.

Entries are printed newest first. Remember that a chrooted daemon writes
the database inside its chroot; pass the full host-side path here.

Examples:
  # Last 20 entries
  bastiond logs query --db /var/www/logs/access.db

  # 404s for one virtual server since a point in time
  bastiond logs query --db access.db --server example.com --status 404 --since 2026-08-01T00:00:00Z

  # JSON output for scripting
  bastiond logs query --db access.db --format json`,
	RunE: queryLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsQueryCmd)

	logsQueryCmd.Flags().StringVar(&queryFlags.db, "db", "", "access log database path (required)")
	logsQueryCmd.Flags().StringVar(&queryFlags.server, "server", "", "filter by virtual server name")
	logsQueryCmd.Flags().IntVar(&queryFlags.status, "status", 0, "filter by response status")
	logsQueryCmd.Flags().StringVar(&queryFlags.since, "since", "", "only entries at or after this RFC 3339 time")
	logsQueryCmd.Flags().StringVar(&queryFlags.until, "until", "", "only entries at or before this RFC 3339 time")
	logsQueryCmd.Flags().IntVar(&queryFlags.limit, "limit", 20, "maximum entries (0 for all)")
	logsQueryCmd.Flags().StringVar(&queryFlags.format, "format", "text", "output format: text, json")
	_ = logsQueryCmd.MarkFlagRequired("db")
}

func queryLogs(cmd *cobra.Command, args []string) error {
	filter := accesslog.Filter{
		ServerName: queryFlags.server,
		Status:     queryFlags.status,
		Limit:      queryFlags.limit,
	}
	if queryFlags.since != "" {
		t, err := time.Parse(time.RFC3339, queryFlags.since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = t
	}
	if queryFlags.until != "" {
		t, err := time.Parse(time.RFC3339, queryFlags.until)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		filter.Until = t
	}

	backend, err := accesslog.NewSQLiteBackend(queryFlags.db)
	if err != nil {
		return cli.NewCommandError("logs query", err)
	}
	defer backend.Close()

	entries, err := backend.Query(cmd.Context(), filter)
	if err != nil {
		return cli.NewCommandError("logs query", err)
	}

	out := cmd.OutOrStdout()
	if cli.OutputFormat(queryFlags.format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, entries)
	}

	tw := cli.NewTabWriter(out)
	fmt.Fprintln(tw, "TIME\tSERVER\tSTATUS\tMETHOD\tPATH\tBYTES\tCLIENT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			e.Time.Format(time.RFC3339), e.ServerName, e.Status, e.Method, e.Path, e.BytesSent, e.RemoteAddr)
	}
	return tw.Flush()
}
