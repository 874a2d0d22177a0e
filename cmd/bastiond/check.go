package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bastion-web/bastion/pkg/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configuration and exit",
	Long: `Parse and validate a configuration file without starting the server.

Exits 0 when the configuration is usable. Parse and validation errors are
printed one per line with the offending field or line number.

Examples:
  bastiond check
  bastiond check -f /etc/bastiond.conf`,
	RunE: checkConfig,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), fe.Error())
			}
			return fmt.Errorf("%s: %d error(s)", cfgFile, len(verr.Errors))
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d server(s), %d binding(s)\n",
		len(cfg.Servers), len(cfg.Bindings()))
	if verbose {
		for _, srv := range cfg.Servers {
			for _, l := range srv.Listens {
				fmt.Fprintf(cmd.OutOrStdout(), "  server %q on %s\n", srv.Name, l.String())
			}
		}
	}
	return nil
}
