package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bastion-web/bastion/pkg/cli"
	"github.com/bastion-web/bastion/pkg/config"
	"github.com/bastion-web/bastion/pkg/server"
	"github.com/bastion-web/bastion/pkg/telemetry/logging"
)

var runFlags struct {
	debug    bool
	logLevel string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the server",
	Long: `Start bastiond with the specified configuration.

The server binds every configured listener and the metrics listener, loads
all TLS certificate bundles, chroots, drops privileges, and then serves
until it receives SIGINT or SIGTERM.

Examples:
  # Start with the default configuration
  bastiond run

  # Start with a custom configuration
  bastiond run -f /etc/bastiond.conf

  # Run in the foreground with debug text logging
  bastiond run -d`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&runFlags.debug, "debug", "d", false, "foreground mode: text logs at debug level")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load %s: %v", cfgFile, err))
	}

	logCfg := logging.Config{Level: "info", Format: string(logging.FormatJSON)}
	if runFlags.debug {
		logCfg.Level = "debug"
		logCfg.Format = string(logging.FormatText)
	}
	if runFlags.logLevel != "" {
		logCfg.Level = runFlags.logLevel
	}
	logger, err := logging.Setup(logCfg)
	if err != nil {
		return cli.NewConfigError("log-level", err.Error())
	}

	logger.Info("configuration loaded",
		"file", cfgFile,
		"servers", len(cfg.Servers),
		"bindings", len(cfg.Bindings()),
		"chroot", cfg.Chroot,
	)

	srv := server.New(cfg, logger)

	ctx := cli.SetupSignalHandler()
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}
