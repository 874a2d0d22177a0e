package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bastion-web/bastion/pkg/cli"
	"github.com/bastion-web/bastion/pkg/tlsutil"
)

var infoFlags struct {
	format string
}

var certsInfoCmd = &cobra.Command{
	Use:   "info [cert-file]",
	Short: "Display certificate details",
	Long: `Display the subject, issuer, validity window, and alternative names of
a certificate file, and warn when it is expired or close to expiring.

Examples:
  bastiond certs info /etc/ssl/example.com.crt
  bastiond certs info --format json /etc/ssl/example.com.crt`,
	Args: cobra.ExactArgs(1),
	RunE: displayCertInfo,
}

func init() {
	certsCmd.AddCommand(certsInfoCmd)

	certsInfoCmd.Flags().StringVar(&infoFlags.format, "format", "text", "output format: text, json")
}

func displayCertInfo(cmd *cobra.Command, args []string) error {
	cert, err := tlsutil.ReadCertificateFile(args[0])
	if err != nil {
		return err
	}
	info := tlsutil.ExtractInfo(cert)
	out := cmd.OutOrStdout()

	if cli.OutputFormat(infoFlags.format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, info)
	}

	fmt.Fprintf(out, "subject:    %s\n", info.Subject)
	fmt.Fprintf(out, "issuer:     %s\n", info.Issuer)
	fmt.Fprintf(out, "serial:     %s\n", info.Serial)
	fmt.Fprintf(out, "not before: %s\n", info.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(out, "not after:  %s\n", info.NotAfter.Format(time.RFC3339))
	if len(info.DNSNames) > 0 {
		fmt.Fprintf(out, "dns names:  %v\n", info.DNSNames)
	}
	if len(info.IPAddresses) > 0 {
		fmt.Fprintf(out, "ips:        %v\n", info.IPAddresses)
	}

	if _, warning := tlsutil.CheckExpiration(cert); warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}
	return nil
}
