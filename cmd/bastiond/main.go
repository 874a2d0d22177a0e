// Bastiond is a chrooted, TLS-capable HTTP server for static content.
//
// It binds every configured listener, loads TLS material, chroots into its
// configured root, drops privileges, and serves virtual hosts until stopped.
//
// Usage:
//
//	# Start with the default configuration file
//	bastiond run
//
//	# Start with a custom configuration file
//	bastiond run -f /etc/bastiond.conf
//
//	# Run in the foreground with debug logging
//	bastiond run -d
//
//	# Check a configuration file and exit
//	bastiond check -f /etc/bastiond.conf
//
//	# Generate a self-signed certificate for testing
//	bastiond certs generate --host localhost
//
//	# Query the SQLite access log
//	bastiond logs query --server example.com --status 404
package main

func main() {
	Execute()
}
