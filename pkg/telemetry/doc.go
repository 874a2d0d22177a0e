// Package telemetry provides observability for bastiond.
//
// # Components
//
//   - logging: structured logging built on log/slog
//   - metrics: Prometheus metrics for connections and requests
//
// The metrics endpoint is served on its own listener, configured with the
// `prometheus` directive, and is never routed through a virtual server: the
// observability surface stays off the chrooted content paths.
package telemetry
