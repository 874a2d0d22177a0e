// Package router matches requests to virtual servers and location rules.
package router

import (
	"net"
	"strings"

	"github.com/bastion-web/bastion/pkg/config"
)

// Router resolves (binding, host, path) to a virtual server and the
// location rule governing the request. It is built once at startup and is
// safe for concurrent use: nothing mutates after construction.
type Router struct {
	tables map[string][]*config.Server
}

// New builds a router from a validated configuration.
func New(cfg *config.Config) *Router {
	tables := make(map[string][]*config.Server)
	for _, binding := range cfg.Bindings() {
		tables[binding.HostPort()] = cfg.ServersOn(binding)
	}
	return &Router{tables: tables}
}

// Server selects the virtual server for a request Host header on the given
// binding. Exact name matches are preferred over wildcard matches; an
// unmatched host falls back to the first server declared on the binding.
// It returns nil only for a binding the router has never seen.
func (r *Router) Server(binding config.Listen, host string) *config.Server {
	servers := r.tables[binding.HostPort()]
	if len(servers) == 0 {
		return nil
	}

	host = CanonicalHost(host)

	// Exact names first.
	for _, srv := range servers {
		for _, name := range srv.Names() {
			if !isWildcard(name) && strings.EqualFold(name, host) {
				return srv
			}
		}
	}
	// Then wildcard patterns.
	for _, srv := range servers {
		for _, name := range srv.Names() {
			if isWildcard(name) && MatchName(name, host) {
				return srv
			}
		}
	}
	// Default server for the binding.
	return servers[0]
}

// CanonicalHost strips any port and lowercases a request Host header.
func CanonicalHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// MatchName reports whether a server name pattern matches a hostname.
// "*" matches anything; "*.example.com" matches one or more leading labels.
// Comparison is case-insensitive.
func MatchName(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	host = strings.ToLower(host)

	if pattern == "*" {
		return true
	}
	if rest, ok := strings.CutPrefix(pattern, "*."); ok {
		if host == rest {
			return false
		}
		return strings.HasSuffix(host, "."+rest)
	}
	return pattern == host
}

func isWildcard(name string) bool {
	return strings.Contains(name, "*")
}
