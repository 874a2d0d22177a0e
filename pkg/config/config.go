package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete configuration for a bastiond process.
// It is immutable once loaded; reconfiguration requires a restart.
type Config struct {
	// Chroot is the filesystem root the process confines itself to before
	// accepting connections. Empty disables isolation (test configurations).
	Chroot string `yaml:"chroot"`

	// User is the unprivileged identity to drop to after binding sockets.
	User string `yaml:"user"`

	// Group is the group to drop to. Defaults to the user's primary group.
	Group string `yaml:"group"`

	// Prefork is accepted for compatibility with classic httpd configurations.
	// Connections are handled by goroutines regardless of its value.
	Prefork int `yaml:"prefork"`

	// AccessLog configures request logging.
	AccessLog AccessLogConfig `yaml:"access_log"`

	// Metrics configures the Prometheus exposition listener.
	Metrics MetricsConfig `yaml:"metrics"`

	// Timeouts are the per-connection I/O deadlines.
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// Servers is the ordered list of virtual servers.
	Servers []*Server `yaml:"servers"`
}

// Server is a single virtual server: a named routing unit with its own
// listen bindings, document root, location rules, and TLS material.
type Server struct {
	// Name is the primary match key for the request Host header.
	// It may be a wildcard pattern such as "*.example.com".
	Name string `yaml:"name"`

	// Aliases are additional names routed to this server.
	Aliases []string `yaml:"aliases"`

	// Listens are the (address, port, protocol) bindings for this server.
	Listens []Listen `yaml:"listen"`

	// Root is the document root. Interpreted inside the chroot when one is
	// configured, as an ordinary path otherwise.
	Root string `yaml:"root"`

	// DirIndex is the index file served for directory requests.
	DirIndex string `yaml:"directory_index"`

	// AutoIndex enables generated directory listings server-wide.
	// Locations may override it.
	AutoIndex bool `yaml:"auto_index"`

	// TLS holds the certificate bundle for TLS bindings. Required when any
	// binding has TLS enabled.
	TLS *TLSBundle `yaml:"tls"`

	// Locations are the path rules, evaluated most specific first.
	Locations []*Location `yaml:"locations"`
}

// Listen is one listening socket binding.
type Listen struct {
	// Address is the interface address, or "*" for all interfaces.
	Address string `yaml:"address"`

	// Port is the TCP port.
	Port int `yaml:"port"`

	// TLS marks the binding as TLS-terminated.
	TLS bool `yaml:"tls"`
}

// HostPort returns the address in the form net.Listen expects.
func (l Listen) HostPort() string {
	addr := l.Address
	if addr == "*" {
		addr = ""
	}
	return net.JoinHostPort(addr, strconv.Itoa(l.Port))
}

// String returns the binding in configuration notation, e.g. "*:8080".
func (l Listen) String() string {
	suffix := ""
	if l.TLS {
		suffix = " tls"
	}
	return l.Address + ":" + strconv.Itoa(l.Port) + suffix
}

// TLSBundle references the PEM-encoded private key and certificate chain for
// a virtual server. Both files are read once at startup, before the chroot
// takes effect, so the paths are resolved against the original root.
type TLSBundle struct {
	// CertFile is the path to the full certificate chain.
	CertFile string `yaml:"certificate"`

	// KeyFile is the path to the private key.
	KeyFile string `yaml:"key"`
}

// Location is a path rule inside a virtual server. Rules are matched in
// descending specificity; the first match wins.
type Location struct {
	// Pattern is a path pattern. A literal path matches exactly or as a
	// prefix at a path boundary; "*" is a glob wildcard.
	Pattern string `yaml:"pattern"`

	// Root overrides the server document root for this location.
	Root string `yaml:"root"`

	// AutoIndex overrides the server auto-index setting when non-nil.
	AutoIndex *bool `yaml:"auto_index"`

	// DirIndex overrides the server index file when non-empty.
	DirIndex string `yaml:"directory_index"`

	// Redirect short-circuits the location with a fixed redirect instead of
	// serving files.
	Redirect *Redirect `yaml:"redirect"`
}

// Redirect is a "block return" action: respond with Status and a Location
// header built from Target. Target may contain the macros $HOST,
// $REQUEST_URI and $SERVER_NAME.
type Redirect struct {
	Status int    `yaml:"status"`
	Target string `yaml:"target"`
}

// AccessLogConfig controls request logging.
type AccessLogConfig struct {
	// Enabled turns access logging on or off.
	Enabled bool `yaml:"enabled"`

	// Backend selects where entries go: "file" (common log format) or
	// "sqlite" (structured records, queryable with `bastiond logs query`).
	Backend string `yaml:"backend"`

	// Path is the log file or database path. Interpreted inside the chroot
	// when one is configured.
	Path string `yaml:"path"`

	// RotateSchedule is a cron expression for file rotation. Empty disables
	// scheduled rotation. Only meaningful for the file backend.
	RotateSchedule string `yaml:"rotate_schedule"`

	// BufferSize is the async recorder queue length.
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig controls the Prometheus exposition endpoint. It is served on
// its own binding, never through a virtual server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the host:port for the /metrics listener.
	ListenAddress string `yaml:"listen_address"`
}

// TimeoutConfig holds the per-connection deadlines. ReadHeader bounds the
// TLS handshake plus request-line/header read, so an idle handshake and an
// idle read both abort instead of holding the connection.
type TimeoutConfig struct {
	ReadHeader time.Duration `yaml:"read_header"`
	Read       time.Duration `yaml:"read"`
	Write      time.Duration `yaml:"write"`
	Idle       time.Duration `yaml:"idle"`
	Shutdown   time.Duration `yaml:"shutdown"`
}

// Bindings returns the distinct (address, port) bindings across all servers
// in declaration order. Validation guarantees there are no duplicates across
// servers, so this is exactly what the listener manager binds.
func (c *Config) Bindings() []Listen {
	seen := make(map[string]bool)
	var out []Listen
	for _, srv := range c.Servers {
		for _, l := range srv.Listens {
			key := l.HostPort()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, l)
		}
	}
	return out
}

// ServersOn returns the virtual servers declaring the given binding, in
// declaration order. The first entry is the fallback for unmatched hosts.
func (c *Config) ServersOn(binding Listen) []*Server {
	key := binding.HostPort()
	var out []*Server
	for _, srv := range c.Servers {
		for _, l := range srv.Listens {
			if l.HostPort() == key {
				out = append(out, srv)
				break
			}
		}
	}
	return out
}

// Names returns the server's primary name followed by its aliases.
func (s *Server) Names() []string {
	return append([]string{s.Name}, s.Aliases...)
}
