package config

import "time"

// Default values applied to fields the configuration leaves unset.
const (
	// DefaultDirIndex is the index file served for directory requests.
	DefaultDirIndex = "index.html"

	// DefaultAccessLogBackend writes common log format to a file.
	DefaultAccessLogBackend = "file"

	// DefaultAccessLogPath is interpreted inside the chroot when one is set.
	DefaultAccessLogPath = "/logs/access.log"

	// DefaultAccessLogBufferSize bounds the async recorder queue.
	DefaultAccessLogBufferSize = 1024

	// DefaultReadHeaderTimeout bounds the TLS handshake plus header read.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultReadTimeout bounds the full request read.
	DefaultReadTimeout = 60 * time.Second

	// DefaultWriteTimeout bounds the response write.
	DefaultWriteTimeout = 60 * time.Second

	// DefaultIdleTimeout bounds keep-alive idleness.
	DefaultIdleTimeout = 2 * time.Minute

	// DefaultShutdownTimeout bounds graceful drain on shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// ApplyDefaults fills unset fields with default values. It is called by
// Load after parsing and before validation.
func ApplyDefaults(cfg *Config) {
	if cfg.AccessLog.Backend == "" {
		cfg.AccessLog.Backend = DefaultAccessLogBackend
	}
	if cfg.AccessLog.Path == "" {
		cfg.AccessLog.Path = DefaultAccessLogPath
	}
	if cfg.AccessLog.BufferSize <= 0 {
		cfg.AccessLog.BufferSize = DefaultAccessLogBufferSize
	}

	if cfg.Timeouts.ReadHeader == 0 {
		cfg.Timeouts.ReadHeader = DefaultReadHeaderTimeout
	}
	if cfg.Timeouts.Read == 0 {
		cfg.Timeouts.Read = DefaultReadTimeout
	}
	if cfg.Timeouts.Write == 0 {
		cfg.Timeouts.Write = DefaultWriteTimeout
	}
	if cfg.Timeouts.Idle == 0 {
		cfg.Timeouts.Idle = DefaultIdleTimeout
	}
	if cfg.Timeouts.Shutdown == 0 {
		cfg.Timeouts.Shutdown = DefaultShutdownTimeout
	}

	for _, srv := range cfg.Servers {
		if srv.DirIndex == "" {
			srv.DirIndex = DefaultDirIndex
		}
	}
}
