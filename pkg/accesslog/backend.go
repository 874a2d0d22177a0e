package accesslog

import (
	"context"
	"fmt"

	"github.com/bastion-web/bastion/pkg/config"
)

// Backend persists access log entries.
type Backend interface {
	// Write persists one entry.
	Write(ctx context.Context, e *Entry) error

	// Close flushes and releases the backend.
	Close() error
}

// Rotatable is implemented by backends that support log rotation.
type Rotatable interface {
	Rotate() error
}

// OpenBackend constructs the backend named by the configuration. Paths are
// used as configured; the server opens the backend after chrooting, so under
// a chroot they resolve inside it.
func OpenBackend(cfg config.AccessLogConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileBackend(cfg.Path)
	case "sqlite":
		return NewSQLiteBackend(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown access log backend %q", cfg.Backend)
	}
}
