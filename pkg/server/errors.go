package server

import (
	"fmt"

	"github.com/bastion-web/bastion/pkg/config"
)

// BindError reports a socket that could not be bound. Binding happens
// before the privilege drop, and any failure is fatal: a partially bound
// server would silently serve only some virtual hosts.
type BindError struct {
	Binding config.Listen
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Binding, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a per-connection failure (handshake, I/O). It is
// never fatal to the process; the connection is closed and the error logged.
type ConnectionError struct {
	RemoteAddr string
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection from %s: %v", e.RemoteAddr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
