package server

import (
	"net"

	"github.com/bastion-web/bastion/pkg/config"
)

// Listener pairs a bound socket with the binding it serves.
type Listener struct {
	Binding config.Listen
	Socket  net.Listener
}

// BindAll binds one socket per distinct (address, port) binding, in
// declaration order. It either returns every listener or none: on the first
// failure it closes what it already bound and returns a BindError. All
// binding happens while the process still holds its starting privileges, so
// low ports work before the drop to the unprivileged user.
func BindAll(cfg *config.Config) ([]*Listener, error) {
	var listeners []*Listener
	for _, binding := range cfg.Bindings() {
		socket, err := net.Listen("tcp", binding.HostPort())
		if err != nil {
			for _, l := range listeners {
				l.Socket.Close()
			}
			return nil, &BindError{Binding: binding, Err: err}
		}
		listeners = append(listeners, &Listener{Binding: binding, Socket: socket})
	}
	return listeners, nil
}
