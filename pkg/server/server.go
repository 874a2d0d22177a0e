// Package server binds listeners, drops privileges, and serves the
// configured virtual servers until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/bastion-web/bastion/pkg/accesslog"
	"github.com/bastion-web/bastion/pkg/config"
	"github.com/bastion-web/bastion/pkg/router"
	"github.com/bastion-web/bastion/pkg/sandbox"
	"github.com/bastion-web/bastion/pkg/telemetry/metrics"
	"github.com/bastion-web/bastion/pkg/tlsutil"
)

// Server owns the full lifecycle: bind, isolate, serve, shut down.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	listeners []*Listener
	metricsLn net.Listener
	tlsStore  *tlsutil.Store
	recorder  *accesslog.Recorder
	collector *metrics.Collector

	httpServers []*http.Server
	ready       chan struct{}
	readyOnce   sync.Once
}

// New creates a server for a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger.With("component", "server"),
		ready:  make(chan struct{}),
	}
}

// Start runs the full lifecycle and blocks until ctx is cancelled or a
// fatal error occurs. The order is load-bearing: every socket is bound and
// all TLS material read while the process still has its starting privileges
// and filesystem view; only then does it chroot and drop to the configured
// user.
func (s *Server) Start(ctx context.Context) error {
	listeners, err := BindAll(s.cfg)
	if err != nil {
		return err
	}
	s.listeners = listeners
	for _, l := range listeners {
		s.logger.Info("listening", "binding", l.Binding.String(), "addr", l.Socket.Addr().String(), "tls", l.Binding.TLS)
	}

	store, err := tlsutil.NewStore(s.cfg.Servers)
	if err != nil {
		s.closeListeners()
		return fmt.Errorf("tls: %w", err)
	}
	s.tlsStore = store

	identity, err := sandbox.ResolveIdentity(s.cfg)
	if err != nil {
		s.closeListeners()
		return err
	}

	if s.cfg.Metrics.Enabled {
		ln, err := net.Listen("tcp", s.cfg.Metrics.ListenAddress)
		if err != nil {
			s.closeListeners()
			return &BindError{Binding: config.Listen{Address: s.cfg.Metrics.ListenAddress}, Err: err}
		}
		s.metricsLn = ln
		s.collector = metrics.NewCollector()
	}

	if err := sandbox.Apply(s.cfg, identity, s.logger); err != nil {
		s.closeListeners()
		return err
	}

	// From here on every path resolves inside the chroot.
	if s.cfg.AccessLog.Enabled {
		recorder, err := accesslog.NewRecorder(s.cfg.AccessLog, s.logger)
		if err != nil {
			s.closeListeners()
			return err
		}
		s.recorder = recorder
	}

	return s.serve(ctx)
}

func (s *Server) serve(ctx context.Context) error {
	rt := router.New(s.cfg)
	errChan := make(chan error, len(s.listeners)+1)

	sweeper := tlsutil.NewExpirySweeper(s.tlsStore, s.logger)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	if s.tlsStore.Len() > 0 {
		// Certificate paths generally vanish inside the chroot; the
		// reloader only helps unconfined deployments. Confined ones need a
		// restart to pick up renewed certificates.
		reloader := tlsutil.NewReloader(s.tlsStore, 0, s.logger)
		go func() {
			if err := reloader.Run(ctx); err != nil {
				s.logger.Warn("certificate reloader stopped", "error", err)
			}
		}()
	}

	for _, l := range s.listeners {
		hs := s.httpServer(l, rt)
		s.httpServers = append(s.httpServers, hs)

		go func(hs *http.Server, socket net.Listener, tlsOn bool) {
			var err error
			if tlsOn {
				hs.TLSConfig = s.tlsStore.TLSConfig()
				err = hs.ServeTLS(socket, "", "")
			} else {
				err = hs.Serve(socket)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}(hs, l.Socket, l.Binding.TLS)
	}

	if s.metricsLn != nil {
		ms := &http.Server{Handler: s.metricsHandler()}
		s.httpServers = append(s.httpServers, ms)
		s.logger.Info("metrics listener started", "addr", s.metricsLn.Addr().String())
		go func() {
			if err := ms.Serve(s.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("serving", "bindings", len(s.listeners))

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		s.shutdown()
		return err
	}
}

// httpServer builds the http.Server for one binding, with the dispatcher
// wrapped in panic recovery and the configured per-connection deadlines.
func (s *Server) httpServer(l *Listener, rt *router.Router) *http.Server {
	dispatcher := NewDispatcher(l.Binding, rt, s.recorder, s.collector, s.logger)

	hs := &http.Server{
		Handler:           Recovery(dispatcher, s.logger),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadHeader,
		ReadTimeout:       s.cfg.Timeouts.Read,
		WriteTimeout:      s.cfg.Timeouts.Write,
		IdleTimeout:       s.cfg.Timeouts.Idle,
		ErrorLog:          log.New(&serverErrorLog{logger: s.logger, collector: s.collector}, "", 0),
	}

	if s.collector != nil {
		hs.ConnState = func(conn net.Conn, state http.ConnState) {
			switch state {
			case http.StateNew:
				s.collector.ConnOpened()
			case http.StateClosed, http.StateHijacked:
				s.collector.ConnClosed()
			}
		}
	}
	return hs
}

func (s *Server) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	return mux
}

// Ready is closed once every listener is serving. Intended for tests and
// for the daemon's readiness log line.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addrs returns the bound addresses in binding order. Only valid after
// Ready.
func (s *Server) Addrs() []string {
	var addrs []string
	for _, l := range s.listeners {
		addrs = append(addrs, l.Socket.Addr().String())
	}
	return addrs
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down", "timeout", s.cfg.Timeouts.Shutdown.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeouts.Shutdown)
	defer cancel()

	var firstErr error
	for _, hs := range s.httpServers {
		// One deadline covers them all; a second Shutdown call under an
		// already-expired context returns immediately.
		if err := hs.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("stopped")
	return firstErr
}

// serverErrorLog routes net/http's internal error lines into structured
// logging. Handshake failures, which http.Server surfaces nowhere else,
// are turned into typed ConnectionErrors and counted.
type serverErrorLog struct {
	logger    *slog.Logger
	collector *metrics.Collector
}

// handshakeErrorPrefix is the only per-connection line net/http writes that
// carries the peer address.
const handshakeErrorPrefix = "http: TLS handshake error from "

func parseConnectionError(msg string) *ConnectionError {
	rest, ok := strings.CutPrefix(msg, handshakeErrorPrefix)
	if !ok {
		return nil
	}
	addr, detail, ok := strings.Cut(rest, ": ")
	if !ok {
		return nil
	}
	return &ConnectionError{RemoteAddr: addr, Err: errors.New(detail)}
}

func (w *serverErrorLog) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if cerr := parseConnectionError(msg); cerr != nil {
		if w.collector != nil {
			w.collector.HandshakeFailed()
		}
		w.logger.Warn("connection failed", "remote", cerr.RemoteAddr, "error", cerr)
		return len(p), nil
	}
	w.logger.Warn("http server error", "error", msg)
	return len(p), nil
}

func (s *Server) closeListeners() {
	for _, l := range s.listeners {
		l.Socket.Close()
	}
	if s.metricsLn != nil {
		s.metricsLn.Close()
	}
}
