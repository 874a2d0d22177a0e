package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bastion-web/bastion/pkg/accesslog"
	"github.com/bastion-web/bastion/pkg/config"
	"github.com/bastion-web/bastion/pkg/content"
	"github.com/bastion-web/bastion/pkg/router"
	"github.com/bastion-web/bastion/pkg/telemetry/metrics"
)

// Dispatcher is the http.Handler for one binding. It resolves the virtual
// server from the Host header, resolves the location rule from the path,
// and hands the request to the content handler.
type Dispatcher struct {
	binding  config.Listen
	router   *router.Router
	content  *content.Handler
	recorder *accesslog.Recorder
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewDispatcher builds the handler for one binding. recorder and collector
// may be nil when access logging or metrics are disabled.
func NewDispatcher(binding config.Listen, rt *router.Router, recorder *accesslog.Recorder, collector *metrics.Collector, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		binding:  binding,
		router:   rt,
		content:  content.NewHandler(logger),
		recorder: recorder,
		metrics:  collector,
		logger:   logger.With("binding", binding.String()),
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := newResponseWriter(w)

	srv := d.router.Server(d.binding, r.Host)
	if srv == nil {
		content.ServeError(rw, http.StatusInternalServerError)
		d.logger.Error("no virtual server for binding", "host", r.Host)
		return
	}

	route := d.router.Route(srv, r.URL.Path)
	d.content.Serve(rw, r, route)

	duration := time.Since(start)
	d.observe(r, srv.Name, rw, duration)
}

func (d *Dispatcher) observe(r *http.Request, serverName string, rw *responseWriter, duration time.Duration) {
	status := rw.Status()

	level := slog.LevelDebug
	if status >= 500 {
		level = slog.LevelError
	} else if status >= 400 {
		level = slog.LevelWarn
	}
	d.logger.Log(r.Context(), level, "request completed",
		"server", serverName,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"bytes", rw.Bytes(),
		"latency_ms", duration.Milliseconds(),
		"remote_addr", r.RemoteAddr,
	)

	if d.metrics != nil {
		d.metrics.RecordRequest(serverName, r.Method, strconv.Itoa(status), duration, rw.Bytes())
	}

	if d.recorder != nil {
		e := accesslog.NewEntry()
		e.Time = time.Now().Add(-duration)
		e.RemoteAddr = r.RemoteAddr
		e.ServerName = serverName
		e.Method = r.Method
		e.Path = r.URL.RequestURI()
		e.Proto = r.Proto
		e.Status = status
		e.BytesSent = rw.Bytes()
		e.Referer = r.Referer()
		e.UserAgent = r.UserAgent()
		e.Duration = duration
		e.TLS = r.TLS != nil
		d.recorder.Record(e)
	}
}
