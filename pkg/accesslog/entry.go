// Package accesslog records one entry per handled request, asynchronously,
// to a file or SQLite backend.
package accesslog

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Entry is one handled request.
type Entry struct {
	// ID is a unique identifier, assigned at creation.
	ID string `json:"id"`

	// Time is when the request line was read.
	Time time.Time `json:"time"`

	// RemoteAddr is the client address (host:port).
	RemoteAddr string `json:"remote_addr"`

	// ServerName is the virtual server that handled the request.
	ServerName string `json:"server_name"`

	Method string `json:"method"`
	Path   string `json:"path"`
	Proto  string `json:"proto"`
	Status int    `json:"status"`

	// BytesSent counts response body bytes.
	BytesSent int64 `json:"bytes_sent"`

	Referer   string `json:"referer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Duration is the total handling time.
	Duration time.Duration `json:"duration"`

	// TLS marks requests that arrived over a TLS binding.
	TLS bool `json:"tls"`
}

// NewEntry allocates an entry with a fresh ID and timestamp.
func NewEntry() *Entry {
	return &Entry{
		ID:   uuid.New().String(),
		Time: time.Now(),
	}
}

// CommonLogLine renders the entry in Common Log Format with virtual-host
// prefix, the shape every log parser already understands:
//
//	vhost client - - [date] "METHOD /path PROTO" status bytes
func (e *Entry) CommonLogLine() string {
	host := e.RemoteAddr
	if h, _, err := net.SplitHostPort(e.RemoteAddr); err == nil {
		host = h
	}
	return fmt.Sprintf("%s %s - - [%s] %q %d %d",
		e.ServerName,
		host,
		e.Time.Format("02/Jan/2006:15:04:05 -0700"),
		e.Method+" "+e.Path+" "+e.Proto,
		e.Status,
		e.BytesSent,
	)
}
