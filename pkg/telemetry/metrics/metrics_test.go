package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RecordRequest(t *testing.T) {
	c := NewCollector()

	c.RecordRequest("example.com", "GET", "200", 25*time.Millisecond, 512)
	c.RecordRequest("example.com", "GET", "200", 30*time.Millisecond, 1024)
	c.RecordRequest("example.com", "GET", "404", time.Millisecond, 0)

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("example.com", "GET", "200")); got != 2 {
		t.Errorf("expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("example.com", "GET", "404")); got != 1 {
		t.Errorf("expected 1 not-found request, got %v", got)
	}
	if got := testutil.ToFloat64(c.responseBytes.WithLabelValues("example.com")); got != 1536 {
		t.Errorf("expected 1536 response bytes, got %v", got)
	}
}

func TestCollector_Connections(t *testing.T) {
	c := NewCollector()

	c.ConnOpened()
	c.ConnOpened()
	c.ConnClosed()

	if got := testutil.ToFloat64(c.openConnections); got != 1 {
		t.Errorf("expected 1 open connection, got %v", got)
	}
	if got := testutil.ToFloat64(c.connectionsTotal); got != 2 {
		t.Errorf("expected 2 total connections, got %v", got)
	}

	c.HandshakeFailed()
	if got := testutil.ToFloat64(c.handshakeErrors); got != 1 {
		t.Errorf("expected 1 handshake error, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("example.com", "GET", "200", time.Millisecond, 100)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "bastiond_requests_total") {
		t.Error("exposition output missing bastiond_requests_total")
	}
}
