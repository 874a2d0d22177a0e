package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/bastion-web/bastion/pkg/config"
	"github.com/bastion-web/bastion/pkg/telemetry/metrics"
)

func TestBindErrorMessage(t *testing.T) {
	inner := errors.New("address already in use")
	err := &BindError{
		Binding: config.Listen{Address: "*", Port: 80},
		Err:     inner,
	}

	if got := err.Error(); !strings.Contains(got, "address already in use") {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is() failed to unwrap")
	}
}

func TestParseConnectionError(t *testing.T) {
	line := "http: TLS handshake error from 192.0.2.7:4711: remote error: tls: bad certificate"
	cerr := parseConnectionError(line)
	if cerr == nil {
		t.Fatalf("parseConnectionError(%q) = nil", line)
	}
	if cerr.RemoteAddr != "192.0.2.7:4711" {
		t.Errorf("RemoteAddr = %q, want 192.0.2.7:4711", cerr.RemoteAddr)
	}
	if !strings.Contains(cerr.Err.Error(), "bad certificate") {
		t.Errorf("Err = %v, want underlying handshake failure", cerr.Err)
	}

	for _, line := range []string{
		"http: panic serving 192.0.2.7:4711: boom",
		"http: TLS handshake error from malformed",
	} {
		if got := parseConnectionError(line); got != nil {
			t.Errorf("parseConnectionError(%q) = %v, want nil", line, got)
		}
	}
}

func TestServerErrorLogCountsHandshakeFailures(t *testing.T) {
	collector := metrics.NewCollector()
	w := &serverErrorLog{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		collector: collector,
	}

	lines := []string{
		"http: TLS handshake error from 192.0.2.7:4711: EOF\n",
		"http: TLS handshake error from 192.0.2.8:4712: remote error: tls: bad certificate\n",
		"http: superfluous response.WriteHeader call\n",
	}
	for _, line := range lines {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	mfs, err := collector.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	var got float64 = -1
	for _, mf := range mfs {
		if mf.GetName() == "bastiond_tls_handshake_errors_total" {
			got = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if got != 2 {
		t.Errorf("handshake error counter = %v, want 2", got)
	}
}

func TestConnectionErrorMessage(t *testing.T) {
	inner := errors.New("connection reset by peer")
	err := &ConnectionError{RemoteAddr: "192.0.2.7:54321", Err: inner}

	if got := err.Error(); !strings.Contains(got, "192.0.2.7") || !strings.Contains(got, "reset") {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is() failed to unwrap")
	}
}
