package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bastion-web/bastion/internal/testcert"
	"github.com/bastion-web/bastion/pkg/config"
)

func tlsServer(t *testing.T, name string, aliases []string, hosts ...string) *config.Server {
	t.Helper()
	if len(hosts) == 0 {
		hosts = append([]string{name}, aliases...)
	}
	certFile, keyFile, err := testcert.Generate(t.TempDir(), testcert.Options{Hosts: hosts})
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}
	return &config.Server{
		Name:    name,
		Aliases: aliases,
		TLS:     &config.TLSBundle{CertFile: certFile, KeyFile: keyFile},
	}
}

func leafName(t *testing.T, cert *tls.Certificate) string {
	t.Helper()
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("parse leaf: %v", err)
	}
	return leaf.Subject.CommonName
}

func TestNewStoreLoadsAllBundles(t *testing.T) {
	servers := []*config.Server{
		tlsServer(t, "example.com", nil),
		tlsServer(t, "other.com", nil),
		{Name: "plain.com"}, // no TLS, skipped
	}

	store, err := NewStore(servers)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestNewStoreMissingFile(t *testing.T) {
	servers := []*config.Server{
		{
			Name: "example.com",
			TLS:  &config.TLSBundle{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"},
		},
	}
	if _, err := NewStore(servers); err == nil {
		t.Fatal("NewStore() expected error for missing certificate file")
	}
}

func TestNewStoreMismatchedKey(t *testing.T) {
	certFile, _, err := testcert.Generate(t.TempDir(), testcert.Options{Hosts: []string{"a.com"}})
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}
	_, otherKey, err := testcert.Generate(t.TempDir(), testcert.Options{Hosts: []string{"b.com"}})
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}

	servers := []*config.Server{
		{Name: "a.com", TLS: &config.TLSBundle{CertFile: certFile, KeyFile: otherKey}},
	}
	if _, err := NewStore(servers); err == nil {
		t.Fatal("NewStore() expected error for mismatched key pair")
	}
}

func TestGetCertificateSNI(t *testing.T) {
	store, err := NewStore([]*config.Server{
		tlsServer(t, "default.com", nil),
		tlsServer(t, "example.com", []string{"www.example.com"}),
		tlsServer(t, "*.example.com", nil, "wild.example.com"),
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	tests := []struct {
		name       string
		serverName string
		wantCN     string
	}{
		{"exact match", "example.com", "example.com"},
		{"alias match", "www.example.com", "example.com"},
		{"case insensitive", "EXAMPLE.COM", "example.com"},
		{"wildcard match", "api.example.com", "wild.example.com"},
		{"no SNI falls back to first", "", "default.com"},
		{"unknown name falls back to first", "nomatch.net", "default.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := store.GetCertificate(&tls.ClientHelloInfo{ServerName: tt.serverName})
			if err != nil {
				t.Fatalf("GetCertificate(%q) error = %v", tt.serverName, err)
			}
			if got := leafName(t, cert); got != tt.wantCN {
				t.Errorf("GetCertificate(%q) = %q, want %q", tt.serverName, got, tt.wantCN)
			}
		})
	}
}

func TestGetCertificateEmptyStore(t *testing.T) {
	store := &Store{}
	if _, err := store.GetCertificate(&tls.ClientHelloInfo{ServerName: "example.com"}); err == nil {
		t.Fatal("GetCertificate() expected error on empty store")
	}
}

func TestExpiredCertificateStillLoads(t *testing.T) {
	// Expired material loads at startup; the expiry surfaces as a warning
	// and as a handshake failure on the client side, not as a fatal error.
	certFile, keyFile, err := testcert.Generate(t.TempDir(), testcert.Options{
		Hosts:     []string{"expired.com"},
		NotBefore: time.Now().Add(-48 * time.Hour),
		NotAfter:  time.Now().Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}

	store, err := NewStore([]*config.Server{
		{Name: "expired.com", TLS: &config.TLSBundle{CertFile: certFile, KeyFile: keyFile}},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	cert, err := store.GetCertificate(&tls.ClientHelloInfo{ServerName: "expired.com"})
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if err := ValidateCertificate(cert); err == nil {
		t.Error("ValidateCertificate() expected expiry error")
	} else if !strings.Contains(err.Error(), "expired") {
		t.Errorf("ValidateCertificate() error = %v, want expiry message", err)
	}
}

func TestReloadPicksUpChangedFiles(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile, err := testcert.Generate(dir, testcert.Options{Hosts: []string{"one.com"}})
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}

	store, err := NewStore([]*config.Server{
		{Name: "one.com", TLS: &config.TLSBundle{CertFile: certFile, KeyFile: keyFile}},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	// Regenerate in place under a different common name.
	time.Sleep(10 * time.Millisecond)
	if _, _, err := testcert.Generate(dir, testcert.Options{Hosts: []string{"two.com"}}); err != nil {
		t.Fatalf("regenerate cert: %v", err)
	}
	// Force the mtime forward; coarse filesystem timestamps can hide the change.
	future := time.Now().Add(time.Hour)
	for _, p := range []string{certFile, keyFile} {
		if err := os.Chtimes(p, future, future); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	cert, err := store.GetCertificate(&tls.ClientHelloInfo{ServerName: "one.com"})
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if got := leafName(t, cert); got != "two.com" {
		t.Errorf("after reload leaf CN = %q, want %q", got, "two.com")
	}
}

func TestReloadKeepsOldCertOnFailure(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile, err := testcert.Generate(dir, testcert.Options{Hosts: []string{"keep.com"}})
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}

	store, err := NewStore([]*config.Server{
		{Name: "keep.com", TLS: &config.TLSBundle{CertFile: certFile, KeyFile: keyFile}},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := os.WriteFile(certFile, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("corrupt cert file: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(certFile, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := store.Reload(); err == nil {
		t.Error("Reload() expected error for corrupt certificate")
	}
	cert, err := store.GetCertificate(&tls.ClientHelloInfo{ServerName: "keep.com"})
	if err != nil {
		t.Fatalf("GetCertificate() error = %v", err)
	}
	if got := leafName(t, cert); got != "keep.com" {
		t.Errorf("after failed reload leaf CN = %q, want %q", got, "keep.com")
	}
}

func TestTLSConfig(t *testing.T) {
	store, err := NewStore([]*config.Server{tlsServer(t, "example.com", nil)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	cfg := store.TLSConfig()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.GetCertificate == nil {
		t.Error("GetCertificate is nil")
	}
}

func TestPaths(t *testing.T) {
	store, err := NewStore([]*config.Server{
		tlsServer(t, "a.com", nil),
		tlsServer(t, "b.com", nil),
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if got := len(store.Paths()); got != 4 {
		t.Errorf("len(Paths()) = %d, want 4", got)
	}
}
