// Package tlsutil loads and serves per-virtual-server certificate bundles.
package tlsutil

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bastion-web/bastion/pkg/config"
	"github.com/bastion-web/bastion/pkg/router"
)

// Store holds the loaded certificate bundles for every TLS-enabled virtual
// server. Bundles are loaded once at startup, before the chroot takes
// effect; after that the store only swaps certificates atomically on reload,
// so concurrent handshakes never need external locking.
type Store struct {
	mu      sync.RWMutex
	entries []*entry
}

type entry struct {
	names    []string // server name + aliases
	certFile string
	keyFile  string

	cert     *tls.Certificate
	certTime time.Time
	keyTime  time.Time
}

// NewStore loads the certificate bundle of every server that declares one.
// Unreadable or unparsable material is a startup-fatal error: the caller
// must not bind TLS listeners without a complete store.
func NewStore(servers []*config.Server) (*Store, error) {
	s := &Store{}
	for _, srv := range servers {
		if srv.TLS == nil {
			continue
		}
		e := &entry{
			names:    srv.Names(),
			certFile: srv.TLS.CertFile,
			keyFile:  srv.TLS.KeyFile,
		}
		if err := e.load(); err != nil {
			return nil, fmt.Errorf("server %q: %w", srv.Name, err)
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

func (e *entry) load() error {
	certInfo, err := os.Stat(e.certFile)
	if err != nil {
		return fmt.Errorf("certificate %q: %w", e.certFile, err)
	}
	keyInfo, err := os.Stat(e.keyFile)
	if err != nil {
		return fmt.Errorf("key %q: %w", e.keyFile, err)
	}

	cert, err := tls.LoadX509KeyPair(e.certFile, e.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate %q: %w", e.certFile, err)
	}

	e.cert = &cert
	e.certTime = certInfo.ModTime()
	e.keyTime = keyInfo.ModTime()
	return nil
}

// Len returns the number of loaded bundles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// GetCertificate selects a certificate for a TLS handshake by SNI.
// Exact server names win over wildcards; a client that sends no server name
// (or one nothing matches) gets the first bundle, mirroring the router's
// fallback to the first server on a binding.
func (s *Store) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, fmt.Errorf("no certificates loaded")
	}

	name := strings.ToLower(strings.TrimSuffix(hello.ServerName, "."))
	if name != "" {
		for _, e := range s.entries {
			for _, n := range e.names {
				if !strings.Contains(n, "*") && strings.EqualFold(n, name) {
					return e.cert, nil
				}
			}
		}
		for _, e := range s.entries {
			for _, n := range e.names {
				if strings.Contains(n, "*") && router.MatchName(n, name) {
					return e.cert, nil
				}
			}
		}
	}
	return s.entries[0].cert, nil
}

// TLSConfig returns the tls.Config for the server's TLS listeners.
// TLS 1.2 is the floor; certificate selection goes through the store so
// reloads take effect without rebinding.
func (s *Store) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: s.GetCertificate,
	}
}

// Reload re-reads any bundle whose files changed on disk since the last
// load. A bundle that fails to reload keeps serving its previous
// certificate; the error is returned so the caller can log it.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, e := range s.entries {
		if !e.changed() {
			continue
		}
		if err := e.load(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *entry) changed() bool {
	certInfo, err := os.Stat(e.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(e.keyFile)
	if err != nil {
		return false
	}
	return certInfo.ModTime().After(e.certTime) || keyInfo.ModTime().After(e.keyTime)
}

// Paths returns every certificate and key path in the store, for the
// filesystem watcher.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var paths []string
	for _, e := range s.entries {
		paths = append(paths, e.certFile, e.keyFile)
	}
	return paths
}
