package tlsutil

import (
	"crypto/x509"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SweepSchedule is when the expiry sweep runs: daily at 03:00.
const SweepSchedule = "0 3 * * *"

// ExpirySweeper periodically inspects every loaded certificate and logs a
// warning for any that is expired or expiring soon. Operators renewing
// certificates by hand get the nudge in the daemon log instead of an outage.
type ExpirySweeper struct {
	store  *Store
	cron   *cron.Cron
	logger *slog.Logger
}

// NewExpirySweeper creates a sweeper over the given store.
func NewExpirySweeper(store *Store, logger *slog.Logger) *ExpirySweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirySweeper{
		store:  store,
		cron:   cron.New(),
		logger: logger.With("component", "tls.sweeper"),
	}
}

// Start runs the sweep once immediately, then on the daily schedule.
func (s *ExpirySweeper) Start() error {
	s.Sweep()
	if _, err := s.cron.AddFunc(SweepSchedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler.
func (s *ExpirySweeper) Stop() {
	s.cron.Stop()
}

// Sweep checks every loaded certificate once.
func (s *ExpirySweeper) Sweep() {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	for _, e := range s.store.entries {
		if e.cert == nil || len(e.cert.Certificate) == 0 {
			continue
		}
		leaf, err := x509.ParseCertificate(e.cert.Certificate[0])
		if err != nil {
			continue
		}
		days, warning := CheckExpiration(leaf)
		if warning != "" {
			s.logger.Warn("certificate expiring",
				"subject", leaf.Subject.CommonName,
				"cert_file", e.certFile,
				"expires_in_days", days,
			)
		}
	}
}
