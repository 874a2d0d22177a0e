// Package sandbox confines the process to its chroot and drops root
// privileges after the listening sockets are bound.
package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/bastion-web/bastion/pkg/config"
)

// IsolationError reports a failed chroot or privilege drop. It is always
// fatal: the process must not serve requests with partial isolation.
type IsolationError struct {
	Step string // "chroot", "chdir", "setgroups", "setgid", "setuid"
	Err  error
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("isolation failed at %s: %v", e.Step, e.Err)
}

func (e *IsolationError) Unwrap() error {
	return e.Err
}

// Identity is the resolved numeric identity to drop to. Name lookups happen
// before the chroot, while /etc/passwd is still visible.
type Identity struct {
	UID int
	GID int
}

// ResolveIdentity looks up the configured user and group. The group
// defaults to the user's primary group. Must be called before Apply.
func ResolveIdentity(cfg *config.Config) (*Identity, error) {
	if cfg.User == "" {
		return nil, nil
	}

	u, err := user.Lookup(cfg.User)
	if err != nil {
		return nil, fmt.Errorf("unknown user %q: %w", cfg.User, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("non-numeric uid %q for user %q", u.Uid, cfg.User)
	}

	gidStr := u.Gid
	if cfg.Group != "" {
		g, err := user.LookupGroup(cfg.Group)
		if err != nil {
			return nil, fmt.Errorf("unknown group %q: %w", cfg.Group, err)
		}
		gidStr = g.Gid
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("non-numeric gid %q", gidStr)
	}

	return &Identity{UID: uid, GID: gid}, nil
}

// Apply chroots into cfg.Chroot and drops to the given identity, in that
// order. Group changes precede the uid change since an unprivileged process
// cannot change groups. An empty chroot skips confinement entirely, which
// is only sensible for test configurations; Apply logs that loudly.
func Apply(cfg *config.Config, id *Identity, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Chroot == "" {
		logger.Warn("no chroot configured, running unconfined")
	} else {
		if err := unix.Chroot(cfg.Chroot); err != nil {
			return &IsolationError{Step: "chroot", Err: fmt.Errorf("%q: %w", cfg.Chroot, err)}
		}
		if err := os.Chdir("/"); err != nil {
			return &IsolationError{Step: "chdir", Err: err}
		}
		logger.Info("chrooted", "root", cfg.Chroot)
	}

	if id == nil {
		if os.Geteuid() == 0 {
			logger.Warn("no user configured, still running as root")
		}
		return nil
	}

	if err := unix.Setgroups([]int{id.GID}); err != nil {
		return &IsolationError{Step: "setgroups", Err: err}
	}
	if err := unix.Setgid(id.GID); err != nil {
		return &IsolationError{Step: "setgid", Err: err}
	}
	if err := unix.Setuid(id.UID); err != nil {
		return &IsolationError{Step: "setuid", Err: err}
	}

	logger.Info("privileges dropped", "uid", id.UID, "gid", id.GID)
	return nil
}
