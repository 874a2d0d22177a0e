package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g. "server.example.com.root").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It is fatal: nothing is bound and nothing is served.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the entire configuration, including the filesystem
// preconditions the runbook requires before process start: the chroot root,
// document roots, and certificate material must all exist and be readable.
// All errors are collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateGlobals(cfg)...)
	errs = append(errs, validateServers(cfg)...)
	errs = append(errs, validateBindings(cfg)...)
	errs = append(errs, validateAccessLog(&cfg.AccessLog)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateTimeouts(&cfg.Timeouts)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateGlobals(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.Chroot != "" {
		info, err := os.Stat(cfg.Chroot)
		switch {
		case err != nil:
			errs = append(errs, FieldError{
				Field:   "chroot",
				Message: fmt.Sprintf("chroot root %q is not accessible: %v", cfg.Chroot, err),
			})
		case !info.IsDir():
			errs = append(errs, FieldError{
				Field:   "chroot",
				Message: fmt.Sprintf("chroot root %q is not a directory", cfg.Chroot),
			})
		}
	}

	if cfg.Prefork < 0 {
		errs = append(errs, FieldError{
			Field:   "prefork",
			Message: "prefork must be non-negative",
		})
	}

	return errs
}

func validateServers(cfg *Config) []FieldError {
	var errs []FieldError

	if len(cfg.Servers) == 0 {
		errs = append(errs, FieldError{
			Field:   "server",
			Message: "at least one server must be configured",
		})
		return errs
	}

	for i, srv := range cfg.Servers {
		prefix := fmt.Sprintf("server.%s", srv.Name)
		if srv.Name == "" {
			prefix = fmt.Sprintf("server[%d]", i)
			errs = append(errs, FieldError{Field: prefix, Message: "server name is required"})
		}

		if len(srv.Listens) == 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".listen",
				Message: "at least one listen binding is required",
			})
		}
		for _, l := range srv.Listens {
			if l.Port < 1 || l.Port > 65535 {
				errs = append(errs, FieldError{
					Field:   prefix + ".listen",
					Message: fmt.Sprintf("port %d out of range", l.Port),
				})
			}
			if l.Address == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".listen",
					Message: "listen address is required (use \"*\" for all interfaces)",
				})
			}
		}

		errs = append(errs, validateRoot(cfg, srv, prefix)...)
		errs = append(errs, validateServerTLS(srv, prefix)...)

		for _, loc := range srv.Locations {
			if loc.Pattern == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".location",
					Message: "location pattern is required",
				})
			}
			if loc.Redirect != nil {
				if loc.Redirect.Status < 300 || loc.Redirect.Status > 399 {
					errs = append(errs, FieldError{
						Field:   fmt.Sprintf("%s.location.%s", prefix, loc.Pattern),
						Message: fmt.Sprintf("redirect status %d is not a 3xx code", loc.Redirect.Status),
					})
				}
				if loc.Redirect.Target == "" {
					errs = append(errs, FieldError{
						Field:   fmt.Sprintf("%s.location.%s", prefix, loc.Pattern),
						Message: "redirect target is required",
					})
				}
			}
		}
	}

	return errs
}

func validateRoot(cfg *Config, srv *Server, prefix string) []FieldError {
	var errs []FieldError

	// A server whose locations are all redirects needs no document root.
	if srv.Root == "" {
		if !redirectOnly(srv) {
			errs = append(errs, FieldError{
				Field:   prefix + ".root",
				Message: "document root is required",
			})
		}
		return errs
	}

	resolved := srv.Root
	if cfg.Chroot != "" {
		resolved = filepath.Join(cfg.Chroot, srv.Root)
	}
	info, err := os.Stat(resolved)
	switch {
	case err != nil:
		errs = append(errs, FieldError{
			Field:   prefix + ".root",
			Message: fmt.Sprintf("document root %q is not accessible: %v", resolved, err),
		})
	case !info.IsDir():
		errs = append(errs, FieldError{
			Field:   prefix + ".root",
			Message: fmt.Sprintf("document root %q is not a directory", resolved),
		})
	}

	return errs
}

func redirectOnly(srv *Server) bool {
	if len(srv.Locations) == 0 {
		return false
	}
	for _, loc := range srv.Locations {
		if loc.Redirect == nil {
			return false
		}
	}
	return true
}

func validateServerTLS(srv *Server, prefix string) []FieldError {
	var errs []FieldError

	hasTLSBinding := false
	for _, l := range srv.Listens {
		if l.TLS {
			hasTLSBinding = true
			break
		}
	}

	if hasTLSBinding && srv.TLS == nil {
		errs = append(errs, FieldError{
			Field:   prefix + ".tls",
			Message: "tls certificate and key are required for a tls binding",
		})
	}
	if srv.TLS == nil {
		return errs
	}

	if srv.TLS.CertFile == "" {
		errs = append(errs, FieldError{Field: prefix + ".tls.certificate", Message: "certificate path is required"})
	} else if err := checkReadable(srv.TLS.CertFile); err != nil {
		errs = append(errs, FieldError{
			Field:   prefix + ".tls.certificate",
			Message: fmt.Sprintf("certificate %q is not readable: %v", srv.TLS.CertFile, err),
		})
	}
	if srv.TLS.KeyFile == "" {
		errs = append(errs, FieldError{Field: prefix + ".tls.key", Message: "key path is required"})
	} else if err := checkReadable(srv.TLS.KeyFile); err != nil {
		errs = append(errs, FieldError{
			Field:   prefix + ".tls.key",
			Message: fmt.Sprintf("key %q is not readable: %v", srv.TLS.KeyFile, err),
		})
	}

	return errs
}

// validateBindings rejects the same (address, port) declared by two servers,
// and a wildcard binding colliding with a specific one on the same port.
// Both are detected before any socket is opened.
func validateBindings(cfg *Config) []FieldError {
	var errs []FieldError

	type owner struct {
		server string
		listen Listen
	}
	byExact := make(map[string]owner)
	wildcardPorts := make(map[int]owner)
	specificPorts := make(map[int]owner)

	for _, srv := range cfg.Servers {
		for _, l := range srv.Listens {
			key := l.HostPort()
			if prev, dup := byExact[key]; dup {
				errs = append(errs, FieldError{
					Field: fmt.Sprintf("server.%s.listen", srv.Name),
					Message: fmt.Sprintf("binding %s duplicates server %q",
						l.String(), prev.server),
				})
				continue
			}
			byExact[key] = owner{server: srv.Name, listen: l}

			if l.Address == "*" {
				if prev, clash := specificPorts[l.Port]; clash {
					errs = append(errs, FieldError{
						Field: fmt.Sprintf("server.%s.listen", srv.Name),
						Message: fmt.Sprintf("wildcard binding %s overlaps %s declared by server %q",
							l.String(), prev.listen.String(), prev.server),
					})
				}
				wildcardPorts[l.Port] = owner{server: srv.Name, listen: l}
			} else {
				if prev, clash := wildcardPorts[l.Port]; clash {
					errs = append(errs, FieldError{
						Field: fmt.Sprintf("server.%s.listen", srv.Name),
						Message: fmt.Sprintf("binding %s overlaps wildcard %s declared by server %q",
							l.String(), prev.listen.String(), prev.server),
					})
				}
				specificPorts[l.Port] = owner{server: srv.Name, listen: l}
			}
		}
	}

	return errs
}

func validateAccessLog(cfg *AccessLogConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "access_log.backend",
			Message: fmt.Sprintf("unknown backend %q (want \"file\" or \"sqlite\")", cfg.Backend),
		})
	}

	if cfg.RotateSchedule != "" {
		if cfg.Backend != "file" {
			errs = append(errs, FieldError{
				Field:   "access_log.rotate_schedule",
				Message: "rotation applies only to the file backend",
			})
		}
		if _, err := cron.ParseStandard(cfg.RotateSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "access_log.rotate_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.RotateSchedule, err),
			})
		}
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError
	if cfg.Enabled && cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "metrics.listen_address",
			Message: "listen address is required when metrics are enabled",
		})
	}
	return errs
}

func validateTimeouts(cfg *TimeoutConfig) []FieldError {
	var errs []FieldError
	check := func(field string, d time.Duration) {
		if d < 0 {
			errs = append(errs, FieldError{
				Field:   "timeouts." + field,
				Message: "timeout must be non-negative",
			})
		}
	}
	check("read_header", cfg.ReadHeader)
	check("read", cfg.Read)
	check("write", cfg.Write)
	check("idle", cfg.Idle)
	check("shutdown", cfg.Shutdown)
	return errs
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
