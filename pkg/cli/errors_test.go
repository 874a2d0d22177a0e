package cli

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("server.localhost.root", "document root is required")
	if !strings.Contains(err.Error(), "server.localhost.root") {
		t.Errorf("expected field in message, got %q", err.Error())
	}

	bare := NewConfigError("", "failed to load config")
	if strings.Contains(bare.Error(), "in :") {
		t.Errorf("empty field should be omitted, got %q", bare.Error())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("bind: address already in use")
	err := NewCommandError("run", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("expected command name in message, got %q", err.Error())
	}
}
