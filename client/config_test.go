package client_test

import (
	"testing"
	"time"

	"notesync/client"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("NOTESYNC_SYNC_ENABLED", "")
	t.Setenv("NOTESYNC_TIMEOUT", "")
	t.Setenv("NOTESYNC_HOME", "/tmp/notesync-test")

	cfg, err := client.LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Enabled {
		t.Error("sync should be off by default")
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled config should validate: %v", err)
	}
}

func TestConfigValidateEnabled(t *testing.T) {
	t.Setenv("NOTESYNC_SYNC_ENABLED", "true")
	t.Setenv("NOTESYNC_HOME", "/tmp/notesync-test")
	t.Setenv("NOTESYNC_SERVER_URL", "http://localhost:8000/")
	t.Setenv("NOTESYNC_USER", "")
	t.Setenv("NOTESYNC_TIMEOUT", "2s")

	cfg, err := client.LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ServerURL != "http://localhost:8000" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.ServerURL)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing user to fail validation")
	}
	cfg.User = "alice"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("NOTESYNC_HOME", "/tmp/notesync-test")
	t.Setenv("NOTESYNC_SYNC_ENABLED", "sometimes")
	if _, err := client.LoadConfig(); err == nil {
		t.Error("expected bad bool to fail")
	}

	t.Setenv("NOTESYNC_SYNC_ENABLED", "false")
	t.Setenv("NOTESYNC_TIMEOUT", "soon")
	if _, err := client.LoadConfig(); err == nil {
		t.Error("expected bad duration to fail")
	}
}
