package config

import (
	"testing"
	"time"
)

// TestParseCoreDefaults tests that the core runtime config parses with no
// environment set.
func TestParseCoreDefaults(t *testing.T) {
	cfg, err := ParseCore()
	if err != nil {
		t.Fatalf("ParseCore failed: %v", err)
	}

	if cfg.Addr != "localhost:8090" {
		t.Errorf("Unexpected default addr: %s", cfg.Addr)
	}
	if cfg.ProbeInterval != 5*time.Second {
		t.Errorf("Unexpected default probe interval: %s", cfg.ProbeInterval)
	}
	if cfg.BackoffBase != 2*time.Second || cfg.BackoffCap != 5*time.Minute {
		t.Errorf("Unexpected backoff defaults: %s / %s", cfg.BackoffBase, cfg.BackoffCap)
	}
}

// TestParseCoreOverrides tests environment overrides.
func TestParseCoreOverrides(t *testing.T) {
	t.Setenv("OMNII_CORE_ADDR", "127.0.0.1:9999")
	t.Setenv("OMNII_PROBE_INTERVAL", "250ms")
	t.Setenv("OMNII_AUTH_TOKEN", "secret")

	cfg, err := ParseCore()
	if err != nil {
		t.Fatalf("ParseCore failed: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("Override ignored: %s", cfg.Addr)
	}
	if cfg.ProbeInterval != 250*time.Millisecond {
		t.Errorf("Duration override ignored: %s", cfg.ProbeInterval)
	}
	if cfg.AuthToken != "secret" {
		t.Errorf("Token override ignored: %q", cfg.AuthToken)
	}
}

// TestParseServerDefaults tests the delivery server defaults.
func TestParseServerDefaults(t *testing.T) {
	cfg, err := ParseServer()
	if err != nil {
		t.Fatalf("ParseServer failed: %v", err)
	}
	if cfg.RateLimitWindow != 60*time.Second {
		t.Errorf("Unexpected default window: %s", cfg.RateLimitWindow)
	}
	if cfg.RateLimitMax != 100 {
		t.Errorf("Unexpected default max: %d", cfg.RateLimitMax)
	}
}

// TestParseServerBadValue tests that malformed values are rejected.
func TestParseServerBadValue(t *testing.T) {
	t.Setenv("OMNII_RATE_LIMIT_MAX", "lots")
	if _, err := ParseServer(); err == nil {
		t.Error("Expected error for non-numeric max")
	}
}
