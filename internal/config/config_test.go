package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
monitor:
  maxParallelExecutions: 4
sources:
  orders-db:
    type: postgres
    host: localhost
    database: orders
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.MaxParallelExecutions != 4 {
		t.Fatalf("explicit value lost")
	}
	if cfg.Monitor.TickSeconds != 15 {
		t.Fatalf("expected default tick, got %d", cfg.Monitor.TickSeconds)
	}
	if cfg.Monitor.LockStaleAfterSeconds != 2*cfg.Monitor.ExecutionTimeoutSeconds {
		t.Fatalf("stale lock default must be twice the execution timeout")
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("expected one source")
	}
	if cfg.Sources["orders-db"].Type != "postgres" {
		t.Fatalf("unexpected source type")
	}
}

func TestLoadExplicitLockStaleAfter(t *testing.T) {
	path := writeConfig(t, `
monitor:
  executionTimeoutSeconds: 30
  lockStaleAfterSeconds: 300
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.LockStaleAfterSeconds != 300 {
		t.Fatalf("explicit stale timeout lost")
	}
}

func TestLoadRejectsInvertedDeadlines(t *testing.T) {
	path := writeConfig(t, `
alerts:
  escalationMinutes: 60
  autoResolutionMinutes: 30
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestReplacePolicyKeepsSchedulingKnobs(t *testing.T) {
	h := NewHandle(Default())
	next := Default()
	next.Alerts.EscalationMinutes = 10
	next.Alerts.AutoResolutionMinutes = 60
	next.Monitor.MaxParallelExecutions = 99

	h.ReplacePolicy(next)
	snap := h.Snapshot()
	if snap.Alerts.EscalationMinutes != 10 || snap.Alerts.AutoResolutionMinutes != 60 {
		t.Fatalf("policy not applied")
	}
	if snap.Monitor.MaxParallelExecutions == 99 {
		t.Fatalf("scheduling knobs must not hot-reload")
	}
}
