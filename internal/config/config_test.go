package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
transport:
  type: serial
  address: /dev/ttyUSB0
  baudRate: 38400
session:
  commandTimeout: 2s
  initTimeout: 5s
  clearDtcTimeout: 5s
  queueCapacity: 10
cadence:
  period: 500ms
  stalenessBudget: 5s
logging:
  level: info
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.Type != "serial" || cfg.Transport.Address != "/dev/ttyUSB0" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Session.CommandTimeout.Duration() != 2*time.Second {
		t.Errorf("commandTimeout = %v, want 2s", cfg.Session.CommandTimeout.Duration())
	}
	if cfg.Cadence.Period.Duration() != 500*time.Millisecond {
		t.Errorf("cadence period = %v, want 500ms", cfg.Cadence.Period.Duration())
	}
}

func TestLoadAppliesDefaultsWhenOmitted(t *testing.T) {
	path := writeTempConfig(t, "transport:\n  type: mock\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.QueueCapacity != 10 {
		t.Errorf("queueCapacity default = %d, want 10", cfg.Session.QueueCapacity)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level default = %q, want info", cfg.Logging.Level)
	}
}

func TestTransportConfigAdaptsSection(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tc := cfg.TransportConfig()
	if tc.Type != "serial" || tc.BaudRate != 38400 {
		t.Errorf("TransportConfig = %+v", tc)
	}
}
