package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadFileMissingFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.FailureThreshold != 1 {
		t.Fatalf("threshold = %d, want 1", cfg.FailureThreshold)
	}
	if cfg.HealthyInterval() != 15*time.Second || cfg.RetryInterval() != 5*time.Second || cfg.RecoveryInterval() != 60*time.Second {
		t.Fatalf("unexpected intervals: %v %v %v", cfg.HealthyInterval(), cfg.RetryInterval(), cfg.RecoveryInterval())
	}
	if cfg.Settle() != 2*time.Second {
		t.Fatalf("settle = %v, want 2s", cfg.Settle())
	}
	if !cfg.DNSCheck {
		t.Fatal("dns check should default to enabled")
	}
	if len(cfg.ProbeHosts) == 0 {
		t.Fatal("expected default probe hosts")
	}
}

func TestLoadFileOverridesAndNormalises(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
interface: wlan1
failure_threshold: 3
healthy_interval_seconds: 30
retry_interval_seconds: -4
dns_check: false
probe_hosts: ["  ", "192.0.2.1"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Interface != "wlan1" || cfg.FailureThreshold != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HealthyInterval() != 30*time.Second {
		t.Fatalf("healthy = %v", cfg.HealthyInterval())
	}
	if cfg.RetryInterval() != 5*time.Second {
		t.Fatalf("negative retry interval should normalise to default, got %v", cfg.RetryInterval())
	}
	if cfg.DNSCheck {
		t.Fatal("dns_check: false was ignored")
	}
	if len(cfg.ProbeHosts) != 1 || cfg.ProbeHosts[0] != "192.0.2.1" {
		t.Fatalf("probe hosts = %v", cfg.ProbeHosts)
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("failure_threshold: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	ApplyEnv(&cfg, mapLookup(map[string]string{
		EnvInterface:   " wlp2s0 ",
		EnvRecoveryLog: "/tmp/recovery.log",
		EnvDNSCheck:    "0",
		EnvLogLevel:    "debug",
	}))

	if cfg.InterfaceOverride != "wlp2s0" {
		t.Fatalf("override = %q", cfg.InterfaceOverride)
	}
	if cfg.RecoveryLog != "/tmp/recovery.log" {
		t.Fatalf("recovery log = %q", cfg.RecoveryLog)
	}
	if cfg.DNSCheck {
		t.Fatal("expected dns check disabled")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestApplyEnvIgnoresInvalidBool(t *testing.T) {
	cfg := DefaultConfig()
	ApplyEnv(&cfg, mapLookup(map[string]string{EnvDNSCheck: "sometimes"}))
	if !cfg.DNSCheck {
		t.Fatal("unparseable value must keep the previous setting")
	}
}

func TestLoadEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	content := EnvInterface + "=wlan9\n" + EnvLogLevel + "=warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvInterface, "wlan0")
	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvLogLevel)

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv(EnvInterface); got != "wlan0" {
		t.Fatalf("process env overridden: %q", got)
	}
	if got := os.Getenv(EnvLogLevel); got != "warn" {
		t.Fatalf("env file value not loaded: %q", got)
	}
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
}
