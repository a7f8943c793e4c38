package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wifiwatchdog/internal/config"
	"wifiwatchdog/internal/lock"
	"wifiwatchdog/internal/models"
)

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"-status", "-config", "/tmp/w.yaml", "wlan1"}, &stderr)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !opts.status || opts.configPath != "/tmp/w.yaml" || opts.iface != "wlan1" {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.envFile != config.DefaultEnvFile {
		t.Fatalf("envFile = %q", opts.envFile)
	}

	if _, err := parseArgs([]string{"-h"}, &stderr); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("-h: err = %v", err)
	}
	if _, err := parseArgs([]string{"wlan0", "wlan1"}, &stderr); err == nil {
		t.Fatal("expected error for two interfaces")
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("failure_threshold: [oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	noEnv := filepath.Join(dir, "absent.env")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"-h"}, exitOK},
		{"unknown flag", []string{"-bogus"}, exitUsage},
		{"too many args", []string{"wlan0", "wlan1"}, exitUsage},
		{"malformed config", []string{"-env", noEnv, "-config", bad}, exitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(tc.args, &stdout, &stderr); got != tc.want {
				t.Fatalf("run(%v) = %d, want %d (stderr %q)", tc.args, got, tc.want, stderr.String())
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-version"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "wifi-watchdog ") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestOpenLoggerFallsBackAndMirrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.SystemLog = filepath.Join(blocker, "system.log")
	cfg.SystemLogFallback = filepath.Join(dir, "state", "system.log")
	cfg.RecoveryLog = filepath.Join(dir, "state", "recovery.log")

	var stderr bytes.Buffer
	logger, closeSinks := openLogger(cfg, &stderr)
	logger.Infof("hello")
	logger.Recoveryf("connection recovered after 3s")
	closeSinks()

	detail, err := os.ReadFile(cfg.SystemLogFallback)
	if err != nil {
		t.Fatalf("fallback log: %v", err)
	}
	if !strings.Contains(string(detail), "[wifi-watchdog] hello") {
		t.Fatalf("detail = %q", detail)
	}
	if !strings.Contains(stderr.String(), "[wifi-watchdog] hello") {
		t.Fatalf("stderr not mirrored: %q", stderr.String())
	}
	concise, err := os.ReadFile(cfg.RecoveryLog)
	if err != nil {
		t.Fatalf("recovery log: %v", err)
	}
	if strings.Contains(string(concise), "hello") || !strings.Contains(string(concise), "connection recovered after 3s") {
		t.Fatalf("concise = %q", concise)
	}
}

type countingProber struct{ calls int }

func (p *countingProber) Probe(context.Context, string) models.ConnectivityStatus {
	p.calls++
	return models.ConnectivityStatus{State: models.StateOK}
}

type idleRadio struct{}

func (idleRadio) SetLinkDown(string) error { return nil }
func (idleRadio) SetLinkUp(string) error { return nil }
func (idleRadio) Reassociate(context.Context, string) error { return nil }
func (idleRadio) PowerSave(context.Context, string) (bool, error) { return false, nil }
func (idleRadio) SetPowerSave(context.Context, string, bool) error { return nil }

type staticLister []string

func (l staticLister) WirelessInterfaces() ([]string, error) { return l, nil }

func fakeHost(p *countingProber, devices ...string) func(config.Config) host {
	return func(config.Config) host {
		return host{
			lister: staticLister(devices),
			prober: p,
			radio:  idleRadio{},
			exists: func(string) bool { return true },
		}
	}
}

// writeConfig points every path the watchdog writes at dir.
func writeConfig(t *testing.T, dir, iface string) string {
	t.Helper()
	for _, key := range []string{config.EnvInterface, config.EnvRecoveryLog, config.EnvDNSCheck, config.EnvLogLevel} {
		t.Setenv(key, "")
	}
	var b strings.Builder
	if iface != "" {
		b.WriteString("interface: " + iface + "\n")
	}
	b.WriteString("system_log: " + filepath.Join(dir, "system.log") + "\n")
	b.WriteString("recovery_log: " + filepath.Join(dir, "recovery.log") + "\n")
	b.WriteString("lock_path: " + filepath.Join(dir, "watchdog.lock") + "\n")
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDuplicateInstanceExitsCleanly(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "wlan0")

	held, err := lock.Acquire(filepath.Join(dir, "watchdog.lock"))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	prober := &countingProber{}
	var stdout, stderr bytes.Buffer
	args := []string{"-env", filepath.Join(dir, "absent.env"), "-config", cfgPath}
	if code := runWith(args, &stdout, &stderr, fakeHost(prober)); code != exitOK {
		t.Fatalf("exit = %d, want %d (stderr %q)", code, exitOK, stderr.String())
	}
	if prober.calls != 0 {
		t.Fatalf("duplicate instance ran %d connectivity checks", prober.calls)
	}

	data, err := os.ReadFile(filepath.Join(dir, "system.log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "already running") {
		t.Fatalf("system log = %q, want a single notice", lines)
	}
}

func TestNoWirelessInterfaceExitCode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	args := []string{"-env", filepath.Join(dir, "absent.env"), "-config", cfgPath}

	for _, mode := range [][]string{nil, {"-status"}} {
		prober := &countingProber{}
		var stdout, stderr bytes.Buffer
		code := runWith(append(append([]string{}, mode...), args...), &stdout, &stderr, fakeHost(prober))
		if code != exitNoInterface {
			t.Fatalf("mode %v: exit = %d, want %d", mode, code, exitNoInterface)
		}
		if prober.calls != 0 {
			t.Fatalf("mode %v: connectivity checked without an interface", mode)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "system.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "error: wireless interface not found") {
		t.Fatalf("system log = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "watchdog.lock")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("lock file created without an interface: %v", err)
	}
}
