package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is where the optional YAML configuration lives.
	DefaultPath = "/etc/wifi-watchdog/config.yaml"
	// DefaultEnvFile is loaded with godotenv before the environment is read.
	DefaultEnvFile = "/etc/default/wifi-watchdog"

	EnvInterface   = "WIFI_WATCHDOG_INTERFACE"
	EnvRecoveryLog = "WIFI_WATCHDOG_RECOVERY_LOG"
	EnvDNSCheck    = "WIFI_WATCHDOG_DNS_CHECK"
	EnvLogLevel    = "WIFI_WATCHDOG_LOG_LEVEL"
)

// Config represents configuration data for the watchdog.
type Config struct {
	Interface               string   `yaml:"interface"`
	FailureThreshold        int      `yaml:"failure_threshold"`
	HealthyIntervalSeconds  int      `yaml:"healthy_interval_seconds"`
	RetryIntervalSeconds    int      `yaml:"retry_interval_seconds"`
	RecoveryIntervalSeconds int      `yaml:"recovery_interval_seconds"`
	SettleSeconds           int      `yaml:"settle_seconds"`
	ProbeTimeoutSeconds     int      `yaml:"probe_timeout_seconds"`
	ProbeHosts              []string `yaml:"probe_hosts"`
	DNSCheck                bool     `yaml:"dns_check"`
	DNSHost                 string   `yaml:"dns_host"`
	SystemLog               string   `yaml:"system_log"`
	RecoveryLog             string   `yaml:"recovery_log"`
	LockPath                string   `yaml:"lock_path"`
	LogLevel                string   `yaml:"log_level"`

	// InterfaceOverride comes from the environment and beats every other source.
	InterfaceOverride string `yaml:"-"`
	// SystemLogFallback is used when SystemLog cannot be opened for append.
	SystemLogFallback string `yaml:"-"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	state := stateDirectory()
	return Config{
		FailureThreshold:        1,
		HealthyIntervalSeconds:  15,
		RetryIntervalSeconds:    5,
		RecoveryIntervalSeconds: 60,
		SettleSeconds:           2,
		ProbeTimeoutSeconds:     2,
		ProbeHosts:              []string{"1.1.1.1", "8.8.8.8", "9.9.9.9"},
		DNSCheck:                true,
		DNSHost:                 "google.com",
		SystemLog:               "/var/log/wifi-watchdog.log",
		SystemLogFallback:       filepath.Join(state, "wifi-watchdog.log"),
		RecoveryLog:             filepath.Join(state, "recovery.log"),
		LockPath:                "/run/wifi-watchdog.lock",
		LogLevel:                "info",
	}
}

// Load reads configuration from the yaml file at path and applies the process
// environment on top. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	ApplyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

// LoadFile reads only the yaml layer.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalise()
	return cfg, nil
}

// LoadEnvFile populates the process environment from a dotenv file without
// overriding variables that are already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables resolved through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvInterface); ok {
		cfg.InterfaceOverride = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRecoveryLog); ok && strings.TrimSpace(v) != "" {
		cfg.RecoveryLog = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDNSCheck); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.DNSCheck = b
		}
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	cfg.normalise()
}

func (c *Config) normalise() {
	def := DefaultConfig()
	c.Interface = strings.TrimSpace(c.Interface)
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.HealthyIntervalSeconds <= 0 {
		c.HealthyIntervalSeconds = def.HealthyIntervalSeconds
	}
	if c.RetryIntervalSeconds <= 0 {
		c.RetryIntervalSeconds = def.RetryIntervalSeconds
	}
	if c.RecoveryIntervalSeconds <= 0 {
		c.RecoveryIntervalSeconds = def.RecoveryIntervalSeconds
	}
	if c.SettleSeconds <= 0 {
		c.SettleSeconds = def.SettleSeconds
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = def.ProbeTimeoutSeconds
	}
	hosts := c.ProbeHosts[:0:0]
	for _, h := range c.ProbeHosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		hosts = def.ProbeHosts
	}
	c.ProbeHosts = hosts
	if strings.TrimSpace(c.DNSHost) == "" {
		c.DNSHost = def.DNSHost
	}
	if c.SystemLog == "" {
		c.SystemLog = def.SystemLog
	}
	if c.SystemLogFallback == "" {
		c.SystemLogFallback = def.SystemLogFallback
	}
	if c.RecoveryLog == "" {
		c.RecoveryLog = def.RecoveryLog
	}
	if c.LockPath == "" {
		c.LockPath = def.LockPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// HealthyInterval is the sleep after an ok observation.
func (c Config) HealthyInterval() time.Duration { return seconds(c.HealthyIntervalSeconds) }

// RetryInterval is the sleep after a failure below the threshold.
func (c Config) RetryInterval() time.Duration { return seconds(c.RetryIntervalSeconds) }

// RecoveryInterval is the sleep after a radio cycle.
func (c Config) RecoveryInterval() time.Duration { return seconds(c.RecoveryIntervalSeconds) }

// Settle is the pause between bringing the link down and up again.
func (c Config) Settle() time.Duration { return seconds(c.SettleSeconds) }

// ProbeTimeout bounds each reachability and DNS attempt.
func (c Config) ProbeTimeout() time.Duration { return seconds(c.ProbeTimeoutSeconds) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func stateDirectory() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "wifi-watchdog")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "wifi-watchdog")
	}
	return filepath.Join(home, ".local", "state", "wifi-watchdog")
}
