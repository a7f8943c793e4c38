package netif

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LinkInfo is the association state of a wireless interface plus whatever
// link attributes the driver reports. Empty strings mean "not reported".
type LinkInfo struct {
	Associated bool
	SSID       string
	BSSID      string
	Signal     string
	Frequency  string
	TxRate     string
}

// Link reports association and link attributes via `iw dev <if> link`.
// Without iw it falls back to the sysfs operstate, which carries no
// attributes.
func (s *System) Link(ctx context.Context, iface string) (LinkInfo, error) {
	out, err := s.run(ctx, "iw", "dev", iface, "link")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return s.operstate(iface)
		}
		return LinkInfo{}, err
	}
	return parseIWLink(string(out)), nil
}

func (s *System) operstate(iface string) (LinkInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.sysfs, iface, "operstate"))
	if err != nil {
		return LinkInfo{}, fmt.Errorf("read operstate: %w", err)
	}
	return LinkInfo{Associated: strings.TrimSpace(string(data)) == "up"}, nil
}

// parseIWLink parses the output of `iw dev <if> link`.
func parseIWLink(out string) LinkInfo {
	var info LinkInfo
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Connected to "):
			info.Associated = true
			if fields := strings.Fields(line); len(fields) >= 3 {
				info.BSSID = fields[2]
			}
		case strings.HasPrefix(line, "SSID:"):
			info.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "freq:"):
			info.Frequency = strings.TrimSpace(strings.TrimPrefix(line, "freq:"))
		case strings.HasPrefix(line, "signal:"):
			info.Signal = strings.TrimSpace(strings.TrimPrefix(line, "signal:"))
		case strings.HasPrefix(line, "tx bitrate:"):
			info.TxRate = bitrate(strings.TrimSpace(strings.TrimPrefix(line, "tx bitrate:")))
		}
	}
	return info
}

// bitrate keeps "72.2 MBit/s" and drops MCS/GI suffixes.
func bitrate(v string) string {
	fields := strings.Fields(v)
	if len(fields) >= 2 {
		return fields[0] + " " + fields[1]
	}
	return v
}

// PowerSave reports whether driver power saving is enabled.
func (s *System) PowerSave(ctx context.Context, iface string) (bool, error) {
	out, err := s.run(ctx, "iw", "dev", iface, "get", "power_save")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return false, fmt.Errorf("iw: %w", ErrUnavailable)
		}
		return false, err
	}
	line := strings.ToLower(strings.TrimSpace(string(out)))
	switch {
	case strings.HasSuffix(line, ": on"):
		return true, nil
	case strings.HasSuffix(line, ": off"):
		return false, nil
	default:
		return false, fmt.Errorf("unexpected power_save output %q: %w", line, ErrUnavailable)
	}
}

// SetPowerSave switches driver power saving on or off.
func (s *System) SetPowerSave(ctx context.Context, iface string, enabled bool) error {
	mode := "off"
	if enabled {
		mode = "on"
	}
	if _, err := s.run(ctx, "iw", "dev", iface, "set", "power_save", mode); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("iw: %w", ErrUnavailable)
		}
		return err
	}
	return nil
}

// Reassociate asks wpa_supplicant to reassociate the interface. It returns
// ErrUnavailable when wpa_cli is not installed.
func (s *System) Reassociate(ctx context.Context, iface string) error {
	if _, err := s.lookPath("wpa_cli"); err != nil {
		return fmt.Errorf("wpa_cli: %w", ErrUnavailable)
	}
	out, err := s.run(ctx, "wpa_cli", "-i", iface, "reassociate")
	if err != nil {
		return err
	}
	if reply := strings.TrimSpace(string(out)); !strings.HasSuffix(reply, "OK") {
		return fmt.Errorf("wpa_cli reassociate: %s", reply)
	}
	return nil
}
