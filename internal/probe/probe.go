// Package probe runs the layered connectivity check against one interface.
//
// The layers run in a fixed order and stop at the first failure:
//
//  1. association   - failure yields no_wifi
//  2. default route - failure yields no_internet
//  3. reachability  - one echo per host, in order, until one answers
//  4. DNS           - optional; failure yields no_internet
//
// A link diagnostic snapshot is captured on every probe regardless of the
// outcome. Missing attributes are rendered as placeholders, never as errors.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wifiwatchdog/internal/models"
	"wifiwatchdog/internal/netif"
)

const (
	DetailVerified  = "connectivity verified"
	DetailNoRoute   = "no default route"
	DetailDNSFailed = "DNS resolution failed"
)

// Capabilities are the host operations a probe consumes.
type Capabilities interface {
	Link(ctx context.Context, iface string) (netif.LinkInfo, error)
	HasDefaultRoute(iface string) (bool, error)
	// Ping sends one bounded echo; an empty iface means unbound.
	Ping(ctx context.Context, host, iface string) error
	Resolve(ctx context.Context, host string) error
	Address(iface string) (string, error)
}

// Config controls probe behaviour.
type Config struct {
	Hosts    []string
	Timeout  time.Duration
	DNSCheck bool
	DNSHost  string
}

// Prober executes probes. It keeps no state between calls.
type Prober struct {
	caps Capabilities
	cfg  Config
	now  func() time.Time
}

// New creates a Prober.
func New(caps Capabilities, cfg Config) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Prober{caps: caps, cfg: cfg, now: time.Now}
}

// Probe runs one full check against iface.
func (p *Prober) Probe(ctx context.Context, iface string) models.ConnectivityStatus {
	status := models.ConnectivityStatus{DNS: models.DNSNo}
	if !p.cfg.DNSCheck {
		status.DNS = models.DNSDisabled
	}

	link, err := p.caps.Link(ctx, iface)
	status.Diagnostics = p.diagnostics(link, iface)

	if err != nil {
		status.State = models.StateNoWiFi
		status.Indeterminate = true
		status.Detail = fmt.Sprintf("association query failed: %v", err)
		return finish(status, p.now)
	}
	if !link.Associated {
		status.State = models.StateNoWiFi
		status.Detail = fmt.Sprintf("%s is not associated with a network", iface)
		return finish(status, p.now)
	}

	hasRoute, err := p.caps.HasDefaultRoute(iface)
	if err != nil || !hasRoute {
		status.State = models.StateNoInternet
		status.Detail = DetailNoRoute
		if err != nil {
			status.Detail = fmt.Sprintf("%s: %v", DetailNoRoute, err)
		}
		return finish(status, p.now)
	}
	status.DefaultRoute = true

	reached, fallback, tried, lastErr := p.reach(ctx, iface)
	status.HostsTried = tried
	status.Fallback = fallback
	if reached == "" {
		status.State = models.StateNoInternet
		status.Detail = fmt.Sprintf("no reachability: %v (tried %s)", lastErr, strings.Join(tried, ", "))
		return finish(status, p.now)
	}

	if p.cfg.DNSCheck {
		dctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		err := p.caps.Resolve(dctx, p.cfg.DNSHost)
		cancel()
		if err != nil {
			status.State = models.StateNoInternet
			status.Detail = DetailDNSFailed
			return finish(status, p.now)
		}
		status.DNS = models.DNSYes
	}

	status.State = models.StateOK
	status.Detail = DetailVerified
	if fallback {
		status.Detail = fmt.Sprintf("%s (reached %s without interface binding)", DetailVerified, reached)
	}
	return finish(status, p.now)
}

// reach tries each host in order. A bind permission failure is retried once
// unbound before the host counts as unreachable.
func (p *Prober) reach(ctx context.Context, iface string) (reached string, fallback bool, tried []string, lastErr error) {
	for _, host := range p.cfg.Hosts {
		tried = append(tried, host)

		err := p.ping(ctx, host, iface)
		if errors.Is(err, netif.ErrBindPermission) {
			err = p.ping(ctx, host, "")
			if err == nil {
				return host, true, tried, nil
			}
		}
		if err == nil {
			return host, false, tried, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no probe hosts configured")
	}
	return "", false, tried, lastErr
}

func (p *Prober) ping(ctx context.Context, host, iface string) error {
	pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.caps.Ping(pctx, host, iface)
}

func (p *Prober) diagnostics(link netif.LinkInfo, iface string) models.Diagnostics {
	addr, err := p.caps.Address(iface)
	if err != nil {
		addr = ""
	}
	return models.Diagnostics{
		SSID:      orPlaceholder(link.SSID, models.Unknown),
		BSSID:     orPlaceholder(link.BSSID, models.Unknown),
		Signal:    orPlaceholder(link.Signal, models.Unknown),
		Frequency: orPlaceholder(link.Frequency, models.Unknown),
		TxRate:    orPlaceholder(link.TxRate, models.Unknown),
		Address:   orPlaceholder(addr, models.None),
	}
}

func finish(status models.ConnectivityStatus, now func() time.Time) models.ConnectivityStatus {
	status.CheckedAt = now()
	return status
}

func orPlaceholder(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}
