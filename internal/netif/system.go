// Package netif talks to the host: it discovers wireless interfaces and
// implements the link, route, reachability, DNS, power-save and supplicant
// capabilities the watchdog consumes. Consumers depend on small interfaces
// declared next to them; *System satisfies all of them on Linux.
package netif

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrNoInterface means no wireless interface could be resolved.
	ErrNoInterface = errors.New("wireless interface not found")
	// ErrBindPermission means a probe socket could not be bound to the
	// interface because the process lacks the privilege to do so.
	ErrBindPermission = errors.New("permission denied binding to interface")
	// ErrUnavailable means the host lacks the tool or driver support needed.
	ErrUnavailable = errors.New("capability unavailable")
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// System implements every host capability on Linux.
type System struct {
	run      Runner
	lookPath func(string) (string, error)
	sysfs    string
	dns      *Resolver
}

// NewSystem configures host access. resolvConf names the resolver
// configuration used for DNS probes; timeout bounds each DNS exchange.
func NewSystem(resolvConf string, timeout time.Duration) *System {
	return &System{
		run:      execRunner,
		lookPath: exec.LookPath,
		sysfs:    "/sys/class/net",
		dns:      NewResolver(resolvConf, timeout),
	}
}

// Resolve checks that host resolves through the configured nameservers.
func (s *System) Resolve(ctx context.Context, host string) error {
	return s.dns.Resolve(ctx, host)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
	}
	return out, nil
}
