package netif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultResolvConf is the system resolver configuration.
const DefaultResolvConf = "/etc/resolv.conf"

// Resolver checks name resolution by sending an A query to each configured
// nameserver in turn until one answers.
type Resolver struct {
	Servers []string
	client  *dns.Client
}

// NewResolver reads nameservers from resolvConf. When the file is missing or
// lists no servers, Resolve falls back to the Go resolver.
func NewResolver(resolvConf string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	r := &Resolver{client: &dns.Client{Net: "udp", Timeout: timeout}}
	if resolvConf == "" {
		return r
	}
	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return r
	}
	for _, server := range cfg.Servers {
		r.Servers = append(r.Servers, net.JoinHostPort(server, cfg.Port))
	}
	return r
}

// Resolve returns nil when host resolves to at least one record.
func (r *Resolver) Resolve(ctx context.Context, host string) error {
	if len(r.Servers) == 0 {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return fmt.Errorf("resolve %s: %w", host, err)
		}
		return nil
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(host), dns.TypeA)
	query.RecursionDesired = true

	var lastErr error
	for _, server := range r.Servers {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		reply, _, err := r.client.ExchangeContext(ctx, query, server)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", server, err)
			continue
		}
		if reply.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: %s", server, dns.RcodeToString[reply.Rcode])
			continue
		}
		if len(reply.Answer) == 0 {
			lastErr = fmt.Errorf("%s: empty answer", server)
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no nameserver answered")
	}
	return fmt.Errorf("resolve %s: %w", host, lastErr)
}
