// Package status builds the one-shot report printed by the -status flag. It
// runs a single live probe, merges it with the most recent events found in
// the log sinks and never mutates anything.
package status

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"wifiwatchdog/internal/history"
	"wifiwatchdog/internal/metrics"
	"wifiwatchdog/internal/models"
)

// Source values tell where a reported field came from.
const (
	SourceLive = "live"
	SourceLog  = "log"
)

// Prober runs one connectivity check.
type Prober interface {
	Probe(ctx context.Context, iface string) models.ConnectivityStatus
}

// Snapshot is the merged status report.
type Snapshot struct {
	Interface   string
	State       string
	StateSource string
	Detail      string
	SSID        string
	Address     string
	Signal      string
	DNS         models.DNSOutcome

	// LastRecovery is "unknown" until a recovery has been logged.
	LastRecovery   string
	LastRecoveryAt time.Time
	Recoveries     metrics.RecoveryStats

	// LastLogged is the time of the most recent state line in the logs.
	LastLogged time.Time
	// Warnings lists log files that could not be read.
	Warnings []string
}

// Reporter assembles snapshots from a live probe and the log sinks.
type Reporter struct {
	prober Prober
	logs   []string
}

// NewReporter creates a Reporter scanning the given log files in order.
func NewReporter(prober Prober, logs ...string) *Reporter {
	return &Reporter{prober: prober, logs: logs}
}

// Report runs one probe against iface and merges it with the logs. Live
// values win; log values fill in what the probe could not determine.
func (r *Reporter) Report(ctx context.Context, iface string) Snapshot {
	snap := Snapshot{
		Interface:    iface,
		State:        models.Unknown,
		SSID:         models.Unknown,
		Address:      models.None,
		Signal:       models.Unknown,
		LastRecovery: models.Unknown,
	}

	var events []history.Event
	for _, path := range r.logs {
		evs, err := history.ReadEvents(path)
		if err != nil {
			snap.Warnings = append(snap.Warnings, err.Error())
		}
		events = append(events, evs...)
	}

	var live models.ConnectivityStatus
	if r.prober != nil {
		live = r.prober.Probe(ctx, iface)
	}

	snap.DNS = live.DNS
	if live.State != "" && !live.Indeterminate {
		snap.State = string(live.State)
		snap.StateSource = SourceLive
		snap.Detail = live.Detail
	}
	if ev, ok := history.Latest(events, history.KindState); ok {
		snap.LastLogged = ev.Time
		if snap.StateSource == "" && ev.Field("state") != "" {
			snap.State = ev.Field("state")
			snap.StateSource = SourceLog
			snap.Detail = ev.Field("detail")
		}
	}

	logged, hasLogged := history.Latest(events, history.KindStatus)
	pick := func(liveValue, key, placeholder string) string {
		if known(liveValue) {
			return liveValue
		}
		if hasLogged && known(logged.Field(key)) {
			return logged.Field(key)
		}
		return placeholder
	}
	snap.SSID = pick(live.Diagnostics.SSID, "ssid", models.Unknown)
	snap.Address = pick(live.Diagnostics.Address, "ip", models.None)
	snap.Signal = pick(live.Diagnostics.Signal, "signal", models.Unknown)

	snap.Recoveries = metrics.ComputeRecoveryStats(events)
	if snap.Recoveries.Count > 0 {
		snap.LastRecovery = fmt.Sprintf("%ds", history.WholeSeconds(snap.Recoveries.Last))
		snap.LastRecoveryAt = snap.Recoveries.LastAt
	}
	return snap
}

// Render writes the snapshot as aligned "key: value" lines.
func (s Snapshot) Render(w io.Writer) error {
	var b strings.Builder
	line := func(key, value string) {
		fmt.Fprintf(&b, "%-15s %s\n", key+":", value)
	}

	line("interface", s.Interface)
	state := s.State
	if s.Detail != "" {
		state += " (" + s.Detail + ")"
	}
	if s.StateSource == SourceLog {
		state += " [from log]"
	}
	line("state", state)
	line("network", s.SSID)
	line("address", s.Address)
	line("signal", s.Signal)
	if s.DNS != "" {
		line("dns check", string(s.DNS))
	}
	if !s.LastLogged.IsZero() {
		line("last logged", s.LastLogged.Format(history.TimeLayout))
	}

	recovery := s.LastRecovery
	if !s.LastRecoveryAt.IsZero() {
		recovery += " (at " + s.LastRecoveryAt.Format(history.TimeLayout) + ")"
	}
	line("last recovery", recovery)
	if s.Recoveries.Count > 0 {
		line("recoveries", fmt.Sprintf("%d (longest %ds, average %ds, total %ds)",
			s.Recoveries.Count,
			history.WholeSeconds(s.Recoveries.Longest),
			history.WholeSeconds(s.Recoveries.Average()),
			history.WholeSeconds(s.Recoveries.Total)))
	}
	for _, warning := range s.Warnings {
		line("warning", warning)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func known(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != models.Unknown && v != models.None
}
