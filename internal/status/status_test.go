package status

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wifiwatchdog/internal/models"
)

type stubProber struct {
	result models.ConnectivityStatus
	calls  int
}

func (p *stubProber) Probe(context.Context, string) models.ConnectivityStatus {
	p.calls++
	return p.result
}

func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func unknownDiagnostics() models.Diagnostics {
	return models.Diagnostics{
		SSID: models.Unknown, BSSID: models.Unknown, Signal: models.Unknown,
		Frequency: models.Unknown, TxRate: models.Unknown, Address: models.None,
	}
}

func fixtureLogs(t *testing.T) (string, string) {
	dir := t.TempDir()
	detail := writeLog(t, dir, "system.log",
		`2026-03-01 10:00:00 [wifi-watchdog] state=no_wifi streak=1/1 detail="wlan0 is not associated with a network"`,
		`2026-03-01 10:00:00 [wifi-watchdog] connection lost (no_wifi): starting recovery`,
		`2026-03-01 10:00:47 [wifi-watchdog] connection recovered after 47s`,
		`2026-03-01 10:00:47 [wifi-watchdog] state=ok detail="connectivity verified"`,
		`2026-03-01 10:00:47 [wifi-watchdog] status ssid=HomeNet bssid=aa:bb:cc:dd:ee:ff signal="-58 dBm" freq=5180 tx="433.3 MBit/s" ip=192.168.1.23/24`,
	)
	concise := writeLog(t, dir, "recovery.log",
		`2026-03-01 10:00:00 connection lost (no_wifi): starting recovery`,
		`2026-03-01 10:00:47 connection recovered after 47s`,
	)
	return detail, concise
}

func TestReportPrefersLiveValues(t *testing.T) {
	detail, concise := fixtureLogs(t)
	live := models.ConnectivityStatus{
		State:  models.StateNoInternet,
		Detail: "no default route",
		DNS:    models.DNSNo,
		Diagnostics: models.Diagnostics{
			SSID: "Office", BSSID: models.Unknown, Signal: "-70 dBm",
			Frequency: models.Unknown, TxRate: models.Unknown, Address: "10.0.0.5/24",
		},
	}
	snap := NewReporter(&stubProber{result: live}, detail, concise).Report(context.Background(), "wlan0")

	if snap.State != "no_internet" || snap.StateSource != SourceLive {
		t.Fatalf("state = %s from %s", snap.State, snap.StateSource)
	}
	if snap.SSID != "Office" || snap.Address != "10.0.0.5/24" || snap.Signal != "-70 dBm" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.LastRecovery != "47s" {
		t.Fatalf("LastRecovery = %q", snap.LastRecovery)
	}
	if snap.Recoveries.Count != 1 {
		t.Fatalf("recoveries counted twice across sinks: %+v", snap.Recoveries)
	}
}

func TestReportFallsBackToLogs(t *testing.T) {
	detail, concise := fixtureLogs(t)
	live := models.ConnectivityStatus{
		State:         models.StateNoWiFi,
		Detail:        "association query failed: permission denied",
		Indeterminate: true,
		Diagnostics:   unknownDiagnostics(),
	}
	snap := NewReporter(&stubProber{result: live}, detail, concise).Report(context.Background(), "wlan0")

	if snap.State != "ok" || snap.StateSource != SourceLog || snap.Detail != "connectivity verified" {
		t.Fatalf("state = %s (%s) from %s", snap.State, snap.Detail, snap.StateSource)
	}
	if snap.SSID != "HomeNet" || snap.Address != "192.168.1.23/24" || snap.Signal != "-58 dBm" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestReportWithoutLogs(t *testing.T) {
	dir := t.TempDir()
	live := models.ConnectivityStatus{State: models.StateNoWiFi, Diagnostics: unknownDiagnostics()}
	snap := NewReporter(&stubProber{result: live}, filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")).
		Report(context.Background(), "wlan0")

	if snap.LastRecovery != models.Unknown || snap.SSID != models.Unknown || snap.Address != models.None {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Warnings) != 0 {
		t.Fatalf("missing logs produced warnings: %v", snap.Warnings)
	}

	var out bytes.Buffer
	if err := snap.Render(&out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.String(), "last recovery:  unknown") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestReportIsIdempotent(t *testing.T) {
	detail, concise := fixtureLogs(t)
	before, err := os.ReadFile(detail)
	if err != nil {
		t.Fatal(err)
	}
	prober := &stubProber{result: models.ConnectivityStatus{State: models.StateOK, Detail: "connectivity verified", Diagnostics: unknownDiagnostics()}}
	r := NewReporter(prober, detail, concise)

	var first, second bytes.Buffer
	if err := r.Report(context.Background(), "wlan0").Render(&first); err != nil {
		t.Fatal(err)
	}
	if err := r.Report(context.Background(), "wlan0").Render(&second); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Fatalf("reports differ:\n%s\n%s", first.String(), second.String())
	}
	after, err := os.ReadFile(detail)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("report modified the log")
	}
	if prober.calls != 2 {
		t.Fatalf("probe calls = %d, want one per report", prober.calls)
	}
}

func TestRenderLayout(t *testing.T) {
	detail, concise := fixtureLogs(t)
	live := models.ConnectivityStatus{State: models.StateOK, Detail: "connectivity verified", DNS: models.DNSYes, Diagnostics: unknownDiagnostics()}
	snap := NewReporter(&stubProber{result: live}, detail, concise).Report(context.Background(), "wlan0")

	var out bytes.Buffer
	if err := snap.Render(&out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"interface:      wlan0\n",
		"state:          ok (connectivity verified)\n",
		"network:        HomeNet\n",
		"dns check:      yes\n",
		"last recovery:  47s (at 2026-03-01 10:00:47)\n",
		"recoveries:     1 (longest 47s, average 47s, total 47s)\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}
