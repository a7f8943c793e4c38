package models

import "time"

// State is the connectivity state of the monitored interface.
type State string

const (
	StateOK         State = "ok"
	StateNoWiFi     State = "no_wifi"
	StateNoInternet State = "no_internet"
)

// DNSOutcome records the result of the DNS layer of a probe.
type DNSOutcome string

const (
	DNSYes      DNSOutcome = "yes"
	DNSNo       DNSOutcome = "no"
	DNSDisabled DNSOutcome = "disabled"
)

// Placeholders rendered for diagnostic fields the driver could not report.
const (
	Unknown = "unknown"
	None    = "none"
)

// Diagnostics is a point-in-time description of the wireless link.
// Fields are never empty; missing values carry Unknown or None.
type Diagnostics struct {
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid"`
	Signal    string `json:"signal"`
	Frequency string `json:"frequency"`
	TxRate    string `json:"tx_rate"`
	Address   string `json:"address"`
}

// ConnectivityStatus captures the outcome of one layered connectivity probe.
type ConnectivityStatus struct {
	State        State       `json:"state"`
	Detail       string      `json:"detail"`
	DefaultRoute bool        `json:"default_route"`
	DNS          DNSOutcome  `json:"dns"`
	HostsTried   []string    `json:"hosts_tried,omitempty"`
	Fallback     bool        `json:"fallback,omitempty"`
	Diagnostics  Diagnostics `json:"diagnostics"`
	CheckedAt    time.Time   `json:"checked_at"`

	// Indeterminate is set when the association layer could not be queried
	// at all, so State is a pessimistic guess rather than an observation.
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// OK reports whether the probe verified connectivity.
func (s ConnectivityStatus) OK() bool {
	return s.State == StateOK
}
