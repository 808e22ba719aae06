package model

import (
	"strconv"
	"time"
)

const (
	UnknownProtocol    = "Unknown"
	ScannedDescription = "Scanned Port"
)

// PortSpec is one port to probe plus whatever the catalog knows about it.
type PortSpec struct {
	Port        int    `json:"port" yaml:"port"`
	Protocol    string `json:"protocol" yaml:"protocol"`
	Description string `json:"description,omitempty" yaml:"description"`
}

func (p PortSpec) String() string {
	return strconv.Itoa(p.Port) + "/" + p.Protocol
}

type State string

const (
	StateOpen     State = "open"
	StateClosed   State = "closed"
	StateFiltered State = "filtered"
	StateError    State = "error"
)

// Outcome is the classification of a single connect attempt.
type Outcome struct {
	State     State  `json:"state"`
	Cause     string `json:"cause,omitempty"`
	RTTMillis int64  `json:"rtt_ms"`
}

func (o Outcome) Open() bool {
	return o.State == StateOpen
}

type ScanResult struct {
	Spec    PortSpec `json:"spec"`
	Outcome Outcome  `json:"outcome"`
}

// Reachability is the best-effort ICMP echo verdict for a target.
type Reachability struct {
	ResolvedIP string `json:"resolved_ip,omitempty"`
	Reachable  bool   `json:"reachable"`
}

type ScanReport struct {
	ID            string       `json:"id"`
	Target        string       `json:"target"`
	ResolvedIP    string       `json:"resolved_ip,omitempty"`
	ICMPReachable *bool        `json:"icmp_reachable,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Results       []ScanResult `json:"results"`
	OpenCount     int          `json:"open_count"`
	ClosedCount   int          `json:"closed_count"`
}

func (r *ScanReport) OpenPorts() []ScanResult {
	out := make([]ScanResult, 0, r.OpenCount)
	for _, res := range r.Results {
		if res.Outcome.Open() {
			out = append(out, res)
		}
	}
	return out
}

func (r *ScanReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
