package model

import "time"

// ProbeResult is the outcome of one host capability check.
type ProbeResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// SystemStatus is the latest polled view of the host capabilities.
type SystemStatus struct {
	Healthy   bool          `json:"healthy"`
	CheckedAt time.Time     `json:"checked_at"`
	Probes    []ProbeResult `json:"probes"`
}
