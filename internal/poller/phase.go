// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package poller

// Phase is the coarse lifecycle state of a Synchronizer.
type Phase string

const (
	// PhaseIdle is the state before Start or after a restart.
	PhaseIdle Phase = "Idle"
	// PhaseLoading is used only while the first fetch is in flight.
	PhaseLoading Phase = "Loading"
	// PhaseRefreshing is used while a fetch is in flight and a previous one already completed.
	PhaseRefreshing Phase = "Refreshing"
	// PhaseReady means the last fetch succeeded.
	PhaseReady Phase = "Ready"
	// PhaseFailed means the last fetch failed, data holds the last successful result if any.
	PhaseFailed Phase = "Failed"
)

// InFlight reports whether the phase denotes a running fetch.
func (p Phase) InFlight() bool {
	return p == PhaseLoading || p == PhaseRefreshing
}

// Settled reports whether at least one fetch has completed.
func (p Phase) Settled() bool {
	return p == PhaseReady || p == PhaseFailed || p == PhaseRefreshing
}
