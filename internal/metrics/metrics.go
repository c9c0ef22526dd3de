// Package metrics exposes the engine's operator-facing counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveMatches tracks how many match tick loops are currently running.
	LiveMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duskball_live_matches",
		Help: "Number of matches currently simulating.",
	})

	// TicksTotal counts simulation ticks across all matches.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskball_ticks_total",
		Help: "Total simulation ticks processed.",
	})

	// EventsTotal counts generated match events by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duskball_match_events_total",
		Help: "Match events generated, by event type.",
	}, []string{"type"})

	// PersistFailures counts snapshot writes that exhausted their retries.
	// A non-zero rate means recovery fidelity is degraded for live matches.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskball_snapshot_persist_failures_total",
		Help: "Live-state snapshot writes that failed after all retries.",
	})

	// ForcedCompletions counts matches force-completed instead of finishing
	// their clock, including shutdown drains and tick-loop failures.
	ForcedCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskball_forced_completions_total",
		Help: "Matches completed by force rather than by the game clock.",
	})

	// EventFailures counts isolated per-event simulation failures that were
	// skipped without aborting the match.
	EventFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskball_event_failures_total",
		Help: "Single-event simulation failures skipped mid-match.",
	})
)
