package metrics

import (
	"time"

	"wifiwatchdog/internal/history"
)

// RecoveryStats summarises completed recovery sessions found in the logs.
type RecoveryStats struct {
	Count   int
	Last    time.Duration
	LastAt  time.Time
	Longest time.Duration
	Total   time.Duration
}

// Average returns the mean recovery duration, or zero without recoveries.
func (s RecoveryStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return (s.Total / time.Duration(s.Count)).Round(time.Second)
}

// ComputeRecoveryStats aggregates KindRecovered events. Both sinks carry the
// same recovery line, so events with an identical timestamp and duration are
// counted once.
func ComputeRecoveryStats(events []history.Event) RecoveryStats {
	type key struct {
		at       int64
		duration time.Duration
	}
	seen := make(map[key]struct{})

	var stats RecoveryStats
	for _, ev := range history.Filter(events, history.KindRecovered) {
		k := key{at: ev.Time.Unix(), duration: ev.Duration}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		stats.Count++
		stats.Total += ev.Duration
		if ev.Duration > stats.Longest {
			stats.Longest = ev.Duration
		}
		stats.Last = ev.Duration
		stats.LastAt = ev.Time
	}
	return stats
}
