package history

import (
	"sort"

	"wifiwatchdog/internal/storage"
)

// ReadEvents parses every line of the given files, in file order. Missing
// files contribute nothing; unparseable lines are skipped.
func ReadEvents(paths ...string) ([]Event, error) {
	var events []Event
	for _, path := range paths {
		if path == "" {
			continue
		}
		err := storage.ScanLines(path, func(line string) {
			if ev, ok := ParseLine(line); ok {
				events = append(events, ev)
			}
		})
		if err != nil {
			return events, err
		}
	}
	return events, nil
}

// Latest returns the event of the given kind with the latest timestamp.
// Ties go to the event scanned last.
func Latest(events []Event, kind Kind) (Event, bool) {
	var (
		best  Event
		found bool
	)
	for _, ev := range events {
		if ev.Kind != kind {
			continue
		}
		if !found || !ev.Time.Before(best.Time) {
			best = ev
			found = true
		}
	}
	return best, found
}

// Filter returns the events of the given kind sorted by time. The sort is
// stable so scan order is kept for equal timestamps.
func Filter(events []Event, kind Kind) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
