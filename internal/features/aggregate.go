package features

import (
	"github.com/chrissnell/failcast/internal/types"
)

type stationDay struct {
	station string
	day     int64
}

// Aggregate collapses multiple events for the same station and day into one.
// The collapsed event failed if any of its duplicates failed; line and shift
// are taken from the first occurrence. Output keeps first-occurrence order.
func Aggregate(events []types.Event) []types.Event {
	out := make([]types.Event, 0, len(events))
	index := make(map[stationDay]int, len(events))

	for _, ev := range events {
		key := stationDay{station: ev.Station, day: Day(ev.Day).Unix()}
		if i, ok := index[key]; ok {
			out[i].Failed = out[i].Failed || ev.Failed
			continue
		}
		ev.Day = Day(ev.Day)
		index[key] = len(out)
		out = append(out, ev)
	}
	return out
}

// CountDuplicateDays returns how many events share a station and day with an
// earlier event. Derive accepts such input but the relative order of the
// duplicates is unspecified.
func CountDuplicateDays(events []types.Event) int {
	seen := make(map[stationDay]struct{}, len(events))
	dups := 0
	for _, ev := range events {
		key := stationDay{station: ev.Station, day: Day(ev.Day).Unix()}
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}
