// Package features derives per-station rolling failure statistics from a
// daily event log. The derived columns are the model inputs consumed by the
// failure classifier.
package features

import (
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/failcast/internal/types"
)

// Window lengths of the two rolling failure counts. Windows are measured in
// rows of the station's series, not in calendar days: a station with gaps in
// its log gets wider calendar coverage. Callers that need calendar-exact
// windows must expand the log to one row per station per day first.
const (
	ShortWindow = 7
	LongWindow  = 30
)

// Deriver computes FeatureRecords from Events. The zero value is ready to use
// and processes stations sequentially.
type Deriver struct {
	// Workers is the number of stations processed concurrently. Values
	// below 2 disable concurrency. Output does not depend on it.
	Workers int
}

// NewDeriver returns a Deriver that fans stations out over workers goroutines.
func NewDeriver(workers int) *Deriver {
	return &Deriver{Workers: workers}
}

// Derive returns one FeatureRecord per event, ordered by station and then by
// day. Every derived field depends only on earlier rows of the same station.
//
// Events sharing a station and day are a caller precondition violation:
// they are kept in input order, which makes their derived values depend on
// that order. Use Aggregate to collapse them first.
func (d *Deriver) Derive(events []types.Event) ([]types.FeatureRecord, error) {
	if len(events) == 0 {
		return []types.FeatureRecord{}, nil
	}

	groups := make(map[string][]int)
	for i, ev := range events {
		if ev.Station == "" {
			return nil, &types.MalformedInputError{
				Row:    i + 1,
				Day:    formatDay(ev.Day),
				Field:  "station",
				Reason: "missing station identifier",
			}
		}
		if ev.Day.IsZero() {
			return nil, &types.MalformedInputError{
				Row:     i + 1,
				Station: ev.Station,
				Field:   "day",
				Reason:  "missing day",
			}
		}
		groups[ev.Station] = append(groups[ev.Station], i)
	}

	stations := make([]string, 0, len(groups))
	for s := range groups {
		stations = append(stations, s)
	}
	sort.Strings(stations)

	results := make([][]types.FeatureRecord, len(stations))

	if d == nil || d.Workers < 2 || len(stations) < 2 {
		for i, s := range stations {
			results[i] = deriveStation(events, groups[s])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(d.Workers)
		for i, s := range stations {
			i, idx := i, groups[s]
			g.Go(func() error {
				results[i] = deriveStation(events, idx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]types.FeatureRecord, 0, len(events))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// deriveStation computes the features of a single station. idx holds the
// positions of the station's events in events, in input order.
func deriveStation(events []types.Event, idx []int) []types.FeatureRecord {
	rows := make([]types.Event, len(idx))
	for i, j := range idx {
		rows[i] = events[j]
		rows[i].Day = Day(rows[i].Day)
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].Day.Before(rows[b].Day)
	})

	// cum[i] is the number of failures in rows[:i]
	cum := make([]int, len(rows)+1)
	for i, ev := range rows {
		cum[i+1] = cum[i] + ev.FailureFlag()
	}

	out := make([]types.FeatureRecord, len(rows))

	var lastFailure time.Time
	failedBefore := false
	consecutive := 0

	for i, ev := range rows {
		rec := types.FeatureRecord{
			Event:       ev,
			Failures7d:  priorSum(cum, i, ShortWindow),
			Failures30d: priorSum(cum, i, LongWindow),
		}

		if ev.Failed {
			zero := 0
			rec.DaysSinceLastFailure = &zero
			lastFailure = ev.Day
			failedBefore = true
			consecutive = 0
		} else {
			consecutive++
			if failedBefore {
				days := daysBetween(lastFailure, ev.Day)
				rec.DaysSinceLastFailure = &days
			}
		}
		rec.ConsecutiveDaysWithoutFailure = consecutive

		if i > 0 {
			rec.FailedYesterday = rows[i-1].FailureFlag()
		}

		out[i] = rec
	}
	return out
}

// priorSum returns the number of failures among the up to n rows preceding
// row i.
func priorSum(cum []int, i, n int) int {
	start := i - n
	if start < 0 {
		start = 0
	}
	return cum[i] - cum[start]
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DefaultDayLayout)
}
