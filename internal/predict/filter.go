package predict

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/failcast/internal/classifier"
)

// Filter selects predictions by day and line. Zero values match everything.
type Filter struct {
	Day  time.Time
	Line string
}

// Match reports whether p passes the filter.
func (f Filter) Match(p Prediction) bool {
	if !f.Day.IsZero() && !p.Day.Equal(f.Day) {
		return false
	}
	if f.Line != "" && p.Line != f.Line {
		return false
	}
	return true
}

// Apply returns the predictions matching f, in their original order.
func (f Filter) Apply(preds []Prediction) []Prediction {
	out := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Summary aggregates a set of predictions.
type Summary struct {
	Rows              int      `json:"rows"`
	PredictedFailures int      `json:"predicted_failures"`
	StationsAtRisk    []string `json:"stations_at_risk"`
	MeanFailures7d    float64  `json:"mean_failures_7d"`
}

// Summarize counts predicted failures and lists the stations they concern.
func Summarize(preds []Prediction) Summary {
	s := Summary{Rows: len(preds), StationsAtRisk: []string{}}
	if len(preds) == 0 {
		return s
	}

	seen := make(map[string]struct{})
	f7 := make([]float64, len(preds))
	for i, p := range preds {
		f7[i] = float64(p.Failures7d)
		if p.Label != classifier.FailureExpected {
			continue
		}
		s.PredictedFailures++
		if _, ok := seen[p.Station]; !ok {
			seen[p.Station] = struct{}{}
			s.StationsAtRisk = append(s.StationsAtRisk, p.Station)
		}
	}
	sort.Strings(s.StationsAtRisk)
	s.MeanFailures7d = stat.Mean(f7, nil)
	return s
}

// SortByRisk orders predictions with expected failures first, then by day,
// line and station.
func SortByRisk(preds []Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		a, b := preds[i], preds[j]
		if a.Label != b.Label {
			return a.Label > b.Label
		}
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Station < b.Station
	})
}

// Days returns the distinct days of preds in ascending order.
func Days(preds []Prediction) []time.Time {
	seen := make(map[time.Time]struct{})
	var days []time.Time
	for _, p := range preds {
		if _, ok := seen[p.Day]; ok {
			continue
		}
		seen[p.Day] = struct{}{}
		days = append(days, p.Day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Lines returns the distinct non-empty lines of preds in ascending order.
func Lines(preds []Prediction) []string {
	seen := make(map[string]struct{})
	var lines []string
	for _, p := range preds {
		if p.Line == "" {
			continue
		}
		if _, ok := seen[p.Line]; ok {
			continue
		}
		seen[p.Line] = struct{}{}
		lines = append(lines, p.Line)
	}
	sort.Strings(lines)
	return lines
}
