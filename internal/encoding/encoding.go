// Package encoding turns derived feature records into the numeric matrix a
// classifier consumes: numeric features pass through, categorical features
// are one-hot encoded, and the result is aligned to the classifier's schema.
package encoding

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/failcast/internal/types"
)

// Numeric feature column names.
const (
	Failures7d                    = "failures_7d"
	Failures30d                   = "failures_30d"
	DaysSinceLastFailure          = "days_since_last_failure"
	ConsecutiveDaysWithoutFailure = "consecutive_days_without_failure"
	FailedYesterday               = "failed_yesterday"
)

// Categorical feature names. One-hot columns are named <feature>_<value>.
const (
	Shift   = "shift"
	Line    = "line"
	Station = "station"
)

// ErrEmptyFrame is returned when there are no rows to predict on.
var ErrEmptyFrame = errors.New("no rows to encode")

var numericExtractors = map[string]func(types.FeatureRecord) float64{
	Failures7d:  func(r types.FeatureRecord) float64 { return float64(r.Failures7d) },
	Failures30d: func(r types.FeatureRecord) float64 { return float64(r.Failures30d) },
	DaysSinceLastFailure: func(r types.FeatureRecord) float64 {
		if r.DaysSinceLastFailure == nil {
			return math.NaN()
		}
		return float64(*r.DaysSinceLastFailure)
	},
	ConsecutiveDaysWithoutFailure: func(r types.FeatureRecord) float64 {
		return float64(r.ConsecutiveDaysWithoutFailure)
	},
	FailedYesterday: func(r types.FeatureRecord) float64 { return float64(r.FailedYesterday) },
}

var categoricalExtractors = map[string]func(types.FeatureRecord) string{
	Shift:   func(r types.FeatureRecord) string { return r.Shift },
	Line:    func(r types.FeatureRecord) string { return r.Line },
	Station: func(r types.FeatureRecord) string { return r.Station },
}

// Options selects the columns that take part in encoding.
type Options struct {
	Numeric     []string
	Categorical []string
	// DropFirst omits the first (lexically smallest) category of every
	// categorical feature, leaving it as the all-zero baseline.
	DropFirst bool
}

// DefaultOptions encodes every numeric feature and shift, line and station
// with the first category dropped.
func DefaultOptions() Options {
	return Options{
		Numeric: []string{
			Failures7d,
			Failures30d,
			DaysSinceLastFailure,
			ConsecutiveDaysWithoutFailure,
			FailedYesterday,
		},
		Categorical: []string{Shift, Line, Station},
		DropFirst:   true,
	}
}

// Frame is a named-column numeric matrix with one row per feature record.
// A null numeric value is stored as NaN.
type Frame struct {
	Columns []string
	Data    *mat.Dense
}

// Rows returns the number of rows in the frame.
func (f *Frame) Rows() int {
	if f == nil || f.Data == nil {
		return 0
	}
	r, _ := f.Data.Dims()
	return r
}

// Encode builds a Frame from records. Numeric columns come first in the
// order given by opts, followed by the one-hot columns of each categorical
// feature with categories sorted. An empty categorical value has no column
// and encodes as all zeros.
func Encode(records []types.FeatureRecord, opts Options) (*Frame, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFrame
	}

	var columns []string
	var fill []func(row []float64, r types.FeatureRecord)

	for _, name := range opts.Numeric {
		extract, ok := numericExtractors[name]
		if !ok {
			return nil, fmt.Errorf("unknown numeric feature %q", name)
		}
		col := len(columns)
		columns = append(columns, name)
		fill = append(fill, func(row []float64, r types.FeatureRecord) {
			row[col] = extract(r)
		})
	}

	for _, name := range opts.Categorical {
		extract, ok := categoricalExtractors[name]
		if !ok {
			return nil, fmt.Errorf("unknown categorical feature %q", name)
		}

		categories := distinct(records, extract)
		if opts.DropFirst && len(categories) > 0 {
			categories = categories[1:]
		}

		offset := len(columns)
		position := make(map[string]int, len(categories))
		for i, c := range categories {
			position[c] = offset + i
			columns = append(columns, name+"_"+c)
		}

		fill = append(fill, func(row []float64, r types.FeatureRecord) {
			if col, ok := position[extract(r)]; ok {
				row[col] = 1
			}
		})
	}

	if len(columns) == 0 {
		return nil, errors.New("no features selected")
	}

	data := mat.NewDense(len(records), len(columns), nil)
	row := make([]float64, len(columns))
	for i, r := range records {
		for j := range row {
			row[j] = 0
		}
		for _, f := range fill {
			f(row, r)
		}
		data.SetRow(i, row)
	}

	return &Frame{Columns: columns, Data: data}, nil
}

func distinct(records []types.FeatureRecord, extract func(types.FeatureRecord) string) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		if v := extract(r); v != "" {
			seen[v] = struct{}{}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
