// Package export writes feature records and predictions as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/chrissnell/failcast/internal/features"
	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/internal/types"
)

// FeatureHeader is the column layout written by WriteFeatures.
var FeatureHeader = []string{
	"station", "line", "day", "shift", "failure",
	"failures_7d", "failures_30d", "days_since_last_failure",
	"consecutive_days_without_failure", "failed_yesterday",
}

// PredictionHeader is the column layout written by WritePredictions.
var PredictionHeader = []string{"day", "line", "station", "status"}

// WriteFeatures writes records with the input columns followed by the five
// derived columns. A null days_since_last_failure is written as an empty
// field.
func WriteFeatures(w io.Writer, records []types.FeatureRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FeatureHeader); err != nil {
		return err
	}

	for _, r := range records {
		since := ""
		if r.DaysSinceLastFailure != nil {
			since = strconv.Itoa(*r.DaysSinceLastFailure)
		}
		row := []string{
			r.Station,
			r.Line,
			r.Day.Format(features.DefaultDayLayout),
			r.Shift,
			strconv.Itoa(r.FailureFlag()),
			strconv.Itoa(r.Failures7d),
			strconv.Itoa(r.Failures30d),
			since,
			strconv.Itoa(r.ConsecutiveDaysWithoutFailure),
			strconv.Itoa(r.FailedYesterday),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WritePredictions writes the operator-facing prediction table.
func WritePredictions(w io.Writer, preds []predict.Prediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PredictionHeader); err != nil {
		return err
	}

	for _, p := range preds {
		row := []string{
			p.Day.Format(features.DefaultDayLayout),
			p.Line,
			p.Station,
			p.Status,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
