package storage

import (
	"time"

	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/internal/types"
)

// BatchRow is the stored form of a prediction batch header
type BatchRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (BatchRow) TableName() string { return "failcast_batches" }

// PredictionRow is the stored form of a single prediction
type PredictionRow struct {
	ID                            uint      `gorm:"column:id;primaryKey"`
	BatchID                       string    `gorm:"column:batch_id;index:idx_batch_day"`
	Seq                           int       `gorm:"column:seq"`
	Station                       string    `gorm:"column:station"`
	Line                          string    `gorm:"column:line"`
	Day                           time.Time `gorm:"column:day;type:date;index:idx_batch_day"`
	Shift                         string    `gorm:"column:shift"`
	Failed                        bool      `gorm:"column:failed"`
	Failures7d                    int       `gorm:"column:failures_7d"`
	Failures30d                   int       `gorm:"column:failures_30d"`
	DaysSinceLastFailure          *int      `gorm:"column:days_since_last_failure"`
	ConsecutiveDaysWithoutFailure int       `gorm:"column:consecutive_days_without_failure"`
	FailedYesterday               int       `gorm:"column:failed_yesterday"`
	Label                         int       `gorm:"column:label"`
	Status                        string    `gorm:"column:status"`
}

func (PredictionRow) TableName() string { return "failcast_predictions" }

func toRow(batchID string, seq int, p predict.Prediction) PredictionRow {
	return PredictionRow{
		BatchID:                       batchID,
		Seq:                           seq,
		Station:                       p.Station,
		Line:                          p.Line,
		Day:                           p.Day,
		Shift:                         p.Shift,
		Failed:                        p.Failed,
		Failures7d:                    p.Failures7d,
		Failures30d:                   p.Failures30d,
		DaysSinceLastFailure:          p.DaysSinceLastFailure,
		ConsecutiveDaysWithoutFailure: p.ConsecutiveDaysWithoutFailure,
		FailedYesterday:               p.FailedYesterday,
		Label:                         p.Label,
		Status:                        p.Status,
	}
}

func (r PredictionRow) prediction() predict.Prediction {
	y, m, d := r.Day.Date()
	return predict.Prediction{
		FeatureRecord: types.FeatureRecord{
			Event: types.Event{
				Station: r.Station,
				Line:    r.Line,
				Day:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
				Failed:  r.Failed,
				Shift:   r.Shift,
			},
			Failures7d:                    r.Failures7d,
			Failures30d:                   r.Failures30d,
			DaysSinceLastFailure:          r.DaysSinceLastFailure,
			ConsecutiveDaysWithoutFailure: r.ConsecutiveDaysWithoutFailure,
			FailedYesterday:               r.FailedYesterday,
		},
		Label:  r.Label,
		Status: r.Status,
	}
}
