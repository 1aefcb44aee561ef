// Package predict runs the end-to-end failure prediction: event-log rows in,
// labelled feature records out.
package predict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/failcast/internal/classifier"
	"github.com/chrissnell/failcast/internal/encoding"
	"github.com/chrissnell/failcast/internal/features"
	"github.com/chrissnell/failcast/internal/types"
	"github.com/chrissnell/failcast/pkg/config"
)

// Prediction statuses shown to operators.
const (
	StatusNoFailure       = "no failure"
	StatusFailureExpected = "failure expected"
)

// Prediction is a feature record with the classifier's verdict.
type Prediction struct {
	types.FeatureRecord
	Label  int    `json:"label"`
	Status string `json:"status"`
}

// Batch is the result of one prediction run.
type Batch struct {
	ID          string       `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Predictions []Prediction `json:"predictions"`
}

// StatusFor maps a classifier label to its status text.
func StatusFor(label int) string {
	if label == classifier.FailureExpected {
		return StatusFailureExpected
	}
	return StatusNoFailure
}

// Service wires the deriver, the encoder and an injected classifier.
type Service struct {
	deriver    *features.Deriver
	classifier classifier.Classifier
	encoding   encoding.Options
	dayLayout  string
	aggregate  bool
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// NewService creates a prediction service from configuration. cfg must have
// had defaults applied.
func NewService(cfg *config.ConfigData, c classifier.Classifier, logger *zap.SugaredLogger) *Service {
	opts := encoding.DefaultOptions()
	if len(cfg.Features.Numeric) > 0 {
		opts.Numeric = cfg.Features.Numeric
	}
	if len(cfg.Features.Categorical) > 0 {
		opts.Categorical = cfg.Features.Categorical
	}
	if cfg.Features.DropFirst != nil {
		opts.DropFirst = *cfg.Features.DropFirst
	}

	aggregate := true
	if cfg.Input.AggregateDuplicates != nil {
		aggregate = *cfg.Input.AggregateDuplicates
	}

	return &Service{
		deriver:    features.NewDeriver(cfg.Features.Workers),
		classifier: c,
		encoding:   opts,
		dayLayout:  cfg.Input.DayLayout,
		aggregate:  aggregate,
		logger:     logger,
		now:        time.Now,
	}
}

// Derive validates raw rows and computes their feature records.
func (s *Service) Derive(raw []types.RawEvent) ([]types.FeatureRecord, error) {
	events, err := features.ParseEvents(raw, s.dayLayout)
	if err != nil {
		return nil, err
	}

	if s.aggregate {
		before := len(events)
		events = features.Aggregate(events)
		if collapsed := before - len(events); collapsed > 0 {
			s.logger.Infof("collapsed %d duplicate station/day events", collapsed)
		}
	} else if dups := features.CountDuplicateDays(events); dups > 0 {
		s.logger.Warnf("%d events share a station and day with another event; their feature values depend on input order", dups)
	}

	return s.deriver.Derive(events)
}

// Predict labels already-derived feature records.
func (s *Service) Predict(ctx context.Context, records []types.FeatureRecord) ([]Prediction, error) {
	if s.classifier == nil {
		return nil, errors.New("no classifier configured")
	}

	frame, err := encoding.Encode(records, s.encoding)
	if errors.Is(err, encoding.ErrEmptyFrame) {
		s.logger.Warn("no rows to predict on")
		return []Prediction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error encoding features: %w", err)
	}

	x, alignment, err := encoding.Align(frame, s.classifier.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("error aligning features to model schema: %w", err)
	}
	if len(alignment.Missing) > 0 {
		s.logger.Debugf("zero-filled %d model features absent from this batch: %v", len(alignment.Missing), alignment.Missing)
	}
	if len(alignment.Dropped) > 0 {
		s.logger.Debugf("ignored %d features unknown to the model: %v", len(alignment.Dropped), alignment.Dropped)
	}

	labels, err := s.classifier.Predict(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("error running classifier: %w", err)
	}
	if len(labels) != len(records) {
		return nil, fmt.Errorf("classifier returned %d labels for %d rows", len(labels), len(records))
	}

	preds := make([]Prediction, len(records))
	for i, r := range records {
		preds[i] = Prediction{
			FeatureRecord: r,
			Label:         labels[i],
			Status:        StatusFor(labels[i]),
		}
	}
	return preds, nil
}

// Run derives features from raw rows and labels them as a new batch.
func (s *Service) Run(ctx context.Context, raw []types.RawEvent) (*Batch, error) {
	records, err := s.Derive(raw)
	if err != nil {
		return nil, err
	}

	preds, err := s.Predict(ctx, records)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		ID:          uuid.New().String(),
		CreatedAt:   s.now().UTC(),
		Predictions: preds,
	}

	sum := Summarize(preds)
	s.logger.Infow("prediction batch complete",
		"batch", b.ID,
		"rows", sum.Rows,
		"predicted_failures", sum.PredictedFailures,
	)
	return b, nil
}
