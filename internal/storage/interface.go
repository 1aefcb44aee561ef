// Package storage persists prediction batches so that the serving shell can
// answer filtered queries without re-running the classifier.
package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/pkg/config"
)

// ErrNoBatches is returned when a query needs a batch and none is stored.
var ErrNoBatches = errors.New("no prediction batches stored")

// ErrBatchNotFound is returned when a query names an unknown batch.
var ErrBatchNotFound = errors.New("batch not found")

// Query selects stored predictions. An empty BatchID means the most recent
// batch; zero Day and empty Line match everything.
type Query struct {
	BatchID string
	Day     time.Time
	Line    string
}

// Store is implemented by every prediction storage backend
type Store interface {
	SaveBatch(ctx context.Context, b *predict.Batch) error
	Predictions(ctx context.Context, q Query) ([]predict.Prediction, error)
	LatestBatchID(ctx context.Context) (string, error)
	Close() error
}

// New opens the backend selected by the storage configuration. Without any
// backend configured, batches are kept in memory.
func New(ctx context.Context, c config.StorageData, logger *zap.SugaredLogger) (Store, error) {
	switch {
	case c.SQLite != nil:
		logger.Infof("using SQLite prediction store at %s", c.SQLite.Path)
		return NewSQLiteStore(ctx, c.SQLite.Path, logger)
	case c.TimescaleDB != nil:
		logger.Info("using TimescaleDB prediction store")
		return NewTimescaleDBStore(ctx, c.TimescaleDB.ConnectionString)
	default:
		logger.Info("no storage configured; keeping prediction batches in memory")
		return NewMemoryStore(), nil
	}
}
