package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/failcast/internal/log"
	"github.com/chrissnell/failcast/internal/predict"
)

// TimescaleDBStore keeps prediction batches in PostgreSQL/TimescaleDB
type TimescaleDBStore struct {
	DB *gorm.DB
}

// CreateConnection opens a GORM connection with the standard logging setup
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}
	log.Info("TimescaleDB connection successful")

	return db, nil
}

// NewTimescaleDBStore connects and migrates the prediction tables
func NewTimescaleDBStore(ctx context.Context, connectionString string) (*TimescaleDBStore, error) {
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).AutoMigrate(&BatchRow{}, &PredictionRow{}); err != nil {
		return nil, fmt.Errorf("could not migrate prediction tables: %w", err)
	}

	return &TimescaleDBStore{DB: db}, nil
}

func (t *TimescaleDBStore) SaveBatch(ctx context.Context, b *predict.Batch) error {
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&BatchRow{ID: b.ID, CreatedAt: b.CreatedAt}).Error; err != nil {
			return fmt.Errorf("could not store batch %s: %w", b.ID, err)
		}
		if len(b.Predictions) == 0 {
			return nil
		}

		rows := make([]PredictionRow, len(b.Predictions))
		for i, p := range b.Predictions {
			rows[i] = toRow(b.ID, i, p)
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("could not store predictions of batch %s: %w", b.ID, err)
		}
		return nil
	})
}

func (t *TimescaleDBStore) LatestBatchID(ctx context.Context) (string, error) {
	var b BatchRow
	err := t.DB.WithContext(ctx).Order("created_at DESC").Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoBatches
	}
	if err != nil {
		return "", fmt.Errorf("error querying latest batch: %w", err)
	}
	return b.ID, nil
}

func (t *TimescaleDBStore) Predictions(ctx context.Context, q Query) ([]predict.Prediction, error) {
	id := q.BatchID
	if id == "" {
		var err error
		if id, err = t.LatestBatchID(ctx); err != nil {
			return nil, err
		}
	} else {
		var count int64
		if err := t.DB.WithContext(ctx).Model(&BatchRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("error looking up batch: %w", err)
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
		}
	}

	tx := t.DB.WithContext(ctx).Where("batch_id = ?", id)
	if !q.Day.IsZero() {
		tx = tx.Where("day = ?", q.Day.Format("2006-01-02"))
	}
	if q.Line != "" {
		tx = tx.Where("line = ?", q.Line)
	}

	var rows []PredictionRow
	if err := tx.Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying predictions: %w", err)
	}

	preds := make([]predict.Prediction, len(rows))
	for i, r := range rows {
		preds[i] = r.prediction()
	}
	return preds, nil
}

func (t *TimescaleDBStore) Close() error {
	sqlDB, err := t.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
