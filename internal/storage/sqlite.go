package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/pkg/migrate"
)

const sqliteDayLayout = "2006-01-02"

//go:embed migrations/sqlite/*.sql
var sqliteMigrationFiles embed.FS

// SQLiteMigrations returns the schema migrations applied by NewSQLiteStore
func SQLiteMigrations() fs.FS {
	sub, err := fs.Sub(sqliteMigrationFiles, "migrations/sqlite")
	if err != nil {
		panic(err)
	}
	return sub
}

// SQLiteStore keeps prediction batches in a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and brings
// its schema up to the latest migration
func NewSQLiteStore(ctx context.Context, dbPath string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	provider := migrate.NewFSProvider(SQLiteMigrations(), migrate.DefaultMigrationTable, "sqlite")
	if err := migrate.NewMigrator(db, provider, logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// SaveBatch stores a batch and all of its predictions in one transaction
func (s *SQLiteStore) SaveBatch(ctx context.Context, b *predict.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO failcast_batches (id, created_at) VALUES (?, ?)",
		b.ID, b.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", b.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO failcast_predictions (
			batch_id, seq, station, line, day, shift, failed,
			failures_7d, failures_30d, days_since_last_failure,
			consecutive_days_without_failure, failed_yesterday, label, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare prediction insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range b.Predictions {
		r := toRow(b.ID, i, p)

		var since sql.NullInt64
		if r.DaysSinceLastFailure != nil {
			since = sql.NullInt64{Int64: int64(*r.DaysSinceLastFailure), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			r.BatchID, r.Seq, r.Station, r.Line, r.Day.Format(sqliteDayLayout), r.Shift, r.Failed,
			r.Failures7d, r.Failures30d, since,
			r.ConsecutiveDaysWithoutFailure, r.FailedYesterday, r.Label, r.Status,
		); err != nil {
			return fmt.Errorf("failed to insert prediction %d of batch %s: %w", i, b.ID, err)
		}
	}

	return tx.Commit()
}

// LatestBatchID returns the id of the most recently created batch
func (s *SQLiteStore) LatestBatchID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM failcast_batches ORDER BY created_at DESC, rowid DESC LIMIT 1",
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoBatches
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest batch: %w", err)
	}
	return id, nil
}

// Predictions returns the predictions matching q in their original order
func (s *SQLiteStore) Predictions(ctx context.Context, q Query) ([]predict.Prediction, error) {
	id := q.BatchID
	if id == "" {
		var err error
		if id, err = s.LatestBatchID(ctx); err != nil {
			return nil, err
		}
	} else {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM failcast_batches WHERE id = ?", id).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to look up batch: %w", err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
		}
	}

	where := []string{"batch_id = ?"}
	args := []any{id}
	if !q.Day.IsZero() {
		where = append(where, "day = ?")
		args = append(args, q.Day.Format(sqliteDayLayout))
	}
	if q.Line != "" {
		where = append(where, "line = ?")
		args = append(args, q.Line)
	}

	query := `
		SELECT station, line, day, shift, failed,
		       failures_7d, failures_30d, days_since_last_failure,
		       consecutive_days_without_failure, failed_yesterday, label, status
		FROM failcast_predictions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	preds := []predict.Prediction{}
	for rows.Next() {
		var r PredictionRow
		var day string
		var since sql.NullInt64

		if err := rows.Scan(
			&r.Station, &r.Line, &day, &r.Shift, &r.Failed,
			&r.Failures7d, &r.Failures30d, &since,
			&r.ConsecutiveDaysWithoutFailure, &r.FailedYesterday, &r.Label, &r.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", err)
		}

		r.Day, err = time.Parse(sqliteDayLayout, day)
		if err != nil {
			return nil, fmt.Errorf("stored prediction has invalid day %q: %w", day, err)
		}
		if since.Valid {
			v := int(since.Int64)
			r.DaysSinceLastFailure = &v
		}

		preds = append(preds, r.prediction())
	}
	return preds, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
