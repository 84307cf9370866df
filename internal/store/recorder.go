package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"buscast/neuralnet"
)

// TrainingRun is one persisted training call.
type TrainingRun struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Epochs     int       `db:"epochs" json:"epochs"`
	Samples    int       `db:"samples" json:"samples"`
	DurationMS int64     `db:"duration_ms" json:"durationMs"`
	AvgError   float64   `db:"avg_error" json:"avgError"`
	MinError   float64   `db:"min_error" json:"minError"`
	MaxError   float64   `db:"max_error" json:"maxError"`
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

// TrainingRecorder keeps a history of training runs.
type TrainingRecorder interface {
	RecordRun(ctx context.Context, stats neuralnet.TrainingStats) (uuid.UUID, error)
	RecentRuns(ctx context.Context, limit int) ([]TrainingRun, error)
	// Run returns ErrNotFound for unknown IDs.
	Run(ctx context.Context, id uuid.UUID) (TrainingRun, error)
}

type PostgresTrainingRecorder struct {
	db *sqlx.DB
}

func NewPostgresTrainingRecorder(db *sqlx.DB) *PostgresTrainingRecorder {
	return &PostgresTrainingRecorder{db: db}
}

func (r *PostgresTrainingRecorder) RecordRun(ctx context.Context, stats neuralnet.TrainingStats) (uuid.UUID, error) {
	const query = `
		INSERT INTO training_runs (
			id, epochs, samples, duration_ms,
			avg_error, min_error, max_error, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)`

	id := uuid.New()
	_, err := r.db.ExecContext(ctx, query,
		id, stats.Epochs, stats.Samples, stats.Duration.Milliseconds(),
		stats.AvgError, stats.MinError, stats.MaxError,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record training run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *PostgresTrainingRecorder) RecentRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	const query = `
		SELECT id, epochs, samples, duration_ms, avg_error, min_error, max_error, recorded_at
		FROM training_runs
		ORDER BY recorded_at DESC
		LIMIT $1`

	var runs []TrainingRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	return runs, nil
}

func (r *PostgresTrainingRecorder) Run(ctx context.Context, id uuid.UUID) (TrainingRun, error) {
	const query = `
		SELECT id, epochs, samples, duration_ms, avg_error, min_error, max_error, recorded_at
		FROM training_runs
		WHERE id = $1`

	var run TrainingRun
	err := r.db.GetContext(ctx, &run, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return TrainingRun{}, fmt.Errorf("training run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return TrainingRun{}, fmt.Errorf("failed to query training run: %w", err)
	}
	return run, nil
}
