package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"buscast/crowding"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS crowding_annotations (
	id          SERIAL PRIMARY KEY,
	date        DATE NOT NULL,
	time        TEXT NOT NULL DEFAULT '',
	direction   TEXT NOT NULL,
	level       INTEGER NOT NULL CHECK (level BETWEEN 1 AND 5),
	line        TEXT NOT NULL,
	temperature DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (date, direction)
);

CREATE TABLE IF NOT EXISTS training_runs (
	id          UUID PRIMARY KEY,
	epochs      INTEGER NOT NULL,
	samples     INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	avg_error   DOUBLE PRECISION NOT NULL,
	min_error   DOUBLE PRECISION NOT NULL,
	max_error   DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Connect opens a Postgres connection pool and checks it is reachable.
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the annotation and training run tables if missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// PostgresStore keeps annotations in the crowding_annotations table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewPostgresStore(db *sqlx.DB, logger *logrus.Logger) *PostgresStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &PostgresStore{db: db, logger: logger}
}

type annotationRow struct {
	Date        time.Time `db:"date"`
	Time        string    `db:"time"`
	Direction   string    `db:"direction"`
	Level       int       `db:"level"`
	Line        string    `db:"line"`
	Temperature *float64  `db:"temperature"`
}

func newAnnotationRow(a Annotation) annotationRow {
	return annotationRow{
		Date:        a.Date,
		Time:        a.Time,
		Direction:   a.Direction.String(),
		Level:       a.Level,
		Line:        a.Line,
		Temperature: a.Temperature,
	}
}

func (r annotationRow) annotation() (Annotation, error) {
	dir, err := crowding.ParseDirection(r.Direction)
	if err != nil {
		return Annotation{}, err
	}
	y, m, d := r.Date.Date()
	return Annotation{
		Date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Time:        r.Time,
		Direction:   dir,
		Level:       r.Level,
		Line:        r.Line,
		Temperature: r.Temperature,
	}, nil
}

func (s *PostgresStore) LoadAnnotations(ctx context.Context) ([]Annotation, error) {
	const query = `
		SELECT date, time, direction, level, line, temperature
		FROM crowding_annotations
		ORDER BY date, direction`

	var rows []annotationRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	as := make([]Annotation, 0, len(rows))
	for _, row := range rows {
		a, err := row.annotation()
		if err != nil {
			return nil, fmt.Errorf("annotation %s: %w", row.Date.Format(crowding.DateLayout), err)
		}
		as = append(as, a)
	}
	return as, nil
}

func (s *PostgresStore) LoadRecords(ctx context.Context) ([]crowding.Record, error) {
	as, err := s.LoadAnnotations(ctx)
	if err != nil {
		return nil, err
	}
	records, skipped := toRecords(as)
	if skipped > 0 {
		s.logger.WithField("skipped", skipped).Warn("annotations without temperature left out of training")
	}
	return records, nil
}

func (s *PostgresStore) Has(ctx context.Context, date time.Time, dir crowding.Direction) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM crowding_annotations WHERE date = $1 AND direction = $2)`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, date.Format(crowding.DateLayout), dir.String()); err != nil {
		return false, fmt.Errorf("failed to query annotation: %w", err)
	}
	return exists, nil
}

const insertAnnotation = `
	INSERT INTO crowding_annotations (date, time, direction, level, line, temperature)
	VALUES (:date, :time, :direction, :level, :line, :temperature)`

func (s *PostgresStore) Append(ctx context.Context, a Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, insertAnnotation, newAnnotationRow(a)); err != nil {
		return insertError(a, err)
	}
	s.logger.WithFields(logrus.Fields{
		"date":      a.Date.Format(crowding.DateLayout),
		"direction": a.Direction,
		"level":     a.Level,
	}).Info("annotation saved")
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, as []Annotation) error {
	for i := range as {
		if err := as[i].Validate(); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM crowding_annotations`); err != nil {
		return fmt.Errorf("failed to clear annotations: %w", err)
	}
	for _, a := range as {
		if _, err := tx.NamedExecContext(ctx, insertAnnotation, newAnnotationRow(a)); err != nil {
			return insertError(a, err)
		}
	}
	return tx.Commit()
}

func insertError(a Annotation, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s %v: %w", a.Date.Format(crowding.DateLayout), a.Direction, ErrDuplicate)
	}
	return fmt.Errorf("failed to insert annotation: %w", err)
}
