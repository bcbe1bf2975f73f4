// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marketcheck/internal/catalog"
	"github.com/xkilldash9x/marketcheck/internal/verify"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RunRecord is the persisted summary of one executed case.
type RunRecord struct {
	ID         string
	Case       string
	Params     catalog.FilterParams
	Status     string
	Error      string
	ReportDir  string
	Outcomes   []verify.Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID         string
	Case       string
	Status     string
	Failed     int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store persists case runs in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id          UUID PRIMARY KEY,
    case_name   TEXT NOT NULL,
    params      JSONB NOT NULL,
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    report_dir  TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_outcomes (
    run_id     UUID NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
    position   INT NOT NULL,
    check_name TEXT NOT NULL,
    passed     BOOLEAN NOT NULL,
    message    TEXT NOT NULL DEFAULT '',
    violations JSONB NOT NULL,
    PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const insertRunSQL = `
INSERT INTO runs (id, case_name, params, status, error, report_dir, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`

var outcomeColumns = []string{"run_id", "position", "check_name", "passed", "message", "violations"}

// SaveRun writes the run and its outcomes in one transaction.
func (s *Store) SaveRun(ctx context.Context, run RunRecord) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to encode case parameters: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, insertRunSQL,
		run.ID, run.Case, params, run.Status, run.Error, run.ReportDir,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if len(run.Outcomes) > 0 {
		if err := s.copyOutcomes(ctx, tx, run.ID, run.Outcomes); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run saved.", zap.String("run_id", run.ID), zap.Int("outcomes", len(run.Outcomes)))
	return nil
}

func (s *Store) copyOutcomes(ctx context.Context, tx pgx.Tx, runID string, outcomes []verify.Outcome) error {
	rows := make([][]interface{}, len(outcomes))
	for i, o := range outcomes {
		violations := o.Violations
		if violations == nil {
			violations = []string{}
		}
		encoded, err := json.Marshal(violations)
		if err != nil {
			return fmt.Errorf("failed to encode violations of %s: %w", o.Check, err)
		}
		rows[i] = []interface{}{runID, i, o.Check, o.Passed, o.Message, encoded}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"run_outcomes"}, outcomeColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy outcomes: %w", err)
	}
	if int(copyCount) != len(outcomes) {
		return fmt.Errorf("mismatch in copied outcomes count: expected %d, got %d", len(outcomes), copyCount)
	}
	return nil
}

const recentRunsSQL = `
SELECT r.id::text, r.case_name, r.status,
       (SELECT count(*) FROM run_outcomes o WHERE o.run_id = r.id AND NOT o.passed),
       r.started_at, r.finished_at
FROM runs r
ORDER BY r.started_at DESC
LIMIT $1;
`

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Case, &r.Status, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
