package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tbxark/intakeagent/agent"
)

// PostgresStore records submissions in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS intake_reports (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			form_type TEXT NOT NULL,
			reference TEXT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			record JSONB NOT NULL,
			row_values JSONB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Record(ctx context.Context, sub *agent.Submission) error {
	recordJSON, rowJSON, err := encodeSubmission(sub)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO intake_reports (id, session_id, form_type, reference, submitted_at, record, row_values)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb)`,
		sub.ID, sub.SessionID, string(sub.FormType), sub.Reference, sub.SubmittedAt, recordJSON, rowJSON,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// CountByReference reports how many rows carry the reference.
func (s *PostgresStore) CountByReference(ctx context.Context, reference string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM intake_reports WHERE reference = $1`, reference).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

var _ agent.Recorder = (*PostgresStore)(nil)
