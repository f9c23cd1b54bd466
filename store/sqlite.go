package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore records submissions and caches session states in one SQLite file.
type SQLiteStore struct {
	db *sql.DB
	// sessionMu serializes session writes to avoid SQLITE_BUSY.
	sessionMu sync.Mutex
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		form_type TEXT NOT NULL,
		reference TEXT NOT NULL,
		submitted_at INTEGER NOT NULL,
		record_json TEXT NOT NULL,
		row_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_submitted ON reports(submitted_at);

	CREATE TABLE IF NOT EXISTS sessions (
		key TEXT PRIMARY KEY,
		state_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends one submitted record.
func (s *SQLiteStore) Record(ctx context.Context, sub *agent.Submission) error {
	recordJSON, rowJSON, err := encodeSubmission(sub)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, session_id, form_type, reference, submitted_at, record_json, row_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.SessionID, string(sub.FormType), sub.Reference, sub.SubmittedAt.Unix(), recordJSON, rowJSON,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Reports lists the latest submissions, newest first.
func (s *SQLiteStore) Reports(ctx context.Context, limit int) ([]*agent.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, form_type, reference, submitted_at, record_json
		FROM reports ORDER BY submitted_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*agent.Submission
	for rows.Next() {
		var (
			sub         agent.Submission
			formType    string
			submittedAt int64
			recordJSON  string
		)
		if err := rows.Scan(&sub.ID, &sub.SessionID, &formType, &sub.Reference, &submittedAt, &recordJSON); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		sub.FormType = types.FormType(formType)
		sub.SubmittedAt = time.Unix(submittedAt, 0)
		if err := sonic.UnmarshalString(recordJSON, &sub.Record); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", sub.ID, err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// Set stores a session state snapshot.
func (s *SQLiteStore) Set(ctx context.Context, key string, state *agent.State) error {
	data, err := sonic.MarshalString(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, state_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		key, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*agent.State, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM sessions WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query session: %w", err)
	}
	var state agent.State
	if err := sonic.UnmarshalString(data, &state); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	return &state, true, nil
}

func (s *SQLiteStore) Del(ctx context.Context, key string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var (
	_ agent.Recorder            = (*SQLiteStore)(nil)
	_ agent.Cache[*agent.State] = (*SQLiteStore)(nil)
)
