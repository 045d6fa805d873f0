// Package store archives finished research runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"lawgpt/internal/ledger"
	"lawgpt/internal/metrics"
	"lawgpt/internal/pipeline"
)

var ErrNotFound = errors.New("run not found")

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

// RunSummary is the compact listing view of an archived run.
type RunSummary struct {
	SessionID  string    `json:"session_id"`
	Question   string    `json:"question"`
	CreatedAt  time.Time `json:"created_at"`
	Fragments  int       `json:"fragments"`
	Unverified int       `json:"unverified"`
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			session_id TEXT PRIMARY KEY,
			question   TEXT NOT NULL,
			summary    TEXT NOT NULL,
			tasks      TEXT NOT NULL,
			brief      TEXT NOT NULL,
			final_html TEXT NOT NULL,
			metrics    TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS fragments (
			session_id TEXT NOT NULL REFERENCES runs(session_id) ON DELETE CASCADE,
			position   INTEGER NOT NULL,
			task       TEXT NOT NULL,
			result     TEXT NOT NULL,
			status     TEXT NOT NULL,
			PRIMARY KEY (session_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveRun inserts run, replacing an earlier record of the same session.
func (s *Store) SaveRun(ctx context.Context, run pipeline.Run) error {
	tasks, err := json.Marshal(run.Tasks)
	if err != nil {
		return fmt.Errorf("store: encode tasks: %w", err)
	}
	var mjson sql.NullString
	if run.Metrics != nil {
		b, err := json.Marshal(run.Metrics)
		if err != nil {
			return fmt.Errorf("store: encode metrics: %w", err)
		}
		mjson = sql.NullString{String: string(b), Valid: true}
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM fragments WHERE session_id = ?`,
		`DELETE FROM runs WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, run.SessionID); err != nil {
			return fmt.Errorf("store: replace run: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (session_id, question, summary, tasks, brief, final_html, metrics, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.SessionID, run.Question, run.Summary, string(tasks), run.Brief, run.FinalHTML, mjson,
		created.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	for i, f := range run.Fragments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragments (session_id, position, task, result, status) VALUES (?, ?, ?, ?, ?)`,
			run.SessionID, i, f.Task, f.Result, string(f.Status),
		); err != nil {
			return fmt.Errorf("store: insert fragment %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.session_id, r.question, r.created_at,
		       COUNT(f.position),
		       COALESCE(SUM(CASE WHEN f.status = 'unverified' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN fragments f ON f.session_id = r.session_id
		GROUP BY r.session_id
		ORDER BY r.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs      RunSummary
			created string
		)
		if err := rows.Scan(&rs.SessionID, &rs.Question, &created, &rs.Fragments, &rs.Unverified); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		rs.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, sessionID string) (pipeline.Run, error) {
	var (
		run     pipeline.Run
		tasks   string
		mjson   sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, question, summary, tasks, brief, final_html, metrics, created_at
		 FROM runs WHERE session_id = ?`, sessionID,
	).Scan(&run.SessionID, &run.Question, &run.Summary, &tasks, &run.Brief, &run.FinalHTML, &mjson, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Run{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return pipeline.Run{}, fmt.Errorf("store: get run: %w", err)
	}
	if err := json.Unmarshal([]byte(tasks), &run.Tasks); err != nil {
		return pipeline.Run{}, fmt.Errorf("store: decode tasks: %w", err)
	}
	if mjson.Valid {
		run.Metrics = &metrics.SessionMetrics{}
		if err := json.Unmarshal([]byte(mjson.String), run.Metrics); err != nil {
			return pipeline.Run{}, fmt.Errorf("store: decode metrics: %w", err)
		}
	}
	run.CreatedAt, _ = time.Parse(timeLayout, created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT task, result, status FROM fragments WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return pipeline.Run{}, fmt.Errorf("store: get fragments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			f      pipeline.Fragment
			status string
		)
		if err := rows.Scan(&f.Task, &f.Result, &status); err != nil {
			return pipeline.Run{}, fmt.Errorf("store: scan fragment: %w", err)
		}
		f.Status = ledger.ValidationStatus(status)
		run.Fragments = append(run.Fragments, f)
	}
	return run, rows.Err()
}
