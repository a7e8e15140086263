package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/ytlearner/internal/model"

	_ "modernc.org/sqlite"
)

// SQLite is the durable single-node store.
type SQLite struct {
	creator

	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLite opens (or creates) the database at dbPath and applies the schema.
func NewSQLite(dbPath string, ttl time.Duration, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	o := buildOptions(opts)
	s := &SQLite{db: db, ttl: ttl, now: o.now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Timestamps are stored as unix milliseconds so expiry comparisons stay numeric.
func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quizzes (
		quiz_id TEXT PRIMARY KEY,
		source_ref TEXT NOT NULL,
		generator TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quizzes_expires_at ON quizzes(expires_at);

	CREATE TABLE IF NOT EXISTS attempts (
		attempt_id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL,
		submitted_at INTEGER NOT NULL,
		score_percent REAL NOT NULL DEFAULT 0,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_quiz_id ON attempts(quiz_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) GetOrCreate(ctx context.Context, id string, create CreateFunc) (*model.Quiz, error) {
	return s.getOrCreate(ctx, s, id, create)
}

// Get returns a live quiz by id.
func (s *SQLite) Get(ctx context.Context, id string) (*model.Quiz, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM quizzes WHERE quiz_id = ? AND expires_at > ?`,
		id, s.now().UnixMilli(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query quiz %s: %w", id, err)
	}
	var q model.Quiz
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return nil, fmt.Errorf("decode quiz %s: %w", id, err)
	}
	return &q, nil
}

// insertQuiz only overwrites an existing row once it has expired, then
// re-reads so every writer returns the row that won.
func (s *SQLite) insertQuiz(ctx context.Context, q *model.Quiz) (*model.Quiz, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quiz %s: %w", q.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quizzes (quiz_id, source_ref, generator, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(quiz_id) DO UPDATE SET
			source_ref = excluded.source_ref,
			generator = excluded.generator,
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		 WHERE quizzes.expires_at <= ?`,
		q.ID, q.SourceRef, q.Generator, string(payload),
		q.CreatedAt.UnixMilli(), q.CreatedAt.Add(s.ttl).UnixMilli(),
		s.now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert quiz %s: %w", q.ID, err)
	}
	return s.Get(ctx, q.ID)
}

// PurgeExpired removes expired quizzes and returns how many were deleted.
func (s *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) SaveAttempt(ctx context.Context, a *model.Attempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt %s: %w", a.ID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (attempt_id, quiz_id, submitted_at, score_percent, payload)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(attempt_id) DO NOTHING`,
		a.ID, a.QuizID, a.SubmittedAt.UnixMilli(), a.ScorePercent, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("attempt %s: %w", a.ID, ErrAttemptExists)
	}
	return nil
}

func (s *SQLite) GetAttempt(ctx context.Context, id string) (*model.Attempt, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM attempts WHERE attempt_id = ?`, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query attempt %s: %w", id, err)
	}
	var a model.Attempt
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("decode attempt %s: %w", id, err)
	}
	return &a, nil
}

func (s *SQLite) ListAttempts(ctx context.Context) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM attempts ORDER BY submitted_at DESC, attempt_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a model.Attempt
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) clock() time.Time { return s.now() }
