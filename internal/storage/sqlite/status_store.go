// Package sqlite provides a single-file status store for runs without a database server.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/homework-watcher/internal/homework"
)

//go:embed schema.sql
var schema string

// Config locates the database file.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// StatusStore keeps the last known review status per homework in SQLite.
type StatusStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the database file if needed and applies the schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*StatusStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			logger.Warn("sqlite pragma failed", zap.String("pragma", p), zap.Error(err))
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &StatusStore{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *StatusStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Ping verifies the database file is usable.
func (s *StatusStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Snapshot loads every persisted homework name with its status.
func (s *StatusStore) Snapshot(ctx context.Context) (homework.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, homework_name FROM works ORDER BY homework_name`)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	snap := homework.Snapshot{}
	for rows.Next() {
		var status, name string
		if err := rows.Scan(&status, &name); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		snap[name] = homework.Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}
	s.logger.Debug("snapshot loaded", zap.Int("rows", len(snap)))
	return snap, nil
}

// Upsert writes rec keyed by its homework name; the API id is stored as data.
// The returned error is a *homework.PersistenceError.
func (s *StatusStore) Upsert(ctx context.Context, rec homework.Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO works (id, status, homework_name, reviewer_comment, date_updated, lesson_name)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(homework_name) DO UPDATE SET
  id = excluded.id,
  status = excluded.status,
  reviewer_comment = excluded.reviewer_comment,
  date_updated = excluded.date_updated,
  lesson_name = excluded.lesson_name`,
		rec.ID, string(rec.Status), rec.HomeworkName, rec.ReviewerComment, rec.DateUpdated, rec.LessonName,
	)
	if err != nil {
		return &homework.PersistenceError{HomeworkName: rec.HomeworkName, Err: fmt.Errorf("upsert status: %w", err)}
	}
	s.logger.Debug("status persisted",
		zap.String("homework", rec.HomeworkName),
		zap.String("status", string(rec.Status)),
	)
	return nil
}
