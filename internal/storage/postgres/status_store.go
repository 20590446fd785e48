// Package postgres provides the Postgres-backed status store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/homework"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "works"

// StatusStoreConfig controls the Postgres connection pool and write retries.
type StatusStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	Retry           RetryConfig
}

type txPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// StatusStore keeps the last known review status per homework.
type StatusStore struct {
	pool   txPool
	table  string
	retry  *RetryPolicy
	logger *zap.Logger
}

// NewStatusStore connects a pgx pool using the provided config.
func NewStatusStore(ctx context.Context, cfg StatusStoreConfig, logger *zap.Logger) (*StatusStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewStatusStoreWithPool(pool, cfg.Table, NewRetryPolicy(cfg.Retry), logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewStatusStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStatusStoreWithPool(pool txPool, table string, retry *RetryPolicy, logger *zap.Logger) (*StatusStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if retry == nil {
		retry = NewRetryPolicy(RetryConfig{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusStore{pool: pool, table: table, retry: retry, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *StatusStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *StatusStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the status table when it does not exist yet. Rows are keyed by
// homework name, which is what change detection compares on; the API id is optional.
func (s *StatusStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	homework_name TEXT PRIMARY KEY,
	id BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT '',
	reviewer_comment TEXT NOT NULL DEFAULT '',
	date_updated TEXT NOT NULL DEFAULT '',
	lesson_name TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Snapshot loads every persisted homework name with its status in a read-only
// transaction.
func (s *StatusStore) Snapshot(ctx context.Context) (homework.Snapshot, error) {
	query := fmt.Sprintf(`SELECT status, homework_name FROM %s`, s.table)
	snap := homework.Snapshot{}
	err := s.inTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("query statuses: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var status, name string
			if err := rows.Scan(&status, &name); err != nil {
				return fmt.Errorf("scan status row: %w", err)
			}
			snap[name] = homework.Status(status)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate status rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("snapshot loaded", zap.Int("rows", len(snap)))
	return snap, nil
}

// Upsert writes rec keyed by its homework name, so records without an API id never
// share a row and a name reported under a new id updates its row. Serialization
// conflicts and deadlocks are retried according to the store's policy; any other
// error is returned at once. The returned error is a *homework.PersistenceError.
func (s *StatusStore) Upsert(ctx context.Context, rec homework.Record) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, homework_name, reviewer_comment, date_updated, lesson_name)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (homework_name) DO UPDATE SET
	id = EXCLUDED.id,
	status = EXCLUDED.status,
	reviewer_comment = EXCLUDED.reviewer_comment,
	date_updated = EXCLUDED.date_updated,
	lesson_name = EXCLUDED.lesson_name`, s.table)

	args := []any{
		rec.ID,
		string(rec.Status),
		rec.HomeworkName,
		rec.ReviewerComment,
		rec.DateUpdated,
		rec.LessonName,
	}

	for attempt := 1; ; attempt++ {
		err := s.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert status: %w", err)
			}
			return nil
		})
		if err == nil {
			s.logger.Debug("status persisted",
				zap.String("homework", rec.HomeworkName),
				zap.String("status", string(rec.Status)),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		if !s.retry.ShouldRetry(err, attempt) {
			return &homework.PersistenceError{HomeworkName: rec.HomeworkName, Err: err}
		}
		wait := s.retry.Backoff(attempt)
		s.logger.Warn("transaction conflict, retrying",
			zap.String("homework", rec.HomeworkName),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := sleep(ctx, wait); err != nil {
			return &homework.PersistenceError{HomeworkName: rec.HomeworkName, Err: err}
		}
	}
}

func (s *StatusStore) inTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for retry: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
