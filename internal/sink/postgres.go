// Package sink streams persisted crawl records into downstream durable
// storage. The core crawler only guarantees that records can be enumerated
// exactly once; everything here is the consumer side of that contract.
package sink

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"holocron/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres sink.
type PostgresConfig struct {
	DSN       string
	Table     string
	BatchSize int
	// MaxConns bounds the connection pool.
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// pgxIface is the subset of pgxpool.Pool the sink uses, extracted so tests
// can substitute pgxmock.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres batch-inserts record payloads into a JSONB table with periodic
// commits.
type Postgres struct {
	pool      pgxIface
	table     string
	batchSize int
	logger    *zap.Logger
}

// NewPostgres connects a sink using cfg.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresWithPool(pool, cfg, logger)
}

// NewPostgresWithPool constructs a sink from an existing pool (primarily for
// testing).
func NewPostgresWithPool(pool pgxIface, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table := cfg.Table
	if table == "" {
		table = "records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Postgres{
		pool:      pool,
		table:     table,
		batchSize: batch,
		logger:    logger,
	}, nil
}

// Close releases the underlying pool.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureTable drops and recreates the target table with a JSONB body column
// and a GIN index for containment queries.
func (s *Postgres) EnsureTable(ctx context.Context) error {
	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", s.table)
	if _, err := s.pool.Exec(ctx, drop); err != nil {
		return fmt.Errorf("drop table %s: %w", s.table, err)
	}
	create := fmt.Sprintf(`
CREATE TABLE %s (
	id SERIAL PRIMARY KEY,
	url TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	body JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_body_gin ON %s USING GIN (body)", s.table, s.table)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("create index on %s: %w", s.table, err)
	}
	s.logger.Info("sink table ready", zap.String("table", s.table))
	return nil
}

// Ingest enumerates store and inserts every record, committing every
// batchSize rows. Returns the number of rows inserted.
func (s *Postgres) Ingest(ctx context.Context, store crawler.RecordStore) (int64, error) {
	insert := fmt.Sprintf("INSERT INTO %s (url, fetched_at, body) VALUES ($1, $2, $3)", s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	var inserted int64

	err = store.Each(ctx, func(rec crawler.Record) error {
		if _, err := tx.Exec(ctx, insert, rec.URL, rec.FetchedAt, []byte(rec.Payload)); err != nil {
			return fmt.Errorf("insert %s: %w", rec.URL, err)
		}
		inserted++
		if inserted%int64(s.batchSize) == 0 {
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			s.logger.Info("batch committed", zap.Int64("rows", inserted))
			if tx, err = s.pool.Begin(ctx); err != nil {
				return fmt.Errorf("begin: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return inserted, err
	}

	if err := tx.Commit(ctx); err != nil {
		return inserted, fmt.Errorf("final commit: %w", err)
	}
	s.logger.Info("ingest finished", zap.Int64("rows", inserted))
	return inserted, nil
}
