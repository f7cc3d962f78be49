// Package postgres mirrors resolved records into Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/bookharvest/internal/book"
)

const defaultTable = "books"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// BookStoreConfig controls the Postgres connection pool used for record rows.
type BookStoreConfig struct {
	DSN             string
	Table           string
	RunID           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// BookStore writes one row per resolved record, tagged with the run that produced it.
type BookStore struct {
	pool  execCloser
	table string
	runID string
	clock book.Clock
}

// NewBookStore connects to Postgres and ensures the target table exists.
func NewBookStore(ctx context.Context, cfg BookStoreConfig, clock book.Clock) (*BookStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	store := &BookStore{pool: pool, table: table, runID: cfg.RunID, clock: clock}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewBookStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBookStoreWithPool(pool execCloser, table, runID string, clock book.Clock) (*BookStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &BookStore{pool: pool, table: name, runID: runID, clock: clock}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the record table when it is missing.
func (s *BookStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id           TEXT NOT NULL,
	book_id          BIGINT NOT NULL,
	title            TEXT NOT NULL,
	author           TEXT NOT NULL,
	rating           DOUBLE PRECISION NOT NULL,
	ratings_count    BIGINT NOT NULL,
	reviews_count    BIGINT NOT NULL,
	description      TEXT NOT NULL,
	genres           TEXT NOT NULL,
	pages            BIGINT NOT NULL,
	format           TEXT NOT NULL,
	publication_date TEXT NOT NULL,
	literary_awards  TEXT NOT NULL,
	original_title   TEXT NOT NULL,
	series           TEXT NOT NULL,
	setting          TEXT NOT NULL,
	characters       TEXT NOT NULL,
	isbn             TEXT NOT NULL,
	language         TEXT NOT NULL,
	harvested_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, book_id)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *BookStore) Name() string {
	return "postgres"
}

// Close releases the underlying pool resources.
func (s *BookStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// WriteRecord inserts a record row. Re-inserting the same record within a run is a no-op.
func (s *BookStore) WriteRecord(ctx context.Context, record book.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("book store is not configured")
	}
	harvestedAt := time.Now().UTC()
	if s.clock != nil {
		harvestedAt = s.clock.Now().UTC()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	book_id,
	title,
	author,
	rating,
	ratings_count,
	reviews_count,
	description,
	genres,
	pages,
	format,
	publication_date,
	literary_awards,
	original_title,
	series,
	setting,
	characters,
	isbn,
	language,
	harvested_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
) ON CONFLICT (run_id, book_id) DO NOTHING`, s.table)

	args := []any{
		s.runID,
		record.BookID,
		record.Title,
		record.Author,
		record.Rating,
		record.RatingsCount,
		record.ReviewsCount,
		record.Description,
		record.Genres,
		record.Pages,
		record.Format,
		record.PublicationDate,
		record.LiteraryAwards,
		record.OriginalTitle,
		record.Series,
		record.Setting,
		record.Characters,
		record.ISBN,
		record.Language,
		harvestedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert book %d: %w", record.BookID, err)
	}
	return nil
}
