// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/crawler"
)

const defaultTable = "crawled_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for records.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RecordStore persists crawled records as JSONB rows keyed by title.
type RecordStore struct {
	pool  dbPool
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("persistence.postgres.dsn is required")
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
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool dbPool, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: name}, nil
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

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the records table when it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	title_key  TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	source     TEXT NOT NULL,
	media_type TEXT NOT NULL,
	origin_url TEXT NOT NULL,
	crawled_at TIMESTAMPTZ NOT NULL,
	payload    JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// FindByTitle returns the stored record with title, or nil when none exists.
func (s *RecordStore) FindByTitle(ctx context.Context, title string) (*crawler.Record, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE title_key = $1`, s.table)
	var payload []byte
	if err := s.pool.QueryRow(ctx, query, titleKey(title)).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find record by title: %w", err)
	}
	var rec crawler.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode record payload: %w", err)
	}
	return &rec, nil
}

// Save upserts rec by title.
func (s *RecordStore) Save(ctx context.Context, rec crawler.Record) (crawler.Record, error) {
	key := titleKey(rec.Title)
	if key == "" {
		return crawler.Record{}, fmt.Errorf("record title is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return crawler.Record{}, fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	title_key,
	title,
	source,
	media_type,
	origin_url,
	crawled_at,
	payload
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (title_key) DO UPDATE SET
	source = EXCLUDED.source,
	media_type = EXCLUDED.media_type,
	origin_url = EXCLUDED.origin_url,
	crawled_at = EXCLUDED.crawled_at,
	payload = EXCLUDED.payload`, s.table)

	args := []any{
		key,
		rec.Title,
		rec.Source,
		string(rec.MediaType),
		rec.Metadata.OriginURL,
		rec.Metadata.CrawledAt,
		payload,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return crawler.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
