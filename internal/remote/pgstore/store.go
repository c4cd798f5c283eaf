// Package pgstore provides a PostgreSQL-backed remote.Store using a pgx
// connection pool.
//
// Rows of every dataset share the grid_rows table; fields are stored as
// JSONB and identifiers come from a BIGSERIAL primary key. Each batch runs
// in one transaction.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS grid_rows (
    id         BIGSERIAL   PRIMARY KEY,
    dataset    TEXT        NOT NULL,
    fields     JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_grid_rows_dataset_id ON grid_rows(dataset, id);
`

// Config holds pool settings.
type Config struct {
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
	Logger      *slog.Logger
}

// Store is a remote.Store over one dataset of a PostgreSQL database.
type Store struct {
	pool    *pgxpool.Pool
	dataset string
	logger  *slog.Logger
	owned   bool
}

var _ remote.Store = (*Store)(nil)

// Connect opens a pool, verifies the connection and creates the schema.
func Connect(ctx context.Context, cfg Config, dataset string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := New(ctx, pool, dataset, cfg.Logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New binds an existing pool to dataset and creates the schema.
// The caller keeps ownership of the pool.
func New(ctx context.Context, pool *pgxpool.Pool, dataset string, logger *slog.Logger) (*Store, error) {
	if dataset == "" {
		return nil, fmt.Errorf("pgstore: dataset name required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, schemaSQL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	logger.Debug("postgres schema ready", "dataset", dataset)

	return &Store{pool: pool, dataset: dataset, logger: logger}, nil
}

// Close releases the pool if Connect created it.
func (s *Store) Close() {
	if s.owned {
		s.pool.Close()
	}
}

// ReadAll implements remote.Store.
func (s *Store) ReadAll(ctx context.Context) ([]row.Row, error) {
	rs, err := s.pool.Query(ctx, `
		SELECT id, fields::text FROM grid_rows
		WHERE dataset = $1
		ORDER BY id ASC
	`, s.dataset)
	if err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}
	defer rs.Close()

	out := []row.Row{}
	for rs.Next() {
		var id int64
		var text string
		if err := rs.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("read all: %w", err)
		}
		fields, err := decodeFields(text)
		if err != nil {
			return nil, fmt.Errorf("read all: row %d: %w", id, err)
		}
		out = append(out, row.New(formatID(id), fields))
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}
	return out, nil
}

// CreateMany implements remote.Store.
func (s *Store) CreateMany(ctx context.Context, fields []row.Fields) ([]row.Row, error) {
	created := make([]row.Row, 0, len(fields))

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i, f := range fields {
			text, err := encodeFields(f)
			if err != nil {
				return fmt.Errorf("create[%d]: %w", i, err)
			}
			var id int64
			if err := tx.QueryRow(ctx, `
				INSERT INTO grid_rows (dataset, fields)
				VALUES ($1, $2::jsonb)
				RETURNING id
			`, s.dataset, text).Scan(&id); err != nil {
				return fmt.Errorf("create[%d]: %w", i, err)
			}
			created = append(created, row.New(formatID(id), f.Clone()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create many: %w", err)
	}
	return created, nil
}

// UpdateMany implements remote.Store.
func (s *Store) UpdateMany(ctx context.Context, rows []row.Row) ([]row.Row, error) {
	if err := remote.CheckUpdates(rows); err != nil {
		return nil, fmt.Errorf("update many: %w", err)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, r := range rows {
			id, err := parseID(r.ID)
			if err != nil {
				return err
			}
			text, err := encodeFields(r.Fields)
			if err != nil {
				return fmt.Errorf("update %q: %w", r.ID, err)
			}
			tag, err := tx.Exec(ctx, `
				UPDATE grid_rows SET fields = $1::jsonb, updated_at = now()
				WHERE dataset = $2 AND id = $3
			`, text, s.dataset, id)
			if err != nil {
				return fmt.Errorf("update %q: %w", r.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return remote.NotFound(r.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update many: %w", err)
	}

	out := make([]row.Row, len(rows))
	for i, r := range rows {
		out[i] = row.New(r.ID, r.Fields.Clone())
	}
	return out, nil
}

// DeleteMany implements remote.Store.
func (s *Store) DeleteMany(ctx context.Context, ids []row.ID) error {
	if err := remote.CheckDeletes(ids); err != nil {
		return fmt.Errorf("delete many: %w", err)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, rid := range ids {
			id, err := parseID(rid)
			if err != nil {
				return err
			}
			tag, err := tx.Exec(ctx, `DELETE FROM grid_rows WHERE dataset = $1 AND id = $2`, s.dataset, id)
			if err != nil {
				return fmt.Errorf("delete %q: %w", rid, err)
			}
			if tag.RowsAffected() == 0 {
				return remote.NotFound(rid)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete many: %w", err)
	}
	return nil
}

func encodeFields(f row.Fields) (string, error) {
	if f == nil {
		f = row.Fields{}
	}
	data, err := row.MarshalCanonical(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeFields(text string) (row.Fields, error) {
	var f row.Fields
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return nil, err
	}
	if f == nil {
		f = row.Fields{}
	}
	return f, nil
}

func parseID(id row.ID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, remote.NotFound(id)
	}
	return n, nil
}

func formatID(n int64) row.ID {
	return row.ID(strconv.FormatInt(n, 10))
}
