package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
)

// ReadAll implements remote.Store.
func (s *Store) ReadAll(ctx context.Context) ([]row.Row, error) {
	rs, err := s.db.QueryContext(ctx, `
		SELECT id, fields FROM grid_rows
		WHERE dataset = ?
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
		fields, err := unmarshalFields(text)
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
	now := s.now().UnixMilli()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO grid_rows (dataset, fields, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, f := range fields {
			text, err := marshalFields(f)
			if err != nil {
				return fmt.Errorf("create[%d]: %w", i, err)
			}
			res, err := stmt.ExecContext(ctx, s.dataset, text, now, now)
			if err != nil {
				return fmt.Errorf("create[%d]: %w", i, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
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
	now := s.now().UnixMilli()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE grid_rows SET fields = ?, updated_at = ?
			WHERE dataset = ? AND id = ?
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			id, err := parseID(r.ID)
			if err != nil {
				return err
			}
			text, err := marshalFields(r.Fields)
			if err != nil {
				return fmt.Errorf("update %q: %w", r.ID, err)
			}
			res, err := stmt.ExecContext(ctx, text, now, s.dataset, id)
			if err != nil {
				return fmt.Errorf("update %q: %w", r.ID, err)
			}
			if err := expectOne(res, r.ID); err != nil {
				return err
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

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM grid_rows WHERE dataset = ? AND id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rid := range ids {
			id, err := parseID(rid)
			if err != nil {
				return err
			}
			res, err := stmt.ExecContext(ctx, s.dataset, id)
			if err != nil {
				return fmt.Errorf("delete %q: %w", rid, err)
			}
			if err := expectOne(res, rid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete many: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, id row.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return remote.NotFound(id)
	}
	return nil
}
