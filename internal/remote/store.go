// Package remote defines the batch contract between the reconciliation
// engine and the store that owns the dataset, plus the pieces every
// implementation shares: operation names, batch validation, the JSON wire
// codec and an in-memory store.
//
// Implementations live in subpackages: httpstore (client for the batch
// API), sqlitestore and pgstore (durable stores behind the server).
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/gridsync/internal/row"
)

// Store exposes batch read/create/update/delete over one dataset.
//
// Each batch call is all-or-nothing: either every row in the batch is
// applied or the call fails and nothing is applied.
type Store interface {
	// ReadAll returns the full dataset in a stable order.
	ReadAll(ctx context.Context) ([]row.Row, error)

	// CreateMany inserts rows and returns them with assigned identifiers,
	// aligned with the input order.
	CreateMany(ctx context.Context, fields []row.Fields) ([]row.Row, error)

	// UpdateMany replaces the fields of existing rows, keyed by identifier.
	UpdateMany(ctx context.Context, rows []row.Row) ([]row.Row, error)

	// DeleteMany removes rows by identifier.
	DeleteMany(ctx context.Context, ids []row.ID) error
}

// Op names a batch operation.
type Op string

const (
	OpReadAll    Op = "read_all"
	OpCreateMany Op = "create_many"
	OpUpdateMany Op = "update_many"
	OpDeleteMany Op = "delete_many"
)

var (
	// ErrNotFound is returned when an update or delete names an unknown row.
	ErrNotFound = errors.New("remote: row not found")

	// ErrInvalidBatch is returned for malformed batches (empty or duplicate
	// identifiers, draft rows).
	ErrInvalidBatch = errors.New("remote: invalid batch")
)

// CheckUpdates validates an update batch before it is applied.
func CheckUpdates(rows []row.Row) error {
	seen := make(map[row.ID]struct{}, len(rows))
	for i, r := range rows {
		if r.ID == "" {
			return fmt.Errorf("%w: update[%d] has no identifier", ErrInvalidBatch, i)
		}
		if r.Draft {
			return fmt.Errorf("%w: update[%d] is a draft row %q", ErrInvalidBatch, i, r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate identifier %q", ErrInvalidBatch, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// CheckDeletes validates a delete batch before it is applied.
func CheckDeletes(ids []row.ID) error {
	seen := make(map[row.ID]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: delete[%d] has no identifier", ErrInvalidBatch, i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate identifier %q", ErrInvalidBatch, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// NotFound wraps ErrNotFound with the offending identifier.
func NotFound(id row.ID) error {
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}
