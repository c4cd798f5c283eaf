package remote

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/roach88/gridsync/internal/row"
)

// Call records one batch call made against a MemoryStore.
type Call struct {
	Op      Op
	Creates []row.Fields
	Updates []row.Row
	Deletes []row.ID
	Err     error
}

// MemoryStore is an in-memory Store with integer identifiers, intended for
// tests, the scenario harness and local demos. Failures can be injected per
// operation and every call is recorded.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	rows     []row.Row
	nextID   int64
	failures map[Op]error
	calls    []Call
}

// NewMemoryStore creates a store seeded with rows. New identifiers continue
// after the largest numeric identifier in the seed.
func NewMemoryStore(seed []row.Row) *MemoryStore {
	m := &MemoryStore{nextID: 1, failures: make(map[Op]error)}
	for _, r := range seed {
		r = r.Clone()
		r.Draft = false
		m.rows = append(m.rows, r)
		if n, err := strconv.ParseInt(string(r.ID), 10, 64); err == nil && n >= m.nextID {
			m.nextID = n + 1
		}
	}
	return m
}

// Fail makes every subsequent call of op fail with err until Recover.
func (m *MemoryStore) Fail(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Recover clears an injected failure.
func (m *MemoryStore) Recover(op Op) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, op)
}

// Calls returns the recorded calls in order.
func (m *MemoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// ResetCalls forgets recorded calls.
func (m *MemoryStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Rows returns a copy of the stored rows without recording a call.
func (m *MemoryStore) Rows() []row.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRows(m.rows)
}

// ReadAll implements Store.
func (m *MemoryStore) ReadAll(ctx context.Context) ([]row.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, Call{Op: OpReadAll}); err != nil {
		return nil, err
	}
	return cloneRows(m.rows), nil
}

// CreateMany implements Store.
func (m *MemoryStore) CreateMany(ctx context.Context, fields []row.Fields) ([]row.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Op: OpCreateMany, Creates: cloneFields(fields)}
	if err := m.check(ctx, call); err != nil {
		return nil, err
	}

	created := make([]row.Row, 0, len(fields))
	for _, f := range fields {
		r := row.New(row.ID(strconv.FormatInt(m.nextID, 10)), f.Clone())
		m.nextID++
		m.rows = append(m.rows, r)
		created = append(created, r.Clone())
	}
	return created, nil
}

// UpdateMany implements Store.
func (m *MemoryStore) UpdateMany(ctx context.Context, rows []row.Row) ([]row.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Op: OpUpdateMany, Updates: cloneRows(rows)}
	if err := m.check(ctx, call); err != nil {
		return nil, err
	}
	if err := m.reject(CheckUpdates(rows)); err != nil {
		return nil, err
	}

	positions := make([]int, len(rows))
	for i, r := range rows {
		pos := m.indexOf(r.ID)
		if pos < 0 {
			return nil, m.reject(NotFound(r.ID))
		}
		positions[i] = pos
	}

	updated := make([]row.Row, len(rows))
	for i, r := range rows {
		m.rows[positions[i]] = row.New(r.ID, r.Fields.Clone())
		updated[i] = m.rows[positions[i]].Clone()
	}
	return updated, nil
}

// DeleteMany implements Store.
func (m *MemoryStore) DeleteMany(ctx context.Context, ids []row.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Op: OpDeleteMany, Deletes: append([]row.ID(nil), ids...)}
	if err := m.check(ctx, call); err != nil {
		return err
	}
	if err := m.reject(CheckDeletes(ids)); err != nil {
		return err
	}

	drop := make(map[row.ID]struct{}, len(ids))
	for _, id := range ids {
		if m.indexOf(id) < 0 {
			return m.reject(NotFound(id))
		}
		drop[id] = struct{}{}
	}

	kept := m.rows[:0]
	for _, r := range m.rows {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

// check records the call and returns a context or injected error.
// Must hold m.mu.
func (m *MemoryStore) check(ctx context.Context, call Call) error {
	if err := ctx.Err(); err != nil {
		call.Err = err
		m.calls = append(m.calls, call)
		return err
	}
	if err, ok := m.failures[call.Op]; ok {
		call.Err = fmt.Errorf("%s: %w", call.Op, err)
		m.calls = append(m.calls, call)
		return call.Err
	}
	m.calls = append(m.calls, call)
	return nil
}

// reject marks the last recorded call as failed. Must hold m.mu.
func (m *MemoryStore) reject(err error) error {
	if err == nil {
		return nil
	}
	if n := len(m.calls); n > 0 {
		m.calls[n-1].Err = err
	}
	return err
}

func (m *MemoryStore) indexOf(id row.ID) int {
	for i, r := range m.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func cloneRows(rows []row.Row) []row.Row {
	out := make([]row.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func cloneFields(fields []row.Fields) []row.Fields {
	out := make([]row.Fields, len(fields))
	for i, f := range fields {
		out[i] = f.Clone()
	}
	return out
}
