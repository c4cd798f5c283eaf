// Package table holds the visible dataset: an ordered collection of rows
// addressed by identifier.
//
// Table is not safe for concurrent use. The engine owns one Table and
// guards it with its own mutex.
package table

import (
	"fmt"

	"github.com/roach88/gridsync/internal/row"
)

// Table is the ordered row store backing the view.
type Table struct {
	rows  []row.Row
	index map[row.ID]int
}

// New creates a table holding copies of the given rows in order.
func New(rows []row.Row) *Table {
	t := &Table{}
	t.Replace(rows)
	return t
}

// Replace discards the current contents and loads rows in order.
// Rows with duplicate identifiers keep the last occurrence's value at the
// first occurrence's position.
func (t *Table) Replace(rows []row.Row) {
	t.rows = make([]row.Row, 0, len(rows))
	t.index = make(map[row.ID]int, len(rows))
	for _, r := range rows {
		if i, ok := t.index[r.ID]; ok {
			t.rows[i] = r.Clone()
			continue
		}
		t.index[r.ID] = len(t.rows)
		t.rows = append(t.rows, r.Clone())
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a deep copy of the rows in display order.
func (t *Table) Rows() []row.Row {
	out := make([]row.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Get returns a copy of the row with the given identifier.
func (t *Table) Get(id row.ID) (row.Row, bool) {
	i, ok := t.index[id]
	if !ok {
		return row.Row{}, false
	}
	return t.rows[i].Clone(), true
}

// Has reports whether a row with the given identifier is present.
func (t *Table) Has(id row.ID) bool {
	_, ok := t.index[id]
	return ok
}

// Put replaces the row with the same identifier in place.
// Returns an error if no such row exists.
func (t *Table) Put(r row.Row) error {
	i, ok := t.index[r.ID]
	if !ok {
		return fmt.Errorf("table: row %q not found", r.ID)
	}
	t.rows[i] = r.Clone()
	return nil
}

// Append adds a row at the end of the table.
// Returns an error if the identifier is already present.
func (t *Table) Append(r row.Row) error {
	if _, ok := t.index[r.ID]; ok {
		return fmt.Errorf("table: row %q already exists", r.ID)
	}
	t.index[r.ID] = len(t.rows)
	t.rows = append(t.rows, r.Clone())
	return nil
}

// Remove deletes the row with the given identifier, preserving the order of
// the remaining rows. Reports whether a row was removed.
func (t *Table) Remove(id row.ID) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	t.reindex()
	return true
}

// RemoveDrafts deletes every draft row and returns how many were removed.
func (t *Table) RemoveDrafts() int {
	kept := t.rows[:0]
	removed := 0
	for _, r := range t.rows {
		if r.Draft {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	// Clear the tail so dropped rows can be collected.
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = row.Row{}
	}
	t.rows = kept
	if removed > 0 {
		t.reindex()
	}
	return removed
}

func (t *Table) reindex() {
	t.index = make(map[row.ID]int, len(t.rows))
	for i, r := range t.rows {
		t.index[r.ID] = i
	}
}
