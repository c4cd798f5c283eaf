package tracker

import "github.com/roach88/gridsync/internal/row"

// Snapshot is an immutable copy of the pending changes, shaped as the three
// batch payloads a save sends.
type Snapshot struct {
	// Creates holds creation payloads: draft fields without placeholder
	// identifier or draft flag, in creation order.
	Creates []row.Fields

	// Updates holds full current rows for edited persisted rows, in
	// first-edit order, excluding rows also marked for deletion.
	Updates []row.Row

	// Deletes holds identifiers of persisted rows to remove, in the order
	// they were marked.
	Deletes []row.ID

	gen      uint64
	draftIDs []row.ID
}

// Empty reports whether the snapshot carries no change at all.
func (s Snapshot) Empty() bool {
	return len(s.Creates) == 0 && len(s.Updates) == 0 && len(s.Deletes) == 0
}

// DraftIDs returns the placeholder identifiers of the drafts behind Creates,
// aligned by index.
func (s Snapshot) DraftIDs() []row.ID {
	return append([]row.ID(nil), s.draftIDs...)
}

// Counts summarizes pending work.
type Counts struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}
