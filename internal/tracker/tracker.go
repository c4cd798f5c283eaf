package tracker

import (
	"slices"

	"github.com/roach88/gridsync/internal/row"
)

type entry struct {
	row row.Row
	gen uint64
}

// Tracker is the per-row diff state between the Row Store and the remote
// store.
type Tracker struct {
	gen uint64

	baseline  map[row.ID]row.Row
	edits     map[row.ID]entry
	editOrder []row.ID

	creations []entry

	deletions   map[row.ID]uint64
	deleteOrder []row.ID
}

// New creates an empty tracker.
func New() *Tracker {
	t := &Tracker{}
	t.Clear()
	return t
}

// RecordEdit records newRow as the latest value of rowID.
//
// If oldRow is a draft, the matching creation is replaced in place and the
// row never enters edits. Otherwise edits[rowID] is set and, on the first
// edit since the last save or load, oldRow becomes the baseline.
func (t *Tracker) RecordEdit(rowID row.ID, newRow, oldRow row.Row) {
	gen := t.next()

	if oldRow.Draft {
		if i := t.creationIndex(rowID); i >= 0 {
			r := newRow.Clone()
			r.ID = rowID
			r.Draft = true
			t.creations[i] = entry{row: r, gen: gen}
		}
		return
	}

	r := newRow.Clone()
	r.ID = rowID
	r.Draft = false
	if _, ok := t.edits[rowID]; !ok {
		t.editOrder = append(t.editOrder, rowID)
	}
	t.edits[rowID] = entry{row: r, gen: gen}
	if _, ok := t.baseline[rowID]; !ok {
		base := oldRow.Clone()
		base.ID = rowID
		t.baseline[rowID] = base
	}
}

// RecordDelete marks rowID for removal. A draft is dropped from creations
// instead and never reaches the deletion batch. Marking an already deleted
// row again is a no-op.
func (t *Tracker) RecordDelete(rowID row.ID) {
	gen := t.next()

	if i := t.creationIndex(rowID); i >= 0 {
		t.creations = slices.Delete(t.creations, i, i+1)
		t.dropEdit(rowID)
		return
	}

	if _, ok := t.deletions[rowID]; ok {
		return
	}
	t.deletions[rowID] = gen
	t.deleteOrder = append(t.deleteOrder, rowID)
}

// RecordCreate appends a draft row to the pending creations.
func (t *Tracker) RecordCreate(draft row.Row) {
	r := draft.Clone()
	r.Draft = true
	t.creations = append(t.creations, entry{row: r, gen: t.next()})
}

// IsDirty reports whether any edit, creation or deletion is pending.
func (t *Tracker) IsDirty() bool {
	return len(t.edits) > 0 || len(t.creations) > 0 || len(t.deletions) > 0
}

// Status derives the status of a row from tracker membership.
// Deleted wins over edited.
func (t *Tracker) Status(rowID row.ID) Status {
	if _, ok := t.deletions[rowID]; ok {
		return StatusDeleted
	}
	if t.creationIndex(rowID) >= 0 {
		return StatusNew
	}
	if _, ok := t.edits[rowID]; ok {
		return StatusEdited
	}
	return StatusClean
}

// IsDraft reports whether rowID is a pending creation.
func (t *Tracker) IsDraft(rowID row.ID) bool {
	return t.creationIndex(rowID) >= 0
}

// SnapshotForSave copies the pending changes into batch payloads.
// Edited rows that are also marked for deletion are left out of Updates.
func (t *Tracker) SnapshotForSave() Snapshot {
	snap := Snapshot{gen: t.gen}

	for _, c := range t.creations {
		snap.Creates = append(snap.Creates, c.row.Fields.Clone())
		snap.draftIDs = append(snap.draftIDs, c.row.ID)
	}
	for _, id := range t.editOrder {
		if _, deleted := t.deletions[id]; deleted {
			continue
		}
		snap.Updates = append(snap.Updates, t.edits[id].row.Clone())
	}
	snap.Deletes = append(snap.Deletes, t.deleteOrder...)

	return snap
}

// Pending returns the sizes of the batches the next save would send.
func (t *Tracker) Pending() Counts {
	updates := 0
	for id := range t.edits {
		if _, deleted := t.deletions[id]; !deleted {
			updates++
		}
	}
	return Counts{
		Creates: len(t.creations),
		Updates: updates,
		Deletes: len(t.deletions),
	}
}

// Clear resets all pending state.
func (t *Tracker) Clear() {
	t.baseline = make(map[row.ID]row.Row)
	t.edits = make(map[row.ID]entry)
	t.editOrder = nil
	t.creations = nil
	t.deletions = make(map[row.ID]uint64)
	t.deleteOrder = nil
}

// Mark returns a stamp that orders every change recorded so far before any
// later one. Pass it to ClearThrough.
func (t *Tracker) Mark() uint64 {
	return t.gen
}

// ClearThrough drops the changes recorded at or before mark and keeps the
// later ones. ClearThrough(Mark()) is Clear.
func (t *Tracker) ClearThrough(mark uint64) {
	for _, id := range slices.Clone(t.editOrder) {
		if t.edits[id].gen <= mark {
			t.dropEdit(id)
		}
	}
	t.creations = slices.DeleteFunc(t.creations, func(c entry) bool {
		return c.gen <= mark
	})
	for _, id := range slices.Clone(t.deleteOrder) {
		if t.deletions[id] <= mark {
			delete(t.deletions, id)
			t.deleteOrder = removeID(t.deleteOrder, id)
		}
	}
}

// RollbackTargets returns the baseline rows to restore on discard, in
// first-edit order.
func (t *Tracker) RollbackTargets() []row.Row {
	out := make([]row.Row, 0, len(t.baseline))
	for _, id := range t.editOrder {
		if base, ok := t.baseline[id]; ok {
			out = append(out, base.Clone())
		}
	}
	return out
}

// Edits returns the pending edited rows in first-edit order, including rows
// also marked for deletion.
func (t *Tracker) Edits() []row.Row {
	out := make([]row.Row, 0, len(t.editOrder))
	for _, id := range t.editOrder {
		out = append(out, t.edits[id].row.Clone())
	}
	return out
}

// Drafts returns the pending draft rows in creation order.
func (t *Tracker) Drafts() []row.Row {
	out := make([]row.Row, 0, len(t.creations))
	for _, c := range t.creations {
		out = append(out, c.row.Clone())
	}
	return out
}

// Commit removes the changes carried by a successfully applied snapshot.
//
// created holds the rows returned by the remote store for snap.Creates,
// aligned by index; it may be shorter or nil. Changes recorded after the
// snapshot was taken are kept:
//   - an edit made during the save stays pending, with the saved value as
//     its new baseline
//   - a draft edited during the save becomes an edit of the created row
//   - a draft deleted during the save becomes a deletion of the created row
//   - a draft edited during the save with no created row to attach the edit
//     to stays a pending creation
//   - anything recorded after the snapshot is untouched
//
// With no gesture during the save, Commit leaves the tracker empty.
func (t *Tracker) Commit(snap Snapshot, created []row.Row) {
	for _, id := range snap.Deletes {
		if _, ok := t.deletions[id]; ok {
			delete(t.deletions, id)
			t.deleteOrder = removeID(t.deleteOrder, id)
		}
		t.dropEdit(id)
	}

	for _, saved := range snap.Updates {
		e, ok := t.edits[saved.ID]
		if !ok {
			continue
		}
		if e.gen <= snap.gen {
			t.dropEdit(saved.ID)
			continue
		}
		t.baseline[saved.ID] = saved.Clone()
	}

	for i, draftID := range snap.draftIDs {
		var persisted *row.Row
		if i < len(created) {
			persisted = &created[i]
		}

		idx := t.creationIndex(draftID)
		if idx < 0 {
			// Deleted locally while its creation was in flight.
			if persisted != nil {
				t.markDeleted(persisted.ID)
			}
			continue
		}

		c := t.creations[idx]
		if c.gen > snap.gen && persisted == nil {
			continue
		}
		t.creations = slices.Delete(t.creations, idx, idx+1)
		if c.gen <= snap.gen {
			continue
		}

		latest := row.New(persisted.ID, c.row.Fields.Clone())
		if _, ok := t.edits[persisted.ID]; !ok {
			t.editOrder = append(t.editOrder, persisted.ID)
		}
		t.edits[persisted.ID] = entry{row: latest, gen: c.gen}
		t.baseline[persisted.ID] = persisted.Clone()
	}
}

func (t *Tracker) markDeleted(id row.ID) {
	if _, ok := t.deletions[id]; ok {
		return
	}
	t.deletions[id] = t.next()
	t.deleteOrder = append(t.deleteOrder, id)
}

func (t *Tracker) dropEdit(id row.ID) {
	if _, ok := t.edits[id]; !ok {
		delete(t.baseline, id)
		return
	}
	delete(t.edits, id)
	delete(t.baseline, id)
	t.editOrder = removeID(t.editOrder, id)
}

func (t *Tracker) creationIndex(id row.ID) int {
	for i, c := range t.creations {
		if c.row.ID == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) next() uint64 {
	t.gen++
	return t.gen
}

func removeID(ids []row.ID, id row.ID) []row.ID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
