// Package engine implements the gridsync edit buffer and reconciliation
// engine.
//
// The engine owns the visible rows (table.Table), the pending changes
// (tracker.Tracker) and a debounce timer (Scheduler). View gestures mutate
// the tracker and the table; a save turns the tracker into three batch
// calls against a remote.Store and refreshes the table from a full read.
//
// ARCHITECTURE:
//
// Gesture Flow:
//  1. OnCellCommitted records the edit, updates the row and re-arms autosave
//  2. The scheduler fires after a quiet window (DefaultAutosaveDelay)
//  3. Save snapshots the tracker and issues create, update, delete in order
//  4. On success the table is replaced by a fresh ReadAll and the snapshot
//     is committed out of the tracker
//  5. On failure nothing local changes and the save can be retried
//
// Saving Flag:
// Save sets the saving flag under the engine mutex before the first remote
// call. Gestures arriving while a save is in flight are still recorded; they
// survive the commit and are laid back over the refreshed rows, so the next
// save picks them up.
//
// Locking:
// One mutex guards the tracker, the table and the saving flag. It is never
// held across a remote call. Lock order is Engine.mu then Scheduler.mu, and
// the scheduler never calls back into the engine while holding its own lock.
//
// Remote calls within one save are strictly sequential: creates, then
// updates, then deletes, then the refresh read. The first failure aborts the
// rest of the pass.
package engine
