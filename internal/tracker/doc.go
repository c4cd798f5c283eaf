// Package tracker records local mutations to the dataset between saves.
//
// The tracker holds four collections:
//   - baseline: the last persisted value of each edited row, captured once
//     on first edit
//   - edits: the latest value of each edited persisted row
//   - creations: draft rows awaiting creation, edited in place
//   - deletions: identifiers of persisted rows marked for removal
//
// Invariants:
//   - an identifier is never in both edits and creations
//   - baseline[id] exists iff edits[id] exists
//   - deletions never holds a draft identifier
//
// Row status is derived from membership (see Status), never stored.
//
// Every mutation is stamped with a generation number. A Snapshot remembers
// the generation it was taken at, so Commit can drop exactly what a save
// carried while keeping anything recorded during the save.
//
// Tracker is not safe for concurrent use; the engine serializes access.
package tracker
