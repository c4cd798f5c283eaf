// Package harness runs scripted editing sessions against the reconciliation
// engine and checks the outcome.
//
// A scenario seeds an in-memory remote store, drives the engine through a
// list of gestures and clock advances, and then asserts on the visible rows,
// the remote rows, row statuses and the trace of remote calls.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: edit_then_save
//	description: "A committed edit is sent as one update"
//	grid: ../../../grids/karyawan.cue   # optional, relative to this file
//	seed:
//	  - {id: 1, name: "A"}
//	steps:
//	  - do: edit
//	    row: "1"
//	    field: name
//	    value: "B"
//	  - do: save
//	    expect: ok
//	assertions:
//	  - type: rows
//	    rows: [{id: 1, name: "B"}]
//	  - type: trace_count
//	    action: update_many
//	    count: 1
//
// # Steps
//
//   - load: re-read the remote store, dropping pending changes
//   - begin_edit: a cell editor opened (cancels autosave)
//   - end_edit: the cell editor closed (re-arms autosave if anything is pending)
//   - edit: commit value into field of row
//   - add: append a draft row
//   - delete: delete row
//   - save, discard: the toolbar buttons
//   - advance: move the fake clock forward by duration
//   - fail, recover: inject or clear a failure of the remote op
//
// The harness loads the dataset before the first step; that read appears in
// the trace as a load step.
//
// # Assertion Types
//
//   - trace_contains: an event with action and matching args (subset) exists
//   - trace_order: actions appear in the given order
//   - trace_count: action appears exactly count times
//   - rows: visible rows, in order, equal rows
//   - remote_rows: rows held by the remote store equal rows
//   - status: row has status (clean, edited, new, deleted)
//   - dirty: the engine reports dirty
//   - pending: creates/updates/deletes the next save would send
//
// # Deterministic Testing
//
// Scenarios run on a fake clock with sequential draft identifiers (new-1,
// new-2, ...) so traces are byte-identical across runs and can be compared
// against golden files.
package harness
