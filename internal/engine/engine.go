package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
	"github.com/roach88/gridsync/internal/table"
	"github.com/roach88/gridsync/internal/tracker"
)

// Engine is the edit buffer between a grid view and a remote store.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - remote calls run without the engine lock, one at a time per save
//   - notifications are delivered after the lock is released
//
// INVARIANTS:
//   - the saving flag is set before the first remote call of a save
//   - the tracker is never cleared by a failed save
//   - drafts live in the table and in the tracker's creations, nowhere else
type Engine struct {
	mu sync.Mutex

	store   remote.Store
	table   *table.Table
	tracker *tracker.Tracker
	sched   *Scheduler

	saving bool
	rearm  bool // autosave requested during the current save

	clock    Clock
	delay    time.Duration
	notifier Notifier
	logger   *slog.Logger
	draftIDs DraftIDGenerator
	defaults row.Fields
	baseCtx  context.Context
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock driving autosave. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithAutosaveDelay sets the quiet window before an autosave.
//
// Default: 5s (DefaultAutosaveDelay)
func WithAutosaveDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithNotifier sets the receiver of save outcomes.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDraftIDs sets the placeholder identifier source for new rows.
// Default: UUIDv7Generator.
func WithDraftIDs(g DraftIDGenerator) Option {
	return func(e *Engine) {
		e.draftIDs = g
	}
}

// WithDraftDefaults sets the field values a new row starts with.
func WithDraftDefaults(fields row.Fields) Option {
	return func(e *Engine) {
		e.defaults = fields.Clone()
	}
}

// WithBaseContext sets the context autosaves run under.
// Default: context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.baseCtx = ctx
	}
}

// New creates an engine over store with an empty table.
// Call Load to fetch the initial rows.
func New(store remote.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		table:    table.New(nil),
		tracker:  tracker.New(),
		clock:    SystemClock{},
		delay:    DefaultAutosaveDelay,
		notifier: NopNotifier{},
		logger:   slog.Default(),
		draftIDs: UUIDv7Generator{},
		baseCtx:  context.Background(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.sched = NewScheduler(e.clock, e.delay, e.autosave)
	return e
}

// Load replaces the table with a full read of the remote store and drops
// the changes pending when it was called. Gestures recorded while the read
// is in flight stay pending and are laid over the fresh rows.
// Returns ErrSaveInProgress while a save is in flight.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	busy := e.saving
	mark := e.tracker.Mark()
	e.mu.Unlock()
	if busy {
		return ErrSaveInProgress
	}

	rows, err := e.store.ReadAll(ctx)
	if err != nil {
		return &RemoteError{Op: remote.OpReadAll, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.saving {
		return ErrSaveInProgress
	}
	e.tracker.ClearThrough(mark)
	e.table.Replace(rows)
	e.overlayPending()
	if e.tracker.IsDirty() {
		e.sched.Arm()
	} else {
		e.sched.Cancel()
	}

	e.logger.Debug("rows loaded", "count", len(rows), "pending", e.tracker.IsDirty())
	return nil
}

// OnCellEditStarted cancels a pending autosave so it cannot fire while a
// cell is being edited.
func (e *Engine) OnCellEditStarted() {
	e.sched.Cancel()
}

// OnCellEditStopped ends a cell edit, committed or not. Pending changes
// get a fresh autosave window; with nothing pending it does nothing. While
// a save is in flight the window opens once that save succeeds.
func (e *Engine) OnCellEditStopped() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.tracker.IsDirty() {
		return
	}
	if e.saving {
		e.rearm = true
		return
	}
	e.sched.Arm()
}

// OnCellCommitted records a committed cell edit and re-arms autosave.
//
// newRow becomes the visible value of rowID. oldRow is the value before the
// edit; it becomes the baseline on the first edit since the last save. A
// zero oldRow falls back to the current table row.
func (e *Engine) OnCellCommitted(rowID row.ID, newRow, oldRow row.Row) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.table.Get(rowID)
	if !ok {
		return fmt.Errorf("commit cell on row %q: %w", rowID, ErrUnknownRow)
	}
	if oldRow.Fields == nil {
		oldRow = cur
	}
	oldRow.ID = rowID
	oldRow.Draft = e.tracker.IsDraft(rowID)

	next := newRow.Clone()
	next.ID = rowID
	next.Draft = cur.Draft

	e.tracker.RecordEdit(rowID, next, oldRow)
	if err := e.table.Put(next); err != nil {
		return fmt.Errorf("commit cell on row %q: %w", rowID, err)
	}

	e.sched.Arm()
	return nil
}

// OnRowDeleteRequested marks rowID for deletion.
//
// A draft is forgotten outright and leaves the table. A persisted row stays
// visible with StatusDeleted until the next save removes it.
func (e *Engine) OnRowDeleteRequested(rowID row.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.table.Has(rowID) {
		return fmt.Errorf("delete row %q: %w", rowID, ErrUnknownRow)
	}

	draft := e.tracker.IsDraft(rowID)
	e.tracker.RecordDelete(rowID)
	if draft {
		e.table.Remove(rowID)
	}
	return nil
}

// OnRowAddRequested appends a draft row filled with the draft defaults and
// returns it.
func (e *Engine) OnRowAddRequested() (row.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fields := e.defaults.Clone()
	if fields == nil {
		fields = row.Fields{}
	}
	draft := row.NewDraft(row.ID(e.draftIDs.Generate()), fields)

	if err := e.table.Append(draft); err != nil {
		return row.Row{}, fmt.Errorf("add row: %w", err)
	}
	e.tracker.RecordCreate(draft)
	return draft.Clone(), nil
}

// OnSaveRequested cancels the autosave timer and saves immediately.
func (e *Engine) OnSaveRequested(ctx context.Context) error {
	e.sched.Cancel()
	return e.Save(ctx)
}

// OnDiscardRequested drops all pending changes.
func (e *Engine) OnDiscardRequested() error {
	return e.Discard()
}

// Save reconciles pending changes with the remote store.
//
// Returns nil without any remote call when nothing is pending, and
// ErrConcurrentSaveIgnored when another save is in flight. A failed batch
// or refresh read is returned as a *RemoteError and leaves the tracker and
// the table as they were.
func (e *Engine) Save(ctx context.Context) error {
	return e.save(ctx, triggerExplicit)
}

// Discard restores every edited row to its baseline, removes drafts, clears
// all pending state and cancels autosave.
// Returns ErrSaveInProgress while a save is in flight.
func (e *Engine) Discard() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.saving {
		return ErrSaveInProgress
	}

	e.sched.Cancel()
	restored := 0
	for _, base := range e.tracker.RollbackTargets() {
		if e.table.Has(base.ID) {
			_ = e.table.Put(base)
			restored++
		}
	}
	drafts := e.table.RemoveDrafts()
	e.tracker.Clear()

	e.logger.Debug("changes discarded", "restored", restored, "drafts", drafts)
	return nil
}

// RowStatus returns the pending status of a row.
func (e *Engine) RowStatus(rowID row.ID) tracker.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Status(rowID)
}

// Rows returns a copy of the visible rows in display order.
func (e *Engine) Rows() []row.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Rows()
}

// Row returns a copy of one visible row.
func (e *Engine) Row(rowID row.ID) (row.Row, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Get(rowID)
}

// IsDirty reports whether any change is pending.
func (e *Engine) IsDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.IsDirty()
}

// Saving reports whether a save is in flight.
func (e *Engine) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// CanSave reports whether a save would send anything.
func (e *Engine) CanSave() bool {
	return e.IsDirty()
}

// CanDiscard reports whether Discard would change anything and is allowed.
func (e *Engine) CanDiscard() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.IsDirty() && !e.saving
}

// Pending returns the sizes of the batches the next save would send.
func (e *Engine) Pending() tracker.Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Pending()
}

// AutosavePending reports whether an autosave is armed.
func (e *Engine) AutosavePending() bool {
	return e.sched.Pending()
}

type saveTrigger string

const (
	triggerExplicit saveTrigger = "explicit"
	triggerAutosave saveTrigger = "autosave"
)

func (e *Engine) autosave() {
	if err := e.save(e.baseCtx, triggerAutosave); err != nil {
		e.logger.Warn("autosave failed", "error", err)
	}
}

func (e *Engine) save(ctx context.Context, trigger saveTrigger) error {
	e.mu.Lock()
	if e.saving {
		if trigger == triggerAutosave {
			e.rearm = true
			e.mu.Unlock()
			e.logger.Debug("autosave coalesced into next cycle")
			return nil
		}
		e.mu.Unlock()
		return ErrConcurrentSaveIgnored
	}
	if !e.tracker.IsDirty() {
		e.mu.Unlock()
		return nil
	}
	e.saving = true
	snap := e.tracker.SnapshotForSave()
	e.mu.Unlock()

	e.logger.Info("save started",
		"trigger", trigger,
		"creates", len(snap.Creates),
		"updates", len(snap.Updates),
		"deletes", len(snap.Deletes),
	)

	created, err := e.apply(ctx, snap)
	var fresh []row.Row
	if err == nil {
		fresh, err = e.store.ReadAll(ctx)
		if err != nil {
			err = &RemoteError{Op: remote.OpReadAll, Err: err}
		}
	}

	if err == nil && len(created) != len(snap.Creates) {
		e.logger.Warn("store returned fewer created rows than requested",
			"requested", len(snap.Creates),
			"returned", len(created),
		)
	}

	e.mu.Lock()
	e.saving = false
	if err == nil {
		e.tracker.Commit(snap, created)
		e.table.Replace(fresh)
		e.overlayPending()
	}
	// A failed save is never retried on a timer; the next commit or edit
	// stop arms autosave again.
	if e.rearm {
		e.rearm = false
		if err == nil && e.tracker.IsDirty() {
			e.sched.Arm()
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("save failed", "trigger", trigger, "error", err)
		e.notifier.SaveFailed(err)
		return err
	}

	e.logger.Info("save succeeded", "trigger", trigger, "rows", len(fresh))
	e.notifier.SaveSucceeded()
	return nil
}

// apply issues the three batches in order and returns the created rows.
// The first failure aborts the rest.
func (e *Engine) apply(ctx context.Context, snap tracker.Snapshot) ([]row.Row, error) {
	var created []row.Row

	if n := len(snap.Creates); n > 0 {
		rows, err := e.store.CreateMany(ctx, snap.Creates)
		if err != nil {
			return nil, &RemoteError{Op: remote.OpCreateMany, Count: n, Err: err}
		}
		created = rows
	}

	if n := len(snap.Updates); n > 0 {
		if _, err := e.store.UpdateMany(ctx, snap.Updates); err != nil {
			return nil, &RemoteError{Op: remote.OpUpdateMany, Count: n, Err: err}
		}
	}

	if n := len(snap.Deletes); n > 0 {
		if err := e.store.DeleteMany(ctx, snap.Deletes); err != nil {
			return nil, &RemoteError{Op: remote.OpDeleteMany, Count: n, Err: err}
		}
	}

	return created, nil
}

// overlayPending lays changes still held by the tracker over freshly loaded
// rows. Must hold e.mu.
func (e *Engine) overlayPending() {
	for _, r := range e.tracker.Edits() {
		if e.table.Has(r.ID) {
			_ = e.table.Put(r)
		}
	}
	for _, d := range e.tracker.Drafts() {
		if !e.table.Has(d.ID) {
			_ = e.table.Append(d)
		}
	}
}
