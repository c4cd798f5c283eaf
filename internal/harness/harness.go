package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
	"github.com/roach88/gridsync/internal/schema"
	"github.com/roach88/gridsync/internal/testutil"
)

// ErrInjected is the error returned by remote operations made to fail with
// a fail step.
var ErrInjected = errors.New("injected failure")

// Harness is the scenario execution engine.
// It drives one engine over an in-memory store on a fake clock.
type Harness struct {
	store   *remote.MemoryStore
	engine  *engine.Engine
	clock   *testutil.FakeClock
	idField string
	result  *Result
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store seeded from the
// scenario. Execution flow:
//  1. Load the grid definition, if any
//  2. Seed the store and load the engine
//  3. Execute steps, checking step expectations
//  4. Evaluate assertions
//
// Returned errors are harness failures (bad grid, bad seed); scenario
// failures are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	grid := &schema.Grid{IDField: "id", Autosave: engine.DefaultAutosaveDelay}
	if scenario.Grid != "" {
		g, err := schema.Load(scenario.Grid)
		if err != nil {
			return nil, fmt.Errorf("failed to load grid: %w", err)
		}
		grid = g
	}

	seed, err := seedRows(scenario.Seed, grid.IDField)
	if err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	h := &Harness{
		store:   remote.NewMemoryStore(seed),
		clock:   testutil.NewFakeClock(),
		idField: grid.IDField,
		result:  NewResult(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.engine = engine.New(&tracingStore{inner: h.store, result: h.result},
		engine.WithClock(h.clock),
		engine.WithAutosaveDelay(grid.Autosave),
		engine.WithDraftIDs(testutil.NewSequenceGenerator("")),
		engine.WithDraftDefaults(grid.Defaults()),
		engine.WithNotifier(engine.NotifierFuncs{
			OnSucceeded: func() {
				i := h.result.addEvent(KindNotify, "save_succeeded", nil)
				h.result.Trace[i].Outcome = outcome(nil)
			},
			OnFailed: func(err error) {
				i := h.result.addEvent(KindNotify, "save_failed", nil)
				h.result.Trace[i].Outcome = outcome(err)
			},
		}),
		engine.WithLogger(h.logger),
	)

	ctx := context.Background()

	if err := h.executeStep(ctx, -1, Step{Do: StepLoad, Expect: "ok"}); err != nil {
		return nil, err
	}
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, err
		}
	}

	h.result.State["rows"] = flattenRows(h.engine.Rows(), h.idField)
	h.result.State["remote_rows"] = flattenRows(h.store.Rows(), h.idField)

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, &AssertionContext{
		Engine:  h.engine,
		Store:   h.store,
		IDField: h.idField,
	}) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// executeStep runs one step and records it in the trace. Remote calls and
// notifications caused by the step follow it in the trace.
func (h *Harness) executeStep(ctx context.Context, index int, step Step) error {
	idx := h.result.addEvent(KindStep, step.Do, stepArgs(step))

	var err error
	switch step.Do {
	case StepLoad:
		err = h.engine.Load(ctx)
	case StepBeginEdit:
		h.engine.OnCellEditStarted()
	case StepEndEdit:
		h.engine.OnCellEditStopped()
	case StepEdit:
		err = h.edit(step)
	case StepAdd:
		var draft row.Row
		draft, err = h.engine.OnRowAddRequested()
		if err == nil {
			h.result.Trace[idx].Args = map[string]any{"row": string(draft.ID)}
		}
	case StepDelete:
		err = h.engine.OnRowDeleteRequested(row.ID(step.Row))
	case StepSave:
		err = h.engine.OnSaveRequested(ctx)
	case StepDiscard:
		err = h.engine.OnDiscardRequested()
	case StepAdvance:
		d, perr := time.ParseDuration(step.Duration)
		if perr != nil {
			return fmt.Errorf("step %d: %w", index, perr)
		}
		h.clock.Advance(d)
	case StepFail:
		h.store.Fail(remote.Op(step.Op), ErrInjected)
	case StepRecover:
		h.store.Recover(remote.Op(step.Op))
	default:
		return fmt.Errorf("step %d: unknown step %q", index, step.Do)
	}

	got := outcome(err)
	h.result.Trace[idx].Outcome = got
	if step.Expect != "" && step.Expect != got {
		h.result.AddError(fmt.Sprintf("step %d (%s): expected outcome %q, got %q", index, step.Do, step.Expect, got))
	}

	h.logger.Info("step completed", "step", index, "do", step.Do, "outcome", got)
	return nil
}

// edit commits a single cell the way a grid cell editor does.
func (h *Harness) edit(step Step) error {
	v, err := row.FromAny(step.Value)
	if err != nil {
		return err
	}
	id := row.ID(step.Row)
	cur, ok := h.engine.Row(id)
	if !ok {
		return h.engine.OnCellCommitted(id, row.Row{Fields: row.Fields{step.Field: v}}, row.Row{})
	}
	return h.engine.OnCellCommitted(id, cur.With(step.Field, v), cur)
}

func stepArgs(step Step) map[string]any {
	switch step.Do {
	case StepEdit:
		v, err := row.FromAny(step.Value)
		if err != nil {
			return map[string]any{"row": step.Row, "field": step.Field}
		}
		return map[string]any{"row": step.Row, "field": step.Field, "value": v}
	case StepDelete:
		return map[string]any{"row": step.Row}
	case StepAdvance:
		return map[string]any{"duration": step.Duration}
	case StepFail, StepRecover:
		return map[string]any{"op": step.Op}
	}
	return nil
}

// outcome classifies an error for traces and step expectations.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, engine.ErrConcurrentSaveIgnored):
		return "concurrent_save_ignored"
	case errors.Is(err, engine.ErrSaveInProgress):
		return "save_in_progress"
	case errors.Is(err, engine.ErrUnknownRow):
		return "unknown_row"
	}
	if op, ok := engine.RemoteOp(err); ok {
		return "remote_error:" + string(op)
	}
	switch {
	case errors.Is(err, ErrInjected):
		return "injected_failure"
	case errors.Is(err, remote.ErrNotFound):
		return "not_found"
	case errors.Is(err, remote.ErrInvalidBatch):
		return "invalid_batch"
	}
	return "error"
}

func seedRows(seed []map[string]any, idField string) ([]row.Row, error) {
	rows := make([]row.Row, 0, len(seed))
	for i, m := range seed {
		r, err := rowFromMap(m, idField)
		if err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// rowFromMap splits a flat YAML row into identifier and fields.
func rowFromMap(m map[string]any, idField string) (row.Row, error) {
	rawID, ok := m[idField]
	if !ok {
		return row.Row{}, fmt.Errorf("missing id field %q", idField)
	}
	idVal, err := row.FromAny(rawID)
	if err != nil {
		return row.Row{}, fmt.Errorf("id field %q: %w", idField, err)
	}

	rest := make(map[string]any, len(m))
	for k, v := range m {
		if k != idField {
			rest[k] = v
		}
	}
	fields, err := row.FieldsFromMap(rest)
	if err != nil {
		return row.Row{}, err
	}
	return row.New(row.ID(row.Text(idVal)), fields), nil
}

func flattenRows(rows []row.Row, idField string) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		obj := make(map[string]any, len(r.Fields)+1)
		for k, v := range r.Fields {
			obj[k] = row.Native(v)
		}
		obj[idField] = string(r.ID)
		out[i] = obj
	}
	return out
}

// tracingStore records every remote call in the result trace.
type tracingStore struct {
	inner  remote.Store
	result *Result
}

func (s *tracingStore) ReadAll(ctx context.Context) ([]row.Row, error) {
	idx := s.result.addEvent(KindCall, string(remote.OpReadAll), nil)
	rows, err := s.inner.ReadAll(ctx)
	if err == nil {
		s.result.Trace[idx].Args = map[string]any{"count": len(rows)}
	}
	s.result.Trace[idx].Outcome = outcome(err)
	return rows, err
}

func (s *tracingStore) CreateMany(ctx context.Context, fields []row.Fields) ([]row.Row, error) {
	idx := s.result.addEvent(KindCall, string(remote.OpCreateMany), map[string]any{"count": len(fields)})
	rows, err := s.inner.CreateMany(ctx, fields)
	if err == nil {
		s.result.Trace[idx].Args["rows"] = rowIDs(rows)
	}
	s.result.Trace[idx].Outcome = outcome(err)
	return rows, err
}

func (s *tracingStore) UpdateMany(ctx context.Context, rows []row.Row) ([]row.Row, error) {
	idx := s.result.addEvent(KindCall, string(remote.OpUpdateMany), map[string]any{
		"count": len(rows),
		"rows":  rowIDs(rows),
	})
	updated, err := s.inner.UpdateMany(ctx, rows)
	s.result.Trace[idx].Outcome = outcome(err)
	return updated, err
}

func (s *tracingStore) DeleteMany(ctx context.Context, ids []row.ID) error {
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = string(id)
	}
	idx := s.result.addEvent(KindCall, string(remote.OpDeleteMany), map[string]any{
		"count": len(ids),
		"rows":  list,
	})
	err := s.inner.DeleteMany(ctx, ids)
	s.result.Trace[idx].Outcome = outcome(err)
	return err
}

func rowIDs(rows []row.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = string(r.ID)
	}
	return out
}
