package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Nothing pending, save is a no-op",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps:       []Step{{Do: StepSave, Expect: "ok"}},
		Assertions:  []Assertion{{Type: AssertDirty, Dirty: boolPtr(false)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, "load", result.Trace[0].Action)
	assert.Equal(t, "read_all", result.Trace[1].Action)
	assert.Equal(t, KindCall, result.Trace[1].Kind)
	assert.Equal(t, "save", result.Trace[2].Action)
	assert.Equal(t, int64(3), result.Trace[2].Seq)

	assert.Equal(t, []any{map[string]any{"id": "1", "name": "A"}}, result.State["rows"])
	assert.Equal(t, result.State["rows"], result.State["remote_rows"])
}

func TestRun_StepExpectationMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Save succeeds but failure was expected",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps: []Step{
			{Do: StepEdit, Row: "1", Field: "name", Value: "B"},
			{Do: StepSave, Expect: "remote_error:update_many"},
		},
		Assertions: []Assertion{{Type: AssertDirty, Dirty: boolPtr(false)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected outcome "remote_error:update_many", got "ok"`)
}

func TestRun_UnknownRowOutcome(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_row",
		Description: "Edits and deletes of missing rows are rejected",
		Steps: []Step{
			{Do: StepEdit, Row: "9", Field: "name", Value: "B", Expect: "unknown_row"},
			{Do: StepDelete, Row: "9", Expect: "unknown_row"},
		},
		Assertions: []Assertion{{Type: AssertDirty, Dirty: boolPtr(false)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_LoadFailureThenRecover(t *testing.T) {
	scenario := &Scenario{
		Name:        "load_failure",
		Description: "A failed reload keeps the current rows",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps: []Step{
			{Do: StepFail, Op: "read_all"},
			{Do: StepLoad, Expect: "remote_error:read_all"},
			{Do: StepRecover, Op: "read_all"},
			{Do: StepLoad, Expect: "ok"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: "read_all", Count: 3},
			{Type: AssertRows, Rows: []map[string]any{{"id": 1, "name": "A"}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RefreshFailureKeepsChanges(t *testing.T) {
	scenario := &Scenario{
		Name:        "refresh_failure",
		Description: "Batches succeed but the refresh read fails",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps: []Step{
			{Do: StepEdit, Row: "1", Field: "name", Value: "B"},
			{Do: StepFail, Op: "read_all"},
			{Do: StepSave, Expect: "remote_error:read_all"},
		},
		Assertions: []Assertion{
			{Type: AssertRemoteRows, Rows: []map[string]any{{"id": 1, "name": "B"}}},
			{Type: AssertStatus, Row: "1", Status: "edited"},
			{Type: AssertTraceContains, Action: "save_failed"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_EditStartCancelsAutosave(t *testing.T) {
	scenario := &Scenario{
		Name:        "edit_start",
		Description: "Opening an editor holds the autosave",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps: []Step{
			{Do: StepEdit, Row: "1", Field: "name", Value: "B"},
			{Do: StepBeginEdit},
			{Do: StepAdvance, Duration: "1m"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: "update_many", Count: 0},
			{Type: AssertPending, Pending: map[string]int{"updates": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_EditEndRearmsAutosave(t *testing.T) {
	scenario := &Scenario{
		Name:        "edit_end",
		Description: "Closing an editor without committing reopens the autosave window",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps: []Step{
			{Do: StepEdit, Row: "1", Field: "name", Value: "B"},
			{Do: StepBeginEdit},
			{Do: StepAdvance, Duration: "1m"},
			{Do: StepEndEdit},
			{Do: StepAdvance, Duration: "5s"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: "update_many", Count: 1},
			{Type: AssertRemoteRows, Rows: []map[string]any{{"id": 1, "name": "B"}}},
			{Type: AssertDirty, Dirty: boolPtr(false)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_EditEndWhenCleanSavesNothing(t *testing.T) {
	scenario := &Scenario{
		Name:        "edit_end_clean",
		Description: "Closing an editor with nothing pending is a no-op",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps: []Step{
			{Do: StepBeginEdit},
			{Do: StepEndEdit},
			{Do: StepAdvance, Duration: "1m"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: "update_many", Count: 0},
			{Type: AssertTraceCount, Action: "read_all", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "Every assertion here is false",
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps:       []Step{{Do: StepEdit, Row: "1", Field: "name", Value: "B"}},
		Assertions: []Assertion{
			{Type: AssertDirty, Dirty: boolPtr(false)},
			{Type: AssertStatus, Row: "1", Status: "clean"},
			{Type: AssertRows, Rows: []map[string]any{{"id": 1, "name": "A"}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
}

func TestRun_SeedWithoutIDField(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_seed",
		Description: "Seed rows need identifiers",
		Seed:        []map[string]any{{"name": "A"}},
		Steps:       []Step{{Do: StepSave}},
		Assertions:  []Assertion{{Type: AssertDirty, Dirty: boolPtr(false)}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing id field "id"`)
}

func TestRun_BadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.cue")
	require.NoError(t, os.WriteFile(path, []byte(`grid: {name: "g", autosave: "never", columns: []}`), 0644))

	scenario := &Scenario{
		Name:        "bad_grid",
		Description: "Grid errors abort the run",
		Grid:        path,
		Steps:       []Step{{Do: StepSave}},
		Assertions:  []Assertion{{Type: AssertDirty, Dirty: boolPtr(false)}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load grid")
}

func TestRun_GridAutosaveWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.cue")
	require.NoError(t, os.WriteFile(path, []byte(`grid: {name: "g", autosave: "2s", columns: [{field: "name"}]}`), 0644))

	scenario := &Scenario{
		Name:        "grid_window",
		Description: "The grid's autosave window drives the timer",
		Grid:        path,
		Seed:        []map[string]any{{"id": 1, "name": "A"}},
		Steps: []Step{
			{Do: StepEdit, Row: "1", Field: "name", Value: "B"},
			{Do: StepAdvance, Duration: "2s"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: "update_many", Count: 1},
			{Type: AssertDirty, Dirty: boolPtr(false)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "injected_failure", outcome(ErrInjected))
	assert.Equal(t, "error", outcome(os.ErrClosed))
}
