package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
	"github.com/roach88/gridsync/internal/tracker"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v -> %s\n", event.Seq, event.Kind, event.Action, event.Args, event.Outcome)
		}
	}

	return buf.String()
}

// AssertionContext provides the final engine and store state.
type AssertionContext struct {
	Engine  *engine.Engine
	Store   *remote.MemoryStore
	IDField string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// State assertions need actx; trace assertions do not.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertRows, AssertRemoteRows, AssertStatus, AssertDirty, AssertPending:
			if actx == nil || actx.Engine == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
			} else {
				err = assertState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertTraceContains checks if the trace contains an event matching the
// specified action and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Action == assertion.Action && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the actions appear
// in the specified order. Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Action]; !seen {
			positions[event.Action] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertState(actx *AssertionContext, assertion Assertion) error {
	switch assertion.Type {
	case AssertRows:
		return assertRowsEqual(AssertRows, actx.Engine.Rows(), assertion.Rows, actx.IDField)
	case AssertRemoteRows:
		return assertRowsEqual(AssertRemoteRows, actx.Store.Rows(), assertion.Rows, actx.IDField)
	case AssertStatus:
		want, _ := tracker.ParseStatus(assertion.Status)
		if got := actx.Engine.RowStatus(row.ID(assertion.Row)); got != want {
			return &AssertionError{
				Type:     AssertStatus,
				Expected: fmt.Sprintf("row %s %s", assertion.Row, want),
				Actual:   fmt.Sprintf("row %s %s", assertion.Row, got),
			}
		}
	case AssertDirty:
		if got := actx.Engine.IsDirty(); got != *assertion.Dirty {
			return &AssertionError{
				Type:     AssertDirty,
				Expected: fmt.Sprintf("dirty=%t", *assertion.Dirty),
				Actual:   fmt.Sprintf("dirty=%t", got),
			}
		}
	case AssertPending:
		counts := actx.Engine.Pending()
		got := map[string]int{
			"creates": counts.Creates,
			"updates": counts.Updates,
			"deletes": counts.Deletes,
		}
		for k, want := range assertion.Pending {
			if got[k] != want {
				return &AssertionError{
					Type:     AssertPending,
					Expected: fmt.Sprintf("%s=%d", k, want),
					Actual:   fmt.Sprintf("%s=%d", k, got[k]),
				}
			}
		}
	}
	return nil
}

// assertRowsEqual compares rows in order. Expected identifiers may be
// written as YAML numbers or strings.
func assertRowsEqual(kind string, actual []row.Row, expected []map[string]any, idField string) error {
	want := make([]row.Row, len(expected))
	for i, m := range expected {
		r, err := rowFromMap(m, idField)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		want[i] = r
	}

	mismatch := len(actual) != len(want)
	for i := 0; !mismatch && i < len(want); i++ {
		mismatch = actual[i].ID != want[i].ID || !actual[i].Fields.Equal(want[i].Fields)
	}
	if mismatch {
		return &AssertionError{
			Type:     kind,
			Expected: describeRows(want, idField),
			Actual:   describeRows(actual, idField),
		}
	}
	return nil
}

func describeRows(rows []row.Row, idField string) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		b, err := row.MarshalCanonical(r.Flatten(idField))
		if err != nil {
			parts[i] = fmt.Sprintf("%v", r)
			continue
		}
		parts[i] = string(b)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual map[string]any, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares trace values with YAML-decoded expectations.
// Scalars compare as row values so 3 (int) matches 3 (int64); lists
// compare element-wise.
func valuesEqual(actual, expected any) bool {
	if a, ok := actual.([]any); ok {
		e, ok := expected.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range a {
			if !valuesEqual(a[i], e[i]) {
				return false
			}
		}
		return true
	}

	av, aerr := row.FromAny(actual)
	ev, eerr := row.FromAny(expected)
	if aerr == nil && eerr == nil {
		return row.Equal(av, ev)
	}
	return reflect.DeepEqual(actual, expected)
}
