package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/tracker"
)

// Scenario defines a scripted editing session.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Grid is an optional path to a CUE grid definition supplying the id
	// field, draft defaults and autosave window. Relative paths resolve
	// against the scenario file's directory.
	Grid string `yaml:"grid,omitempty"`

	// Seed holds the rows the remote store starts with. Each row carries
	// its identifier under the grid's id field.
	Seed []map[string]any `yaml:"seed,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted gesture or clock movement.
type Step struct {
	// Do names the step: load, begin_edit, edit, add, delete, save,
	// discard, advance, fail or recover.
	Do string `yaml:"do"`

	Row   string `yaml:"row,omitempty"`
	Field string `yaml:"field,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Duration is a Go duration string for advance.
	Duration string `yaml:"duration,omitempty"`

	// Op is the remote operation for fail and recover.
	Op string `yaml:"op,omitempty"`

	// Expect is the expected outcome ("ok", "remote_error:update_many",
	// "concurrent_save_ignored", ...). Empty skips the check.
	Expect string `yaml:"expect,omitempty"`
}

// Step names.
const (
	StepLoad      = "load"
	StepBeginEdit = "begin_edit"
	StepEndEdit   = "end_edit"
	StepEdit      = "edit"
	StepAdd       = "add"
	StepDelete    = "delete"
	StepSave      = "save"
	StepDiscard   = "discard"
	StepAdvance   = "advance"
	StepFail      = "fail"
	StepRecover   = "recover"
)

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action and Args are used by trace_contains and trace_count.
	Action string         `yaml:"action,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Count is used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Actions is used by trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Rows is used by rows and remote_rows. Absent means no rows.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Row and Status are used by status.
	Row    string `yaml:"row,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Dirty is used by dirty.
	Dirty *bool `yaml:"dirty,omitempty"`

	// Pending is used by pending; keys are creates, updates and deletes.
	Pending map[string]int `yaml:"pending,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRows          = "rows"
	AssertRemoteRows    = "remote_rows"
	AssertStatus        = "status"
	AssertDirty         = "dirty"
	AssertPending       = "pending"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Grid != "" && !filepath.IsAbs(scenario.Grid) {
		scenario.Grid = filepath.Join(filepath.Dir(path), scenario.Grid)
	}
	if scenario.Grid != "" {
		if _, err := os.Stat(scenario.Grid); err != nil {
			return nil, fmt.Errorf("invalid scenario: grid file not found: %s", scenario.Grid)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML. A relative grid path is left as is.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so typos like "assertion:" fail loudly.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Do {
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	case StepLoad, StepBeginEdit, StepEndEdit, StepAdd, StepSave, StepDiscard:
	case StepEdit:
		if st.Row == "" || st.Field == "" {
			return fmt.Errorf("steps[%d]: row and field are required for edit", index)
		}
	case StepDelete:
		if st.Row == "" {
			return fmt.Errorf("steps[%d]: row is required for delete", index)
		}
	case StepAdvance:
		d, err := time.ParseDuration(st.Duration)
		if err != nil || d < 0 {
			return fmt.Errorf("steps[%d]: advance needs a non-negative duration, got %q", index, st.Duration)
		}
	case StepFail, StepRecover:
		if !knownOp(remote.Op(st.Op)) {
			return fmt.Errorf("steps[%d]: unknown op %q for %s", index, st.Op, st.Do)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, st.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertRows, AssertRemoteRows:
	case AssertStatus:
		if a.Row == "" {
			return fmt.Errorf("assertions[%d]: row is required for status", index)
		}
		if _, ok := tracker.ParseStatus(a.Status); !ok {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertDirty:
		if a.Dirty == nil {
			return fmt.Errorf("assertions[%d]: dirty is required for dirty", index)
		}
	case AssertPending:
		if len(a.Pending) == 0 {
			return fmt.Errorf("assertions[%d]: pending is required for pending", index)
		}
		for k := range a.Pending {
			if k != "creates" && k != "updates" && k != "deletes" {
				return fmt.Errorf("assertions[%d]: unknown pending key %q", index, k)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func knownOp(op remote.Op) bool {
	switch op {
	case remote.OpReadAll, remote.OpCreateMany, remote.OpUpdateMany, remote.OpDeleteMany:
		return true
	}
	return false
}
