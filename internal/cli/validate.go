package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/row"
	"github.com/roach88/gridsync/internal/schema"
)

// GridSummary describes a valid grid definition.
type GridSummary struct {
	Name     string          `json:"name"`
	IDField  string          `json:"id_field"`
	Autosave string          `json:"autosave"`
	Columns  []ColumnSummary `json:"columns"`
}

// ColumnSummary describes one column of a grid.
type ColumnSummary struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Editable bool   `json:"editable"`
	Default  any    `json:"default,omitempty"`
}

// ValidationDetails locates a grid definition error.
type ValidationDetails struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Field  string `json:"field,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <grid.cue|dir>",
		Short: "Validate a grid definition",
		Long: `Validate a CUE grid definition against the #Grid schema.

Checks syntax, field types, column uniqueness and the autosave window, and
prints the resolved grid: id field, columns, labels and draft defaults.

Example:
  gridsync validate ./grids/karyawan.cue
  gridsync validate ./grids/karyawan.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); err != nil {
		if err := formatter.Error(ErrCodeNotFound, fmt.Sprintf("grid not found: %s", path), nil); err != nil {
			return err
		}
		return WrapExitError(ExitCommandError, "grid not found", err)
	}

	formatter.VerboseLog("Loading grid from %s", path)
	grid, err := schema.Load(path)
	if err != nil {
		code, details := ErrCodeGeneric, ValidationDetails{}
		var se *schema.Error
		if errors.As(err, &se) {
			code = se.Code
			details.Field = se.Field
			if se.Pos.IsValid() {
				details.File = se.Pos.Filename()
				details.Line = se.Pos.Line()
				details.Column = se.Pos.Column()
			}
		}
		if ferr := formatter.Error(code, err.Error(), details); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "grid definition invalid", err)
	}

	summary := summarizeGrid(grid)
	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	return formatter.Success(summary.text())
}

func summarizeGrid(g *schema.Grid) GridSummary {
	s := GridSummary{
		Name:     g.Name,
		IDField:  g.IDField,
		Autosave: g.Autosave.String(),
		Columns:  make([]ColumnSummary, len(g.Columns)),
	}
	for i, c := range g.Columns {
		s.Columns[i] = ColumnSummary{
			Field:    c.Field,
			Label:    c.Label,
			Editable: c.Editable,
		}
		if c.Default != nil {
			s.Columns[i].Default = row.Native(c.Default)
		}
	}
	return s
}

func (s GridSummary) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ grid %s is valid (id field %s, autosave %s)\n", s.Name, s.IDField, s.Autosave)
	for _, c := range s.Columns {
		mode := "editable"
		if !c.Editable {
			mode = "read-only"
		}
		fmt.Fprintf(&b, "  %-24s %-20s %s", c.Field, c.Label, mode)
		if c.Default != nil {
			fmt.Fprintf(&b, " default=%#v", c.Default)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}
