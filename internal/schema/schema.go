// Package schema loads grid definitions written in CUE.
//
// A grid definition names the dataset, the JSON field that carries row
// identifiers, the autosave window and the editable columns with their
// draft defaults:
//
//	grid: {
//		name:     "karyawan"
//		id_field: "karyawanId"
//		autosave: "5s"
//		columns: [
//			{field: "karyawanName", label: "Name", default: "New Employee"},
//		]
//	}
//
// Definitions are validated against the embedded #Grid schema (grid.cue).
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/gridsync/internal/row"
)

//go:embed grid.cue
var gridSchema string

// Column describes one editable field of the grid.
type Column struct {
	Field    string
	Label    string
	Editable bool

	// Default is the value a new row starts with; nil when the column has
	// no default.
	Default row.Value
}

// Grid is a compiled grid definition.
type Grid struct {
	Name     string
	IDField  string
	Autosave time.Duration
	Columns  []Column
}

// Defaults returns the field values of a fresh draft row.
func (g *Grid) Defaults() row.Fields {
	out := row.Fields{}
	for _, c := range g.Columns {
		if c.Default != nil {
			out[c.Field] = c.Default
		}
	}
	return out
}

// Column returns the column for field.
func (g *Grid) Column(field string) (Column, bool) {
	for _, c := range g.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// Fields returns the column field names in declaration order.
func (g *Grid) Fields() []string {
	out := make([]string, len(g.Columns))
	for i, c := range g.Columns {
		out[i] = c.Field
	}
	return out
}

// Error codes for grid definition failures.
const (
	ErrCodeLoadFailed      = "E201" // File or instance could not be read
	ErrCodeInvalidGrid     = "E202" // Value does not satisfy #Grid
	ErrCodeMissingGrid     = "E203" // No top-level grid value
	ErrCodeDuplicateColumn = "E204" // Two columns share a field name
	ErrCodeInvalidAutosave = "E205" // Autosave is not a positive duration
	ErrCodeIDColumn        = "E206" // Identifier column marked editable
)

// Error is a grid definition failure, with a CUE position when one is known.
type Error struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// Load reads a grid definition from a .cue file or a directory holding a
// CUE package.
func Load(path string) (*Grid, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeLoadFailed, Field: "path", Message: err.Error()}
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, &Error{Code: ErrCodeLoadFailed, Field: "path", Message: "no CUE instances loaded"}
		}
		if instances[0].Err != nil {
			return nil, &Error{Code: ErrCodeLoadFailed, Field: "path", Message: instances[0].Err.Error()}
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Code: ErrCodeLoadFailed, Field: "path", Message: err.Error()}
		}
		v = ctx.CompileBytes(src, cue.Filename(path))
	}

	return compile(ctx, v)
}

// Parse compiles a grid definition from CUE source.
func Parse(src []byte, filename string) (*Grid, error) {
	ctx := cuecontext.New()
	return compile(ctx, ctx.CompileBytes(src, cue.Filename(filename)))
}

func compile(ctx *cue.Context, v cue.Value) (*Grid, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	gridVal := v.LookupPath(cue.ParsePath("grid"))
	if !gridVal.Exists() {
		return nil, &Error{Code: ErrCodeMissingGrid, Field: "grid", Message: "grid is required", Pos: v.Pos()}
	}

	def := ctx.CompileString(gridSchema, cue.Filename("grid.cue")).LookupPath(cue.ParsePath("#Grid"))
	unified := def.Unify(gridVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	return Compile(unified)
}

// Compile converts a validated #Grid value into a Grid.
func Compile(v cue.Value) (*Grid, error) {
	g := &Grid{}
	var err error

	if g.Name, err = v.LookupPath(cue.ParsePath("name")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if g.IDField, err = v.LookupPath(cue.ParsePath("id_field")).String(); err != nil {
		return nil, formatCUEError(err)
	}

	autosaveVal := v.LookupPath(cue.ParsePath("autosave"))
	autosave, err := autosaveVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	g.Autosave, err = time.ParseDuration(autosave)
	if err != nil || g.Autosave <= 0 {
		return nil, &Error{
			Code:    ErrCodeInvalidAutosave,
			Field:   "autosave",
			Message: fmt.Sprintf("%q is not a positive duration", autosave),
			Pos:     autosaveVal.Pos(),
		}
	}

	iter, err := v.LookupPath(cue.ParsePath("columns")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	seen := make(map[string]bool)
	for iter.Next() {
		col, err := compileColumn(iter.Value())
		if err != nil {
			return nil, err
		}
		if seen[col.Field] {
			return nil, &Error{
				Code:    ErrCodeDuplicateColumn,
				Field:   "columns",
				Message: fmt.Sprintf("duplicate column %q", col.Field),
				Pos:     iter.Value().Pos(),
			}
		}
		if col.Field == g.IDField && col.Editable {
			return nil, &Error{
				Code:    ErrCodeIDColumn,
				Field:   "columns",
				Message: fmt.Sprintf("identifier column %q must set editable: false", col.Field),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[col.Field] = true
		g.Columns = append(g.Columns, col)
	}

	return g, nil
}

func compileColumn(v cue.Value) (Column, error) {
	var col Column
	var err error

	if col.Field, err = v.LookupPath(cue.ParsePath("field")).String(); err != nil {
		return col, formatCUEError(err)
	}
	if col.Editable, err = v.LookupPath(cue.ParsePath("editable")).Bool(); err != nil {
		return col, formatCUEError(err)
	}

	col.Label = headerName(col.Field)
	if labelVal := v.LookupPath(cue.ParsePath("label")); labelVal.Exists() {
		if col.Label, err = labelVal.String(); err != nil {
			return col, formatCUEError(err)
		}
	}

	if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
		col.Default, err = cueScalar(defVal)
		if err != nil {
			return col, err
		}
	}
	return col, nil
}

// cueScalar converts a concrete CUE scalar to a row value.
func cueScalar(v cue.Value) (row.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return row.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return row.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return row.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return row.Float(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return row.String(s), nil
	}
	return nil, &Error{
		Code:    ErrCodeInvalidGrid,
		Field:   "default",
		Message: fmt.Sprintf("unsupported default of kind %s", v.Kind()),
		Pos:     v.Pos(),
	}
}

// headerName capitalizes the first letter of a field name.
func headerName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: ErrCodeInvalidGrid, Field: "cue", Message: err.Error()}
	}

	first := errs[0]
	e := &Error{Code: ErrCodeInvalidGrid, Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
