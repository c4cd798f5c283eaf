package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/row"
)

func TestLoadFile(t *testing.T) {
	g, err := Load("testdata/karyawan.cue")
	require.NoError(t, err)

	assert.Equal(t, "karyawan", g.Name)
	assert.Equal(t, "karyawanId", g.IDField)
	assert.Equal(t, 5*time.Second, g.Autosave)
	assert.Equal(t, []string{"karyawanId", "karyawanName", "karyawanAddress", "karyawanPhoneNumber"}, g.Fields())

	id, ok := g.Column("karyawanId")
	require.True(t, ok)
	assert.False(t, id.Editable)
	assert.Equal(t, "ID", id.Label)

	assert.Equal(t, row.Fields{
		"karyawanName":        row.String("New Employee"),
		"karyawanAddress":     row.String("New Address"),
		"karyawanPhoneNumber": row.String(""),
	}, g.Defaults())
}

func TestLoadDirectory(t *testing.T) {
	g, err := Load("testdata/pkg")
	require.NoError(t, err)

	assert.Equal(t, "inventory", g.Name)
	assert.Equal(t, "id", g.IDField, "id_field defaults to id")
	assert.Equal(t, 5*time.Second, g.Autosave, "autosave defaults to 5s")

	sku, ok := g.Column("sku")
	require.True(t, ok)
	assert.Equal(t, "Sku", sku.Label)
	assert.True(t, sku.Editable)
	assert.Nil(t, sku.Default)

	assert.Equal(t, row.Fields{
		"qty":    row.Int(0),
		"active": row.Bool(true),
		"note":   row.Null{},
	}, g.Defaults())
}

func TestParseDecimalDefault(t *testing.T) {
	g, err := Parse([]byte(`grid: {name: "payroll", columns: [
	{field: "salary", default: 1250.5},
	{field: "grade", default: 3},
]}`), "payroll.cue")
	require.NoError(t, err)

	assert.Equal(t, row.Fields{
		"salary": row.Float(1250.5),
		"grade":  row.Int(3),
	}, g.Defaults())
}

func TestLoadMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrCodeLoadFailed, se.Code)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{
			name: "missing grid",
			src:  `other: 1`,
			code: ErrCodeMissingGrid,
		},
		{
			name: "syntax error",
			src:  `grid: {`,
			code: ErrCodeInvalidGrid,
		},
		{
			name: "bad name",
			src:  `grid: {name: "Bad Name", columns: []}`,
			code: ErrCodeInvalidGrid,
		},
		{
			name: "list default",
			src:  `grid: {name: "g", columns: [{field: "a", default: [1]}]}`,
			code: ErrCodeInvalidGrid,
		},
		{
			name: "duplicate column",
			src:  `grid: {name: "g", columns: [{field: "a"}, {field: "a"}]}`,
			code: ErrCodeDuplicateColumn,
		},
		{
			name: "bad autosave",
			src:  `grid: {name: "g", autosave: "soon", columns: []}`,
			code: ErrCodeInvalidAutosave,
		},
		{
			name: "zero autosave",
			src:  `grid: {name: "g", autosave: "0s", columns: []}`,
			code: ErrCodeInvalidAutosave,
		},
		{
			name: "editable id column",
			src:  `grid: {name: "g", columns: [{field: "id"}]}`,
			code: ErrCodeIDColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.cue")
			require.Error(t, err)
			var se *Error
			require.True(t, errors.As(err, &se), "want *Error, got %T", err)
			assert.Equal(t, tt.code, se.Code)
			assert.Contains(t, se.Error(), tt.code)
		})
	}
}

func TestErrorIncludesPosition(t *testing.T) {
	src := "grid: {\n\tname: \"g\"\n\tautosave: \"never\"\n\tcolumns: []\n}\n"
	path := filepath.Join(t.TempDir(), "grid.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, err := Load(path)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrCodeInvalidAutosave, se.Code)
	if se.Pos.IsValid() {
		assert.Contains(t, se.Error(), "grid.cue:")
	}
}

func TestErrorWithoutPosition(t *testing.T) {
	e := &Error{Code: "E201", Field: "path", Message: "missing"}
	assert.Equal(t, "E201: path: missing", e.Error())
}

func TestHeaderName(t *testing.T) {
	assert.Equal(t, "KaryawanName", headerName("karyawanName"))
	assert.Equal(t, "", headerName(""))
}
