package row

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// ID identifies a row. Persisted rows carry the identifier assigned by the
// remote store; draft rows carry a local placeholder.
type ID string

// Fields maps field names to scalar values.
// Use SortedKeys() for deterministic iteration.
type Fields map[string]Value

// Row is one record of the edited dataset.
type Row struct {
	ID     ID
	Fields Fields

	// Draft marks a row created locally and not yet known to the remote store.
	Draft bool
}

// New creates a persisted row.
func New(id ID, fields Fields) Row {
	return Row{ID: id, Fields: fields}
}

// NewDraft creates a draft row with a placeholder identifier.
func NewDraft(id ID, fields Fields) Row {
	return Row{ID: id, Fields: fields, Draft: true}
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	return Row{ID: r.ID, Fields: r.Fields.Clone(), Draft: r.Draft}
}

// With returns a copy of the row with one field replaced.
func (r Row) With(field string, v Value) Row {
	out := r.Clone()
	if out.Fields == nil {
		out.Fields = Fields{}
	}
	out.Fields[field] = v
	return out
}

// Get returns the value of a field, Null if absent.
func (r Row) Get(field string) Value {
	if v, ok := r.Fields[field]; ok && v != nil {
		return v
	}
	return Null{}
}

// Equal reports whether two rows have the same identity, provenance and fields.
func (r Row) Equal(other Row) bool {
	return r.ID == other.ID && r.Draft == other.Draft && r.Fields.Equal(other.Fields)
}

// Flatten returns the row's fields with the identifier stored under idField.
// Used for traces and human-readable output.
func (r Row) Flatten(idField string) Fields {
	out := r.Fields.Clone()
	if out == nil {
		out = Fields{}
	}
	out[idField] = String(r.ID)
	return out
}

// Clone returns a copy of the field map. Values are immutable scalars.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Equal reports whether two field maps hold the same values.
// A missing field and an explicit Null are not the same.
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for k, v := range f {
		ov, ok := other[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// Without returns a copy of the fields with the named keys removed.
func (f Fields) Without(keys ...string) Fields {
	out := f.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// SortedKeys returns keys in canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order which differs for some code points.
func (f Fields) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range f.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(f[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Numbers with a fraction or an
// exponent decode as Float.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = make(Fields, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		(*f)[k] = val
	}
	return nil
}

// FieldsFromMap converts a decoded map (JSON, YAML) into Fields.
func FieldsFromMap(m map[string]any) (Fields, error) {
	out := make(Fields, len(m))
	for k, v := range m {
		val, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}
