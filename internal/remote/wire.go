package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/gridsync/internal/row"
)

// Envelope wraps every successful batch API response body.
type Envelope struct {
	Data json.RawMessage `json:"data"`
}

// Error codes carried in ErrorBody.Error.
const (
	CodeNotFound       = "not_found"
	CodeInvalidBatch   = "invalid_batch"
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeInternal       = "internal"
)

// ErrorBody is the JSON body of a failed batch API response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Codec converts rows to and from the flat JSON objects of the batch API,
// where the identifier lives under IDField next to the data fields.
//
// Numeric identifiers are written as JSON numbers, everything else as
// strings. Both forms are accepted on input.
type Codec struct {
	IDField string
}

// MarshalRows encodes rows as a JSON array of flat objects.
func (c Codec) MarshalRows(rows []row.Row) ([]byte, error) {
	flat := make([]row.Fields, len(rows))
	for i, r := range rows {
		f := r.Fields.Clone()
		if f == nil {
			f = row.Fields{}
		}
		f[c.IDField] = idValue(r.ID)
		flat[i] = f
	}
	return json.Marshal(flat)
}

// MarshalFields encodes creation payloads. Any identifier field is dropped.
func (c Codec) MarshalFields(fields []row.Fields) ([]byte, error) {
	out := make([]row.Fields, len(fields))
	for i, f := range fields {
		out[i] = f.Without(c.IDField)
		if out[i] == nil {
			out[i] = row.Fields{}
		}
	}
	return json.Marshal(out)
}

// MarshalIDs encodes a list of identifiers.
func (c Codec) MarshalIDs(ids []row.ID) ([]byte, error) {
	vals := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		b, err := row.MarshalValue(idValue(id))
		if err != nil {
			return nil, err
		}
		vals[i] = b
	}
	return json.Marshal(vals)
}

// UnmarshalRows decodes a JSON array of flat row objects.
// Every object must carry the identifier field.
func (c Codec) UnmarshalRows(data []byte) ([]row.Row, error) {
	var raw []row.Fields
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	rows := make([]row.Row, len(raw))
	for i, f := range raw {
		v, ok := f[c.IDField]
		if !ok {
			return nil, fmt.Errorf("decode rows: row[%d] has no %q field", i, c.IDField)
		}
		id, err := idFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("decode rows: row[%d]: %w", i, err)
		}
		delete(f, c.IDField)
		rows[i] = row.New(id, f)
	}
	return rows, nil
}

// UnmarshalFields decodes creation payloads. An identifier field, if
// present, is ignored.
func (c Codec) UnmarshalFields(data []byte) ([]row.Fields, error) {
	var raw []row.Fields
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	for i := range raw {
		if raw[i] == nil {
			raw[i] = row.Fields{}
		}
		delete(raw[i], c.IDField)
	}
	return raw, nil
}

// UnmarshalIDs decodes a JSON array of numeric or string identifiers.
func (c Codec) UnmarshalIDs(data []byte) ([]row.ID, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}

	ids := make([]row.ID, len(raw))
	for i, r := range raw {
		v, err := row.UnmarshalValue(r)
		if err != nil {
			return nil, fmt.Errorf("decode ids: [%d]: %w", i, err)
		}
		id, err := idFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("decode ids: [%d]: %w", i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// MarshalEnvelope wraps an already encoded payload in {"data": ...}.
func MarshalEnvelope(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	return json.Marshal(Envelope{Data: data})
}

func idValue(id row.ID) row.Value {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return row.Int(n)
	}
	return row.String(id)
}

func idFromValue(v row.Value) (row.ID, error) {
	switch val := v.(type) {
	case row.Int:
		return row.ID(strconv.FormatInt(int64(val), 10)), nil
	case row.String:
		if val == "" {
			return "", fmt.Errorf("empty identifier")
		}
		return row.ID(val), nil
	default:
		return "", fmt.Errorf("identifier must be a number or string, got %T", v)
	}
}
