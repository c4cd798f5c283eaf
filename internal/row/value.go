package row

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface for scalar field values.
// Only Null, String, Int, Float and Bool implement it.
type Value interface {
	rowValue()
}

// Null is an explicit null field value.
type Null struct{}

func (Null) rowValue() {}

// String is a string field value.
type String string

func (String) rowValue() {}

// Int is an integer field value. Always int64, never float.
type Int int64

func (Int) rowValue() {}

// Float is a decimal field value. NaN and infinities cannot be represented.
type Float float64

func (Float) rowValue() {}

// Bool is a boolean field value.
type Bool bool

func (Bool) rowValue() {}

// FromAny converts a decoded Go value (JSON with UseNumber, YAML, SQL scan)
// into a Value. JSON numbers with a fraction or exponent become Float.
// Arrays, objects and non-finite numbers are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case []byte:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid number: %s", s)
			}
			return floatValue(f)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float32:
		return floatValue(float64(val))
	case float64:
		return floatValue(val)
	default:
		return nil, fmt.Errorf("unsupported field value type: %T", v)
	}
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number not allowed in rows: %v", f)
	}
	return Float(f), nil
}

// Native converts a Value back into a plain Go value (nil, string, int64,
// float64, bool).
func Native(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// Text renders a value for human display. Null renders as the empty string.
func Text(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return formatFloat(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		return ""
	}
}

// ParseText interprets user-typed text as a value. Integers, decimals and
// booleans are recognized; everything else, including the empty string,
// stays a String.
// The literal "null" yields Null.
func ParseText(s string) Value {
	switch s {
	case "null":
		return Null{}
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	if strings.ContainsAny(s, ".eE") && !strings.ContainsAny(s, "xX_") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if v, err := floatValue(f); err == nil {
				return v
			}
		}
	}
	return String(s)
}

// Equal reports whether two values are the same scalar.
// A nil Value is treated as Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a == b
}

// MarshalValue marshals a Value to plain JSON.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		return []byte(formatFloat(float64(val))), nil
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// UnmarshalValue decodes a single JSON scalar into a Value.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// formatFloat renders f the way encoding/json does, plus a trailing ".0"
// on integral values so that the text decodes back to a Float and not an
// Int.
func formatFloat(f float64) string {
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'e' {
		// 1e-07 becomes 1e-7
		if n := len(s); n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
