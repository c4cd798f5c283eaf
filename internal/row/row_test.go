package row

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_CloneIsDeep(t *testing.T) {
	r := New("1", Fields{"name": String("A")})
	c := r.Clone()
	c.Fields["name"] = String("B")

	assert.Equal(t, String("A"), r.Fields["name"])
	assert.Equal(t, String("B"), c.Fields["name"])
}

func TestRow_WithLeavesOriginal(t *testing.T) {
	r := New("1", Fields{"name": String("A")})
	r2 := r.With("name", String("B"))

	assert.Equal(t, String("A"), r.Get("name"))
	assert.Equal(t, String("B"), r2.Get("name"))
	assert.Equal(t, r.ID, r2.ID)
}

func TestRow_GetMissingIsNull(t *testing.T) {
	r := New("1", nil)
	assert.Equal(t, Null{}, r.Get("missing"))
}

func TestRow_Equal(t *testing.T) {
	a := New("1", Fields{"name": String("A")})
	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(a.With("name", String("B"))))
	assert.False(t, a.Equal(NewDraft("1", Fields{"name": String("A")})))
}

func TestFields_EqualDistinguishesMissingFromNull(t *testing.T) {
	a := Fields{"phone": Null{}}
	b := Fields{}
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(Fields{"phone": nil}))
}

func TestFields_Without(t *testing.T) {
	f := Fields{"id": String("x"), "name": String("A")}
	out := f.Without("id")

	assert.Equal(t, Fields{"name": String("A")}, out)
	assert.Len(t, f, 2)
}

func TestRow_Flatten(t *testing.T) {
	r := New("7", Fields{"name": String("A")})
	assert.Equal(t, Fields{"name": String("A"), "karyawanId": String("7")}, r.Flatten("karyawanId"))
}

func TestFields_JSONRoundTrip(t *testing.T) {
	f := Fields{"b": Int(2), "a": String("x"), "c": Null{}, "d": Bool(true)}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":null,"d":true}`, string(data))

	var back Fields
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, f.Equal(back))
}

func TestFields_UnmarshalDecimal(t *testing.T) {
	var f Fields
	require.NoError(t, json.Unmarshal([]byte(`{"salary":1250.5,"grade":3}`), &f))
	assert.Equal(t, Fields{"salary": Float(1250.5), "grade": Int(3)}, f)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"grade":3,"salary":1250.5}`, string(data))
}

func TestFields_UnmarshalRejectsContainers(t *testing.T) {
	var f Fields
	err := json.Unmarshal([]byte(`{"tags":["a"]}`), &f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "tags"`)
}

func TestFieldsFromMap(t *testing.T) {
	f, err := FieldsFromMap(map[string]any{"name": "A", "age": 30, "phone": nil})
	require.NoError(t, err)
	assert.Equal(t, Fields{"name": String("A"), "age": Int(30), "phone": Null{}}, f)

	f, err = FieldsFromMap(map[string]any{"rate": 0.5})
	require.NoError(t, err)
	assert.Equal(t, Fields{"rate": Float(0.5)}, f)

	_, err = FieldsFromMap(map[string]any{"tags": []any{"a"}})
	require.Error(t, err)
}
