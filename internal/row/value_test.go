package row

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "abc", String("abc")},
		{"bytes", []byte("raw"), String("raw")},
		{"bool", true, Bool(true)},
		{"int", 7, Int(7)},
		{"int64", int64(-3), Int(-3)},
		{"json number", json.Number("42"), Int(42)},
		{"float64", 1250.5, Float(1250.5)},
		{"float32", float32(0.25), Float(0.25)},
		{"json decimal", json.Number("1250.5"), Float(1250.5)},
		{"json integral decimal", json.Number("2.0"), Float(2)},
		{"json exponent", json.Number("1e3"), Float(1000)},
		{"value passthrough", String("x"), String("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_RejectsNonFinite(t *testing.T) {
	_, err := FromAny(math.NaN())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite")

	_, err = FromAny(math.Inf(-1))
	require.Error(t, err)

	_, err = FromAny(json.Number("1e999"))
	require.Error(t, err)
}

func TestFromAny_RejectsContainers(t *testing.T) {
	_, err := FromAny([]any{1})
	require.Error(t, err)

	_, err = FromAny(map[string]any{"a": 1})
	require.Error(t, err)
}

func TestNativeAndText(t *testing.T) {
	assert.Nil(t, Native(Null{}))
	assert.Equal(t, "a", Native(String("a")))
	assert.Equal(t, int64(5), Native(Int(5)))
	assert.Equal(t, 1250.5, Native(Float(1250.5)))
	assert.Equal(t, true, Native(Bool(true)))

	assert.Equal(t, "", Text(Null{}))
	assert.Equal(t, "12", Text(Int(12)))
	assert.Equal(t, "1250.5", Text(Float(1250.5)))
	assert.Equal(t, "3.0", Text(Float(3)))
	assert.Equal(t, "false", Text(Bool(false)))
	assert.Equal(t, "hi", Text(String("hi")))
}

func TestParseText(t *testing.T) {
	assert.Equal(t, Null{}, ParseText("null"))
	assert.Equal(t, Bool(true), ParseText("true"))
	assert.Equal(t, Int(-9), ParseText("-9"))
	assert.Equal(t, Float(1.5), ParseText("1.5"))
	assert.Equal(t, Float(3), ParseText(Text(Float(3))))
	assert.Equal(t, String("1.2.3"), ParseText("1.2.3"))
	assert.Equal(t, String("0x1.8p1"), ParseText("0x1.8p1"))
	assert.Equal(t, String(""), ParseText(""))
	assert.Equal(t, String("Jl. Merdeka 1"), ParseText("Jl. Merdeka 1"))
}

func TestEqual_NilIsNull(t *testing.T) {
	assert.True(t, Equal(nil, Null{}))
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), String("1")))
	assert.True(t, Equal(Float(0.5), Float(0.5)))
	assert.False(t, Equal(Int(2), Float(2)))
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte(`"x"`))
	require.NoError(t, err)
	assert.Equal(t, String("x"), v)

	v, err = UnmarshalValue([]byte(`9007199254740993`))
	require.NoError(t, err)
	assert.Equal(t, Int(9007199254740993), v)

	v, err = UnmarshalValue([]byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, Null{}, v)

	_, err = UnmarshalValue([]byte(`2.5`))
	require.Error(t, err)
}

func TestFloat_MarshalRoundTrip(t *testing.T) {
	tests := []struct {
		in   Float
		want string
	}{
		{1250.5, "1250.5"},
		{2, "2.0"},
		{-0.75, "-0.75"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{123456789.25, "123456789.25"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			data, err := MarshalValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))

			back, err := UnmarshalValue(data)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back)
		})
	}
}
