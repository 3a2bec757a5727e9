package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/errors"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind Kind
	}{
		{"nil", nil, KindNull},
		{"string", "hello", KindString},
		{"int", 5, KindInt},
		{"int64", int64(-3), KindInt},
		{"uint8", uint8(7), KindInt},
		{"float", 2.5, KindFloat},
		{"float32", float32(1.5), KindFloat},
		{"bool", true, KindBool},
		{"any slice", []any{"a", 1}, KindList},
		{"string slice", []string{"a", "b"}, KindList},
		{"map", map[string]any{"k": "v"}, KindMap},
		{"typed map", map[string]int{"k": 1}, KindMap},
		{"value", String("x"), KindString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValueOf(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestValueOf_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"struct", struct{ A int }{1}},
		{"channel", make(chan int)},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"overflow", uint64(math.MaxUint64)},
		{"nested", []any{struct{}{}}},
		{"int keyed map", map[int]string{1: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValueOf(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidValue))
		})
	}
}

func TestValue_RoundTripKeepsNumberKind(t *testing.T) {
	input := `{"start":0,"end":5,"score":5.0,"ratio":0.25,"big":1e+30,"tags":["a",null,true],"nested":{"z":1,"a":2}}`

	var v Value
	require.NoError(t, json.Unmarshal([]byte(input), &v))

	m := v.Map()
	require.NotNil(t, m)
	assert.Equal(t, []string{"start", "end", "score", "ratio", "big", "tags", "nested"}, m.Keys())

	start, _ := m.Get("start")
	assert.Equal(t, KindInt, start.Kind())
	score, _ := m.Get("score")
	assert.Equal(t, KindFloat, score.Kind())

	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, Int(1).Equal(Int(1)))
	assert.False(t, Int(1).Equal(Float(1)), "integers and floats are distinct")
	assert.True(t, ListOf(String("a"), Null()).Equal(ListOf(String("a"), Null())))

	a := MustValueOf(map[string]any{"x": 1})
	b := MustValueOf(map[string]any{"x": 1})
	assert.True(t, a.Equal(b))

	c := MustValueOf(map[string]any{"x": 2})
	assert.False(t, a.Equal(c))
}

func TestValue_Accessors(t *testing.T) {
	s, ok := String("x").Str()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = Int(1).Str()
	assert.False(t, ok)

	f, ok := Int(3).Float()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	assert.Equal(t, []string{"a", "b"}, MustValueOf([]string{"a", "b"}).Strings())
	assert.Equal(t, []string{"solo"}, String("solo").Strings())

	assert.Equal(t, "hello", String("hello").String())
	assert.Equal(t, `["a",1]`, MustValueOf([]any{"a", 1}).String())
}

func TestValue_IsEmpty(t *testing.T) {
	assert.True(t, Null().IsEmpty())
	assert.True(t, String("").IsEmpty())
	assert.True(t, ListOf().IsEmpty())
	assert.True(t, Object(nil).IsEmpty())
	assert.False(t, Int(0).IsEmpty())
	assert.False(t, Bool(false).IsEmpty())
}

func TestValue_CloneIsDeep(t *testing.T) {
	orig := MustValueOf(map[string]any{"k": []any{"a"}})
	clone := orig.Clone()
	clone.Map().Set("k", String("changed"))

	k, _ := orig.Map().Get("k")
	assert.Equal(t, KindList, k.Kind())
}

func TestValue_UnmarshalMalformed(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"a":`), &v)
	require.Error(t, err)

	err = v.UnmarshalJSON([]byte(`{"a":`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStructural))
	assert.True(t, errors.IsFatal(err))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, "5.0"},
		{0.25, "0.25"},
		{-1.5, "-1.5"},
		{1e30, "1e+30"},
		{0, "0.0"},
	}
	for _, tt := range tests {
		got, err := formatFloat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
