package functions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SourceRegistry/cel-lite/internal/functions"
	"github.com/SourceRegistry/cel-lite/internal/value"
)

func TestAllowed(t *testing.T) {
	t.Parallel()

	assert.True(t, functions.Allowed("has"))
	assert.True(t, functions.Allowed("regexReplace"))
	assert.False(t, functions.Allowed("eval"))
	assert.False(t, functions.Allowed("exec"))
}

func TestCall_UnknownFunction(t *testing.T) {
	t.Parallel()

	_, err := functions.Call("nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Function not allowed: nope")
}

func TestCall_HasExists(t *testing.T) {
	t.Parallel()

	v, err := functions.Call("has", []value.Value{value.Sequence{}})
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = functions.Call("exists", []value.Value{value.Sequence{1.0}})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = functions.Call("has", []value.Value{value.Undefined})
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = functions.Call("has", []value.Value{"x"})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestCall_Size(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arg  value.Value
		want float64
	}{
		{value.Sequence{1.0, 2.0}, 2},
		{"hello", 5},
		{value.Mapping{"a": 1.0, "b": 2.0}, 2},
		{42.0, 0},
	}
	for _, tt := range tests {
		v, err := functions.Call("size", []value.Value{tt.arg})
		require.NoError(t, err)
		assert.Equal(t, tt.want, v)
	}
}

func TestCall_FirstLast(t *testing.T) {
	t.Parallel()

	v, err := functions.Call("first", []value.Value{value.Sequence{1.0, 2.0}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = functions.Call("last", []value.Value{value.Sequence{1.0, 2.0}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = functions.Call("first", []value.Value{value.Sequence{}})
	require.NoError(t, err)
	assert.True(t, value.IsUndefined(v))

	v, err = functions.Call("first", []value.Value{"x"})
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestCall_Collect(t *testing.T) {
	t.Parallel()

	v, err := functions.Call("collect", []value.Value{value.Sequence{1.0, 2.0}})
	require.NoError(t, err)
	assert.Equal(t, value.Sequence{1.0, 2.0}, v)

	v, err = functions.Call("collect", []value.Value{5.0})
	require.NoError(t, err)
	assert.Equal(t, value.Sequence{5.0}, v)

	v, err = functions.Call("collect", []value.Value{1.0, 2.0, 3.0})
	require.NoError(t, err)
	assert.Equal(t, value.Sequence{1.0, 2.0, 3.0}, v)
}

func TestCall_StringOps(t *testing.T) {
	t.Parallel()

	v, _ := functions.Call("lower", []value.Value{"HeLLo"})
	assert.Equal(t, "hello", v)

	v, _ = functions.Call("upper", []value.Value{"HeLLo"})
	assert.Equal(t, "HELLO", v)

	v, _ = functions.Call("trim", []value.Value{"  hi  "})
	assert.Equal(t, "hi", v)

	// Non-string input is unchanged.
	v, _ = functions.Call("lower", []value.Value{42.0})
	assert.Equal(t, 42.0, v)
}

func TestCall_Contains(t *testing.T) {
	t.Parallel()

	v, _ := functions.Call("contains", []value.Value{value.Sequence{1.0, 2.0}, 2.0})
	assert.Equal(t, true, v)

	v, _ = functions.Call("contains", []value.Value{"hello world", "world"})
	assert.Equal(t, true, v)

	v, _ = functions.Call("contains", []value.Value{42.0, 1.0})
	assert.Equal(t, false, v)
}

func TestCall_ContainsAny(t *testing.T) {
	t.Parallel()

	v, _ := functions.Call("containsAny", []value.Value{
		value.Sequence{"a", "b"}, value.Sequence{"c", "b"},
	})
	assert.Equal(t, true, v)

	v, _ = functions.Call("containsAny", []value.Value{
		value.Sequence{"a"}, value.Sequence{"z"},
	})
	assert.Equal(t, false, v)
}

func TestCall_StartsEndsWith(t *testing.T) {
	t.Parallel()

	v, _ := functions.Call("startsWith", []value.Value{"hello", "he"})
	assert.Equal(t, true, v)
	v, _ = functions.Call("endsWith", []value.Value{"hello", "lo"})
	assert.Equal(t, true, v)
	v, _ = functions.Call("startsWith", []value.Value{42.0, "he"})
	assert.Equal(t, false, v)
}

func TestCall_Matches(t *testing.T) {
	t.Parallel()

	v, err := functions.Call("matches", []value.Value{"user@example.com", `^\S+@\S+\.\S+$`})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = functions.Call("matches", []value.Value{"x", "("})
	require.Error(t, err)
}

func TestCall_RegexReplace(t *testing.T) {
	t.Parallel()

	v, err := functions.Call("regexReplace", []value.Value{"a1b2", `\d`, "#"})
	require.NoError(t, err)
	assert.Equal(t, "a#b#", v)
}

func TestCall_Coalesce(t *testing.T) {
	t.Parallel()

	v, _ := functions.Call("coalesce", []value.Value{nil, value.Sequence{}, "fallback"})
	assert.Equal(t, "fallback", v)

	v, _ = functions.Call("coalesce", []value.Value{nil, value.Undefined})
	assert.True(t, value.IsUndefined(v))
}

func TestCall_Join(t *testing.T) {
	t.Parallel()

	v, _ := functions.Call("join", []value.Value{value.Sequence{1.0, "a", true}, "-"})
	assert.Equal(t, "1-a-true", v)

	v, _ = functions.Call("join", []value.Value{42.0, "-"})
	assert.Equal(t, "", v)

	v, _ = functions.Call("join", []value.Value{"already a string", "-"})
	assert.Equal(t, "already a string", v)
}

func TestCall_Split(t *testing.T) {
	t.Parallel()

	v, _ := functions.Call("split", []value.Value{"a,b,c", ","})
	assert.Equal(t, value.Sequence{"a", "b", "c"}, v)

	v, _ = functions.Call("split", []value.Value{42.0, ","})
	assert.Equal(t, value.Sequence{}, v)
}
