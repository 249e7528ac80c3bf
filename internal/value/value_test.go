package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SourceRegistry/cel-lite/internal/value"
)

func TestTruthy(t *testing.T) {
	t.Parallel()

	falsy := []value.Value{nil, value.Undefined, false, float64(0), math.NaN(), ""}
	for _, v := range falsy {
		assert.False(t, value.Truthy(v), "%#v should be falsy", v)
	}

	truthy := []value.Value{true, float64(1), float64(-1), "0", "false", value.Sequence{}, value.Mapping{}}
	for _, v := range truthy {
		assert.True(t, value.Truthy(v), "%#v should be truthy", v)
	}
}

func TestToNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 42.0, value.ToNumber(42.0))
	assert.Equal(t, 1.0, value.ToNumber(true))
	assert.Equal(t, 0.0, value.ToNumber(false))
	assert.Equal(t, 3.5, value.ToNumber("3.5"))
	assert.True(t, math.IsNaN(value.ToNumber("not a number")))
	assert.True(t, math.IsNaN(value.ToNumber(nil)))
	assert.True(t, math.IsNaN(value.ToNumber(value.Undefined)))
}

func TestDeepEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, value.DeepEqual(1.0, 1.0))
	assert.True(t, value.DeepEqual(nil, nil))
	assert.False(t, value.DeepEqual(nil, value.Undefined))
	assert.True(t, value.DeepEqual(value.Sequence{1.0, "a"}, value.Sequence{1.0, "a"}))
	assert.False(t, value.DeepEqual(value.Sequence{1.0}, value.Sequence{1.0, 2.0}))
	assert.True(t, value.DeepEqual(value.Mapping{"a": 1.0}, value.Mapping{"a": 1.0}))
	assert.False(t, value.DeepEqual(value.Mapping{"a": 1.0}, value.Mapping{"a": 1.0, "b": 2.0}))
	assert.False(t, value.DeepEqual("1", 1.0))
}

func TestAdd(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3.0, value.Add(1.0, 2.0))
	assert.Equal(t, "ab", value.Add("a", "b"))
	assert.Equal(t, "a1", value.Add("a", 1.0))
	assert.Equal(t, "anull", value.Add("a", nil))
	assert.Equal(t, "a", value.Add("a", value.Undefined))
	// null + null (neither side a string) coerces to numeric NaN.
	sum := value.Add(nil, nil)
	f, ok := sum.(float64)
	assert.True(t, ok)
	assert.True(t, math.IsNaN(f))
}

func TestPoisonKeys(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"__proto__", "constructor", "prototype"} {
		assert.True(t, value.PoisonKeys[k])
	}
	assert.False(t, value.PoisonKeys["mail"])
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"a": []any{1, "x", nil},
		"b": map[string]any{"c": int64(3)},
	}
	out := value.NormalizeContext(in)
	seq, ok := out["a"].(value.Sequence)
	assert.True(t, ok)
	assert.Equal(t, value.Sequence{1.0, "x", nil}, seq)
	m, ok := out["b"].(value.Mapping)
	assert.True(t, ok)
	assert.Equal(t, 3.0, m["c"])
}
