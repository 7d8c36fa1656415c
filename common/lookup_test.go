package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_AddAndGet(t *testing.T) {
	l := NewLookup[int]()
	require.True(t, l.Add("a", 1))
	require.True(t, l.Add("b", 2))
	assert.False(t, l.Add("a", 3), "duplicate keys are rejected")

	v, ok := l.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = l.At(0)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = l.At(5)
	assert.False(t, ok)
	_, ok = l.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestLookup_RemoveShiftsIndices(t *testing.T) {
	l := NewLookup[string]()
	for _, k := range []string{"x", "y", "z"} {
		l.Add(k, k+"!")
	}

	removed, ok := l.Remove("x")
	require.True(t, ok)
	assert.Equal(t, "x!", removed)

	assert.Equal(t, 0, l.IndexOf("y"))
	assert.Equal(t, 1, l.IndexOf("z"))
	assert.Equal(t, -1, l.IndexOf("x"))
	assert.Equal(t, []string{"y", "z"}, l.Keys())
	assert.Equal(t, "z", l.KeyAt(1))

	_, ok = l.RemoveAt(3)
	assert.False(t, ok)
}

func TestLookup_SetAndClear(t *testing.T) {
	l := NewLookup[int]()
	l.Add("a", 1)
	assert.True(t, l.Set("a", 10))
	assert.False(t, l.Set("b", 2))

	v, _ := l.Get("a")
	assert.Equal(t, 10, v)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Has("a"))
	assert.True(t, l.Add("a", 1), "keys are reusable after Clear")
}
