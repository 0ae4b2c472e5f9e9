package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndGet(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3) // evicts "a"

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestGetOrComputeCallsBuildOnceOnMiss(t *testing.T) {
	c := New[string, int](4)
	calls := 0
	build := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrCompute("k", build)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrCompute("k", build)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrComputePropagatesBuildError(t *testing.T) {
	c := New[string, int](4)
	wantErr := errors.New("boom")

	_, err := c.GetOrCompute("k", func() (int, error) { return 0, wantErr })
	assert.ErrorIs(t, err, wantErr)
	assert.Zero(t, c.Len())
}

func TestRemoveAndPurge(t *testing.T) {
	c := New[string, int](4)
	c.Add("a", 1)
	c.Add("b", 2)

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Zero(t, c.Len())
}
