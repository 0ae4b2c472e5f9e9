package embedprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/cverr"
)

func TestMockProviderIsDeterministic(t *testing.T) {
	p := NewMockProvider(16)
	a, err := p.GenerateEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	c, err := p.GenerateEmbedding(context.Background(), "different text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestMockProviderGenerateEmbeddingsPreservesOrder(t *testing.T) {
	p := NewMockProvider(4)
	texts := []string{"one", "two", "three"}
	vecs, err := p.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, text := range texts {
		single, err := p.GenerateEmbedding(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i])
	}
}

func TestRegistryBuildUnknownSelector(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("nonexistent", nil)
	require.Error(t, err)
	kind, ok := cverr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cverr.KindValidation, kind)
}

func TestRegistryRegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("mock", func(cfg map[string]string) (Provider, error) {
		return NewMockProvider(8), nil
	})

	p, err := r.Build("mock", nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
	assert.Contains(t, r.Selectors(), "mock")
}
