package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithNoAPIKeyFallsBackToMockProvider(t *testing.T) {
	t.Setenv("CODEVAULT_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CODEVAULT_QUIET", "true")

	dir := t.TempDir()
	p, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Provider.Name())
}

func TestOpenRejectsMalformedEncryptionKey(t *testing.T) {
	t.Setenv("CODEVAULT_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CODEVAULT_QUIET", "true")
	t.Setenv("CODEVAULT_ENCRYPTION_KEY", "not-valid-base64!!")

	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestOpenRankerAndIndexerShareProjectState(t *testing.T) {
	t.Setenv("CODEVAULT_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CODEVAULT_QUIET", "true")

	dir := t.TempDir()
	p, err := Open(dir)
	require.NoError(t, err)

	ix, err := p.OpenIndexer(nil, nil)
	require.NoError(t, err)
	defer ix.Close()

	r, err := p.OpenRanker()
	require.NoError(t, err)
	defer r.Close()
}

func TestOpenLockCreatesLockFileUnderDotDir(t *testing.T) {
	t.Setenv("CODEVAULT_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CODEVAULT_QUIET", "true")

	dir := t.TempDir()
	p, err := Open(dir)
	require.NoError(t, err)

	l, err := p.OpenLock()
	require.NoError(t, err)
	acquired, err := l.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, l.Unlock())
}
