package codemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "codemap.json"))
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestSetGetSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codemap.json")
	c, err := Load(path)
	require.NoError(t, err)

	c.Set("chunk-1", Entry{Sha: "abc", FilePath: "a.go", Symbol: "Foo", ChunkType: "container", StartLine: 1, EndLine: 10})
	require.NoError(t, c.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := reloaded.Get("chunk-1")
	require.True(t, ok)
	assert.Equal(t, "Foo", entry.Symbol)
	assert.Equal(t, uint32(10), entry.EndLine)
}

func TestDeleteByFilePathRemovesOnlyMatchingEntries(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "codemap.json"))
	require.NoError(t, err)

	c.Set("chunk-1", Entry{FilePath: "a.go"})
	c.Set("chunk-2", Entry{FilePath: "b.go"})

	c.DeleteByFilePath("a.go")

	_, ok := c.Get("chunk-1")
	assert.False(t, ok)
	_, ok = c.Get("chunk-2")
	assert.True(t, ok)
}

func TestSaveIsNoOpWhenNotDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codemap.json")
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Save())

	_, statErr := os.Stat(path)
	assert.Error(t, statErr)
}
