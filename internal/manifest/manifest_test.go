package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/cverr"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "merkle.json"))
	require.NoError(t, err)
	assert.Empty(t, m.Paths())
}

func TestSetGetSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merkle.json")
	m, err := Load(path)
	require.NoError(t, err)

	m.Set("a/b.go", Entry{ShaFile: "abc", ChunkShas: []string{"s1", "s2"}})
	require.NoError(t, m.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := reloaded.Get("a/b.go")
	require.True(t, ok)
	assert.Equal(t, "abc", entry.ShaFile)
	assert.Equal(t, []string{"s1", "s2"}, entry.ChunkShas)
}

func TestUnchangedDetectsMatchingHash(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "merkle.json"))
	require.NoError(t, err)
	m.Set("x.go", Entry{ShaFile: "deadbeef"})

	assert.True(t, m.Unchanged("x.go", "deadbeef"))
	assert.False(t, m.Unchanged("x.go", "other"))
	assert.False(t, m.Unchanged("missing.go", "deadbeef"))
}

func TestHashFileIsDeterministic(t *testing.T) {
	a := HashFile([]byte("hello world"))
	b := HashFile([]byte("hello world"))
	c := HashFile([]byte("hello there"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestValidatePathRejectsEscapes(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, ValidatePath(root, "src/main.go"))

	err := ValidatePath(root, "../escape.go")
	require.Error(t, err)
	kind, ok := cverr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cverr.KindPathValidationFailed, kind)

	err = ValidatePath(root, "/etc/passwd")
	require.Error(t, err)
}

func TestDeleteMarksDirty(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "merkle.json"))
	require.NoError(t, err)
	m.Set("a.go", Entry{ShaFile: "x"})
	require.NoError(t, m.Save())
	require.False(t, m.Dirty())
	m.Delete("a.go")
	assert.True(t, m.Dirty())
	_, ok := m.Get("a.go")
	assert.False(t, ok)
}
