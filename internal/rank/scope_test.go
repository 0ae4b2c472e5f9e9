package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/metadb"
)

func sampleChunks() []metadb.Chunk {
	return []metadb.Chunk{
		{ChunkID: "a", FilePath: "internal/math/add.go", Language: "go", Tags: []string{"math"}},
		{ChunkID: "b", FilePath: "internal/util/strings.go", Language: "go", Tags: []string{"strings"}},
		{ChunkID: "c", FilePath: "docs/README.md", Language: "markdown", Tags: []string{"docs"}},
	}
}

func TestApplyScopeFiltersByLangCaseInsensitively(t *testing.T) {
	out, err := applyScope(sampleChunks(), Scope{Lang: "GO"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestApplyScopeFiltersByPathGlob(t *testing.T) {
	out, err := applyScope(sampleChunks(), Scope{PathGlob: "internal/math/**"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ChunkID)
}

func TestApplyScopeFiltersByTagIntersection(t *testing.T) {
	out, err := applyScope(sampleChunks(), Scope{Tags: []string{"strings"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ChunkID)
}

func TestApplyScopeWithNoFieldsReturnsEverything(t *testing.T) {
	out, err := applyScope(sampleChunks(), Scope{})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestIsDocPathRecognizesCommonDocMarkers(t *testing.T) {
	assert.True(t, isDocPath("README.md"))
	assert.True(t, isDocPath("docs/guide.txt"))
	assert.True(t, isDocPath("CHANGELOG"))
	assert.False(t, isDocPath("internal/rank/rank.go"))
}
