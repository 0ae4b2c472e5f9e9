package metadb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleChunk() Chunk {
	return Chunk{
		ChunkID:          "chunk-1",
		Sha:              "sha-1",
		FilePath:         "pkg/foo.go",
		Symbol:           "DoThing",
		ChunkType:        "container",
		Language:         "go",
		Provider:         "openai",
		Dimensions:       1536,
		Embedding:        []float32{0.1, 0.2, 0.3},
		SymbolSignature:  "func DoThing(x int) error",
		SymbolParameters: []string{"x int"},
		SymbolReturn:     "error",
		SymbolCalls:      []string{"validate", "persist"},
		SymbolNeighbors:  []string{"chunk-2"},
		Tags:             []string{"validation", "io"},
		Intent:           "validate input",
		Description:      "Validates and persists x.",
		StartLine:        10,
		EndLine:          40,
	}
}

func TestInsertAndGetChunksRoundTrip(t *testing.T) {
	db := openTestDB(t)
	c := sampleChunk()
	require.NoError(t, db.InsertChunk(c))

	got, err := db.GetChunks("openai", 1536)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ChunkID, got[0].ChunkID)
	assert.Equal(t, c.Embedding, got[0].Embedding)
	assert.Equal(t, c.SymbolParameters, got[0].SymbolParameters)
	assert.Equal(t, c.Tags, got[0].Tags)
}

func TestInsertChunkUpsertsOnConflict(t *testing.T) {
	db := openTestDB(t)
	c := sampleChunk()
	require.NoError(t, db.InsertChunk(c))

	c.Description = "updated description"
	require.NoError(t, db.InsertChunk(c))

	got, err := db.GetChunks("openai", 1536)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "updated description", got[0].Description)
}

func TestDeleteChunksRemovesByID(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertChunk(sampleChunk()))

	require.NoError(t, db.DeleteChunks([]string{"chunk-1"}))

	got, err := db.GetChunks("openai", 1536)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteByFilePathRemovesChunksAndFile(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertChunk(sampleChunk()))

	require.NoError(t, db.DeleteByFilePath("pkg/foo.go"))

	got, err := db.GetChunks("openai", 1536)
	require.NoError(t, err)
	assert.Empty(t, got)

	paths, err := db.GetAllFilePaths()
	require.NoError(t, err)
	assert.NotContains(t, paths, "pkg/foo.go")
}

func TestGetAllFilePathsAndExistingDimensions(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertChunk(sampleChunk()))

	other := sampleChunk()
	other.ChunkID = "chunk-2"
	other.FilePath = "pkg/bar.go"
	other.Provider = "mock"
	other.Dimensions = 8
	require.NoError(t, db.InsertChunk(other))

	paths, err := db.GetAllFilePaths()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pkg/foo.go", "pkg/bar.go"}, paths)

	dims, err := db.GetExistingDimensions()
	require.NoError(t, err)
	assert.Len(t, dims, 2)
}

func TestGetOverviewChunksOrdersContainersFirst(t *testing.T) {
	db := openTestDB(t)

	window := sampleChunk()
	window.ChunkID = "chunk-window"
	window.ChunkType = "window"
	require.NoError(t, db.InsertChunk(window))

	container := sampleChunk()
	container.ChunkID = "chunk-container"
	container.ChunkType = "container"
	require.NoError(t, db.InsertChunk(container))

	overview, err := db.GetOverviewChunks(10)
	require.NoError(t, err)
	require.Len(t, overview, 2)
	assert.Equal(t, "container", overview[0].ChunkType)
}

func TestRecordQueryPatternAndIntention(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordQueryPattern("how to X"))
	require.NoError(t, db.RecordQueryPattern("how to X"))
	require.NoError(t, db.RecordIntention("how to x", "How to X?", "sha-1", 0.92))
}
