package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/embedprovider"
)

const sampleGoSource = `package sample

func Add(a, b int) int {
	return a + b
}

func Multiply(a, b int) int {
	return Add(a, a) * b
}
`

func newTestIndexer(t *testing.T) (*Indexer, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(sampleGoSource), 0o644))

	ix, err := New(Config{
		RepoRoot: dir,
		Provider: embedprovider.NewMockProvider(8),
	})
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix, dir
}

func TestRunIndexesNewRepository(t *testing.T) {
	ix, _ := newTestIndexer(t)

	res, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 1, res.ProcessedFiles)
	assert.Greater(t, res.ProcessedChunks, 0)
	assert.Equal(t, res.ProcessedChunks, res.TotalChunks)
	assert.Equal(t, ix.codemap.Len(), res.TotalChunks)
}

func TestRunSkipsUnchangedFileOnSecondPass(t *testing.T) {
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	_, err := ix.Run(ctx)
	require.NoError(t, err)

	res, err := ix.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ProcessedFiles, "unchanged file should be skipped entirely")
}

func TestRunReindexesModifiedFile(t *testing.T) {
	ix, dir := newTestIndexer(t)
	ctx := context.Background()

	_, err := ix.Run(ctx)
	require.NoError(t, err)

	updated := sampleGoSource + "\nfunc Subtract(a, b int) int {\n\treturn a - b\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(updated), 0o644))

	res, err := ix.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProcessedFiles)
	assert.Greater(t, res.ProcessedChunks, 0)
}

func TestRunProcessesDeletedFile(t *testing.T) {
	ix, dir := newTestIndexer(t)
	ctx := context.Background()

	_, err := ix.Run(ctx)
	require.NoError(t, err)
	require.Greater(t, ix.codemap.Len(), 0)

	require.NoError(t, os.Remove(filepath.Join(dir, "sample.go")))

	res, err := ix.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedFiles)
	assert.Equal(t, 0, ix.codemap.Len())
	assert.Equal(t, 0, res.TotalChunks)
}

func TestRunHonorsExplicitChangedFiles(t *testing.T) {
	ix, dir := newTestIndexer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.go"), []byte("package sample\n\nfunc Noop() {}\n"), 0o644))

	ix.changedFiles = []string{"sample.go"}
	res, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProcessedFiles)

	_, ok := ix.manifest.Get("other.go")
	assert.False(t, ok, "file outside the explicit change set should not be touched")
}

func TestBuildSymbolGraphLinksCallerToCallee(t *testing.T) {
	ix, dir := newTestIndexer(t)
	// Consecutive top-level functions in one file form a single group
	// chunk, so caller and callee go in separate files of one package to
	// get one chunk per function.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte("package sample\n\nfunc Multiply(a, b int) int {\n\treturn Add(a, a) * b\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "add.go"), []byte("package sample\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n"), 0o644))
	_, err := ix.Run(context.Background())
	require.NoError(t, err)

	var callerID string
	for _, id := range ix.codemap.ChunkIDs() {
		e, _ := ix.codemap.Get(id)
		if e.Symbol == "Multiply" {
			callerID = id
		}
	}
	require.NotEmpty(t, callerID, "expected a chunk for the Multiply function")

	entry, ok := ix.codemap.Get(callerID)
	require.True(t, ok)
	assert.NotEmpty(t, entry.Neighbors, "Multiply calls Add and should resolve a same-package neighbor")
}
