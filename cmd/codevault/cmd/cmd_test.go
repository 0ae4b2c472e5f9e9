package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setMockEnv forces the mock embedding provider and quiet logging so CLI
// tests never reach out to a real embedding API.
func setMockEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CODEVAULT_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CODEVAULT_QUIET", "true")
}

func newTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math.go"), []byte("package math\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n"), 0o644))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestIndexCmdCreatesMetadataDB(t *testing.T) {
	setMockEnv(t)
	dir := newTestProject(t)

	_, err := runCLI(t, "index", "--root", dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, ".codevault", "metadata.db"))
}

func TestSearchCmdWithoutIndexFails(t *testing.T) {
	setMockEnv(t)
	dir := t.TempDir()

	_, err := runCLI(t, "search", "--root", dir, "Add")
	assert.Error(t, err)
}

func TestIndexThenSearchFindsChunk(t *testing.T) {
	setMockEnv(t)
	dir := newTestProject(t)

	_, err := runCLI(t, "index", "--root", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "search", "--root", dir, "Add")
	require.NoError(t, err)
	assert.Contains(t, out, "\"results\"")
}

func TestIndexThenOverviewReturnsChunks(t *testing.T) {
	setMockEnv(t)
	dir := newTestProject(t)

	_, err := runCLI(t, "index", "--root", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "overview", "--root", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "\"results\"")
}

func TestContextPackSaveListApplyActiveRoundTrips(t *testing.T) {
	setMockEnv(t)
	dir := t.TempDir()

	_, err := runCLI(t, "context-pack", "save", "go-only", "--root", dir, "--lang", "go")
	require.NoError(t, err)

	out, err := runCLI(t, "context-pack", "list", "--root", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "go-only")

	_, err = runCLI(t, "context-pack", "apply", "go-only", "--root", dir)
	require.NoError(t, err)

	out, err = runCLI(t, "context-pack", "active", "--root", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "go-only")
}
