package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/rules"
	"github.com/codevault/codevault/internal/tokencount"
)

func testProfile() tokencount.Profile {
	return tokencount.NewProfile(20, 200, 400, 40, 0, tokencount.NewCharCounter())
}

func TestChunkFileGoBasics(t *testing.T) {
	c := New(rules.NewRegistry())

	source := []byte(`package main

import "fmt"

// Calculate doubles x.
func Calculate(x int) int {
	return x * 2
}

// Helper prints a greeting.
func Helper() {
	fmt.Println("hi")
}

const MaxValue = 100
`)

	chunks, stats := c.ChunkFile("example.go", source, testProfile())
	require.NotEmpty(t, chunks)
	assert.False(t, stats.Fallback)

	var names []string
	for _, ch := range chunks {
		names = append(names, ch.Symbol)
		assert.Equal(t, "example.go", ch.FilePath)
		assert.NotEmpty(t, ch.Sha)
		assert.Contains(t, ch.ChunkID, "example.go:")
	}
	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "Calculate")
}

func TestChunkFileUnsupportedExtensionFallsBack(t *testing.T) {
	c := New(rules.NewRegistry())
	source := []byte("some arbitrary content\nwith multiple lines\n")

	chunks, stats := c.ChunkFile("notes.txt", source, testProfile())
	require.Len(t, chunks, 1)
	assert.True(t, stats.Fallback)
	assert.Equal(t, ChunkTypeFallback, chunks[0].ChunkType)
	assert.Equal(t, "notes.txt", chunks[0].FilePath)
}

func TestChunkFileLargeFunctionUsesStatementWindow(t *testing.T) {
	c := New(rules.NewRegistry())

	var body strings.Builder
	for i := 0; i < 200; i++ {
		body.WriteString("\tx := 1\n")
	}
	source := []byte("package main\n\nfunc Big() {\n" + body.String() + "}\n")

	chunks, stats := c.ChunkFile("big.go", source, testProfile())
	require.NotEmpty(t, chunks)
	assert.False(t, stats.Fallback)
	assert.Greater(t, stats.TotalChunks, 1)
}

func TestMineSemanticTagsCapsAtTen(t *testing.T) {
	tags := mineSemanticTags("internal/auth/cache/database/http/api/config/test/queue/event/parser/token.go",
		"AuthCacheHandler", "auth cache database http api config test queue event parser token")
	assert.LessOrEqual(t, len(tags), 10)
}

func TestExtractParametersAndReturnType(t *testing.T) {
	sig := extractSignature("func Add(a int, b int) int {\n\treturn a + b\n}")
	params := extractParameters(sig)
	assert.Equal(t, []string{"a int", "b int"}, params)
	assert.Equal(t, "int", extractReturnType(sig))
}

func TestMergeOrSkipSmallMergesBelowMinIntoPreceding(t *testing.T) {
	profile := tokencount.NewProfile(10, 200, 400, 0, 0, tokencount.NewCharCounter())
	chunks := []Chunk{
		{ChunkID: "a", FilePath: "f.go", Symbol: "A", Code: strings.Repeat("x", 20), EndLine: 5},
		{ChunkID: "b", FilePath: "f.go", Symbol: "B", Code: "tiny", EndLine: 6},
	}
	var stat Stats
	out := mergeOrSkipSmall(chunks, profile, &stat)

	require.Len(t, out, 1)
	assert.Equal(t, 1, stat.MergedSmall)
	assert.Equal(t, 0, stat.SkippedSmall)
	assert.Contains(t, out[0].Code, "tiny")
	assert.Equal(t, uint32(6), out[0].EndLine)
}

func TestMergeOrSkipSmallSkipsLeadingUndersizedChunkWithNoNeighbor(t *testing.T) {
	profile := tokencount.NewProfile(10, 200, 400, 0, 0, tokencount.NewCharCounter())
	chunks := []Chunk{
		{ChunkID: "a", FilePath: "f.go", Symbol: "A", Code: "tiny"},
		{ChunkID: "b", FilePath: "f.go", Symbol: "B", Code: strings.Repeat("x", 20)},
	}
	var stat Stats
	out := mergeOrSkipSmall(chunks, profile, &stat)

	require.Len(t, out, 1)
	assert.Equal(t, "B", out[0].Symbol)
	assert.Equal(t, 0, stat.MergedSmall)
	assert.Equal(t, 1, stat.SkippedSmall)
}

