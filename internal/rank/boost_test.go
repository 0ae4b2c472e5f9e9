package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codevault/codevault/internal/metadb"
)

func TestDenseBoostAddsIntentTagAndDocPathContributions(t *testing.T) {
	c := metadb.Chunk{
		Intent:   "parse configuration",
		Tags:     []string{"config", "startup"},
		FilePath: "README.md",
	}
	query := "how do we parse configuration at startup"

	// Both tags, "config" and "startup", appear in the query.
	boost := denseBoost(query, c)
	assert.InDelta(t, intentBoost+2*tagBoost+docPathBoost, boost, 1e-9)
}

func TestDenseBoostIsZeroWhenNothingMatches(t *testing.T) {
	c := metadb.Chunk{Intent: "render graphics", Tags: []string{"gpu"}, FilePath: "engine.go"}
	assert.Zero(t, denseBoost("parse configuration", c))
}

func TestQueryTokensDropsShortWords(t *testing.T) {
	assert.Equal(t, []string{"add", "two", "numbers"}, queryTokens("add a to two numbers"))
}

func TestSymbolBoostForMatchesOwnSignature(t *testing.T) {
	c := metadb.Chunk{SymbolSignature: "func Add(a, b int) int"}
	boost, sources := symbolBoostFor([]string{"add"}, c, nil)
	assert.InDelta(t, symbolSignatureBoost, boost, 1e-9)
	assert.NotEmpty(t, sources)
}

func TestSymbolBoostForMatchesNeighborSignatureAndCaps(t *testing.T) {
	neighbor := metadb.Chunk{ChunkID: "n1", Symbol: "Helper", SymbolSignature: "func Helper(x int) int"}
	c := metadb.Chunk{
		SymbolSignature: "func Add(a, b int) int",
		SymbolNeighbors: []string{"n1"},
	}
	byID := map[string]metadb.Chunk{"n1": neighbor}

	boost, sources := symbolBoostFor([]string{"add", "helper"}, c, byID)
	assert.InDelta(t, symbolSignatureBoost+neighborSignatureBoost, boost, 1e-9)
	assert.Len(t, sources, 2)
}

func TestSymbolBoostForCapsAtMax(t *testing.T) {
	neighbors := []metadb.Chunk{
		{ChunkID: "n1", Symbol: "One", SymbolSignature: "func one(x int)"},
		{ChunkID: "n2", Symbol: "Two", SymbolSignature: "func two(x int)"},
		{ChunkID: "n3", Symbol: "Three", SymbolSignature: "func three(x int)"},
		{ChunkID: "n4", Symbol: "Four", SymbolSignature: "func four(x int)"},
	}
	byID := make(map[string]metadb.Chunk, len(neighbors))
	var ids []string
	for _, n := range neighbors {
		byID[n.ChunkID] = n
		ids = append(ids, n.ChunkID)
	}
	c := metadb.Chunk{SymbolSignature: "func call(x int)", SymbolNeighbors: ids}

	boost, _ := symbolBoostFor([]string{"one", "two", "three", "four"}, c, byID)
	assert.LessOrEqual(t, boost, maxSymbolBoost)
}
