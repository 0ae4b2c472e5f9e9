package embedder

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/embedprovider"
)

func TestAddChunkRejectsOversizedItem(t *testing.T) {
	b := New(embedprovider.NewMockProvider(4), nil, nil)
	huge := strings.Repeat("a", PerItemTokenLimit+10)
	err := b.AddChunk(context.Background(), "big", huge)
	require.Error(t, err)
}

func TestFlushEmbedsAllQueuedItems(t *testing.T) {
	b := New(embedprovider.NewMockProvider(4), nil, nil)
	require.NoError(t, b.AddChunk(context.Background(), "c1", "hello"))
	require.NoError(t, b.AddChunk(context.Background(), "c2", "world"))
	assert.Equal(t, 2, b.Pending())

	results, err := b.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Len(t, r.Embedding, 4)
	}
	assert.Equal(t, 0, b.Pending())
}

func TestProcessBatchSplitsOnTokenLimit(t *testing.T) {
	cp := &countingProvider{Provider: embedprovider.NewMockProvider(4)}
	b := New(cp, nil, nil)
	// 13 items of 8000 chars each: the first 12 total 96000, within
	// PerBatchTokenLimit; the 13th would exceed it and starts a second
	// request.
	var items []Item
	for i := 0; i < 13; i++ {
		items = append(items, Item{ChunkID: fmt.Sprintf("c%d", i), Text: strings.Repeat("x", 8000)})
	}
	results, err := b.ProcessBatch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, 13)
	assert.Equal(t, 2, cp.batchCalls)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("c%d", i), r.ChunkID)
		require.NoError(t, r.Err)
		assert.Len(t, r.Embedding, 4)
	}
}

type countingProvider struct {
	embedprovider.Provider
	batchCalls int
}

func (c *countingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	return c.Provider.GenerateEmbeddings(ctx, texts)
}

func TestProcessBatchRejectsOversizedItemWithoutCallingProvider(t *testing.T) {
	fp := &failingProvider{failBatch: false}
	b := New(fp, nil, nil)
	huge := strings.Repeat("a", PerItemTokenLimit+10)

	results, err := b.ProcessBatch(context.Background(), []Item{
		{ChunkID: "huge", Text: huge},
		{ChunkID: "fine", Text: "small"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var huger, finer Result
	for _, r := range results {
		if r.ChunkID == "huge" {
			huger = r
		}
		if r.ChunkID == "fine" {
			finer = r
		}
	}
	require.Error(t, huger.Err)
	assert.Nil(t, huger.Embedding)
	require.NoError(t, finer.Err)
}

func TestAddChunkAutoFlushesAtBatchSize(t *testing.T) {
	b := New(embedprovider.NewMockProvider(4), nil, nil)
	for i := 0; i < BatchSize-1; i++ {
		require.NoError(t, b.AddChunk(context.Background(), "c", "text"))
	}
	assert.Equal(t, BatchSize-1, b.Pending())

	require.NoError(t, b.AddChunk(context.Background(), "last", "text"))
	assert.Equal(t, 0, b.Pending(), "queue should drain once it reaches BatchSize")
}

type failingProvider struct {
	embedprovider.Provider
	failBatch bool
}

func (f *failingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failBatch {
		return nil, assert.AnError
	}
	return nil, nil
}

func (f *failingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "poison" {
		return nil, assert.AnError
	}
	return []float32{1, 2, 3}, nil
}

func TestEmbedBatchFallsBackPerItemOnBatchFailure(t *testing.T) {
	fp := &failingProvider{failBatch: true}
	b := New(fp, nil, nil)

	results, err := b.ProcessBatch(context.Background(), []Item{
		{ChunkID: "good", Text: "fine"},
		{ChunkID: "bad", Text: "poison"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, []float32{1, 2, 3}, results[0].Embedding)
	assert.Error(t, results[1].Err)
}
