// Package embedder batches chunks for embedding: chunks are queued via
// AddChunk, flushed either when a batch fills or on an explicit Flush, and
// a batch failure falls back to embedding each queued item individually so
// one bad text does not drop an entire batch's results.
//
// Accumulation respects per-item/per-batch token ceilings and paces
// requests through internal/ratelimit.
package embedder

import (
	"context"
	"sync"

	"github.com/codevault/codevault/internal/cverr"
	"github.com/codevault/codevault/internal/embedprovider"
	"github.com/codevault/codevault/internal/ratelimit"
	"github.com/codevault/codevault/internal/tokencount"
)

// PerItemTokenLimit is the maximum size (in the active Counter's units) a
// single text may have before it is rejected rather than sent upstream.
const PerItemTokenLimit = 8191

// PerBatchTokenLimit bounds the combined size of one embedding request.
const PerBatchTokenLimit = 100000

// BatchSize is the queue depth at which AddChunk triggers an automatic
// process_batch rather than waiting for an explicit Flush.
const BatchSize = 50

// Item is one chunk queued for embedding.
type Item struct {
	ChunkID string
	Text    string
}

// Result is one embedded item, or an error if it could not be embedded
// even via the per-item fallback.
type Result struct {
	ChunkID   string
	Embedding []float32
	Err       error
}

// Batcher accumulates Items and embeds them in batches against a Provider.
type Batcher struct {
	provider embedprovider.Provider
	limiter  *ratelimit.Limiter
	counter  tokencount.Counter

	mu      sync.Mutex
	pending []Item

	// batchMu serializes ProcessBatch/Flush calls: only one batch is in
	// flight against the provider at a time, so a provider with its own
	// internal rate bookkeeping (or the shared ratelimit.Limiter) never
	// sees overlapping requests from the same Batcher.
	batchMu sync.Mutex
}

// New builds a Batcher. limiter may be nil to disable rate limiting
// (e.g. for the mock provider in tests).
func New(provider embedprovider.Provider, limiter *ratelimit.Limiter, counter tokencount.Counter) *Batcher {
	if counter == nil {
		counter = tokencount.NewCharCounter()
	}
	return &Batcher{provider: provider, limiter: limiter, counter: counter}
}

// AddChunk queues an item, returning an error immediately if it alone
// exceeds PerItemTokenLimit rather than deferring the rejection to flush
// time. Once the queue reaches BatchSize, AddChunk drains and embeds it
// itself before returning, so callers never need to poll queue depth.
func (b *Batcher) AddChunk(ctx context.Context, chunkID, text string) error {
	if b.counter.Count(text) > PerItemTokenLimit {
		return cverr.New(cverr.KindValidation, "chunk "+chunkID+" exceeds per-item embedding token limit")
	}
	b.mu.Lock()
	b.pending = append(b.pending, Item{ChunkID: chunkID, Text: text})
	full := len(b.pending) >= BatchSize
	b.mu.Unlock()

	if full {
		if _, err := b.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Flush embeds every queued item, batching consecutive items up to
// PerBatchTokenLimit per request, and returns a Result per item
// (including failures) in queue order. The queue is empty afterward.
func (b *Batcher) Flush(ctx context.Context) ([]Result, error) {
	b.mu.Lock()
	items := b.pending
	b.pending = nil
	b.mu.Unlock()

	return b.ProcessBatch(ctx, items)
}

// ProcessBatch embeds the given items directly, without touching the
// queue, batching by PerBatchTokenLimit and falling back to per-item
// embedding if a batch request fails outright. An item exceeding
// PerItemTokenLimit is rejected with a Result.Err rather than being sent
// upstream, the same hard error AddChunk raises for a queued item, so a
// caller that reaches ProcessBatch directly (skipping the queue) gets the
// identical guarantee.
func (b *Batcher) ProcessBatch(ctx context.Context, items []Item) ([]Result, error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	results := make([]Result, 0, len(items))

	var batch []Item
	batchTokens := 0
	flushBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		res := b.embedBatch(ctx, batch)
		results = append(results, res...)
		batch = nil
		batchTokens = 0
		return nil
	}

	for _, item := range items {
		n := b.counter.Count(item.Text)
		if n > PerItemTokenLimit {
			if err := flushBatch(); err != nil {
				return results, err
			}
			results = append(results, Result{
				ChunkID: item.ChunkID,
				Err:     cverr.New(cverr.KindValidation, "chunk "+item.ChunkID+" exceeds per-item embedding token limit"),
			})
			continue
		}
		if batchTokens+n > PerBatchTokenLimit && len(batch) > 0 {
			if err := flushBatch(); err != nil {
				return results, err
			}
		}
		batch = append(batch, item)
		batchTokens += n
	}
	if err := flushBatch(); err != nil {
		return results, err
	}
	return results, nil
}

// embedBatch embeds one batch in a single request, falling back to
// per-item requests if the batch call fails.
func (b *Batcher) embedBatch(ctx context.Context, batch []Item) []Result {
	if b.limiter != nil {
		total := 0
		for _, it := range batch {
			total += b.counter.Count(it.Text)
		}
		if err := b.limiter.Wait(ctx, total); err != nil {
			return b.embedIndividually(ctx, batch)
		}
	}

	texts := make([]string, len(batch))
	for i, it := range batch {
		texts[i] = it.Text
	}

	vecs, err := b.provider.GenerateEmbeddings(ctx, texts)
	if err != nil || len(vecs) != len(batch) {
		return b.embedIndividually(ctx, batch)
	}

	out := make([]Result, len(batch))
	for i, it := range batch {
		out[i] = Result{ChunkID: it.ChunkID, Embedding: vecs[i]}
	}
	return out
}

// embedIndividually is the per-item fallback taken when a batch request
// fails, so one malformed or oversized text does not sink its whole batch.
func (b *Batcher) embedIndividually(ctx context.Context, batch []Item) []Result {
	out := make([]Result, len(batch))
	for i, it := range batch {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx, b.counter.Count(it.Text)); err != nil {
				out[i] = Result{ChunkID: it.ChunkID, Err: err}
				continue
			}
		}
		vec, err := b.provider.GenerateEmbedding(ctx, it.Text)
		if err != nil {
			out[i] = Result{ChunkID: it.ChunkID, Err: cverr.Wrap(cverr.KindBatchFailed, "embed chunk "+it.ChunkID, err)}
			continue
		}
		out[i] = Result{ChunkID: it.ChunkID, Embedding: vec}
	}
	return out
}

// Pending returns the number of items currently queued.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
