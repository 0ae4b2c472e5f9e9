package rank

import (
	"context"
	"sort"

	"github.com/codevault/codevault/internal/ann"
	"github.com/codevault/codevault/internal/bm25"
	"github.com/codevault/codevault/internal/cache"
	"github.com/codevault/codevault/internal/cverr"
	"github.com/codevault/codevault/internal/embedprovider"
	"github.com/codevault/codevault/internal/metadb"
	"github.com/codevault/codevault/internal/store"
)

const (
	// defaultLimit is L when Options.Limit is unset.
	defaultLimit = 10
	// minSelectionBudget is the floor for B.
	minSelectionBudget = 60
	// minBM25PrefilterBudget is the floor for P.
	minBM25PrefilterBudget = 500
	// annNarrowThreshold is how large the scoped candidate set must be
	// before the optional ANN accelerator is consulted to narrow it ahead
	// of exact rescoring, on the pure dense-only path.
	annNarrowThreshold = 1000
	// queryEmbeddingCacheSize bounds how many distinct query strings a
	// Ranker keeps an embedding for, so back-to-back identical queries
	// reuse the vector instead of re-embedding.
	queryEmbeddingCacheSize = 256
)

// Ranker runs the hybrid search pipeline against one project's metadata.
type Ranker struct {
	metaDB   *metadb.DB
	provider embedprovider.Provider
	bm25Mgr  *bm25.Manager
	basePath string
	store    *store.Store

	ann      *ann.Index // optional; nil disables ANN narrowing
	reranker Reranker   // optional

	queryEmbeddings *cache.LRU[string, []float32]
}

// New builds a Ranker. bm25Mgr, annIndex, and reranker may be nil to
// disable their respective stages.
func New(metaDB *metadb.DB, provider embedprovider.Provider, bm25Mgr *bm25.Manager, basePath string, annIndex *ann.Index, reranker Reranker, blobStore *store.Store) *Ranker {
	return &Ranker{
		metaDB:          metaDB,
		provider:        provider,
		bm25Mgr:         bm25Mgr,
		basePath:        basePath,
		store:           blobStore,
		ann:             annIndex,
		reranker:        reranker,
		queryEmbeddings: cache.New[string, []float32](queryEmbeddingCacheSize),
	}
}

// codeTextFor returns c's code body for inclusion in a BM25 or rerank
// document, read back from the content-addressed blob store. A chunk
// whose blob can't be read (store unset, blob missing, decrypt failure)
// falls back to an empty body rather than failing the whole search.
func (r *Ranker) codeTextFor(c metadb.Chunk) string {
	if r.store == nil {
		return ""
	}
	code, err := r.store.Read(c.Sha)
	if err != nil {
		return ""
	}
	return string(code)
}

// embedQuery returns rawQuery's embedding, reusing a cached vector for a
// repeat query against the same provider instead of calling
// GenerateEmbedding again.
func (r *Ranker) embedQuery(ctx context.Context, rawQuery string) ([]float32, error) {
	return r.queryEmbeddings.GetOrCompute(rawQuery, func() ([]float32, error) {
		return r.provider.GenerateEmbedding(ctx, rawQuery)
	})
}

// Search runs the full scope-filter -> BM25 prefilter -> dense scoring ->
// fusion -> symbol boost -> truncate -> rerank pipeline.
func (r *Ranker) Search(ctx context.Context, rawQuery string, opts Options) (*SearchResult, error) {
	query := normalizeQuery(rawQuery)

	allChunks, err := r.metaDB.GetChunks(r.provider.Name(), r.provider.Dimensions())
	if err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "load chunks for search", err)
	}
	if len(allChunks) == 0 {
		return nil, cverr.New(cverr.KindNoChunksFound, "no indexed chunks for active provider/dimensions")
	}

	scoped, err := applyScope(allChunks, opts.Scope)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindValidation, "invalid scope", err)
	}
	if len(scoped) == 0 {
		return nil, cverr.New(cverr.KindNoRelevantMatches, "no chunks matched the given scope")
	}

	byChunkID := make(map[string]metadb.Chunk, len(scoped))
	for _, c := range allChunks {
		byChunkID[c.ChunkID] = c
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	selectionBudget := limit
	if selectionBudget < minSelectionBudget {
		selectionBudget = minSelectionBudget
	}
	prefilterBudget := selectionBudget
	if prefilterBudget < minBM25PrefilterBudget {
		prefilterBudget = minBM25PrefilterBudget
	}

	bm25Enabled := opts.Toggles.Hybrid && opts.Toggles.BM25
	var bm25Results []bm25.Result
	denseCandidates := scoped

	if bm25Enabled && r.bm25Mgr != nil {
		idx := r.bm25Mgr.Get(r.basePath, r.provider.Name(), r.provider.Dimensions())
		r.ensureBM25Indexed(idx, scoped)

		scopedIDs := make(map[string]bool, len(scoped))
		for _, c := range scoped {
			scopedIDs[c.ChunkID] = true
		}
		raw := idx.Search(query, prefilterBudget)
		bm25Results = make([]bm25.Result, 0, len(raw))
		for _, res := range raw {
			if scopedIDs[res.ID] {
				bm25Results = append(bm25Results, res)
			}
		}
		if len(bm25Results) > 0 {
			scopedByID := make(map[string]metadb.Chunk, len(scoped))
			for _, c := range scoped {
				scopedByID[c.ChunkID] = c
			}
			narrowed := make([]metadb.Chunk, 0, len(bm25Results))
			for _, res := range bm25Results {
				narrowed = append(narrowed, scopedByID[res.ID])
			}
			denseCandidates = narrowed
		}
	} else if r.ann != nil && len(scoped) > annNarrowThreshold {
		denseCandidates = r.narrowByANN(scoped, rawQuery, prefilterBudget)
	}

	embedding, err := r.embedQuery(ctx, rawQuery)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "embed query", err)
	}

	scoredDense := make([]candidate, 0, len(denseCandidates))
	for _, c := range denseCandidates {
		vs := cosineSimilarity(embedding, c.Embedding)
		raw := vs + denseBoost(query, c)
		scoredDense = append(scoredDense, candidate{
			chunk:       c,
			vectorScore: vs,
			scoreRaw:    raw,
			score:       clamp01(raw),
		})
	}
	sortByScoreDesc(scoredDense)

	topB := scoredDense
	if len(topB) > selectionBudget {
		topB = topB[:selectionBudget]
	}

	searchType := "vector"
	fused := false
	var finalCandidates []candidate

	if bm25Enabled && len(bm25Results) > 0 {
		fused = true
		searchType = "hybrid"
		finalCandidates = r.fuseRanked(topB, bm25Results, selectionBudget, byChunkID)
	} else {
		finalCandidates = topB
		for i := range finalCandidates {
			vr := i + 1
			finalCandidates[i].vectorRank = &vr
		}
	}

	symbolBoostEnabled := opts.Toggles.SymbolBoost
	boostedCount := 0
	if symbolBoostEnabled {
		tokens := queryTokens(query)
		for i := range finalCandidates {
			boost, sources := symbolBoostFor(tokens, finalCandidates[i].chunk, byChunkID)
			if boost > 0 {
				finalCandidates[i].symbolBoost = boost
				finalCandidates[i].symbolBoostSources = sources
				boostedCount++
			}
		}
	}

	sortFinal(finalCandidates)

	if len(finalCandidates) > limit {
		finalCandidates = finalCandidates[:limit]
	}

	var warnings []string
	if r.reranker != nil && opts.Toggles.Reranker == "api" && len(finalCandidates) > 1 {
		finalCandidates, warnings = r.applyReranker(rawQuery, finalCandidates)
	}

	results := make([]Result, 0, len(finalCandidates))
	for _, cand := range finalCandidates {
		results = append(results, buildResult(cand, searchType))
	}

	return &SearchResult{
		Results:    results,
		SearchType: searchType,
		Hybrid: HybridInfo{
			Enabled:        opts.Toggles.Hybrid,
			BM25Enabled:    bm25Enabled,
			Fused:          fused,
			BM25Candidates: len(bm25Results),
		},
		SymbolBoost: SymbolBoostInfo{
			Enabled: symbolBoostEnabled,
			Boosted: boostedCount,
		},
		Warnings: warnings,
	}, nil
}

// ensureBM25Indexed adds any scoped chunk missing from idx, keyed by
// chunk_id, so a freshly-scoped or freshly-indexed chunk participates in
// lexical search without requiring a separate indexing-time call.
func (r *Ranker) ensureBM25Indexed(idx *bm25.Index, chunks []metadb.Chunk) {
	docs := make([]bm25.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, bm25.Document{
			ID:   c.ChunkID,
			Text: bm25.BuildDocumentText(c.Symbol, c.FilePath, c.Description, c.Intent, r.codeTextFor(c)),
		})
	}
	idx.AddDocuments(docs)
}

func (r *Ranker) narrowByANN(scoped []metadb.Chunk, rawQuery string, budget int) []metadb.Chunk {
	byID := make(map[string]metadb.Chunk, len(scoped))
	for _, c := range scoped {
		byID[c.ChunkID] = c
		r.ann.Add(c.ChunkID, c.Embedding)
	}
	embedding, err := r.embedQuery(context.Background(), rawQuery)
	if err != nil {
		return scoped
	}
	ids := r.ann.Search(embedding, budget)
	if len(ids) == 0 {
		return scoped
	}
	out := make([]metadb.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// fuseRanked runs reciprocal rank fusion over the top-B dense and top-B
// BM25 lists, returning the fused candidate set carrying every per-source
// rank/score annotation downstream boosting and display need.
func (r *Ranker) fuseRanked(topBDense []candidate, bm25Results []bm25.Result, selectionBudget int, byChunkID map[string]metadb.Chunk) []candidate {
	denseByID := make(map[string]candidate, len(topBDense))
	denseIDs := make([]string, 0, len(topBDense))
	for i, c := range topBDense {
		vr := i + 1
		c.vectorRank = &vr
		denseByID[c.chunk.ChunkID] = c
		denseIDs = append(denseIDs, c.chunk.ChunkID)
	}

	bm25Top := bm25Results
	if len(bm25Top) > selectionBudget {
		bm25Top = bm25Top[:selectionBudget]
	}
	bm25IDs := make([]string, 0, len(bm25Top))
	bm25ByID := make(map[string]bm25.Result, len(bm25Top))
	for _, res := range bm25Top {
		bm25IDs = append(bm25IDs, res.ID)
		bm25ByID[res.ID] = res
	}

	fusedScores := reciprocalRankFusion(denseIDs, bm25IDs)

	seen := make(map[string]bool, len(fusedScores))
	out := make([]candidate, 0, len(fusedScores))
	for id := range fusedScores {
		if seen[id] {
			continue
		}
		seen[id] = true

		cand, ok := denseByID[id]
		if !ok {
			chunk, ok := byChunkID[id]
			if !ok {
				continue
			}
			cand = candidate{chunk: chunk}
		}

		fs := fusedScores[id]
		cand.hybridScore = &fs
		if res, ok := bm25ByID[id]; ok {
			score := res.Score
			rank := res.Rank
			cand.bm25Score = &score
			cand.bm25Rank = &rank
		}
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := *out[i].hybridScore, *out[j].hybridScore
		if si != sj {
			return si > sj
		}
		return out[i].chunk.ChunkID < out[j].chunk.ChunkID
	})
	return out
}

func sortByScoreDesc(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].chunk.ChunkID < cands[j].chunk.ChunkID
	})
}

// sortFinal applies the primary sort order: score (or hybridScore if
// fused) descending, symbolBoost descending as the first tiebreaker,
// chunk ID ascending as the final deterministic tiebreaker.
func sortFinal(cands []candidate) {
	primary := func(c candidate) float64 {
		if c.hybridScore != nil {
			return *c.hybridScore
		}
		return c.score
	}
	sort.SliceStable(cands, func(i, j int) bool {
		pi, pj := primary(cands[i]), primary(cands[j])
		if pi != pj {
			return pi > pj
		}
		if cands[i].symbolBoost != cands[j].symbolBoost {
			return cands[i].symbolBoost > cands[j].symbolBoost
		}
		return cands[i].chunk.ChunkID < cands[j].chunk.ChunkID
	})
}

func buildResult(c candidate, searchType string) Result {
	meta := Meta{
		ID:            c.chunk.ChunkID,
		Symbol:        c.chunk.Symbol,
		Score:         c.score,
		VectorScore:   c.vectorScore,
		HybridScore:   c.hybridScore,
		BM25Score:     c.bm25Score,
		BM25Rank:      c.bm25Rank,
		VectorRank:    c.vectorRank,
		RerankerScore: c.rerankerScore,
		RerankerRank:  c.rerankerRank,
		Intent:        c.chunk.Intent,
		Description:   c.chunk.Description,
		SearchType:    searchType,
	}
	if c.hybridScore != nil {
		meta.Score = clamp01(*c.hybridScore)
	}
	if c.symbolBoost > 0 {
		b := c.symbolBoost
		meta.SymbolBoost = &b
		meta.SymbolBoostSources = c.symbolBoostSources
	}
	return Result{
		Type: "code",
		Lang: c.chunk.Language,
		Path: c.chunk.FilePath,
		Sha:  c.chunk.Sha,
		Meta: meta,
	}
}

func (r *Ranker) applyReranker(rawQuery string, cands []candidate) ([]candidate, []string) {
	max := 50
	head := cands
	tail := []candidate(nil)
	if len(head) > max {
		tail = head[max:]
		head = head[:max]
	}

	rcands := make([]RerankCandidate, len(head))
	for i, c := range head {
		rcands[i] = RerankCandidate{
			ID: c.chunk.ChunkID,
			Text: bm25.BuildDocumentText(
				c.chunk.Symbol, c.chunk.FilePath, c.chunk.Description, c.chunk.Intent, r.codeTextFor(c.chunk)),
		}
	}

	scores, err := r.reranker.Rerank(rawQuery, rcands)
	if err != nil || len(scores) != len(head) {
		return cands, []string{"reranker unavailable, keeping prior order: " + errString(err)}
	}

	type scoredIdx struct {
		idx   int
		score float64
	}
	ranked := make([]scoredIdx, len(head))
	for i, s := range scores {
		ranked[i] = scoredIdx{idx: i, score: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]candidate, 0, len(cands))
	for rank, ri := range ranked {
		c := head[ri.idx]
		score := ri.score
		rankCopy := rank + 1
		c.rerankerScore = &score
		c.rerankerRank = &rankCopy
		out = append(out, c)
	}
	out = append(out, tail...)
	return out, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
