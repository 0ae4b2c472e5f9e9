// Package rank implements the hybrid BM25 + vector + symbol-boost search
// pipeline plus the companion getOverview/getChunk reads the MCP and CLI
// surfaces expose alongside it.
//
// The dense-scoring baseline is a brute-force cosine similarity loop over
// in-memory vectors, fused against internal/bm25's lexical results,
// narrowed by internal/ann, then boosted, fused via reciprocal rank
// fusion, and optionally reranked.
package rank

import "github.com/codevault/codevault/internal/metadb"

// Scope narrows the searchable chunk set before any scoring happens.
type Scope struct {
	// PathGlob, if set, is matched against each chunk's file path with
	// gobwas/glob (dotfiles are not special-cased).
	PathGlob string
	// Tags, if non-empty, requires at least one tag in common with the
	// chunk's tags.
	Tags []string
	// Lang, if set, is compared case-insensitively against the chunk's
	// language.
	Lang string
}

// Toggles controls which stages of the pipeline run.
type Toggles struct {
	// Hybrid enables lexical (BM25) participation in candidate selection
	// and reciprocal rank fusion. False runs dense-only ("vector") search.
	Hybrid bool
	// BM25 gates the lexical side of Hybrid; Hybrid with BM25 false still
	// runs dense-only scoring but keeps the "hybrid" naming available for
	// callers that pre-toggle both independently.
	BM25 bool
	// SymbolBoost enables the 0-0.45 symbol-signature bonus stage.
	SymbolBoost bool
	// Reranker names an optional reranking stage, currently only "api".
	Reranker string
}

// Options is one Search call's full input.
type Options struct {
	Scope   Scope
	Limit   int
	Toggles Toggles
}

// Meta is a single result's scoring and display metadata.
type Meta struct {
	ID                 string   `json:"id"`
	Symbol             string   `json:"symbol"`
	Score              float64  `json:"score"`
	VectorScore        float64  `json:"vectorScore"`
	HybridScore        *float64 `json:"hybridScore,omitempty"`
	BM25Score          *float64 `json:"bm25Score,omitempty"`
	BM25Rank           *int     `json:"bm25Rank,omitempty"`
	VectorRank         *int     `json:"vectorRank,omitempty"`
	RerankerScore      *float64 `json:"rerankerScore,omitempty"`
	RerankerRank       *int     `json:"rerankerRank,omitempty"`
	SymbolBoost        *float64 `json:"symbolBoost,omitempty"`
	SymbolBoostSources []string `json:"symbolBoostSources,omitempty"`
	Intent             string   `json:"intent,omitempty"`
	Description        string   `json:"description,omitempty"`
	SearchType         string   `json:"searchType"`
}

// Result is one ranked chunk, shaped for direct MCP/CLI serialization.
type Result struct {
	Type string `json:"type"`
	Lang string `json:"lang"`
	Path string `json:"path"`
	Sha  string `json:"sha"`
	Meta Meta   `json:"meta"`
}

// HybridInfo summarizes whether and how fusion ran.
type HybridInfo struct {
	Enabled        bool `json:"enabled"`
	BM25Enabled    bool `json:"bm25Enabled"`
	Fused          bool `json:"fused"`
	BM25Candidates int  `json:"bm25Candidates"`
}

// SymbolBoostInfo summarizes the symbol-boost stage.
type SymbolBoostInfo struct {
	Enabled bool `json:"enabled"`
	Boosted int  `json:"boosted"`
}

// SearchResult is Search's full return shape.
type SearchResult struct {
	Results               []Result        `json:"results"`
	SearchType            string          `json:"searchType"`
	Hybrid                HybridInfo      `json:"hybrid"`
	SymbolBoost           SymbolBoostInfo `json:"symbolBoost"`
	ChunkLoadingFailures  int             `json:"chunkLoadingFailures,omitempty"`
	Warnings              []string        `json:"warnings,omitempty"`
}

// Reranker is the optional external reranking stage.
type Reranker interface {
	// Rerank scores candidates against query, returning one score per
	// candidate in the same order. An error leaves the prior order intact.
	Rerank(query string, candidates []RerankCandidate) ([]float64, error)
}

// RerankCandidate is what gets sent to the external reranker: the chunk's
// BM25-style document text alongside its identity.
type RerankCandidate struct {
	ID   string
	Text string
}

// candidate is the pipeline's internal working record for one chunk as it
// passes through dense scoring, fusion, and boosting.
type candidate struct {
	chunk metadb.Chunk

	vectorScore float64
	scoreRaw    float64
	score       float64

	hybridScore *float64
	bm25Score   *float64
	bm25Rank    *int
	vectorRank  *int

	symbolBoost        float64
	symbolBoostSources []string

	rerankerScore *float64
	rerankerRank  *int
}
