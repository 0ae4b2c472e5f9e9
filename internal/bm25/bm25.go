// Package bm25 implements a per-workspace lexical index: an incremental
// inverted index over the document view
// (`symbol ∥ file ∥ description ∥ intent ∥ code_text`, joined by
// newlines, lowercased, split on non-alphanumeric Unicode), scored with
// the standard BM25 formula (k1=1.2, b=0.75).
package bm25

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// DefaultK1 and DefaultB are the standard BM25 term-frequency saturation
// and length-normalization parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75

	// minDocsForConsolidation is the corpus size below which building an
	// IDF table is a documented no-op: BM25 statistics are not meaningful
	// over fewer than three documents.
	minDocsForConsolidation = 3
)

var tokenSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Tokenize lowercases text and splits it on runs of non-alphanumeric
// Unicode, dropping empty tokens.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	parts := tokenSplit.Split(lower, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildDocumentText assembles the lexical document for one chunk: symbol,
// file path, description, intent, and code body, newline-joined.
func BuildDocumentText(symbol, filePath, description, intent, code string) string {
	return strings.Join([]string{symbol, filePath, description, intent, code}, "\n")
}

// Document is one chunk's lexical record.
type Document struct {
	ID   string
	Text string
}

// Result is one scored document.
type Result struct {
	ID    string
	Score float64
	Rank  int
}

// Index is an incremental, per-workspace inverted index.
type Index struct {
	k1 float64
	b  float64

	mu       sync.RWMutex
	postings map[string]map[string]int // term -> docID -> term frequency
	docLen   map[string]int
	totalLen int
	idf      map[string]float64
	avgLen   float64
	dirty    bool
}

// New builds an empty Index using the default BM25 parameters.
func New() *Index {
	return NewWithParams(DefaultK1, DefaultB)
}

// NewWithParams builds an empty Index with an explicit k1/b.
func NewWithParams(k1, b float64) *Index {
	return &Index{
		k1:       k1,
		b:        b,
		postings: make(map[string]map[string]int),
		docLen:   make(map[string]int),
	}
}

// AddDocuments extends the posting lists with docs and marks the index
// dirty; IDF statistics are rebuilt lazily on the next Search.
func (idx *Index) AddDocuments(docs []Document) {
	if len(docs) == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, doc := range docs {
		idx.removeLocked(doc.ID)

		tokens := Tokenize(doc.Text)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for term, n := range freq {
			if idx.postings[term] == nil {
				idx.postings[term] = make(map[string]int)
			}
			idx.postings[term][doc.ID] = n
		}
		idx.docLen[doc.ID] = len(tokens)
		idx.totalLen += len(tokens)
	}
	idx.dirty = true
}

// RemoveDocuments drops docs from the index entirely, marking it dirty.
func (idx *Index) RemoveDocuments(ids []string) {
	if len(ids) == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		idx.removeLocked(id)
	}
	idx.dirty = true
}

// removeLocked removes one document's postings and length bookkeeping.
// Callers must hold idx.mu.
func (idx *Index) removeLocked(id string) {
	length, ok := idx.docLen[id]
	if !ok {
		return
	}
	for term, byDoc := range idx.postings {
		if _, ok := byDoc[id]; ok {
			delete(byDoc, id)
			if len(byDoc) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	delete(idx.docLen, id)
	idx.totalLen -= length
}

// DocCount returns the number of documents currently indexed.
func (idx *Index) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docLen)
}

// consolidate rebuilds the IDF table and average document length if the
// index is dirty. A no-op below minDocsForConsolidation documents.
// Callers must hold idx.mu (write lock).
func (idx *Index) consolidate() {
	if !idx.dirty {
		return
	}
	n := len(idx.docLen)
	if n < minDocsForConsolidation {
		return
	}

	idx.idf = make(map[string]float64, len(idx.postings))
	for term, byDoc := range idx.postings {
		df := len(byDoc)
		idx.idf[term] = math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	}
	idx.avgLen = float64(idx.totalLen) / float64(n)
	idx.dirty = false
}

// Search scores q against every indexed document containing at least one
// query term and returns the top k by descending score, ties broken by
// document ID for determinism.
func (idx *Index) Search(q string, k int) []Result {
	idx.mu.Lock()
	idx.consolidate()
	n := len(idx.docLen)
	if n < minDocsForConsolidation {
		idx.mu.Unlock()
		return nil
	}

	terms := Tokenize(q)
	scores := make(map[string]float64)
	for _, term := range terms {
		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for docID, freq := range idx.postings[term] {
			dl := float64(idx.docLen[docID])
			denom := float64(freq) + idx.k1*(1-idx.b+idx.b*dl/idx.avgLen)
			scores[docID] += idf * (float64(freq) * (idx.k1 + 1)) / denom
		}
	}
	idx.mu.Unlock()

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
