// Package ann wraps coder/hnsw as an optional approximate-nearest-neighbor
// accelerator for dense candidate generation. It is strictly an
// accelerator: callers must always recompute exact cosine scores over
// whatever candidate set Search returns and re-rank from those, so an
// approximate or stale graph can never change final result ordering,
// only which candidates are considered before the exact scoring pass.
//
// Maps string IDs to the uint64 keys coder/hnsw's Graph[uint64] requires,
// deletes lazily (orphaning the key rather than calling Graph.Delete,
// which is unreliable on last-node removal), and unit-normalizes vectors
// before insertion/search so CosineDistance behaves as true cosine
// similarity.
package ann

import (
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/codevault/codevault/internal/cverr"
)

// Index is an approximate nearest-neighbor accelerator over chunk IDs.
type Index struct {
	dimensions int

	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// New builds an empty Index for vectors of the given dimensionality.
func New(dimensions int) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &Index{
		dimensions: dimensions,
		graph:      graph,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}
}

// Add inserts or replaces id's vector. Replacing an existing ID orphans
// its prior graph node (lazy deletion) rather than removing it, since
// coder/hnsw does not support safely deleting arbitrary nodes.
func (ix *Index) Add(id string, vector []float32) error {
	if len(vector) != ix.dimensions {
		return cverr.New(cverr.KindValidation, "ann: vector dimensions mismatch")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if oldKey, ok := ix.idMap[id]; ok {
		delete(ix.keyMap, oldKey)
		delete(ix.idMap, id)
	}

	key := ix.nextKey
	ix.nextKey++

	normalized := normalized(vector)
	ix.graph.Add(hnsw.MakeNode(key, normalized))
	ix.idMap[id] = key
	ix.keyMap[key] = id
	return nil
}

// Remove drops id from the index (lazily: the graph node is orphaned,
// not physically removed).
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if key, ok := ix.idMap[id]; ok {
		delete(ix.keyMap, key)
		delete(ix.idMap, id)
	}
}

// Search returns up to k candidate chunk IDs approximately nearest to
// query, in the graph's own approximate order. Callers must treat this
// order as a hint only — rescoring with exact cosine similarity is the
// caller's responsibility.
func (ix *Index) Search(query []float32, k int) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph.Len() == 0 || k <= 0 {
		return nil
	}
	nodes := ix.graph.Search(normalized(query), k)

	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if id, ok := ix.keyMap[node.Key]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of live (non-orphaned) IDs in the index.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idMap)
}

func normalized(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
