package embedprovider

import (
	"context"
	"hash/fnv"
	"math"
)

// MockProvider is a deterministic embedding stand-in for tests: each
// text's vector is derived from an FNV hash of its content rather than a
// live model, so the same input always yields the same output without
// network access.
//
// Deterministic rather than random so rank/dedup tests that compare
// vectors across runs stay stable.
type MockProvider struct {
	dimensions int
}

// NewMockProvider builds a mock provider producing vectors of the given
// dimensionality.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockProvider{dimensions: dimensions}
}

func (m *MockProvider) Name() string      { return "mock" }
func (m *MockProvider) Model() string     { return "mock-deterministic" }
func (m *MockProvider) Dimensions() int   { return m.dimensions }
func (m *MockProvider) Close() error      { return nil }

func (m *MockProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return m.vector(text), nil
}

func (m *MockProvider) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *MockProvider) vector(text string) []float32 {
	vec := make([]float32, m.dimensions)
	h := fnv.New64a()
	for i := 0; i < m.dimensions; i++ {
		h.Reset()
		h.Write([]byte{byte(i), byte(i >> 8)})
		h.Write([]byte(text))
		sum := h.Sum64()
		vec[i] = float32(math.Sin(float64(sum)))
	}
	return vec
}
