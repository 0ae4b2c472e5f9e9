// Package embedprovider defines the embedding-provider capability
// interface: init, generate a single embedding, generate a batch, and
// report name/model/dimensions so callers can key the database and BM25
// caches by the active model.
//
// Providers register under a selector string in a shared registry, so
// callers can resolve a concrete implementation (HTTP-backed or mock)
// without referencing its type directly.
package embedprovider

import (
	"context"
	"fmt"
	"sync"

	"github.com/codevault/codevault/internal/cverr"
)

// Provider is an embedding backend: OpenAI-family HTTP APIs, a local
// model, or the deterministic mock used in tests.
type Provider interface {
	// Name is the provider's short identifier, e.g. "openai".
	Name() string
	// Model is the concrete model string in use, e.g. "text-embedding-3-small".
	Model() string
	// Dimensions is the embedding vector length this provider produces.
	Dimensions() int
	// GenerateEmbedding embeds a single text.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	// GenerateEmbeddings embeds a batch of texts in one request, in order.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	// Close releases any held resources (HTTP clients, local model handles).
	Close() error
}

// Factory builds a Provider from a selector-specific config blob.
type Factory func(cfg map[string]string) (Provider, error)

// Registry maps selector strings (e.g. "openai:text-embedding-3-small",
// "mock") to Provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under selector, replacing any existing one.
func (r *Registry) Register(selector string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[selector] = f
}

// Build constructs a Provider for selector using its registered factory.
func (r *Registry) Build(selector string, cfg map[string]string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[selector]
	r.mu.RUnlock()
	if !ok {
		return nil, cverr.New(cverr.KindValidation, fmt.Sprintf("unknown embedding provider selector %q", selector))
	}
	return f(cfg)
}

// Selectors lists every registered selector.
func (r *Registry) Selectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for s := range r.factories {
		out = append(out, s)
	}
	return out
}
