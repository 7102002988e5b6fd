package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type EmbedderFactory func(ctx context.Context, model string) (Embedder, error)

// Registry resolves chat providers and embedders by name. The two are
// registered separately because a backend may serve only one of the roles.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
	embedders map[string]EmbedderFactory
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ProviderFactory),
		embedders: make(map[string]EmbedderFactory),
	}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = f
}

func (r *Registry) RegisterEmbedder(name string, f EmbedderFactory) {
	name = normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = normalize(name)
	r.mu.RLock()
	f, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

// GetEmbedder resolves the embedding backend for name, using the embedding
// model rather than the chat model.
func (r *Registry) GetEmbedder(ctx context.Context, name string, model string) (Embedder, error) {
	name = normalize(name)
	r.mu.RLock()
	f, ok := r.embedders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return f(ctx, model)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
