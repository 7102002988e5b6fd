package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Provider is a chat-completion backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Embedder turns text into a vector. Implemented by the same adapters that
// implement Provider where the upstream exposes an embeddings endpoint.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
