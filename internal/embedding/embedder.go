// Package embedding provides text embedding providers and caching.
package embedding

import "context"

// Embedder produces unit-length vector embeddings for text.
// Implementations are safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelID identifies the model version; vectors from different ids are never compared.
	ModelID() string
	Close() error
}
