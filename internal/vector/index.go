// Package vector provides vector index and similarity search.
package vector

import "context"

// VectorIndex defines vector storage and nearest-neighbour search.
type VectorIndex interface {
	// Upsert adds vectors, replacing any existing vector with the same id.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Reset()
	Dimensions() int
	Size() int
	Close() error
}

var _ VectorIndex = (*MemoryIndex)(nil)

// VectorResult is a single search hit. ID is the chunk ID.
type VectorResult struct {
	ID       string
	Distance float64 // Euclidean distance to the query
}
