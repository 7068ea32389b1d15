// Package models defines core data structures for documents, chunks, and retrieval results.
package models

import "time"

// Document is one file from the knowledge base. Source is the file stem.
type Document struct {
	Source  string `json:"source"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Chunk is a bounded slice of a document section, independently embeddable.
type Chunk struct {
	ID         string `json:"id" db:"id"`
	Text       string `json:"text" db:"text"`
	Source     string `json:"source" db:"source"`
	Section    string `json:"section" db:"section"`
	ChunkIndex int    `json:"chunk_index" db:"chunk_index"`
}

// IndexEntry owns one chunk and its embedding inside a collection.
type IndexEntry struct {
	Chunk     *Chunk    `json:"chunk"`
	Embedding []float32 `json:"-"`
}

// ScoredChunk is a raw nearest-neighbour hit; smaller Distance is closer.
type ScoredChunk struct {
	Chunk    *Chunk
	Distance float64
}

// Collection describes a named, versioned set of index entries.
type Collection struct {
	Name       string    `json:"name" db:"name"`
	ModelID    string    `json:"model_id" db:"model_id"`
	Version    string    `json:"version" db:"version"`
	Dimensions int       `json:"dimensions" db:"dimensions"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
