// Package collection manages named, versioned sets of index entries backed by durable storage
// and searched through an in-memory vector index.
package collection

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/internal/storage"
	"github.com/hyperjump/medrag/internal/vector"
	"go.uber.org/zap"
)

// Collection is an open collection. It stays valid across Reset; only its contents change.
type Collection struct {
	store  storage.Storage
	index  vector.VectorIndex
	logger *zap.Logger

	mu      sync.RWMutex
	meta    models.Collection
	sources map[string]map[string]struct{} // source -> entry ids

	built bool // guarded by Manager.mu
}

func newCollection(store storage.Storage, meta models.Collection, logger *zap.Logger) (*Collection, error) {
	index, err := vector.NewMemoryIndex(meta.Dimensions)
	if err != nil {
		return nil, err
	}
	return &Collection{
		store:   store,
		index:   index,
		logger:  logger,
		meta:    meta,
		sources: make(map[string]map[string]struct{}),
	}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.Name
}

// Meta returns a copy of the collection record.
func (c *Collection) Meta() models.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta
}

// Size returns the number of entries in the in-memory index.
func (c *Collection) Size() int {
	return c.index.Size()
}

// Upsert adds or replaces entries by chunk id, in storage first and then in the index.
func (c *Collection) Upsert(ctx context.Context, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	name := c.Name()
	if err := c.store.UpsertEntries(ctx, name, entries); err != nil {
		return unavailable("upsert entries", err)
	}
	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	for i, e := range entries {
		ids[i] = e.Chunk.ID
		vecs[i] = e.Embedding
	}
	if err := c.index.Upsert(ctx, ids, vecs); err != nil {
		return unavailable("index entries", err)
	}
	c.mu.Lock()
	c.trackLocked(entries)
	c.mu.Unlock()
	return nil
}

// DeleteSource removes every entry that came from source and returns how many were removed.
func (c *Collection) DeleteSource(ctx context.Context, source string) (int64, error) {
	n, err := c.store.DeleteEntriesBySource(ctx, c.Name(), source)
	if err != nil {
		return 0, unavailable("delete entries", err)
	}
	c.mu.Lock()
	ids := make([]string, 0, len(c.sources[source]))
	for id := range c.sources[source] {
		ids = append(ids, id)
	}
	delete(c.sources, source)
	c.mu.Unlock()
	if err := c.index.Remove(ctx, ids); err != nil {
		return n, unavailable("remove from index", err)
	}
	return n, nil
}

// Search returns up to k chunks nearest to vec, closest first.
func (c *Collection) Search(ctx context.Context, vec []float32, k int) ([]models.ScoredChunk, error) {
	hits, err := c.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []models.ScoredChunk{}, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	chunks, err := c.store.GetEntries(ctx, c.Name(), ids)
	if err != nil {
		return nil, unavailable("load chunks", err)
	}
	out := make([]models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		chunk, ok := chunks[h.ID]
		if !ok {
			c.logger.Warn("indexed chunk missing from storage", zap.String("id", h.ID))
			continue
		}
		out = append(out, models.ScoredChunk{Chunk: chunk, Distance: h.Distance})
	}
	return out, nil
}

// hydrate loads every stored entry into the in-memory index.
func (c *Collection) hydrate(ctx context.Context) error {
	entries, err := c.store.LoadEntries(ctx, c.Name())
	if err != nil {
		return unavailable("load entries", err)
	}
	ids := make([]string, 0, len(entries))
	vecs := make([][]float32, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != c.index.Dimensions() {
			c.logger.Warn("skipping stored entry with wrong dimension",
				zap.String("id", e.Chunk.ID), zap.Int("dimensions", len(e.Embedding)))
			continue
		}
		ids = append(ids, e.Chunk.ID)
		vecs = append(vecs, e.Embedding)
	}
	if err := c.index.Upsert(ctx, ids, vecs); err != nil {
		return unavailable("index entries", err)
	}
	c.mu.Lock()
	c.trackLocked(entries)
	c.mu.Unlock()
	return nil
}

// replace swaps in a fresh record and empties the index.
func (c *Collection) replace(meta models.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta = meta
	c.sources = make(map[string]map[string]struct{})
	c.index.Reset()
}

func (c *Collection) trackLocked(entries []*models.IndexEntry) {
	for _, e := range entries {
		ids, ok := c.sources[e.Chunk.Source]
		if !ok {
			ids = make(map[string]struct{})
			c.sources[e.Chunk.Source] = ids
		}
		ids[e.Chunk.ID] = struct{}{}
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrIndexUnavailable, op, err)
}
