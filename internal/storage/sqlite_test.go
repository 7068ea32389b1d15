package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/medrag/internal/models"
)

func newTestStorage(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "medrag.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func entry(id, source string, idx int, emb ...float32) *models.IndexEntry {
	return &models.IndexEntry{
		Chunk:     &models.Chunk{ID: id, Text: "text " + id, Source: source, Section: "Section", ChunkIndex: idx},
		Embedding: emb,
	}
}

func TestSQLiteStorage_Collections(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.GetCollection(ctx, "medical_knowledge"); !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}

	coll := &models.Collection{Name: "medical_knowledge", ModelID: "hash-4", Version: "v1", Dimensions: 4}
	if err := store.CreateCollection(ctx, coll); err != nil {
		t.Fatal(err)
	}
	if coll.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	got, err := store.GetCollection(ctx, "medical_knowledge")
	if err != nil {
		t.Fatal(err)
	}
	if got.ModelID != "hash-4" || got.Version != "v1" || got.Dimensions != 4 {
		t.Errorf("got %+v", got)
	}
	if err := store.CreateCollection(ctx, coll); err == nil {
		t.Error("expected duplicate collection error")
	}
}

func TestSQLiteStorage_UpsertEntries(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	_ = store.CreateCollection(ctx, &models.Collection{Name: "c", ModelID: "m", Version: "v", Dimensions: 2})

	if err := store.UpsertEntries(ctx, "c", []*models.IndexEntry{
		entry("a", "flu", 0, 1, 0),
		entry("b", "flu", 1, 0, 1),
		entry("x", "asthma", 0, 0.5, 0.5),
	}); err != nil {
		t.Fatal(err)
	}
	// Same ids again must not grow the collection.
	updated := entry("a", "flu", 0, 0, 1)
	updated.Chunk.Text = "replaced"
	if err := store.UpsertEntries(ctx, "c", []*models.IndexEntry{updated}); err != nil {
		t.Fatal(err)
	}
	count, err := store.CountEntries(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	entries, err := store.LoadEntries(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("loaded %d entries", len(entries))
	}
	if entries[0].Chunk.ID != "a" || entries[0].Chunk.Text != "replaced" {
		t.Errorf("first entry = %+v", entries[0].Chunk)
	}
	if entries[0].Embedding[0] != 0 || entries[0].Embedding[1] != 1 {
		t.Errorf("embedding not replaced: %v", entries[0].Embedding)
	}

	chunks, err := store.GetEntries(ctx, "c", []string{"b", "x", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || chunks["x"].Source != "asthma" || chunks["b"].ChunkIndex != 1 {
		t.Errorf("GetEntries = %+v", chunks)
	}
}

func TestSQLiteStorage_DeleteEntriesBySource(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	_ = store.CreateCollection(ctx, &models.Collection{Name: "c", ModelID: "m", Version: "v", Dimensions: 1})
	_ = store.UpsertEntries(ctx, "c", []*models.IndexEntry{entry("a", "flu", 0, 1), entry("b", "flu", 1, 1), entry("x", "asthma", 0, 1)})

	n, err := store.DeleteEntriesBySource(ctx, "c", "flu")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	count, _ := store.CountEntries(ctx, "c")
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSQLiteStorage_DeleteCollection(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	_ = store.CreateCollection(ctx, &models.Collection{Name: "c", ModelID: "m", Version: "v", Dimensions: 1})
	_ = store.UpsertEntries(ctx, "c", []*models.IndexEntry{entry("a", "flu", 0, 1)})

	if err := store.DeleteCollection(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetCollection(ctx, "c"); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("collection still present: %v", err)
	}
	count, _ := store.CountEntries(ctx, "c")
	if count != 0 {
		t.Errorf("entries not removed: %d", count)
	}
	if err := store.DeleteCollection(ctx, "unknown"); err != nil {
		t.Errorf("deleting unknown collection: %v", err)
	}
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medrag.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.CreateCollection(ctx, &models.Collection{Name: "c", ModelID: "m", Version: "v", Dimensions: 2})
	_ = store.UpsertEntries(ctx, "c", []*models.IndexEntry{entry("a", "flu", 0, 0.25, 0.75)})
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	entries, err := reopened.LoadEntries(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Embedding[1] != 0.75 {
		t.Errorf("entries after reopen = %+v", entries)
	}
	size, err := reopened.SizeBytes()
	if err != nil {
		t.Fatal(err)
	}
	if size == 0 {
		t.Error("SizeBytes should be positive")
	}
}
