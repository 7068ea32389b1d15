// Package storage persists collections and their index entries.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/medrag/internal/models"
)

// ErrCollectionNotFound is returned by GetCollection for an unknown name.
var ErrCollectionNotFound = errors.New("collection not found")

// Storage defines collection and entry persistence operations.
type Storage interface {
	// Collection operations
	GetCollection(ctx context.Context, name string) (*models.Collection, error)
	CreateCollection(ctx context.Context, coll *models.Collection) error
	DeleteCollection(ctx context.Context, name string) error

	// Entry operations
	UpsertEntries(ctx context.Context, collection string, entries []*models.IndexEntry) error
	DeleteEntriesBySource(ctx context.Context, collection, source string) (int64, error)
	LoadEntries(ctx context.Context, collection string) ([]*models.IndexEntry, error)
	GetEntries(ctx context.Context, collection string, ids []string) (map[string]*models.Chunk, error)

	// Stats
	CountEntries(ctx context.Context, collection string) (int64, error)
	SizeBytes() (int64, error)

	Close() error
}
