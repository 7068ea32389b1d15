package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/internal/storage"
	"go.uber.org/zap"
)

// ModelInfo identifies the embedding model that fills a collection.
type ModelInfo interface {
	ModelID() string
	Dimensions() int
}

// BuildFunc fills a freshly created collection from the source documents.
type BuildFunc func(ctx context.Context, c *Collection) error

// Manager opens collections and serializes every write path (build, reset, per-file re-index).
type Manager struct {
	store  storage.Storage
	model  ModelInfo
	build  BuildFunc
	logger *zap.Logger

	mu   sync.Mutex
	open map[string]*Collection
}

// NewManager returns a Manager. logger may be nil.
func NewManager(store storage.Storage, model ModelInfo, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		model:  model,
		logger: logger,
		open:   make(map[string]*Collection),
	}
}

// SetBuilder sets the function used to fill new or reset collections.
func (m *Manager) SetBuilder(build BuildFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.build = build
}

// GetOrCreate opens the named collection. A stored collection built by the current model is
// loaded into memory; otherwise a new one is created and built from the source documents.
func (m *Manager) GetOrCreate(ctx context.Context, name string) (*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(ctx, name)
}

func (m *Manager) getOrCreateLocked(ctx context.Context, name string) (*Collection, error) {
	handle, ok := m.open[name]
	if ok && handle.built {
		return handle, nil
	}

	meta, err := m.store.GetCollection(ctx, name)
	switch {
	case err == nil && meta.ModelID == m.model.ModelID() && meta.Dimensions == m.model.Dimensions():
		c := handle
		if c == nil {
			var err error
			if c, err = newCollection(m.store, *meta, m.logger); err != nil {
				return nil, err
			}
		} else {
			c.replace(*meta)
		}
		if err := c.hydrate(ctx); err != nil {
			return nil, err
		}
		m.logger.Info("collection loaded",
			zap.String("collection", name),
			zap.String("version", meta.Version),
			zap.Int("entries", c.Size()))
		c.built = true
		m.open[name] = c
		return c, nil
	case err == nil:
		m.logger.Warn("collection built by a different model, rebuilding",
			zap.String("collection", name),
			zap.String("stored_model", meta.ModelID),
			zap.String("current_model", m.model.ModelID()))
		if err := m.store.DeleteCollection(ctx, name); err != nil {
			return nil, unavailable("delete stale collection", err)
		}
	case !errors.Is(err, storage.ErrCollectionNotFound):
		return nil, unavailable("get collection", err)
	}

	return m.buildFresh(ctx, name, handle)
}

// Reset deletes every entry of the named collection and rebuilds it from the source documents.
// Collections already handed out stay valid and see the rebuilt contents.
func (m *Manager) Reset(ctx context.Context, name string) (*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteCollection(ctx, name); err != nil {
		return nil, unavailable("delete collection", err)
	}
	m.logger.Info("collection reset", zap.String("collection", name))
	return m.buildFresh(ctx, name, m.open[name])
}

// Update runs fn on the named collection while holding the write lock.
func (m *Manager) Update(ctx context.Context, name string, fn func(ctx context.Context, c *Collection) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.getOrCreateLocked(ctx, name)
	if err != nil {
		return err
	}
	return fn(ctx, c)
}

// Stats reports the size and identity of the named collection. A collection that does not
// exist yet reports zero entries and the current model.
func (m *Manager) Stats(ctx context.Context, name string) (models.CollectionStats, error) {
	stats := models.CollectionStats{
		Name:       name,
		ModelID:    m.model.ModelID(),
		Dimensions: m.model.Dimensions(),
	}
	meta, err := m.store.GetCollection(ctx, name)
	if err != nil && !errors.Is(err, storage.ErrCollectionNotFound) {
		return stats, unavailable("get collection", err)
	}
	if err == nil {
		stats.ModelID = meta.ModelID
		stats.Version = meta.Version
		stats.Dimensions = meta.Dimensions
	}
	if stats.Count, err = m.store.CountEntries(ctx, name); err != nil {
		return stats, unavailable("count entries", err)
	}
	if size, err := m.store.SizeBytes(); err == nil {
		stats.StorageBytes = size
	} else {
		m.logger.Debug("storage size unavailable", zap.Error(err))
	}
	return stats, nil
}

// buildFresh stores a new record for name and fills c with it, or a new collection when c is
// nil. A failed build drops the record and leaves the handle unbuilt, so the next open starts
// over instead of loading a partial collection.
func (m *Manager) buildFresh(ctx context.Context, name string, c *Collection) (*Collection, error) {
	fresh, err := m.createRecord(ctx, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		if c, err = newCollection(m.store, fresh, m.logger); err != nil {
			m.dropRecord(ctx, name)
			return nil, err
		}
		m.open[name] = c
	} else {
		c.replace(fresh)
	}
	c.built = false
	if err := m.runBuild(ctx, c); err != nil {
		m.dropRecord(ctx, name)
		c.replace(fresh)
		return nil, err
	}
	c.built = true
	return c, nil
}

// dropRecord deletes the named record and its entries even when ctx is already cancelled.
func (m *Manager) dropRecord(ctx context.Context, name string) {
	if err := m.store.DeleteCollection(context.WithoutCancel(ctx), name); err != nil {
		m.logger.Error("failed to drop partial collection", zap.String("collection", name), zap.Error(err))
	}
}

func (m *Manager) createRecord(ctx context.Context, name string) (models.Collection, error) {
	meta := models.Collection{
		Name:       name,
		ModelID:    m.model.ModelID(),
		Version:    uuid.NewString(),
		Dimensions: m.model.Dimensions(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.CreateCollection(ctx, &meta); err != nil {
		return meta, unavailable("create collection", err)
	}
	return meta, nil
}

func (m *Manager) runBuild(ctx context.Context, c *Collection) error {
	if m.build == nil {
		return nil
	}
	start := time.Now()
	if err := m.build(ctx, c); err != nil {
		return fmt.Errorf("build collection %s: %w", c.Name(), err)
	}
	m.logger.Info("collection built",
		zap.String("collection", c.Name()),
		zap.Int("entries", c.Size()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
