package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/medrag/internal/collection"
	"github.com/hyperjump/medrag/internal/config"
	"github.com/hyperjump/medrag/internal/embedding"
	"github.com/hyperjump/medrag/internal/extract"
	"github.com/hyperjump/medrag/internal/indexer"
	"github.com/hyperjump/medrag/internal/retriever"
	"github.com/hyperjump/medrag/internal/storage"
	"github.com/hyperjump/medrag/internal/watcher"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config     *config.Config
	Storage    storage.Storage
	Embedder   embedding.Embedder
	Redis      *redis.Client
	Manager    *collection.Manager
	Indexer    *indexer.Indexer
	Collection *collection.Collection
	Retriever  *retriever.Retriever
	logger     *zap.Logger
}

// Close releases storage, the model and the cache connection.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// initializeComponents opens storage and loads the embedding model. The collection
// itself is opened by Open, so administrative commands can skip the initial build.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Config: cfg, Storage: store, logger: logger}

	base, err := newEmbedder(cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	var remote *embedding.RedisCache
	c.Redis, remote = newRedisCache(ctx, cfg.Cache, logger)
	c.Embedder = embedding.NewCached(base, cfg.Embedding.CacheSize, remote, logger)
	logger.Info("embedding model loaded",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model_id", c.Embedder.ModelID()),
		zap.Int("dimensions", c.Embedder.Dimensions()),
		zap.Bool("shared_cache", remote != nil))

	extractor := extract.NewExtractor(
		extract.WithLogger(logger),
		extract.WithPDF(cfg.Knowledge.PDFEnabledOrDefault()),
	)
	chunker := indexer.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	c.Indexer = indexer.NewIndexer(cfg.Knowledge.Directory, c.Embedder, chunker, extractor,
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Knowledge.Extensions),
	)
	c.Manager = collection.NewManager(store, c.Embedder, logger)
	c.Manager.SetBuilder(c.Indexer.Build)
	return c, nil
}

// Open loads (or builds) the knowledge collection and prepares the retriever.
func (c *Components) Open(ctx context.Context) error {
	coll, err := c.Manager.GetOrCreate(ctx, c.Config.Retrieval.CollectionName)
	if err != nil {
		return err
	}
	c.Collection = coll
	c.Retriever = retriever.New(c.Embedder, coll,
		retriever.WithLogger(c.logger),
		retriever.WithDefaults(c.Config.Retrieval.TopK, c.Config.Retrieval.MinRelevance, c.Config.Retrieval.MaxChunks),
	)
	c.logger.Info("knowledge collection ready",
		zap.String("collection", coll.Name()),
		zap.Int("entries", coll.Size()))
	return nil
}

// Watch re-indexes knowledge files as they change. Every update goes through the
// manager so it never races a reset.
func (c *Components) Watch(ctx context.Context) (*watcher.Watcher, error) {
	name := c.Config.Retrieval.CollectionName
	onIndex := func(ctx context.Context, path string) {
		err := c.Manager.Update(ctx, name, func(ctx context.Context, coll *collection.Collection) error {
			n, err := c.Indexer.IndexFile(ctx, coll, path)
			if err == nil {
				c.logger.Info("re-indexed knowledge file", zap.String("path", path), zap.Int("chunks", n))
			}
			return err
		})
		if err != nil {
			c.logger.Warn("watch index file failed", zap.String("path", path), zap.Error(err))
		}
	}
	onRemove := func(ctx context.Context, path string) {
		err := c.Manager.Update(ctx, name, func(ctx context.Context, coll *collection.Collection) error {
			n, err := c.Indexer.RemoveFile(ctx, coll, path)
			if err == nil {
				c.logger.Info("removed knowledge file", zap.String("path", path), zap.Int64("chunks", n))
			}
			return err
		})
		if err != nil {
			c.logger.Warn("watch remove file failed", zap.String("path", path), zap.Error(err))
		}
	}
	w := watcher.New(c.Indexer.Dir(), c.Config.Knowledge.Extensions, onIndex, onRemove,
		watcher.WithLogger(c.logger),
		watcher.WithDebounce(time.Duration(c.Config.Knowledge.DebounceMillis)*time.Millisecond),
	)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "onnx", "":
		e, err := embedding.NewONNXEmbedder(embedding.ONNXOptions{
			ModelPath:   cfg.ModelPath,
			VocabPath:   cfg.VocabPath,
			LibraryPath: cfg.LibraryPath,
			ModelID:     cfg.ModelID,
			OutputName:  cfg.OutputName,
			Dimensions:  cfg.Dimensions,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "hash":
		return embedding.NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// newRedisCache connects the shared query-embedding cache. It is optional: a bad
// URL or an unreachable server is logged and the process continues without it.
func newRedisCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*redis.Client, *embedding.RedisCache) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid redis url, shared embedding cache disabled", zap.Error(err))
		return nil, nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, shared embedding cache disabled", zap.String("addr", opts.Addr), zap.Error(err))
		_ = client.Close()
		return nil, nil
	}
	return client, embedding.NewRedisCache(client, time.Duration(cfg.TTLSeconds)*time.Second)
}
