package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/medrag/internal/vector"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EmbeddingCache is an LRU cache for embeddings keyed by text.
type EmbeddingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	entry := &cacheEntry{key: key, value: value}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// RedisCache stores embeddings in Redis so that several processes share query vectors.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache wraps client. A zero ttl stores keys without expiry.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "medrag:emb:"}
}

// Get returns the embedding stored under key. A missing key is (nil, false, nil).
func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	v, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set stores the embedding under key with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []float32) error {
	if err := r.client.Set(ctx, r.prefix+key, encodeVector(value), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	return vector.Float32SliceToBytes(v)
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached embedding: %d bytes", len(data))
	}
	return vector.BytesToFloat32Slice(data), nil
}

// Cached wraps an Embedder with an in-process LRU and an optional Redis layer.
// Cache failures are logged and bypassed.
type Cached struct {
	Embedder
	local  *EmbeddingCache
	remote *RedisCache
	logger *zap.Logger
}

// NewCached wraps inner. remote and logger may be nil.
func NewCached(inner Embedder, capacity int, remote *RedisCache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		Embedder: inner,
		local:    NewEmbeddingCache(capacity),
		remote:   remote,
		logger:   logger,
	}
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.Embedder.ModelID() + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached embedding for text or computes and stores it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.local.Get(key); ok {
		return v, nil
	}
	if c.remote != nil {
		v, ok, err := c.remote.Get(ctx, key)
		if err != nil {
			c.logger.Warn("embedding cache read failed", zap.Error(err))
		} else if ok && len(v) == c.Embedder.Dimensions() {
			c.local.Set(key, v)
			return v, nil
		}
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, v)
	return v, nil
}

// EmbedBatch serves hits from the local cache and embeds the misses in one inner call.
// Batch results only populate the local cache; indexing volume would otherwise flood Redis.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.local.Get(c.key(text)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	embedded, err := c.Embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = embedded[j]
		c.local.Set(c.key(texts[i]), embedded[j])
	}
	return out, nil
}

func (c *Cached) store(ctx context.Context, key string, v []float32) {
	c.local.Set(key, v)
	if c.remote == nil {
		return
	}
	if err := c.remote.Set(ctx, key, v); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}
