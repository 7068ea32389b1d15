package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

// countingEmbedder counts calls to the wrapped embedder.
type countingEmbedder struct {
	*HashEmbedder
	single atomic.Int32
	batch  atomic.Int32
	fail   bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.single.Add(1)
	if c.fail {
		return nil, errors.New("model down")
	}
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batch.Add(1)
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestCached_LocalHit(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	c := NewCached(inner, 10, nil, nil)
	ctx := context.Background()

	a, err := c.Embed(ctx, "chest pain")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Embed(ctx, "chest pain")
	if err != nil {
		t.Fatal(err)
	}
	if inner.single.Load() != 1 {
		t.Errorf("inner Embed called %d times, want 1", inner.single.Load())
	}
	if len(a) != len(b) || a[0] != b[0] {
		t.Error("cached vector differs")
	}
	if c.ModelID() != "hash-16" || c.Dimensions() != 16 {
		t.Errorf("promoted methods: %s %d", c.ModelID(), c.Dimensions())
	}
}

func TestCached_RedisSharedAcrossInstances(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	first := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c1 := NewCached(first, 10, NewRedisCache(client, time.Hour), nil)
	want, err := c1.Embed(ctx, "fever")
	if err != nil {
		t.Fatal(err)
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("redis keys = %v, want one", mr.Keys())
	}
	if ttl := mr.TTL(mr.Keys()[0]); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	second := &countingEmbedder{HashEmbedder: NewHashEmbedder(8), fail: true}
	c2 := NewCached(second, 10, NewRedisCache(client, time.Hour), nil)
	got, err := c2.Embed(ctx, "fever")
	if err != nil {
		t.Fatalf("expected redis hit, got %v", err)
	}
	if second.single.Load() != 0 {
		t.Error("inner embedder should not be called on redis hit")
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("vector mismatch at %d: %v vs %v", i, want[i], got[i])
		}
	}
}

func TestCached_RedisFailureBypassed(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c := NewCached(inner, 10, NewRedisCache(client, time.Minute), nil)
	v, err := c.Embed(context.Background(), "rash")
	if err != nil {
		t.Fatalf("redis failure must not surface: %v", err)
	}
	if len(v) != 8 {
		t.Errorf("len = %d", len(v))
	}
}

func TestCached_EmbedBatchOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c := NewCached(inner, 10, nil, nil)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d", len(out))
	}
	for i, v := range out {
		if v == nil {
			t.Errorf("out[%d] nil", i)
		}
	}
	if inner.batch.Load() != 1 {
		t.Errorf("batch calls = %d", inner.batch.Load())
	}
	if _, err := c.EmbedBatch(ctx, []string{"b", "c"}); err != nil {
		t.Fatal(err)
	}
	if inner.batch.Load() != 1 {
		t.Error("all-hit batch should not call inner")
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] %v != %v", i, in[i], out[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated data")
	}
}
