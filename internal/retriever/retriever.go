// Package retriever turns a free-text query into relevance-filtered knowledge-base passages
// and renders them as a prompt context block.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/medrag/internal/embedding"
	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/internal/vector"
	"go.uber.org/zap"
)

const (
	DefaultTopK         = 5
	DefaultMinRelevance = 0.3
)

// Searcher finds the chunks nearest to a query vector, closest first.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]models.ScoredChunk, error)
}

// Retriever embeds queries and filters nearest neighbours by relevance.
// Retrieval is best-effort: every failure yields an empty result.
type Retriever struct {
	embedder     embedding.Embedder
	index        Searcher
	topK         int
	minRelevance float64
	maxChunks    int
	logger       *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger for degraded retrievals.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithDefaults sets the values used when callers pass non-positive arguments.
func WithDefaults(topK int, minRelevance float64, maxChunks int) Option {
	return func(r *Retriever) {
		if topK > 0 {
			r.topK = topK
		}
		if minRelevance > 0 {
			r.minRelevance = minRelevance
		}
		if maxChunks > 0 {
			r.maxChunks = maxChunks
		}
	}
}

// New returns a Retriever over index using embedder for queries.
func New(embedder embedding.Embedder, index Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:     embedder,
		index:        index,
		topK:         DefaultTopK,
		minRelevance: DefaultMinRelevance,
		maxChunks:    DefaultMaxChunks,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to k passages whose relevance is at least minRelevance, closest first.
// k <= 0 uses the configured top-k; a negative minRelevance uses the configured threshold.
// Rank is the 1-based position among the k nearest neighbours before filtering.
// The result is never nil and no error or panic escapes.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, minRelevance float64) (results []models.RetrievalResult) {
	results = []models.RetrievalResult{}
	if k <= 0 {
		k = r.topK
	}
	if minRelevance < 0 {
		minRelevance = r.minRelevance
	}
	if strings.TrimSpace(query) == "" || ctx.Err() != nil {
		return results
	}

	logger := r.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("retrieval panicked", zap.Any("panic", rec))
			results = []models.RetrievalResult{}
		}
	}()

	hits, err := r.search(ctx, query, k)
	if err != nil {
		logger.Warn("retrieval degraded to empty result", zap.Error(err))
		return results
	}
	for i, hit := range hits {
		score := vector.RelevanceFromDistance(hit.Distance)
		if score < minRelevance {
			continue
		}
		results = append(results, models.RetrievalResult{
			Text:           hit.Chunk.Text,
			Source:         hit.Chunk.Source,
			Section:        hit.Chunk.Section,
			RelevanceScore: score,
			Rank:           i + 1,
		})
	}
	logger.Debug("retrieved context",
		zap.Int("candidates", len(hits)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results
}

func (r *Retriever) search(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	if r.embedder == nil || r.index == nil {
		return nil, fmt.Errorf("%w: retriever not initialized", models.ErrIndexUnavailable)
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

// RetrieveRelevantContext is Retrieve under the name symptom-analysis callers use.
func (r *Retriever) RetrieveRelevantContext(ctx context.Context, query string, nResults int, minRelevanceScore float64) []models.RetrievalResult {
	return r.Retrieve(ctx, query, nResults, minRelevanceScore)
}

// FormatContextForLLM renders results with the configured chunk limit when maxChunks <= 0.
func (r *Retriever) FormatContextForLLM(results []models.RetrievalResult, maxChunks int) string {
	if maxChunks <= 0 {
		maxChunks = r.maxChunks
	}
	return FormatContext(results, maxChunks)
}

// Context retrieves with the configured defaults and formats the result in one step.
// An empty string means no context is available.
func (r *Retriever) Context(ctx context.Context, query string) string {
	return r.FormatContextForLLM(r.Retrieve(ctx, query, 0, -1), 0)
}
