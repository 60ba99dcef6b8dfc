package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// EmbeddingGenerator turns text into unit length vectors using an
// embedding provider. Batches are sent to the provider in slices of
// at most batchSize texts and results keep input order.
type EmbeddingGenerator struct {
	provider  driven.EmbeddingService
	batchSize int
	pool      *WorkerPool
}

// NewEmbeddingGenerator wraps provider. pool runs the async variants.
func NewEmbeddingGenerator(provider driven.EmbeddingService, batchSize int, pool *WorkerPool) *EmbeddingGenerator {
	if batchSize <= 0 {
		batchSize = domain.DefaultEmbeddingBatchSize
	}
	if pool == nil {
		pool = NewWorkerPool(domain.DefaultWorkers)
	}
	return &EmbeddingGenerator{
		provider:  provider,
		batchSize: batchSize,
		pool:      pool,
	}
}

// NewEmbeddingID returns a fresh random embedding id.
func NewEmbeddingID() string {
	return uuid.New().String()
}

// Dimensions returns the provider's vector size.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.provider.Dimensions()
}

// ModelName returns the provider's model name.
func (g *EmbeddingGenerator) ModelName() string {
	return g.provider.ModelName()
}

// Generate embeds one text.
func (g *EmbeddingGenerator) Generate(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateBatch embeds texts in order. Every vector is L2-normalised.
func (g *EmbeddingGenerator) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	expected := g.provider.Dimensions()
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))

		vectors, err := g.provider.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts",
				domain.ErrProcessing, len(vectors), end-start)
		}

		for i, vec := range vectors {
			if expected == 0 {
				expected = len(vec)
			}
			if len(vec) != expected {
				return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
					domain.ErrProcessing, start+i, len(vec), expected)
			}
			out = append(out, Normalize(vec))
		}
		logger.Debug("embedding: %d/%d texts", end, len(texts))
	}

	return out, nil
}

// GenerateAsync runs Generate on the worker pool.
func (g *EmbeddingGenerator) GenerateAsync(ctx context.Context, text string) *Future[[]float32] {
	return Submit(ctx, g.pool, func(ctx context.Context) ([]float32, error) {
		return g.Generate(ctx, text)
	})
}

// GenerateBatchAsync runs GenerateBatch on the worker pool.
func (g *EmbeddingGenerator) GenerateBatchAsync(ctx context.Context, texts []string) *Future[[][]float32] {
	return Submit(ctx, g.pool, func(ctx context.Context) ([][]float32, error) {
		return g.GenerateBatch(ctx, texts)
	})
}

// Normalize returns a unit length copy of vec. The zero vector is
// returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
