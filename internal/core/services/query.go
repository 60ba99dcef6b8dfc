package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService retrieves context for questions and answers them.
type QueryService struct {
	embedder  *EmbeddingGenerator
	index     driven.VectorIndex
	docStore  driven.DocumentStore
	answers   *AnswerService
	retrieval domain.RetrievalSettings
}

// NewQueryService creates a query service. answers may be nil for a
// retrieval-only deployment.
func NewQueryService(
	embedder *EmbeddingGenerator,
	index driven.VectorIndex,
	docStore driven.DocumentStore,
	answers *AnswerService,
	retrieval domain.RetrievalSettings,
) *QueryService {
	if retrieval.TopK <= 0 {
		retrieval.TopK = domain.DefaultTopK
	}
	return &QueryService{
		embedder:  embedder,
		index:     index,
		docStore:  docStore,
		answers:   answers,
		retrieval: retrieval,
	}
}

// Retrieve embeds query and returns the matching chunks in ranked order.
// Hits whose chunk or document no longer exists are skipped.
func (s *QueryService) Retrieve(
	ctx context.Context,
	query string,
	opts domain.RetrievalOptions,
) ([]domain.ChunkWithSimilarity, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidArgument)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	topK, threshold, err := s.resolve(opts)
	if err != nil {
		return nil, err
	}

	logger.Section("Retrieval")
	vector, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.Search(ctx, vector, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	logger.Debug("query: %d hits (top %d, threshold %.2f)", len(hits), topK, threshold)
	if len(hits) == 0 {
		return []domain.ChunkWithSimilarity{}, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.EmbeddingID
	}
	chunks, err := s.docStore.GetChunksByEmbeddingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	byEmbedding := make(map[string]domain.DocumentChunk, len(chunks))
	for _, chunk := range chunks {
		byEmbedding[chunk.EmbeddingID] = chunk
	}

	titles := make(map[string]string)
	results := make([]domain.ChunkWithSimilarity, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := byEmbedding[hit.EmbeddingID]
		if !ok {
			logger.Debug("query: orphan vector %s", hit.EmbeddingID)
			continue
		}
		title, ok := titles[chunk.DocumentID]
		if !ok {
			doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				logger.Debug("query: chunk %s belongs to missing document %s", chunk.ID, chunk.DocumentID)
				titles[chunk.DocumentID] = ""
				continue
			case err != nil:
				return nil, fmt.Errorf("load document %s: %w", chunk.DocumentID, err)
			}
			title = doc.DisplayTitle()
			titles[chunk.DocumentID] = title
		}
		if title == "" {
			continue
		}
		results = append(results, domain.ChunkWithSimilarity{
			DocumentChunk: chunk,
			DocumentTitle: title,
			Similarity:    hit.Similarity,
		})
	}
	return results, nil
}

// Ask retrieves context for query and answers it. The model is asked
// even when nothing matched.
func (s *QueryService) Ask(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.QueryResponse, error) {
	if s.answers == nil || !s.answers.Available() {
		return nil, domain.ErrLLMUnavailable
	}
	chunks, err := s.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	logger.Section("Generation")
	return s.answers.CreateQueryResponse(ctx, query, chunks), nil
}

func (s *QueryService) resolve(opts domain.RetrievalOptions) (int, float64, error) {
	topK := s.retrieval.TopK
	switch {
	case opts.TopK < 0:
		return 0, 0, fmt.Errorf("%w: top_k %d must be positive", domain.ErrInvalidArgument, opts.TopK)
	case opts.TopK > 0:
		topK = opts.TopK
	}

	threshold := s.retrieval.SimilarityThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < -1 || threshold > 1 {
		return 0, 0, fmt.Errorf("%w: threshold %.2f outside [-1, 1]", domain.ErrInvalidArgument, threshold)
	}
	return topK, threshold, nil
}
