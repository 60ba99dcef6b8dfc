package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QueryService answers questions over the ingested documents.
type QueryService interface {
	// Retrieve returns the chunks most similar to query, best first.
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.ChunkWithSimilarity, error)

	// Ask retrieves context for query and generates an answer from it.
	Ask(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.QueryResponse, error)
}
