package driven

import "context"

// VectorIndex stores embeddings keyed by embedding ID and answers
// cosine similarity queries.
//
// Mutations (Add, Delete, Clear) are mutually exclusive with each other
// and with Save. Searches may run concurrently with other searches.
type VectorIndex interface {
	// Add inserts vectors. ids and vectors must have equal length and
	// no id may already exist in the index.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns up to topK hits with similarity >= threshold,
	// sorted by descending similarity. An empty index returns no hits.
	Search(ctx context.Context, query []float32, topK int, threshold float64) ([]VectorHit, error)

	// Delete removes the given ids. Unknown ids are ignored.
	// Returns true when the operation succeeded.
	Delete(ctx context.Context, ids []string) (bool, error)

	// Clear removes every vector.
	Clear(ctx context.Context) error

	// Save persists the index to durable storage. A failed save leaves
	// the previously saved state intact.
	Save(ctx context.Context) error

	// Len returns the number of stored vectors.
	Len() int

	// Dimensions returns the vector size, or 0 when not yet known.
	Dimensions() int

	// Close persists pending changes and releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// EmbeddingID is the matched vector.
	EmbeddingID string

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64
}
