package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// UpdateStatus sets the status and error message of a document.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error

	// ClaimForProcessing moves a document to processing and returns it.
	// The check and the update are atomic, so of two concurrent claims
	// one fails with ErrInvalidArgument.
	ClaimForProcessing(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunks replaces all chunks of a document.
	SaveChunks(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error

	// GetChunks retrieves all chunks for a document ordered by chunk index.
	GetChunks(ctx context.Context, documentID string) ([]domain.DocumentChunk, error)

	// GetChunksByEmbeddingIDs retrieves the chunks referencing the given
	// embeddings. Unknown ids are skipped; order is unspecified.
	GetChunksByEmbeddingIDs(ctx context.Context, embeddingIDs []string) ([]domain.DocumentChunk, error)
}

// DocumentRecord is the persistence entity the ingestion pipeline mutates.
// The pipeline changes status and chunk attributes but never owns the
// surrounding transaction.
type DocumentRecord interface {
	// ID returns the document ID.
	ID() string

	// Status returns the current lifecycle state.
	Status() domain.DocumentStatus

	// StoragePath returns where the raw bytes are stored, or "".
	StoragePath() string

	// UpdateStatus persists a status change. errMsg is empty unless status is error.
	UpdateStatus(ctx context.Context, status domain.DocumentStatus, errMsg string) error

	// SetStoragePath records where the raw bytes were stored.
	SetStoragePath(ctx context.Context, path string) error

	// SetMetadata records the extracted metadata.
	SetMetadata(ctx context.Context, metadata domain.DocumentMetadata) error

	// SaveChunks replaces the chunks of the document.
	SaveChunks(ctx context.Context, chunks []domain.DocumentChunk) error
}
