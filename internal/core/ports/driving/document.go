package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentService manages uploaded documents and their ingestion.
type DocumentService interface {
	// Upload stores and ingests a PDF. The returned document reflects the
	// final status even when ingestion failed.
	Upload(ctx context.Context, filename string, content []byte, opts domain.ProcessOptions) (*domain.Document, *domain.ProcessResult, error)

	// UploadFromPath ingests a PDF from the local filesystem.
	UploadFromPath(ctx context.Context, path string, opts domain.ProcessOptions) (*domain.Document, *domain.ProcessResult, error)

	// Reprocess replaces a document's chunks and vectors by rerunning ingestion.
	Reprocess(ctx context.Context, id string, opts domain.ProcessOptions) (*domain.ProcessResult, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Chunks returns a document's chunks in order.
	Chunks(ctx context.Context, id string) ([]domain.DocumentChunk, error)

	// Delete removes a document with its chunks, vectors and stored file.
	Delete(ctx context.Context, id string) error

	// IndexStats summarises the vector index.
	IndexStats(ctx context.Context) (*domain.IndexStats, error)

	// SaveIndex persists the vector index.
	SaveIndex(ctx context.Context) error

	// ClearIndex removes every vector and resets all documents to pending.
	ClearIndex(ctx context.Context) error
}
