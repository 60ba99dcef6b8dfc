package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages uploaded documents and keeps the document
// store, the vector index and file storage consistent with each other.
type DocumentService struct {
	docStore  driven.DocumentStore
	storage   driven.FileStorage
	index     driven.VectorIndex
	processor *Processor
	model     string
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docStore driven.DocumentStore,
	storage driven.FileStorage,
	index driven.VectorIndex,
	processor *Processor,
) *DocumentService {
	s := &DocumentService{
		docStore:  docStore,
		storage:   storage,
		index:     index,
		processor: processor,
	}
	if processor != nil && processor.embedder != nil {
		s.model = processor.embedder.ModelName()
	}
	return s
}

// Upload stores and ingests a PDF held in memory.
func (s *DocumentService) Upload(
	ctx context.Context,
	filename string,
	content []byte,
	opts domain.ProcessOptions,
) (*domain.Document, *domain.ProcessResult, error) {
	record, err := s.create(ctx, filepath.Base(filename), int64(len(content)))
	if err != nil {
		return nil, nil, err
	}
	result, err := s.processor.ProcessDocument(ctx, content, record.Document().Filename, record, opts)
	return record.Document(), result, err
}

// UploadFromPath ingests the PDF at path.
func (s *DocumentService) UploadFromPath(
	ctx context.Context,
	path string,
	opts domain.ProcessOptions,
) (*domain.Document, *domain.ProcessResult, error) {
	record, err := s.create(ctx, filepath.Base(path), 0)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.processor.ProcessDocumentFromPath(ctx, path, record, opts)
	return record.Document(), result, err
}

// Reprocess removes a document's vectors and reruns ingestion from its
// stored file. A document already processing is rejected.
func (s *DocumentService) Reprocess(ctx context.Context, id string, opts domain.ProcessOptions) (*domain.ProcessResult, error) {
	doc, err := s.docStore.ClaimForProcessing(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.removeVectors(ctx, id); err != nil {
		if statusErr := s.docStore.UpdateStatus(context.WithoutCancel(ctx), id, domain.StatusError, err.Error()); statusErr != nil {
			logger.Warn("document: mark %s failed: %v", id, statusErr)
		}
		return nil, err
	}

	record := NewStoredDocument(s.docStore, doc)
	result, err := s.processor.ReprocessDocument(ctx, record, opts)
	if err != nil {
		// The old chunks point at vectors that no longer exist.
		if clearErr := s.docStore.SaveChunks(context.WithoutCancel(ctx), id, nil); clearErr != nil {
			logger.Warn("document: clear chunks of %s: %v", id, clearErr)
		}
		return nil, err
	}
	return result, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, id)
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Chunks returns the chunks of a document in order.
func (s *DocumentService) Chunks(ctx context.Context, id string) ([]domain.DocumentChunk, error) {
	if _, err := s.docStore.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.docStore.GetChunks(ctx, id)
}

// Delete removes a document's vectors, its record with the chunks and
// finally its stored file.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.removeVectors(ctx, id); err != nil {
		return err
	}
	if err := s.docStore.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if doc.StoragePath != "" && s.storage != nil {
		if err := s.storage.Remove(ctx, doc.StoragePath); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("document: remove file %s: %v", doc.StoragePath, err)
		}
	}
	if s.index != nil {
		if err := s.index.Save(ctx); err != nil {
			logger.Warn("document: save vector index: %v", err)
		}
	}
	logger.Info("Deleted document %s", id)
	return nil
}

// IndexStats summarises the vector index and the documents feeding it.
func (s *DocumentService) IndexStats(ctx context.Context) (*domain.IndexStats, error) {
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	stats := &domain.IndexStats{
		Vectors:    s.index.Len(),
		Dimensions: s.index.Dimensions(),
		Documents:  len(docs),
		Model:      s.model,
	}
	for i := range docs {
		if docs[i].Status == domain.StatusAvailable {
			stats.Available++
		}
	}
	return stats, nil
}

// SaveIndex persists the vector index.
func (s *DocumentService) SaveIndex(ctx context.Context) error {
	if s.index == nil {
		return domain.ErrVectorIndexUnavailable
	}
	return s.index.Save(ctx)
}

// ClearIndex removes every vector. Chunks are dropped and documents go
// back to pending so that they can be reprocessed.
func (s *DocumentService) ClearIndex(ctx context.Context) error {
	if s.index == nil {
		return domain.ErrVectorIndexUnavailable
	}
	if err := s.index.Clear(ctx); err != nil {
		return fmt.Errorf("clear vector index: %w", err)
	}
	if err := s.index.Save(ctx); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for i := range docs {
		if err := s.docStore.SaveChunks(ctx, docs[i].ID, nil); err != nil {
			return fmt.Errorf("clear chunks of %s: %w", docs[i].ID, err)
		}
		if err := s.docStore.UpdateStatus(ctx, docs[i].ID, domain.StatusPending, ""); err != nil {
			return fmt.Errorf("reset %s: %w", docs[i].ID, err)
		}
	}
	logger.Info("Cleared vector index (%d documents reset)", len(docs))
	return nil
}

func (s *DocumentService) create(ctx context.Context, filename string, size int64) (*StoredDocument, error) {
	if s.processor == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	now := time.Now()
	doc := &domain.Document{
		ID:        uuid.New().String(),
		Filename:  filename,
		Status:    domain.StatusPending,
		Metadata:  domain.DocumentMetadata{FileSize: size},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return NewStoredDocument(s.docStore, doc), nil
}

// removeVectors deletes the vectors referenced by a document's chunks.
func (s *DocumentService) removeVectors(ctx context.Context, id string) error {
	chunks, err := s.docStore.GetChunks(ctx, id)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(chunks))
	for i := range chunks {
		if chunks[i].EmbeddingID != "" {
			ids = append(ids, chunks[i].EmbeddingID)
		}
	}
	if len(ids) == 0 || s.index == nil {
		return nil
	}
	if _, err := s.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	logger.Debug("document: removed %d vectors of %s", len(ids), id)
	return nil
}
