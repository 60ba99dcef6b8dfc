package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Values are copied on the way in and out.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.DocumentChunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.DocumentChunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		result = append(result, doc)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// UpdateStatus sets the status and error message of a document.
func (s *DocumentStore) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	doc.Status = status
	doc.Error = errMsg
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return nil
}

// ClaimForProcessing moves a document to processing unless it already is.
func (s *DocumentStore) ClaimForProcessing(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	if doc.Status == domain.StatusProcessing {
		return nil, fmt.Errorf("%w: document %s is already processing", domain.ErrInvalidArgument, id)
	}
	doc.Status = domain.StatusProcessing
	doc.Error = ""
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return &doc, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// SaveChunks replaces all chunks of a document.
func (s *DocumentStore) SaveChunks(_ context.Context, documentID string, chunks []domain.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}
	stored := make([]domain.DocumentChunk, len(chunks))
	copy(stored, chunks)
	for i := range stored {
		stored[i].DocumentID = documentID
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].ChunkIndex < stored[j].ChunkIndex })
	s.chunks[documentID] = stored
	return nil
}

// GetChunks retrieves all chunks for a document ordered by chunk index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := s.chunks[documentID]
	out := make([]domain.DocumentChunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// GetChunksByEmbeddingIDs retrieves the chunks referencing the given embeddings.
func (s *DocumentStore) GetChunksByEmbeddingIDs(_ context.Context, embeddingIDs []string) ([]domain.DocumentChunk, error) {
	want := make(map[string]struct{}, len(embeddingIDs))
	for _, id := range embeddingIDs {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DocumentChunk
	for _, chunks := range s.chunks {
		for _, c := range chunks {
			if _, ok := want[c.EmbeddingID]; ok && c.EmbeddingID != "" {
				out = append(out, c)
			}
		}
	}
	return out, nil
}
