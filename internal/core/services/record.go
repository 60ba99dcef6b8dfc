package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure StoredDocument implements the interface.
var _ driven.DocumentRecord = (*StoredDocument)(nil)

// StoredDocument is a DocumentRecord persisted through a DocumentStore.
// It keeps a local copy of the document in step with every write.
type StoredDocument struct {
	store driven.DocumentStore

	mu  sync.RWMutex
	doc domain.Document
}

// NewStoredDocument wraps doc, which must already be saved in store.
func NewStoredDocument(store driven.DocumentStore, doc *domain.Document) *StoredDocument {
	return &StoredDocument{store: store, doc: *doc}
}

// Document returns a snapshot of the document.
func (d *StoredDocument) Document() *domain.Document {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc := d.doc
	return &doc
}

// ID returns the document ID.
func (d *StoredDocument) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.ID
}

// Status returns the current lifecycle state.
func (d *StoredDocument) Status() domain.DocumentStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.Status
}

// StoragePath returns where the raw bytes are stored.
func (d *StoredDocument) StoragePath() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.StoragePath
}

// UpdateStatus persists a status change.
func (d *StoredDocument) UpdateStatus(ctx context.Context, status domain.DocumentStatus, errMsg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.UpdateStatus(ctx, d.doc.ID, status, errMsg); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	d.doc.Status = status
	d.doc.Error = errMsg
	d.doc.UpdatedAt = time.Now()
	return nil
}

// SetStoragePath records where the raw bytes were stored.
func (d *StoredDocument) SetStoragePath(ctx context.Context, path string) error {
	return d.save(ctx, func(doc *domain.Document) { doc.StoragePath = path })
}

// SetMetadata records the extracted metadata.
func (d *StoredDocument) SetMetadata(ctx context.Context, metadata domain.DocumentMetadata) error {
	return d.save(ctx, func(doc *domain.Document) { doc.Metadata = metadata })
}

// SaveChunks replaces the chunks of the document.
func (d *StoredDocument) SaveChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if err := d.store.SaveChunks(ctx, d.ID(), chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

func (d *StoredDocument) save(ctx context.Context, mutate func(*domain.Document)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.doc
	mutate(&next)
	next.UpdatedAt = time.Now()
	if err := d.store.SaveDocument(ctx, &next); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	d.doc = next
	return nil
}
