package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestStoredDocument(t *testing.T) {
	store := memory.NewDocumentStore()
	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Filename: "a.pdf", Status: domain.StatusPending, CreatedAt: time.Now()}
	require.NoError(t, store.SaveDocument(ctx, doc))

	record := NewStoredDocument(store, doc)
	assert.Equal(t, "doc-1", record.ID())
	assert.Equal(t, domain.StatusPending, record.Status())

	require.NoError(t, record.SetStoragePath(ctx, "x/a.pdf"))
	require.NoError(t, record.SetMetadata(ctx, domain.DocumentMetadata{Title: "A", PageCount: 2}))
	require.NoError(t, record.UpdateStatus(ctx, domain.StatusError, "boom"))
	require.NoError(t, record.SaveChunks(ctx, []domain.DocumentChunk{{ID: "c0", Content: "text"}}))

	assert.Equal(t, "x/a.pdf", record.StoragePath())
	assert.Equal(t, domain.StatusError, record.Status())

	stored, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "x/a.pdf", stored.StoragePath)
	assert.Equal(t, "A", stored.Metadata.Title)
	assert.Equal(t, domain.StatusError, stored.Status)
	assert.Equal(t, "boom", stored.Error)

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)

	// Snapshots are copies.
	snap := record.Document()
	snap.Filename = "changed.pdf"
	assert.Equal(t, "a.pdf", record.Document().Filename)
}

func TestStoredDocument_FailedWriteKeepsState(t *testing.T) {
	store := memory.NewDocumentStore()
	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Status: domain.StatusPending}
	require.NoError(t, store.SaveDocument(ctx, doc))
	record := NewStoredDocument(store, doc)
	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	err := record.UpdateStatus(ctx, "bogus", "")

	require.Error(t, err)
	assert.Equal(t, domain.StatusPending, record.Status())
	assert.ErrorIs(t, record.SaveChunks(ctx, nil), domain.ErrNotFound)
}
