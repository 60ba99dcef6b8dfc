package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestProcessor_ProcessDocument_IngestsChunks(t *testing.T) {
	env := newTestEnv(t)
	record := env.newRecord(t, "rag.pdf")
	ctx := context.Background()

	result, err := env.processor.ProcessDocument(ctx, fakePDF(), "rag.pdf", record, domain.ProcessOptions{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(result.Chunks), 3)
	assert.Equal(t, domain.StatusAvailable, result.Status)
	assert.Equal(t, []domain.DocumentStatus{
		domain.StatusPending, domain.StatusProcessing, domain.StatusAvailable,
	}, record.history())

	require.Len(t, result.TextChunks, len(result.Chunks))
	require.Len(t, result.TokenCounts, len(result.Chunks))
	require.Len(t, result.EmbeddingIDs, len(result.Chunks))
	for i, chunk := range result.Chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, record.ID(), chunk.DocumentID)
		assert.LessOrEqual(t, len([]rune(chunk.Content)), domain.DefaultChunkSize)
		assert.Equal(t, result.EmbeddingIDs[i], chunk.EmbeddingID)
		assert.Equal(t, result.TokenCounts[i], chunk.TokenCount)
		assert.Positive(t, chunk.TokenCount)
	}
	assert.Equal(t, len(result.Chunks), env.index.Len())
	assert.FileExists(t, result.DocumentPath)

	stored, err := env.docStore.GetChunks(ctx, record.ID())
	require.NoError(t, err)
	assert.Len(t, stored, len(result.Chunks))

	doc, err := env.docStore.GetDocument(ctx, record.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, doc.Status)
	assert.Equal(t, "Sample", doc.Metadata.Title)
	assert.NotEmpty(t, doc.StoragePath)
}

func TestProcessor_ProcessDocument_RejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	record := env.newRecord(t, "notes.txt")

	result, err := env.processor.ProcessDocument(context.Background(),
		[]byte("plain text, no header"), "notes.txt", record, domain.ProcessOptions{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
	assert.True(t, domain.IsClientError(err))
	assert.Equal(t, domain.StatusError, record.Status())
	assert.NotEmpty(t, record.Document().Error)
	assert.Zero(t, env.index.Len())
}

func TestProcessor_ProcessDocument_ExtractionFailureIsServerError(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.extractErr = domain.ErrInvalidFormat
	record := env.newRecord(t, "broken.pdf")

	_, err := env.processor.ProcessDocument(context.Background(), fakePDF(), "broken.pdf", record, domain.ProcessOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProcessing)
	assert.Equal(t, domain.ErrorClassServer, domain.ClassOf(err))
	assert.Equal(t, domain.StatusError, record.Status())
}

func TestProcessor_ProcessDocument_InvalidChunking(t *testing.T) {
	env := newTestEnv(t)
	record := env.newRecord(t, "rag.pdf")

	_, err := env.processor.ProcessDocument(context.Background(), fakePDF(), "rag.pdf", record,
		domain.ProcessOptions{ChunkSize: 100, ChunkOverlap: 100})

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, domain.StatusError, record.Status())
}

func TestProcessor_ProcessDocument_EmptyTextIsAvailable(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.text = ""
	record := env.newRecord(t, "blank.pdf")

	result, err := env.processor.ProcessDocument(context.Background(), fakePDF(), "blank.pdf", record, domain.ProcessOptions{})

	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.EmbeddingIDs)
	assert.Equal(t, domain.StatusAvailable, record.Status())
}

func TestProcessor_ProcessDocument_RollsBackVectors(t *testing.T) {
	env := newTestEnv(t)
	record := env.newRecord(t, "rag.pdf")
	record.chunksErr = errors.New("disk full")

	_, err := env.processor.ProcessDocument(context.Background(), fakePDF(), "rag.pdf", record, domain.ProcessOptions{})

	require.Error(t, err)
	assert.Equal(t, domain.StatusError, record.Status())
	assert.Zero(t, env.index.Len())
	assert.Positive(t, int(env.index.deleted.Load()))
}

func TestProcessor_ProcessDocument_IndexFailure(t *testing.T) {
	env := newTestEnv(t)
	env.index.addErr = domain.ErrAlreadyExists
	record := env.newRecord(t, "rag.pdf")

	_, err := env.processor.ProcessDocument(context.Background(), fakePDF(), "rag.pdf", record, domain.ProcessOptions{})

	assert.ErrorIs(t, err, domain.ErrProcessing)
	assert.Equal(t, domain.StatusError, record.Status())
	assert.Zero(t, env.index.Len())
}

func TestProcessor_ProcessDocument_CancelledLeavesError(t *testing.T) {
	env := newTestEnv(t)
	record := env.newRecord(t, "rag.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.processor.ProcessDocument(ctx, fakePDF(), "rag.pdf", record, domain.ProcessOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusError, record.Status())
}

func TestProcessor_ProcessDocumentFromPath(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, fakePDF(), 0o600))
	record := env.newRecord(t, "paper.pdf")

	result, err := env.processor.ProcessDocumentFromPath(context.Background(), path, record, domain.ProcessOptions{ChunkSize: 500, ChunkOverlap: 50})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(result.Chunks), 5)
	assert.Equal(t, "paper.pdf", filepath.Base(result.DocumentPath))
	assert.Equal(t, domain.StatusAvailable, record.Status())
}

func TestProcessor_ProcessDocumentFromPath_Errors(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	textFile := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(textFile, []byte("not really a pdf"), 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.pdf"), wantErr: domain.ErrNotFound},
		{name: "wrong magic", path: textFile, wantErr: domain.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := env.newRecord(t, filepath.Base(tt.path))
			_, err := env.processor.ProcessDocumentFromPath(context.Background(), tt.path, record, domain.ProcessOptions{})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.StatusError, record.Status())
		})
	}
}

func TestProcessor_ReprocessDocument(t *testing.T) {
	env := newTestEnv(t)
	record := env.newRecord(t, "rag.pdf")
	ctx := context.Background()

	first, err := env.processor.ProcessDocument(ctx, fakePDF(), "rag.pdf", record, domain.ProcessOptions{})
	require.NoError(t, err)
	_, err = env.index.Delete(ctx, first.EmbeddingIDs)
	require.NoError(t, err)

	second, err := env.processor.ReprocessDocument(ctx, record, domain.ProcessOptions{ChunkSize: 600, ChunkOverlap: 100})
	require.NoError(t, err)
	assert.Greater(t, len(second.Chunks), len(first.Chunks))
	assert.Equal(t, len(second.Chunks), env.index.Len())
	assert.Equal(t, domain.StatusAvailable, record.Status())
}

func TestProcessor_ReprocessDocument_NoStoredFile(t *testing.T) {
	env := newTestEnv(t)
	record := env.newRecord(t, "rag.pdf")

	_, err := env.processor.ReprocessDocument(context.Background(), record, domain.ProcessOptions{})

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, domain.StatusError, record.Status())
}

func TestProcessor_ProcessDocumentAsync(t *testing.T) {
	env := newTestEnv(t)
	records := []*statusRecorder{env.newRecord(t, "a.pdf"), env.newRecord(t, "b.pdf"), env.newRecord(t, "c.pdf")}

	futures := make([]*Future[*domain.ProcessResult], len(records))
	for i, record := range records {
		futures[i] = env.processor.ProcessDocumentAsync(context.Background(), fakePDF(), "doc.pdf", record, domain.ProcessOptions{})
	}

	total := 0
	for i, f := range futures {
		result, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAvailable, records[i].Status())
		total += len(result.Chunks)
	}
	assert.Equal(t, total, env.index.Len())
}

func TestProcessor_ResolveChunking(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		opts    domain.ProcessOptions
		want    domain.ChunkingSettings
		wantErr bool
	}{
		{name: "defaults", want: domain.ChunkingSettings{Size: 1000, Overlap: 200}},
		{name: "size override", opts: domain.ProcessOptions{ChunkSize: 400}, want: domain.ChunkingSettings{Size: 400, Overlap: 200}},
		{name: "both overrides", opts: domain.ProcessOptions{ChunkSize: 300, ChunkOverlap: 30}, want: domain.ChunkingSettings{Size: 300, Overlap: 30}},
		{name: "size not above overlap", opts: domain.ProcessOptions{ChunkSize: 150}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.processor.ResolveChunking(tt.opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
