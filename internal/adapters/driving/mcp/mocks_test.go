package mcp

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

var (
	_ driving.QueryService    = (*mockQueryService)(nil)
	_ driving.DocumentService = (*mockDocumentService)(nil)
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results  []domain.ChunkWithSimilarity
	response *domain.QueryResponse
	err      error
	lastOpts domain.RetrievalOptions
}

func (m *mockQueryService) Retrieve(
	_ context.Context,
	_ string,
	opts domain.RetrievalOptions,
) ([]domain.ChunkWithSimilarity, error) {
	m.lastOpts = opts
	return m.results, m.err
}

func (m *mockQueryService) Ask(
	_ context.Context,
	_ string,
	opts domain.RetrievalOptions,
) (*domain.QueryResponse, error) {
	m.lastOpts = opts
	return m.response, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	chunks    []domain.DocumentChunk
	result    *domain.ProcessResult
	stats     *domain.IndexStats
	err       error
	lastPath  string
	lastOpts  domain.ProcessOptions
}

func (m *mockDocumentService) Upload(
	_ context.Context,
	_ string,
	_ []byte,
	opts domain.ProcessOptions,
) (*domain.Document, *domain.ProcessResult, error) {
	m.lastOpts = opts
	return m.document, m.result, m.err
}

func (m *mockDocumentService) UploadFromPath(
	_ context.Context,
	path string,
	opts domain.ProcessOptions,
) (*domain.Document, *domain.ProcessResult, error) {
	m.lastPath = path
	m.lastOpts = opts
	return m.document, m.result, m.err
}

func (m *mockDocumentService) Reprocess(_ context.Context, _ string, opts domain.ProcessOptions) (*domain.ProcessResult, error) {
	m.lastOpts = opts
	return m.result, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Chunks(_ context.Context, _ string) ([]domain.DocumentChunk, error) {
	return m.chunks, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) IndexStats(_ context.Context) (*domain.IndexStats, error) {
	return m.stats, m.err
}

func (m *mockDocumentService) SaveIndex(_ context.Context) error {
	return m.err
}

func (m *mockDocumentService) ClearIndex(_ context.Context) error {
	return m.err
}
