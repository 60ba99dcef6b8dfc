package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

var (
	_ driving.DocumentService = (*mockDocumentService)(nil)
	_ driving.QueryService    = (*mockQueryService)(nil)
	_ driving.SettingsService = (*mockSettingsService)(nil)
)

var errMockFailure = errors.New("mock failure")

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testDocument(id string) domain.Document {
	return domain.Document{
		ID:          id,
		Filename:    "report.pdf",
		StoragePath: "/tmp/docqa/" + id + "/report.pdf",
		Status:      domain.StatusAvailable,
		Metadata: domain.DocumentMetadata{
			Title:     "Quarterly Report",
			Author:    "Finance Team",
			PageCount: 12,
			FileSize:  2048,
		},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func testResults() []domain.ChunkWithSimilarity {
	return []domain.ChunkWithSimilarity{
		{
			DocumentChunk: domain.DocumentChunk{
				ID:         "chunk-1",
				DocumentID: "doc-1",
				ChunkIndex: 3,
				Content:    "Revenue grew by twelve percent in the third quarter.",
			},
			DocumentTitle: "Quarterly Report",
			Similarity:    0.87,
		},
	}
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	docs     []domain.Document
	chunks   []domain.DocumentChunk
	stats    *domain.IndexStats
	err      error
	failPath string

	mu       sync.Mutex
	uploaded []string
	deleted  []string
	cleared  bool
	saved    bool
	lastOpts domain.ProcessOptions
}

func (m *mockDocumentService) Upload(
	_ context.Context,
	filename string,
	_ []byte,
	opts domain.ProcessOptions,
) (*domain.Document, *domain.ProcessResult, error) {
	return m.UploadFromPath(context.Background(), filename, opts)
}

func (m *mockDocumentService) UploadFromPath(
	_ context.Context,
	path string,
	opts domain.ProcessOptions,
) (*domain.Document, *domain.ProcessResult, error) {
	m.mu.Lock()
	m.uploaded = append(m.uploaded, path)
	m.lastOpts = opts
	m.mu.Unlock()
	doc := testDocument("doc-" + path)
	if m.err != nil || path == m.failPath {
		doc.Status = domain.StatusError
		err := m.err
		if err == nil {
			err = domain.ErrInvalidFormat
		}
		return &doc, nil, err
	}
	return &doc, &domain.ProcessResult{Chunks: make([]domain.DocumentChunk, 4), Status: domain.StatusAvailable}, nil
}

func (m *mockDocumentService) Reprocess(_ context.Context, _ string, opts domain.ProcessOptions) (*domain.ProcessResult, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ProcessResult{Chunks: make([]domain.DocumentChunk, 6)}, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	doc := testDocument(id)
	return &doc, nil
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) Chunks(_ context.Context, _ string) ([]domain.DocumentChunk, error) {
	return m.chunks, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDocumentService) IndexStats(_ context.Context) (*domain.IndexStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stats != nil {
		return m.stats, nil
	}
	return &domain.IndexStats{Vectors: 42, Dimensions: 384, Documents: 3, Available: 2, Model: "hashing-384"}, nil
}

func (m *mockDocumentService) SaveIndex(_ context.Context) error {
	m.saved = m.err == nil
	return m.err
}

func (m *mockDocumentService) ClearIndex(_ context.Context) error {
	m.cleared = m.err == nil
	return m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results  []domain.ChunkWithSimilarity
	response *domain.QueryResponse
	err      error
	askErr   error
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
	query string,
	opts domain.RetrievalOptions,
) (*domain.QueryResponse, error) {
	m.lastOpts = opts
	if m.askErr != nil {
		return nil, m.askErr
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		return m.response, nil
	}
	return &domain.QueryResponse{
		QueryID:           "query-1",
		QueryText:         query,
		ResponseText:      "Revenue grew by twelve percent.",
		RelevantDocuments: m.results,
	}, nil
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	err         error
	validateErr error

	set     map[string]string
	apiKeys map[domain.AIProvider]string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{
		settings: domain.DefaultAppSettings(),
		set:      make(map[string]string),
		apiKeys:  make(map[domain.AIProvider]string),
	}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	if m.err != nil {
		return m.err
	}
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"chunking.size", "chunking.overlap", "retrieval.top_k"}
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if m.err != nil {
		return m.err
	}
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if m.err != nil {
		return m.err
	}
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetAPIKey(provider domain.AIProvider, apiKey string) error {
	if m.err != nil {
		return m.err
	}
	m.apiKeys[provider] = apiKey
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.validateErr
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return m.validateErr
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	documents *mockDocumentService
	queries   *mockQueryService
	settings  *mockSettingsService
}

// setupTestServices installs mock services and a bootstrap that builds
// nothing. The returned function restores the previous state.
func setupTestServices() func() {
	_, cleanup := setupTestMocks()
	return cleanup
}

func setupTestMocks() (*testServices, func()) {
	mocks := &testServices{
		documents: &mockDocumentService{docs: []domain.Document{testDocument("doc-1")}},
		queries:   &mockQueryService{results: testResults()},
		settings:  newMockSettingsService(),
	}

	oldDocument, oldQuery, oldSettings := documentService, queryService, settingsService
	oldBootstrap := bootstrapApp

	SetServices(Services{Document: mocks.documents, Query: mocks.queries, Settings: mocks.settings})
	bootstrapApp = func(context.Context, string, bool) (*app, error) {
		return &app{}, nil
	}

	return mocks, func() {
		documentService, queryService, settingsService = oldDocument, oldQuery, oldSettings
		bootstrapApp = oldBootstrap
	}
}

// runCommand executes the root command with args and returns the
// combined output.
func runCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd to its default so values do not
// leak between tests.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}
