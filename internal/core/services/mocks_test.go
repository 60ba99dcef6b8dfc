package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachemem "github.com/custodia-labs/docqa/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/local"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// --- Mock implementations ---

// wordCounter counts whitespace separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }
func (wordCounter) Name() string          { return "words" }

// mockPrompts implements driven.PromptStore for testing.
type mockPrompts struct {
	system string
	user   string
	err    error
}

func newMockPrompts() *mockPrompts {
	return &mockPrompts{
		system: "Answer from the context.",
		user:   "Context:\n%s\n\nQuestion: %s",
	}
}

func (m *mockPrompts) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if name == driven.PromptAnswerSystem {
		return m.system, nil
	}
	return m.user, nil
}

func (m *mockPrompts) Reload() {}

// mockLLM implements driven.LLMService. chat decides each response;
// nil answers with a fixed string.
type mockLLM struct {
	calls    atomic.Int32
	chat     func(ctx context.Context, call int, messages []driven.ChatMessage) (string, error)
	mu       sync.Mutex
	messages [][]driven.ChatMessage
}

func (m *mockLLM) Chat(ctx context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	call := int(m.calls.Add(1))
	m.mu.Lock()
	m.messages = append(m.messages, messages)
	m.mu.Unlock()
	if m.chat == nil {
		return "the answer", nil
	}
	return m.chat(ctx, call, messages)
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func (m *mockLLM) lastMessages() []driven.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

// mockEmbedder implements driven.EmbeddingService with fixed vectors.
type mockEmbedder struct {
	dims      int
	embedErr  error
	batches   []int
	shortBy   int
	wrongDims bool
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	m.batches = append(m.batches, len(texts))
	out := make([][]float32, 0, len(texts))
	for i := range len(texts) - m.shortBy {
		dims := m.dims
		if m.wrongDims && i == 0 {
			dims++
		}
		vec := make([]float32, dims)
		vec[i%m.dims] = float32(i + 2)
		out = append(out, vec)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockExtractor implements driven.TextExtractor without parsing PDFs.
type mockExtractor struct {
	text       string
	extractErr error
	metadata   domain.DocumentMetadata

	// entered and release, when set, hold ExtractText until release closes.
	entered chan struct{}
	release chan struct{}
}

func (m *mockExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	if m.extractErr != nil {
		return "", m.extractErr
	}
	return m.text, nil
}

func (m *mockExtractor) ExtractTextFromBytes(_ context.Context, _ []byte) (string, error) {
	return m.text, m.extractErr
}

func (m *mockExtractor) ExtractMetadata(_ context.Context, _ string) (domain.DocumentMetadata, error) {
	md := m.metadata
	if md.PageCount == 0 {
		md.PageCount = 1
	}
	return md, nil
}

func (m *mockExtractor) IsPDF(content []byte) bool {
	return strings.Contains(string(content), "%PDF-")
}

// failingIndex wraps a VectorIndex and fails Add or counts deletes.
type failingIndex struct {
	driven.VectorIndex
	addErr  error
	deleted atomic.Int32
}

func (f *failingIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if f.addErr != nil {
		return f.addErr
	}
	return f.VectorIndex.Add(ctx, ids, vectors)
}

func (f *failingIndex) Delete(ctx context.Context, ids []string) (bool, error) {
	f.deleted.Add(int32(len(ids)))
	return f.VectorIndex.Delete(ctx, ids)
}

// statusRecorder is a DocumentRecord that logs every status written and
// can fail chunk persistence.
type statusRecorder struct {
	*StoredDocument

	mu        sync.Mutex
	statuses  []domain.DocumentStatus
	chunksErr error
}

func (r *statusRecorder) UpdateStatus(ctx context.Context, status domain.DocumentStatus, errMsg string) error {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
	return r.StoredDocument.UpdateStatus(ctx, status, errMsg)
}

func (r *statusRecorder) SaveChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if r.chunksErr != nil {
		return r.chunksErr
	}
	return r.StoredDocument.SaveChunks(ctx, chunks)
}

func (r *statusRecorder) history() []domain.DocumentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DocumentStatus(nil), r.statuses...)
}

// --- Test fixtures ---

// fakePDF returns bytes that pass the PDF magic check.
func fakePDF() []byte {
	return []byte("%PDF-1.4\n% fake document body\n%%EOF\n")
}

// sampleText returns roughly n characters of sentences.
func sampleText(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about retrieval augmented generation. ", i)
	}
	return b.String()[:n]
}

// testEnv wires the pipeline with in-memory and temp-dir adapters.
type testEnv struct {
	docStore  *memory.DocumentStore
	storage   *local.Storage
	index     *failingIndex
	extractor *mockExtractor
	embedder  *EmbeddingGenerator
	processor *Processor
	documents *DocumentService
	pool      *WorkerPool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	storage, err := local.New(t.TempDir())
	require.NoError(t, err)
	idx, err := flat.New("", hashing.DefaultDimensions)
	require.NoError(t, err)

	env := &testEnv{
		docStore:  memory.NewDocumentStore(),
		storage:   storage,
		index:     &failingIndex{VectorIndex: idx},
		extractor: &mockExtractor{text: sampleText(2500), metadata: domain.DocumentMetadata{Title: "Sample"}},
		pool:      NewWorkerPool(2),
	}
	env.embedder = NewEmbeddingGenerator(hashing.NewEmbeddingService(0), 8, env.pool)
	env.processor = NewProcessor(
		env.extractor,
		env.storage,
		wordCounter{},
		env.embedder,
		env.index,
		domain.ChunkingSettings{Size: domain.DefaultChunkSize, Overlap: domain.DefaultChunkOverlap},
		env.pool,
	)
	env.documents = NewDocumentService(env.docStore, env.storage, env.index, env.processor)
	return env
}

// newRecord saves a pending document and wraps it in a statusRecorder.
func (e *testEnv) newRecord(t *testing.T, filename string) *statusRecorder {
	t.Helper()
	now := time.Now()
	doc := &domain.Document{
		ID:        NewEmbeddingID(),
		Filename:  filename,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.docStore.SaveDocument(context.Background(), doc))
	return &statusRecorder{
		StoredDocument: NewStoredDocument(e.docStore, doc),
		statuses:       []domain.DocumentStatus{domain.StatusPending},
	}
}

// newAnswerService builds an answer service over llm with a no-op sleeper.
func newAnswerService(llm driven.LLMService, cfg AnswerConfig) (*AnswerService, *[]time.Duration) {
	var waits []time.Duration
	cfg.Retry.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return NewAnswerService(llm, newMockPrompts(), wordCounter{}, cachemem.New(time.Minute, 100), NewWorkerPool(2), cfg), &waits
}
