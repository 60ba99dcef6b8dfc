package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ingest uploads a fake PDF whose text is text.
func ingest(t *testing.T, env *testEnv, filename, text string) *domain.Document {
	t.Helper()
	env.extractor.text = text
	env.extractor.metadata = domain.DocumentMetadata{Title: filename}
	doc, _, err := env.documents.Upload(context.Background(), filename, fakePDF(), domain.ProcessOptions{})
	require.NoError(t, err)
	return doc
}

func TestQueryService_Retrieve(t *testing.T) {
	env := newTestEnv(t)
	ingest(t, env, "go.pdf", "Goroutines and channels make concurrency simple in Go programs.")
	ingest(t, env, "baking.pdf", "Sourdough bread needs flour, water, salt and a lively starter.")
	service := NewQueryService(env.embedder, env.index, env.docStore, nil, domain.RetrievalSettings{TopK: 5})

	results, err := service.Retrieve(context.Background(), "how do goroutines and channels work", domain.RetrievalOptions{})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "go.pdf", results[0].DocumentTitle)
	assert.Contains(t, results[0].Content, "Goroutines")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestQueryService_Retrieve_Options(t *testing.T) {
	env := newTestEnv(t)
	ingest(t, env, "a.pdf", "vector search ranks chunks by cosine similarity")
	ingest(t, env, "b.pdf", "vector databases store embeddings for search")
	ingest(t, env, "c.pdf", "search engines index vector embeddings")
	service := NewQueryService(env.embedder, env.index, env.docStore, nil, domain.RetrievalSettings{TopK: 5})
	ctx := context.Background()

	one, err := service.Retrieve(ctx, "vector search", domain.RetrievalOptions{TopK: 1, Threshold: new(float64)})
	require.NoError(t, err)
	assert.Len(t, one, 1)

	strict := 0.999
	none, err := service.Retrieve(ctx, "vector search", domain.RetrievalOptions{Threshold: &strict})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryService_Retrieve_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	service := NewQueryService(env.embedder, env.index, env.docStore, nil, domain.RetrievalSettings{})
	bad := 1.5

	tests := []struct {
		name  string
		query string
		opts  domain.RetrievalOptions
	}{
		{name: "empty query", query: "   "},
		{name: "negative top k", query: "q", opts: domain.RetrievalOptions{TopK: -1}},
		{name: "threshold out of range", query: "q", opts: domain.RetrievalOptions{Threshold: &bad}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Retrieve(context.Background(), tt.query, tt.opts)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestQueryService_Retrieve_SkipsOrphans(t *testing.T) {
	env := newTestEnv(t)
	doc := ingest(t, env, "gone.pdf", "orphaned vectors must never surface in results")
	service := NewQueryService(env.embedder, env.index, env.docStore, nil, domain.RetrievalSettings{})

	// Removing the record alone leaves its vectors behind.
	require.NoError(t, env.docStore.DeleteDocument(context.Background(), doc.ID))

	results, err := service.Retrieve(context.Background(), "orphaned vectors", domain.RetrievalOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryService_Retrieve_EmptyIndex(t *testing.T) {
	env := newTestEnv(t)
	service := NewQueryService(env.embedder, env.index, env.docStore, nil, domain.RetrievalSettings{})

	results, err := service.Retrieve(context.Background(), "anything", domain.RetrievalOptions{})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestQueryService_Ask(t *testing.T) {
	env := newTestEnv(t)
	ingest(t, env, "go.pdf", "Goroutines are lightweight threads managed by the Go runtime.")
	llm := &mockLLM{}
	answers, _ := newAnswerService(llm, testAnswerConfig())
	service := NewQueryService(env.embedder, env.index, env.docStore, answers, domain.RetrievalSettings{})

	resp, err := service.Ask(context.Background(), "what are goroutines", domain.RetrievalOptions{})

	require.NoError(t, err)
	assert.Equal(t, "the answer", resp.ResponseText)
	assert.Equal(t, "what are goroutines", resp.QueryText)
	require.NotEmpty(t, resp.RelevantDocuments)
	assert.Contains(t, llm.lastMessages()[1].Content, "lightweight threads")
}

func TestQueryService_Ask_NoMatchesStillAsks(t *testing.T) {
	env := newTestEnv(t)
	llm := &mockLLM{}
	answers, _ := newAnswerService(llm, testAnswerConfig())
	service := NewQueryService(env.embedder, env.index, env.docStore, answers, domain.RetrievalSettings{})

	resp, err := service.Ask(context.Background(), "unknown topic", domain.RetrievalOptions{})

	require.NoError(t, err)
	assert.Empty(t, resp.RelevantDocuments)
	assert.Equal(t, int32(1), llm.calls.Load())
}

func TestQueryService_Ask_WithoutLLM(t *testing.T) {
	env := newTestEnv(t)
	answers, _ := newAnswerService(nil, testAnswerConfig())

	for _, service := range []*QueryService{
		NewQueryService(env.embedder, env.index, env.docStore, nil, domain.RetrievalSettings{}),
		NewQueryService(env.embedder, env.index, env.docStore, answers, domain.RetrievalSettings{}),
	} {
		_, err := service.Ask(context.Background(), "question", domain.RetrievalOptions{})
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	}
}
