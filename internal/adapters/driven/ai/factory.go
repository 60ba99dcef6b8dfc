// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	hashingembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/hashing"
	hugotembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/hugot"
	ollamaembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/llm/ratelimit"
	"github.com/custodia-labs/docqa/internal/adapters/driven/tokenizer/heuristic"
	"github.com/custodia-labs/docqa/internal/adapters/driven/tokenizer/hf"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/pgvector"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Default file names under the data directory.
const (
	VectorSnapshotFile = "vectors.idx"
	ModelsDir          = "models"
)

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService // nil when the LLM could not be set up.
	VectorIndex      driven.VectorIndex
	TokenCounter     driven.TokenCounter
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if fell back to retrieval-only mode.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise builds every AI collaborator from settings. dataDir holds
// the vector snapshot and downloaded models. Embedding and vector index
// failures are fatal; an LLM that cannot be created is reported as a
// warning and leaves the application in retrieval-only mode.
func Initialise(ctx context.Context, settings *domain.AppSettings, dataDir string) (*InitResult, error) {
	result := &InitResult{}

	counter, err := CreateTokenCounter(settings.TokenizerPath)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("tokenizer: %v, using heuristic counter", err))
	}
	result.TokenCounter = counter

	embedding := settings.Embedding
	if embedding.ModelDir == "" {
		embedding.ModelDir = filepath.Join(dataDir, ModelsDir)
	}
	embedder, err := CreateEmbeddingService(&embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: provider %q is not configured", domain.ErrEmbeddingUnavailable, embedding.Provider)
	}
	result.EmbeddingService = embedder

	vectorSettings := settings.VectorIndex
	if vectorSettings.Path == "" {
		vectorSettings.Path = filepath.Join(dataDir, VectorSnapshotFile)
	}
	index, err := CreateVectorIndex(ctx, &vectorSettings, embedder.Dimensions())
	if err != nil {
		result.Close()
		return nil, err
	}
	result.VectorIndex = index

	llm, err := CreateLLMService(&settings.LLM)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("llm: %v", err))
		result.FellBack = true
	case llm == nil:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("llm: provider %q is not configured, answers are unavailable", settings.LLM.Provider))
		result.FellBack = true
	default:
		result.LLMService = llm
	}

	logger.Debug("ai: embedding=%s dims=%d llm=%v tokenizer=%s",
		embedder.ModelName(), embedder.Dimensions(), settings.LLM.Provider, counter.Name())
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'docqa settings show' to check",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'docqa settings show' to check",
			domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'docqa settings show' to check",
			domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'docqa settings show' to check",
			domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(settings)
	if svc != nil {
		svc.Close()
	}
	return err
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateAndValidateLLMService(settings)
	if svc != nil {
		svc.Close()
	}
	return err
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, fmt.Errorf("anthropic does not support embeddings, use hugot, ollama or openai")
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderHugot:
		svc, err := hugotembed.NewEmbeddingService(hugotembed.Config{
			Model:      settings.Model,
			ModelDir:   settings.ModelDir,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderHashing:
		return hashingembed.NewEmbeddingService(settings.Dimensions), nil

	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings,
// throttled when a request rate is configured.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderAnthropic:
		svc, err = anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	return ratelimit.Wrap(svc, settings.RequestsPerMinute), nil
}

// CreateVectorIndex opens the configured vector backend for vectors of size dims.
func CreateVectorIndex(ctx context.Context, settings *domain.VectorIndexSettings, dims int) (driven.VectorIndex, error) {
	backend := settings.Backend
	if backend == "" {
		backend = domain.VectorBackendFlat
	}

	switch backend {
	case domain.VectorBackendFlat:
		if settings.Path != "" {
			if err := os.MkdirAll(filepath.Dir(settings.Path), 0700); err != nil {
				return nil, fmt.Errorf("%w: create index dir: %w", domain.ErrVectorIndexUnavailable, err)
			}
		}
		idx, err := flat.New(settings.Path, dims)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
		}
		return idx, nil

	case domain.VectorBackendPgvector:
		store, err := pgvector.New(ctx, settings.DSN, dims)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vector backend %q", domain.ErrVectorIndexUnavailable, backend)
	}
}

// CreateTokenCounter loads the HuggingFace tokenizer at path. An empty path
// selects the heuristic counter. A tokenizer that fails to load also yields
// the heuristic counter, alongside the load error.
func CreateTokenCounter(path string) (driven.TokenCounter, error) {
	if path == "" {
		return heuristic.New(), nil
	}
	counter, err := hf.New(path)
	if err != nil {
		return heuristic.New(), err
	}
	logger.Debug("tokenizer: loaded %s", counter.Name())
	return counter, nil
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.ResolvedDimensions()
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}
