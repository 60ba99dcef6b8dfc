package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderHugot runs a sentence-transformer model in process.
	AIProviderHugot AIProvider = "hugot"

	// AIProviderHashing is a deterministic offline feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderHugot, AIProviderHashing, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHugot || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderHugot:
		return "Hugot (in-process sentence transformer)"
	case AIProviderHashing:
		return "Hashing (offline, deterministic)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// ChunkingSettings controls how extracted text is split.
type ChunkingSettings struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int
}

// Validate returns ErrInvalidArgument unless Size > Overlap >= 0.
func (c ChunkingSettings) Validate() error {
	if c.Size <= 0 || c.Overlap < 0 {
		return fmt.Errorf("%w: chunk size %d and overlap %d must be positive",
			ErrInvalidArgument, c.Size, c.Overlap)
	}
	if c.Size <= c.Overlap {
		return fmt.Errorf("%w: chunk size %d must be greater than overlap %d",
			ErrInvalidArgument, c.Size, c.Overlap)
	}
	return nil
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// ModelDir is where local models are downloaded (for Hugot).
	ModelDir string

	// BatchSize is the number of texts per provider call.
	BatchSize int

	// Dimensions overrides the vector size for unknown models.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ResolvedDimensions returns the configured dimension or the known
// dimension of the model.
func (e EmbeddingSettings) ResolvedDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// VectorBackend identifies a vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendFlat is the exact in-memory index with a file snapshot.
	VectorBackendFlat VectorBackend = "flat"

	// VectorBackendPgvector stores vectors in PostgreSQL with pgvector.
	VectorBackendPgvector VectorBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	return b == VectorBackendFlat || b == VectorBackendPgvector
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the index implementation.
	Backend VectorBackend

	// Path is the snapshot file for the flat backend.
	Path string

	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN string
}

// RetrievalSettings controls vector search at query time.
type RetrievalSettings struct {
	// TopK is the default number of chunks retrieved.
	TopK int

	// SimilarityThreshold drops hits below this cosine similarity.
	SimilarityThreshold float64
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the generated answer.
	MaxTokens int

	// ContextWindow is the total token budget of the model.
	ContextWindow int

	// Timeout bounds one model call.
	Timeout time.Duration

	// MaxAttempts bounds calls per answer when rate limited.
	MaxAttempts int

	// RequestsPerMinute throttles model calls client side. Zero disables.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	switch l.Provider {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
	default:
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// CacheSettings bounds the response cache.
type CacheSettings struct {
	// TTL is how long an answer stays cached.
	TTL time.Duration

	// MaxEntries caps the number of cached answers.
	MaxEntries int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunking    ChunkingSettings
	Embedding   EmbeddingSettings
	VectorIndex VectorIndexSettings
	Retrieval   RetrievalSettings
	LLM         LLMSettings
	Cache       CacheSettings

	// TokenizerPath is a HuggingFace tokenizer.json. Empty selects the heuristic counter.
	TokenizerPath string

	// StorageDir holds uploaded PDFs.
	StorageDir string

	// Workers bounds concurrent background pipeline runs.
	Workers int
}

// Default settings values.
const (
	DefaultChunkSize           = 1000
	DefaultChunkOverlap        = 200
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.3
	DefaultTemperature         = 0.7
	DefaultMaxTokens           = 500
	DefaultContextWindow       = 4096
	DefaultLLMTimeout          = 30 * time.Second
	DefaultMaxAttempts         = 3
	DefaultCacheTTL            = time.Hour
	DefaultCacheMaxEntries     = 1000
	DefaultEmbeddingBatchSize  = 32
	DefaultWorkers             = 4
)

// DefaultAppSettings returns settings with sensible defaults.
// The LLM is left unconfigured until an API key or Ollama is set up.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderHugot,
			Model:     DefaultEmbeddingModels()[AIProviderHugot],
			BatchSize: DefaultEmbeddingBatchSize,
		},
		VectorIndex: VectorIndexSettings{
			Backend: VectorBackendFlat,
		},
		Retrieval: RetrievalSettings{
			TopK:                DefaultTopK,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		LLM: LLMSettings{
			Provider:      AIProviderOpenAI,
			Model:         DefaultLLMModels()[AIProviderOpenAI],
			Temperature:   DefaultTemperature,
			MaxTokens:     DefaultMaxTokens,
			ContextWindow: DefaultContextWindow,
			Timeout:       DefaultLLMTimeout,
			MaxAttempts:   DefaultMaxAttempts,
		},
		Cache: CacheSettings{
			TTL:        DefaultCacheTTL,
			MaxEntries: DefaultCacheMaxEntries,
		},
		Workers: DefaultWorkers,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHugot,
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderHashing,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHugot:   "sentence-transformers/all-MiniLM-L6-v2",
		AIProviderHashing: "hashing-384",
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Hugot models
		"sentence-transformers/all-MiniLM-L6-v2": 384,
		// Hashing
		"hashing-384": 384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
