package services

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize         = "chunking.size"
	keyChunkOverlap      = "chunking.overlap"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedBatchSize    = "embedding.batch_size"
	keyVectorBackend     = "vector.backend"
	keyVectorPath        = "vector.path"
	keyVectorDSN         = "vector.dsn"
	keyVectorDims        = "vector.dimension"
	keyRetrievalTopK     = "retrieval.top_k"
	keyRetrievalMinScore = "retrieval.similarity_threshold"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMTemperature    = "llm.temperature"
	keyLLMMaxTokens      = "llm.max_tokens"
	keyLLMContextWindow  = "llm.context_window"
	keyLLMTimeout        = "llm.timeout_seconds"
	keyLLMMaxAttempts    = "llm.max_attempts"
	keyLLMRateLimit      = "llm.requests_per_minute"
	keyCacheTTL          = "cache.ttl_seconds"
	keyCacheMaxEntries   = "cache.max_entries"
	keyTokenizerPath     = "tokenizer.path"
	keyStorageDir        = "storage.dir"
	keyWorkers           = "workers"
)

// defaultOllamaURL is used when a local provider is selected without a base URL.
const defaultOllamaURL = "http://localhost:11434"

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindProvider
	kindBackend
)

type settingKey struct {
	key  string
	kind valueKind
}

// settingKeys lists every supported key in display order.
var settingKeys = []settingKey{
	{keyChunkSize, kindInt},
	{keyChunkOverlap, kindInt},
	{keyEmbedProvider, kindProvider},
	{keyEmbedModel, kindString},
	{keyEmbedBaseURL, kindString},
	{keyEmbedAPIKey, kindString},
	{keyEmbedBatchSize, kindInt},
	{keyVectorBackend, kindBackend},
	{keyVectorPath, kindString},
	{keyVectorDSN, kindString},
	{keyVectorDims, kindInt},
	{keyRetrievalTopK, kindInt},
	{keyRetrievalMinScore, kindFloat},
	{keyLLMProvider, kindProvider},
	{keyLLMModel, kindString},
	{keyLLMBaseURL, kindString},
	{keyLLMAPIKey, kindString},
	{keyLLMTemperature, kindFloat},
	{keyLLMMaxTokens, kindInt},
	{keyLLMContextWindow, kindInt},
	{keyLLMTimeout, kindInt},
	{keyLLMMaxAttempts, kindInt},
	{keyLLMRateLimit, kindInt},
	{keyCacheTTL, kindInt},
	{keyCacheMaxEntries, kindInt},
	{keyTokenizerPath, kindString},
	{keyStorageDir, kindString},
	{keyWorkers, kindInt},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings. Missing or invalid values
// fall back to their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, defaults.Embedding.Provider)
	embedModel := defaults.Embedding.Model
	if embedProvider != defaults.Embedding.Provider {
		embedModel = domain.DefaultEmbeddingModels()[embedProvider]
	}
	llmProvider := s.getProvider(keyLLMProvider, defaults.LLM.Provider)
	llmModel := defaults.LLM.Model
	if llmProvider != defaults.LLM.Provider {
		llmModel = domain.DefaultLLMModels()[llmProvider]
	}

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap: s.getCount(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   embedProvider,
			Model:      s.getString(keyEmbedModel, embedModel),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			BatchSize:  s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
			Dimensions: s.configStore.GetInt(keyVectorDims),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend: s.getBackend(defaults.VectorIndex.Backend),
			Path:    s.configStore.GetString(keyVectorPath),
			DSN:     s.configStore.GetString(keyVectorDSN),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:                s.getInt(keyRetrievalTopK, defaults.Retrieval.TopK),
			SimilarityThreshold: s.getFloat(keyRetrievalMinScore, defaults.Retrieval.SimilarityThreshold),
		},
		LLM: domain.LLMSettings{
			Provider:          llmProvider,
			Model:             s.getString(keyLLMModel, llmModel),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			Temperature:       s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
			MaxTokens:         s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
			ContextWindow:     s.getInt(keyLLMContextWindow, defaults.LLM.ContextWindow),
			Timeout:           s.getSeconds(keyLLMTimeout, defaults.LLM.Timeout),
			MaxAttempts:       s.getInt(keyLLMMaxAttempts, defaults.LLM.MaxAttempts),
			RequestsPerMinute: s.configStore.GetInt(keyLLMRateLimit),
		},
		Cache: domain.CacheSettings{
			TTL:        s.getSeconds(keyCacheTTL, defaults.Cache.TTL),
			MaxEntries: s.getInt(keyCacheMaxEntries, defaults.Cache.MaxEntries),
		},
		TokenizerPath: s.configStore.GetString(keyTokenizerPath),
		StorageDir:    s.configStore.GetString(keyStorageDir),
		Workers:       s.getInt(keyWorkers, defaults.Workers),
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyVectorBackend, string(settings.VectorIndex.Backend)},
		{keyVectorPath, settings.VectorIndex.Path},
		{keyVectorDSN, settings.VectorIndex.DSN},
		{keyVectorDims, settings.Embedding.Dimensions},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyRetrievalMinScore, settings.Retrieval.SimilarityThreshold},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMContextWindow, settings.LLM.ContextWindow},
		{keyLLMTimeout, int(settings.LLM.Timeout / time.Second)},
		{keyLLMMaxAttempts, settings.LLM.MaxAttempts},
		{keyLLMRateLimit, settings.LLM.RequestsPerMinute},
		{keyCacheTTL, int(settings.Cache.TTL / time.Second)},
		{keyCacheMaxEntries, settings.Cache.MaxEntries},
		{keyTokenizerPath, settings.TokenizerPath},
		{keyStorageDir, settings.StorageDir},
		{keyWorkers, settings.Workers},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when present so that keys supplied
	// through the environment never end up in the config file.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// Keys returns the supported config keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	for i, k := range settingKeys {
		keys[i] = k.key
	}
	return keys
}

// Set parses value according to the type of key and persists it.
func (s *SettingsService) Set(key, value string) error {
	idx := slices.IndexFunc(settingKeys, func(k settingKey) bool { return k.key == key })
	if idx < 0 {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidArgument, key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch settingKeys[idx].kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidArgument, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidArgument, key)
		}
		parsed = f
	case kindProvider:
		provider := domain.AIProvider(value)
		if !provider.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidArgument, value)
		}
		parsed = value
	case kindBackend:
		if !domain.VectorBackend(value).IsValid() {
			return fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidArgument, value)
		}
		parsed = value
	default:
		parsed = value
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidArgument, provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidArgument, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if provider.RequiresAPIKey() && apiKey == "" && settings.Embedding.APIKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidArgument, provider)
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	if apiKey != "" {
		settings.Embedding.APIKey = apiKey
	}

	// A model switch changes the vector size.
	settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidArgument, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if provider.RequiresAPIKey() && apiKey == "" && settings.LLM.APIKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidArgument, provider)
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	if apiKey != "" {
		settings.LLM.APIKey = apiKey
	}

	return s.Save(settings)
}

// SetAPIKey stores the API key for a cloud provider wherever that
// provider is selected. When neither is, the key goes to the LLM slot.
func (s *SettingsService) SetAPIKey(provider domain.AIProvider, apiKey string) error {
	if !provider.RequiresAPIKey() {
		return fmt.Errorf("%w: %s does not use an API key", domain.ErrInvalidArgument, provider)
	}
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%w: API key is empty", domain.ErrInvalidArgument)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	stored := false
	if settings.Embedding.Provider == provider {
		if err := s.configStore.Set(keyEmbedAPIKey, apiKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
		stored = true
	}
	if settings.LLM.Provider == provider || !stored {
		if err := s.configStore.Set(keyLLMAPIKey, apiKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}
	return nil
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if err := settings.Chunking.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %s is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	if !settings.VectorIndex.Backend.IsValid() {
		return fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidArgument, settings.VectorIndex.Backend)
	}
	if settings.VectorIndex.Backend == domain.VectorBackendPgvector && settings.VectorIndex.DSN == "" {
		return fmt.Errorf("%w: %s requires %s", domain.ErrInvalidArgument, domain.VectorBackendPgvector, keyVectorDSN)
	}
	if settings.Retrieval.SimilarityThreshold < -1 || settings.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: %s must be within [-1, 1]", domain.ErrInvalidArgument, keyRetrievalMinScore)
	}
	if settings.LLM.MaxTokens >= settings.LLM.ContextWindow {
		return fmt.Errorf("%w: %s must be smaller than %s",
			domain.ErrInvalidArgument, keyLLMMaxTokens, keyLLMContextWindow)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getCount is getInt for values where zero is meaningful.
func (s *SettingsService) getCount(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	if val := s.configStore.GetInt(key); val >= 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	secs := s.configStore.GetInt(key)
	if secs <= 0 {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(keyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
