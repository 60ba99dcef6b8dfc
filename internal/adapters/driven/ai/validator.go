package ai

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// maxTemperature is the upper sampling temperature accepted by the providers.
const maxTemperature = 2.0

// ConfigValidator validates AI provider configurations. Settings are
// checked statically first; remote providers are then pinged.
type ConfigValidator struct{}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding validates an embedding configuration. An empty
// provider has nothing to validate. Local providers are not loaded here:
// hugot only needs a known vector size, since its model is fetched at startup.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || config.Provider == "" {
		return nil
	}
	if err := checkEmbedding(config); err != nil {
		return err
	}

	switch config.Provider {
	case domain.AIProviderHugot, domain.AIProviderHashing:
		return nil
	default:
		return ValidateEmbeddingConfig(config)
	}
}

// ValidateLLM validates an LLM configuration and pings the provider.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	if config == nil || config.Provider == "" {
		return nil
	}
	if err := checkLLM(config); err != nil {
		return err
	}
	return ValidateLLMConfig(config)
}

func checkEmbedding(config *domain.EmbeddingSettings) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), config.Provider) {
		return fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidArgument, config.Provider)
	}
	if config.Provider.RequiresAPIKey() && config.APIKey == "" {
		return fmt.Errorf("%w: %s embeddings require an API key", domain.ErrInvalidArgument, config.Provider)
	}
	if config.BatchSize < 0 {
		return fmt.Errorf("%w: embedding batch size %d", domain.ErrInvalidArgument, config.BatchSize)
	}
	if config.Dimensions < 0 {
		return fmt.Errorf("%w: embedding dimension %d", domain.ErrInvalidArgument, config.Dimensions)
	}
	if config.Provider == domain.AIProviderHugot && config.ResolvedDimensions() == 0 {
		return fmt.Errorf("%w: unknown hugot model %q, set embedding.dimension",
			domain.ErrInvalidArgument, config.Model)
	}
	return nil
}

func checkLLM(config *domain.LLMSettings) error {
	if !slices.Contains(domain.AllLLMProviders(), config.Provider) {
		return fmt.Errorf("%w: %s does not provide chat models", domain.ErrInvalidArgument, config.Provider)
	}
	if config.Provider.RequiresAPIKey() && config.APIKey == "" {
		return fmt.Errorf("%w: %s requires an API key", domain.ErrInvalidArgument, config.Provider)
	}
	if config.Temperature < 0 || config.Temperature > maxTemperature {
		return fmt.Errorf("%w: temperature %.2f outside [0, %.0f]",
			domain.ErrInvalidArgument, config.Temperature, maxTemperature)
	}
	if config.MaxTokens < 0 || config.MaxAttempts < 0 || config.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: max tokens, max attempts and requests per minute must not be negative",
			domain.ErrInvalidArgument)
	}
	if config.ContextWindow > 0 && config.MaxTokens >= config.ContextWindow {
		return fmt.Errorf("%w: max tokens %d leave no room in a %d token context window",
			domain.ErrInvalidArgument, config.MaxTokens, config.ContextWindow)
	}
	return nil
}
