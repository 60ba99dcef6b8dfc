package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	cachemem "github.com/custodia-labs/docqa/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/local"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers/pdf"
)

// Environment variables consulted for API keys.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	envOpenAIKey    = "OPENAI_API_KEY"
	envAnthropicKey = "ANTHROPIC_API_KEY"
)

// app holds the wired services and the resources behind them.
type app struct {
	settings  *services.SettingsService
	documents *services.DocumentService
	queries   *services.QueryService
	pool      *services.WorkerPool

	closers []func()
}

// Close waits for background work and releases resources in reverse order.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// bootstrap wires the application from the config directory. The
// pipeline (stores, embedding model, vector index, LLM) is only built
// when withPipeline is set.
func bootstrap(ctx context.Context, configDir string, withPipeline bool) (*app, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".docqa")
	}
	loadEnv(configDir)

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{settings: services.NewSettingsService(configStore, ai.NewConfigValidator())}
	if !withPipeline {
		return a, nil
	}

	settings, err := a.settings.Get()
	if err != nil {
		return nil, err
	}
	applyEnvKeys(settings)
	if settings.StorageDir == "" {
		settings.StorageDir = filepath.Join(configDir, "documents")
	}
	dataDir := filepath.Join(configDir, "data")

	if err := a.buildPipeline(ctx, settings, configDir, dataDir); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildPipeline(ctx context.Context, settings *domain.AppSettings, configDir, dataDir string) error {
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close document store: %v", err)
		}
	})

	storage, err := local.New(settings.StorageDir)
	if err != nil {
		return fmt.Errorf("open file storage: %w", err)
	}

	aiResult, err := ai.Initialise(ctx, settings, dataDir)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, aiResult.Close)
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}

	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return fmt.Errorf("open prompt store: %w", err)
	}

	a.pool = services.NewWorkerPool(settings.Workers)
	embedder := services.NewEmbeddingGenerator(aiResult.EmbeddingService, settings.Embedding.BatchSize, a.pool)
	processor := services.NewProcessor(
		pdf.New(),
		storage,
		aiResult.TokenCounter,
		embedder,
		aiResult.VectorIndex,
		settings.Chunking,
		a.pool,
	)
	answers := services.NewAnswerService(
		aiResult.LLMService,
		prompts,
		aiResult.TokenCounter,
		cachemem.New(settings.Cache.TTL, settings.Cache.MaxEntries),
		a.pool,
		services.AnswerConfigFromSettings(settings.LLM),
	)

	a.documents = services.NewDocumentService(store.DocumentStore(), storage, aiResult.VectorIndex, processor)
	a.queries = services.NewQueryService(embedder, aiResult.VectorIndex, store.DocumentStore(), answers, settings.Retrieval)
	return nil
}

// loadEnv reads .env from the config directory and the working
// directory. Variables already set are kept.
func loadEnv(configDir string) {
	for _, path := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("load %s: %v", path, err)
		}
	}
}

// applyEnvKeys fills API keys missing from the config from the environment.
func applyEnvKeys(settings *domain.AppSettings) {
	keys := map[domain.AIProvider]string{
		domain.AIProviderOpenAI:    os.Getenv(envOpenAIKey),
		domain.AIProviderAnthropic: os.Getenv(envAnthropicKey),
	}
	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = keys[settings.Embedding.Provider]
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = keys[settings.LLM.Provider]
	}
}
