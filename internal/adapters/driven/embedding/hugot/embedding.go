// Package hugot runs a sentence-transformer model in process with the
// pure Go ONNX backend of hugot.
package hugot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"
	onnxFilePath = "onnx/model.onnx"
	pipelineName = "docqa-embedder"
	modelDirPerm = 0o755
)

// Config holds configuration for the hugot embedding service.
type Config struct {
	// Model is the HuggingFace model name.
	Model string

	// ModelDir caches downloaded models.
	ModelDir string

	// Dimensions overrides detection for models not in the known table.
	Dimensions int
}

// EmbeddingService embeds text with a local feature extraction pipeline.
type EmbeddingService struct {
	mu         sync.Mutex
	session    *hugot.Session
	pipeline   *pipelines.FeatureExtractionPipeline
	model      string
	dimensions int
}

// NewEmbeddingService prepares the model, downloading it on first use,
// and starts a hugot session.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ModelDir == "" {
		return nil, fmt.Errorf("%w: hugot: model directory is required", domain.ErrEmbeddingUnavailable)
	}

	modelPath, err := PrepareModel(cfg.Model, cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("%w: create hugot session: %w", domain.ErrEmbeddingUnavailable, err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      pipelineName,
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			logger.Warn("hugot: destroy session: %v", destroyErr)
		}
		return nil, fmt.Errorf("%w: create embedding pipeline: %w", domain.ErrEmbeddingUnavailable, err)
	}

	s := &EmbeddingService{
		session:  session,
		pipeline: pipeline,
		model:    cfg.Model,
	}

	s.dimensions = cfg.Dimensions
	if s.dimensions == 0 {
		s.dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}
	if s.dimensions == 0 {
		sample, err := s.EmbedBatch(context.Background(), []string{"dimension check"})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.dimensions = len(sample[0])
	}

	logger.Debug("hugot: loaded %s (%d dimensions) from %s", cfg.Model, s.dimensions, modelPath)
	return s, nil
}

// PrepareModel returns the local path of model under dir, downloading it
// when missing.
func PrepareModel(model, dir string) (string, error) {
	modelPath := ModelPath(model, dir)
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat model: %w", err)
	}

	if err := os.MkdirAll(dir, modelDirPerm); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	logger.Info("hugot: downloading %s to %s", model, dir)
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = onnxFilePath
	downloaded, err := hugot.DownloadModel(model, dir, opts)
	if err != nil {
		return "", fmt.Errorf("%w: download model %s: %w", domain.ErrEmbeddingUnavailable, model, err)
	}
	return downloaded, nil
}

// ModelPath is where a model is stored under dir.
func ModelPath(model, dir string) string {
	return filepath.Join(dir, strings.ReplaceAll(model, "/", "_"))
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch runs the pipeline once for all texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipeline == nil {
		return nil, fmt.Errorf("%w: hugot: service closed", domain.ErrEmbeddingUnavailable)
	}

	result, err := s.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: run embedding pipeline: %w", domain.ErrExternalService, err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: hugot: got %d embeddings for %d inputs",
			domain.ErrExternalService, len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping reports whether the pipeline is loaded.
func (s *EmbeddingService) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		return fmt.Errorf("%w: hugot: service closed", domain.ErrEmbeddingUnavailable)
	}
	return nil
}

// Close destroys the hugot session.
func (s *EmbeddingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	s.pipeline = nil
	if err != nil {
		return fmt.Errorf("destroy hugot session: %w", err)
	}
	return nil
}
