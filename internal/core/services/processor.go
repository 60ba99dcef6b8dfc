package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/postprocessors"
)

// magicWindow is how much of a file is inspected for the PDF header.
const magicWindow = 1024

// statusWriteTimeout bounds the detached write of the error status.
const statusWriteTimeout = 5 * time.Second

// Processor runs the ingestion pipeline: validate, store, extract,
// chunk, count tokens, embed, index and persist. A document becomes
// available only once its vectors and chunks are stored; any failure
// leaves it in the error state with no vectors left behind.
type Processor struct {
	extractor driven.TextExtractor
	storage   driven.FileStorage
	embedder  *EmbeddingGenerator
	index     driven.VectorIndex
	registry  *postprocessors.Registry
	chunking  domain.ChunkingSettings
	pool      *WorkerPool
}

// NewProcessor creates a processor. chunking holds the configured
// defaults that ProcessOptions may override.
func NewProcessor(
	extractor driven.TextExtractor,
	storage driven.FileStorage,
	counter driven.TokenCounter,
	embedder *EmbeddingGenerator,
	index driven.VectorIndex,
	chunking domain.ChunkingSettings,
	pool *WorkerPool,
) *Processor {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry, counter)
	if pool == nil {
		pool = NewWorkerPool(domain.DefaultWorkers)
	}

	return &Processor{
		extractor: extractor,
		storage:   storage,
		embedder:  embedder,
		index:     index,
		registry:  registry,
		chunking:  chunking,
		pool:      pool,
	}
}

// ProcessDocument ingests an in-memory PDF into record.
func (p *Processor) ProcessDocument(
	ctx context.Context,
	content []byte,
	filename string,
	record driven.DocumentRecord,
	opts domain.ProcessOptions,
) (result *domain.ProcessResult, err error) {
	logger.Section("Processing " + filename)

	if err := record.UpdateStatus(ctx, domain.StatusProcessing, ""); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			p.markFailed(ctx, record, err)
		}
	}()

	if !p.extractor.IsPDF(content) {
		return nil, fmt.Errorf("%w: %s is not a PDF", domain.ErrInvalidFormat, filename)
	}

	if err := p.store(ctx, record, bytes.NewReader(content), filename); err != nil {
		return nil, err
	}
	return p.run(ctx, record, opts)
}

// ProcessDocumentFromPath ingests the PDF at path into record. The file
// is streamed into storage rather than read into memory.
func (p *Processor) ProcessDocumentFromPath(
	ctx context.Context,
	path string,
	record driven.DocumentRecord,
	opts domain.ProcessOptions,
) (result *domain.ProcessResult, err error) {
	logger.Section("Processing " + path)

	if err := record.UpdateStatus(ctx, domain.StatusProcessing, ""); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			p.markFailed(ctx, record, err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrProcessing, path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, magicWindow)
	head, err := br.Peek(magicWindow)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrProcessing, path, err)
	}
	if !p.extractor.IsPDF(head) {
		return nil, fmt.Errorf("%w: %s is not a PDF", domain.ErrInvalidFormat, filepath.Base(path))
	}

	if err := p.store(ctx, record, br, filepath.Base(path)); err != nil {
		return nil, err
	}
	return p.run(ctx, record, opts)
}

// ReprocessDocument reruns the pipeline over the already stored file.
// Vectors from the previous run must have been removed by the caller.
func (p *Processor) ReprocessDocument(
	ctx context.Context,
	record driven.DocumentRecord,
	opts domain.ProcessOptions,
) (result *domain.ProcessResult, err error) {
	logger.Section("Reprocessing " + record.ID())

	if err := record.UpdateStatus(ctx, domain.StatusProcessing, ""); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			p.markFailed(ctx, record, err)
		}
	}()

	if record.StoragePath() == "" {
		return nil, fmt.Errorf("%w: document %s has no stored file", domain.ErrInvalidArgument, record.ID())
	}
	return p.run(ctx, record, opts)
}

// ProcessDocumentAsync runs ProcessDocument on the worker pool.
func (p *Processor) ProcessDocumentAsync(
	ctx context.Context,
	content []byte,
	filename string,
	record driven.DocumentRecord,
	opts domain.ProcessOptions,
) *Future[*domain.ProcessResult] {
	return Submit(ctx, p.pool, func(ctx context.Context) (*domain.ProcessResult, error) {
		return p.ProcessDocument(ctx, content, filename, record, opts)
	})
}

// ProcessDocumentFromPathAsync runs ProcessDocumentFromPath on the worker pool.
func (p *Processor) ProcessDocumentFromPathAsync(
	ctx context.Context,
	path string,
	record driven.DocumentRecord,
	opts domain.ProcessOptions,
) *Future[*domain.ProcessResult] {
	return Submit(ctx, p.pool, func(ctx context.Context) (*domain.ProcessResult, error) {
		return p.ProcessDocumentFromPath(ctx, path, record, opts)
	})
}

// ResolveChunking applies opts over the configured chunking and validates the result.
func (p *Processor) ResolveChunking(opts domain.ProcessOptions) (domain.ChunkingSettings, error) {
	chunking := p.chunking
	if opts.ChunkSize != 0 {
		chunking.Size = opts.ChunkSize
	}
	if opts.ChunkOverlap != 0 {
		chunking.Overlap = opts.ChunkOverlap
	}
	if err := chunking.Validate(); err != nil {
		return chunking, err
	}
	return chunking, nil
}

func (p *Processor) store(ctx context.Context, record driven.DocumentRecord, content io.Reader, filename string) error {
	path, err := p.storage.Store(ctx, content, filename)
	if err != nil {
		return stageError("store file", err)
	}
	if err := record.SetStoragePath(ctx, path); err != nil {
		_ = p.storage.Remove(context.WithoutCancel(ctx), path)
		return err
	}
	logger.Debug("processor: stored %s", path)
	return nil
}

// run performs every stage after the file is stored.
func (p *Processor) run(
	ctx context.Context,
	record driven.DocumentRecord,
	opts domain.ProcessOptions,
) (result *domain.ProcessResult, err error) {
	chunking, err := p.ResolveChunking(opts)
	if err != nil {
		return nil, err
	}

	fullPath := p.storage.FullPath(record.StoragePath())

	text, err := p.extractor.ExtractText(ctx, fullPath)
	if err != nil {
		return nil, stageError("extract text", err)
	}
	metadata, err := p.extractor.ExtractMetadata(ctx, fullPath)
	if err != nil {
		return nil, stageError("extract metadata", err)
	}
	logger.Debug("processor: extracted %d bytes from %d pages", len(text), metadata.PageCount)

	pipeline, err := postprocessors.Build(p.registry, postprocessors.DefaultProcessors, map[string]map[string]any{
		"chunker": {"chunk_size": chunking.Size, "overlap": chunking.Overlap},
	})
	if err != nil {
		return nil, stageError("build pipeline", err)
	}
	chunks, err := pipeline.Process(ctx, &domain.ExtractedText{DocumentID: record.ID(), Content: text})
	if err != nil {
		return nil, stageError("chunk text", err)
	}
	logger.Debug("processor: %d chunks (size %d, overlap %d)", len(chunks), chunking.Size, chunking.Overlap)

	textChunks := make([]string, len(chunks))
	tokenCounts := make([]int, len(chunks))
	for i := range chunks {
		textChunks[i] = chunks[i].Content
		tokenCounts[i] = chunks[i].TokenCount
	}

	var embeddingIDs []string
	if len(chunks) > 0 {
		var vectors [][]float32
		vectors, err = p.embedder.GenerateBatch(ctx, textChunks)
		if err != nil {
			return nil, stageError("embed chunks", err)
		}

		ids := make([]string, len(vectors))
		for i := range ids {
			ids[i] = NewEmbeddingID()
		}
		if err = p.index.Add(ctx, ids, vectors); err != nil {
			return nil, stageError("index vectors", err)
		}
		embeddingIDs = ids

		for i := range chunks {
			chunks[i].EmbeddingID = ids[i]
		}
	}
	defer func() {
		if err != nil && len(embeddingIDs) > 0 {
			p.rollbackVectors(ctx, embeddingIDs)
		}
	}()

	if err := record.SaveChunks(ctx, chunks); err != nil {
		return nil, err
	}
	if err := record.SetMetadata(ctx, metadata); err != nil {
		return nil, err
	}
	if err := record.UpdateStatus(ctx, domain.StatusAvailable, ""); err != nil {
		return nil, err
	}

	if len(embeddingIDs) > 0 {
		if err := p.index.Save(ctx); err != nil {
			logger.Warn("processor: save vector index: %v", err)
		}
	}

	logger.Info("Processed %s: %d chunks", record.ID(), len(chunks))
	return &domain.ProcessResult{
		DocumentPath: fullPath,
		Metadata:     metadata,
		Chunks:       chunks,
		TextChunks:   textChunks,
		TokenCounts:  tokenCounts,
		EmbeddingIDs: embeddingIDs,
		Status:       domain.StatusAvailable,
	}, nil
}

// markFailed records the error status even when ctx is already done.
func (p *Processor) markFailed(ctx context.Context, record driven.DocumentRecord, cause error) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	logger.Warn("processor: document %s failed: %v", record.ID(), cause)
	if err := record.UpdateStatus(detached, domain.StatusError, cause.Error()); err != nil {
		logger.Error("processor: record error status for %s: %v", record.ID(), err)
	}
}

func (p *Processor) rollbackVectors(ctx context.Context, ids []string) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if _, err := p.index.Delete(detached, ids); err != nil {
		logger.Error("processor: roll back %d vectors: %v", len(ids), err)
	}
}

// stageError classifies a pipeline failure as a processing error.
// Cancellation and argument errors keep their own identity.
func stageError(stage string, err error) error {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrInvalidArgument):
		return fmt.Errorf("%s: %w", stage, err)
	default:
		return fmt.Errorf("%w: %s: %v", domain.ErrProcessing, stage, err)
	}
}
