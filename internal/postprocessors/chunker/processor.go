// Package chunker provides text cleaning and fixed-size chunking processors.
package chunker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// ChunkText splits text into windows of at most size characters, advancing
// by size-overlap characters so consecutive full windows share overlap
// characters. Lengths are counted in runes.
//
// It fails with domain.ErrInvalidArgument when size <= overlap, for any text.
// Empty text yields no chunks.
func ChunkText(text string, size, overlap int) ([]string, error) {
	if err := (domain.ChunkingSettings{Size: size, Overlap: overlap}).Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))

		// The window reached the end; a further step would only repeat overlap.
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// Processor splits extracted text into fixed-size chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
// An overlap not smaller than the chunk size is reported by Process.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the text into chunks with sequential chunk indexes.
// Input chunks are ignored; this processor creates new chunks from the text.
func (p *Processor) Process(
	ctx context.Context,
	text *domain.ExtractedText,
	_ []domain.DocumentChunk,
) ([]domain.DocumentChunk, error) {
	pieces, err := ChunkText(text.Content, p.chunkSize, p.overlap)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("chunk text: %w", err)
	}

	chunks := make([]domain.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.DocumentChunk{
			ID:         uuid.New().String(),
			DocumentID: text.DocumentID,
			ChunkIndex: i,
			Content:    piece,
		}
	}

	return chunks, nil
}
