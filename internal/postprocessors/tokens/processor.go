// Package tokens provides a processor that annotates chunks with token counts.
package tokens

import (
	"context"
	"errors"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Processor sets DocumentChunk.TokenCount using a TokenCounter.
// It implements the PostProcessor interface.
type Processor struct {
	counter driven.TokenCounter
}

// New creates a token counting processor.
func New(counter driven.TokenCounter) *Processor {
	return &Processor{counter: counter}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "tokens"
}

// Process counts the tokens of every chunk.
func (p *Processor) Process(
	ctx context.Context,
	_ *domain.ExtractedText,
	chunks []domain.DocumentChunk,
) ([]domain.DocumentChunk, error) {
	if p.counter == nil {
		return nil, errors.New("token counter is nil")
	}

	for i := range chunks {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		chunks[i].TokenCount = p.counter.Count(chunks[i].Content)
	}
	return chunks, nil
}
