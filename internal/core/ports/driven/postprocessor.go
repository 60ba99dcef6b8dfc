package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// PostProcessor transforms extracted text into chunks.
// PostProcessors are chained in a pipeline (e.g., cleaning, chunking, token counting).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes the extracted text and the chunks produced so far.
	// If the processor modifies text (e.g., cleaning), it updates text in place.
	// If the processor creates chunks (e.g., chunker), it receives nil and returns new chunks.
	// If the processor annotates chunks (e.g., token counts), it returns them modified.
	Process(ctx context.Context, text *domain.ExtractedText, chunks []domain.DocumentChunk) ([]domain.DocumentChunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the text through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, text *domain.ExtractedText) ([]domain.DocumentChunk, error)
}
