package chunker

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	// RE2 \s is ASCII only; \p{Zs} adds NBSP and the other Unicode spaces.
	horizontalSpace = regexp.MustCompile(`[\t\f\v\r\p{Zs}]+`)
	lineBreaks      = regexp.MustCompile(`[\t\f\v\r\p{Zs}]?\n[\t\f\v\r\p{Zs}\n]*`)
)

// CleanText collapses whitespace runs to a single space and runs of
// newlines (including blank lines) to a single newline, then trims.
// CleanText(CleanText(x)) == CleanText(x).
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = lineBreaks.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// CleanProcessor normalises whitespace in the extracted text before chunking.
// It implements the PostProcessor interface.
type CleanProcessor struct{}

// NewCleanProcessor creates a whitespace cleaning processor.
func NewCleanProcessor() *CleanProcessor {
	return &CleanProcessor{}
}

// Name returns the processor name.
func (p *CleanProcessor) Name() string {
	return "clean"
}

// Process rewrites text.Content in place and passes chunks through.
func (p *CleanProcessor) Process(
	_ context.Context,
	text *domain.ExtractedText,
	chunks []domain.DocumentChunk,
) ([]domain.DocumentChunk, error) {
	text.Content = CleanText(text.Content)
	return chunks, nil
}
