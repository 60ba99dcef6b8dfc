package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// TextExtractor reads plain text and metadata out of PDF documents.
type TextExtractor interface {
	// ExtractText returns the text of every page in page order.
	// Fails with domain.ErrNotFound when path does not exist and
	// domain.ErrInvalidFormat when the file is not a parseable PDF.
	ExtractText(ctx context.Context, path string) (string, error)

	// ExtractTextFromBytes is ExtractText over an in-memory buffer.
	ExtractTextFromBytes(ctx context.Context, content []byte) (string, error)

	// ExtractMetadata returns title, author, page count and file size.
	ExtractMetadata(ctx context.Context, path string) (domain.DocumentMetadata, error)

	// IsPDF is a magic-byte check. It never fails.
	IsPDF(content []byte) bool
}
