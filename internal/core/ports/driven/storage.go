package driven

import (
	"context"
	"io"
)

// FileStorage persists uploaded document bytes.
type FileStorage interface {
	// Store writes the content under a unique name derived from filename
	// and returns the storage path.
	Store(ctx context.Context, content io.Reader, filename string) (string, error)

	// FullPath resolves a storage path to an absolute filesystem path.
	FullPath(path string) string

	// Remove deletes a stored file. Missing files are not an error.
	Remove(ctx context.Context, path string) error
}
