// Package local stores uploaded documents on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Storage implements the interface.
var _ driven.FileStorage = (*Storage)(nil)

// Storage writes each file into its own randomly named directory under
// a base directory. The file keeps its original base name so title
// fallbacks derived from it stay meaningful.
type Storage struct {
	baseDir string
}

// New creates the base directory if needed. An empty dir selects
// ~/.docqa/documents.
func New(dir string) (*Storage, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".docqa", "documents")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &Storage{baseDir: abs}, nil
}

// BaseDir returns the absolute storage directory.
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Store streams content into a new file and returns its storage path,
// relative to the base directory.
func (s *Storage) Store(ctx context.Context, content io.Reader, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := uuid.NewString()
	name := filepath.Join(dir, sanitizeFilename(filename))
	full := filepath.Join(s.baseDir, name)

	if err := os.Mkdir(filepath.Join(s.baseDir, dir), 0700); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		os.Remove(filepath.Dir(full))
		return "", fmt.Errorf("creating file: %w", err)
	}

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: content}); err != nil {
		f.Close()
		s.removeFull(full)
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.removeFull(full)
		return "", fmt.Errorf("closing file: %w", err)
	}
	return name, nil
}

// FullPath resolves a storage path to an absolute filesystem path.
// Absolute paths are returned unchanged.
func (s *Storage) FullPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Storage) Remove(_ context.Context, path string) error {
	if path == "" {
		return nil
	}
	full := s.FullPath(path)
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is outside the storage dir", domain.ErrInvalidArgument, path)
	}
	return s.removeFull(full)
}

// removeFull deletes the file and its upload directory once empty.
func (s *Storage) removeFull(full string) error {
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}
	if dir := filepath.Dir(full); dir != s.baseDir {
		_ = os.Remove(dir) // fails while other files remain
	}
	return nil
}

// sanitizeFilename keeps the base name and replaces path separators
// and control characters.
func sanitizeFilename(filename string) string {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		return "document.pdf"
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
