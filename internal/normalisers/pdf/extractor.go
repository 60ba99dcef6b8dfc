// Package pdf extracts text and metadata from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// magicWindow is how far into a file the %PDF- header may appear.
const magicWindow = 1024

// maxTitleLength is the longest first line accepted as a fallback title.
const maxTitleLength = 200

var pdfMagic = []byte("%PDF-")

// Extractor reads PDFs with a pure Go parser.
type Extractor struct{}

// New creates a PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// IsPDF reports whether content carries the PDF header.
func (e *Extractor) IsPDF(content []byte) bool {
	return IsPDF(content)
}

// IsPDF reports whether content carries the PDF header within the first
// 1024 bytes, as PDF readers allow leading garbage.
func IsPDF(content []byte) bool {
	if len(content) > magicWindow {
		content = content[:magicWindow]
	}
	return bytes.Contains(content, pdfMagic)
}

// IsPDFFile is IsPDF for a file on disk. Unreadable files are not PDFs.
func IsPDFFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, magicWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false
	}
	return IsPDF(head[:n])
}

// ExtractText returns the text of every page in page order.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	if err := checkExists(path); err != nil {
		return "", err
	}

	f, reader, err := open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return readText(ctx, reader)
}

// ExtractTextFromBytes returns the text of an in-memory PDF.
func (e *Extractor) ExtractTextFromBytes(ctx context.Context, content []byte) (string, error) {
	if !IsPDF(content) {
		return "", fmt.Errorf("%w: missing PDF header", domain.ErrInvalidFormat)
	}

	reader, err := newReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	return readText(ctx, reader)
}

// ExtractMetadata returns title, author, page count and file size.
// The title falls back to the first short line of the first page and
// then to the filename.
func (e *Extractor) ExtractMetadata(ctx context.Context, path string) (domain.DocumentMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DocumentMetadata{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return domain.DocumentMetadata{}, fmt.Errorf("stat pdf: %w", err)
	}

	f, reader, err := open(path)
	if err != nil {
		return domain.DocumentMetadata{}, err
	}
	defer f.Close()

	meta := domain.DocumentMetadata{FileSize: info.Size()}
	if err := safely(func() error {
		meta.PageCount = reader.NumPage()
		docInfo := reader.Trailer().Key("Info")
		meta.Title = strings.TrimSpace(docInfo.Key("Title").Text())
		meta.Author = strings.TrimSpace(docInfo.Key("Author").Text())
		return nil
	}); err != nil {
		return domain.DocumentMetadata{}, err
	}

	if meta.PageCount < 1 {
		return domain.DocumentMetadata{}, fmt.Errorf("%w: no pages", domain.ErrInvalidFormat)
	}

	if meta.Title == "" {
		firstPage, err := pageText(ctx, reader, 1)
		if err != nil {
			firstPage = ""
		}
		meta.Title = extractTitle(firstPage, path)
	}

	return meta, nil
}

func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return fmt.Errorf("stat pdf: %w", err)
	}
	return nil
}

// open opens a PDF file. The parser reads through io.ReaderAt so pages are
// loaded on demand rather than buffering the whole file.
func open(path string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pdf: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := newReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, reader, nil
}

func newReader(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	err = safely(func() error {
		var openErr error
		reader, openErr = pdf.NewReader(r, size)
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func readText(ctx context.Context, reader *pdf.Reader) (string, error) {
	var pages int
	if err := safely(func() error {
		pages = reader.NumPage()
		return nil
	}); err != nil {
		return "", err
	}
	if pages < 1 {
		return "", fmt.Errorf("%w: no pages", domain.ErrInvalidFormat)
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		text, err := pageText(ctx, reader, i)
		if err != nil {
			return "", err
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
	}

	return sb.String(), nil
}

func pageText(ctx context.Context, reader *pdf.Reader, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("extract page %d: %w", index, err)
	}

	var text string
	err := safely(func() error {
		page := reader.Page(index)
		if page.V.IsNull() {
			return nil
		}
		var textErr error
		text, textErr = page.GetPlainText(nil)
		return textErr
	})
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", index, err)
	}
	return strings.TrimSpace(text), nil
}

// safely runs fn and converts parser errors and panics on malformed
// input into domain.ErrInvalidFormat.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidFormat, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidFormat, err)
	}
	return nil
}

// extractTitle returns the first short non-empty line of content,
// falling back to the filename with underscores replaced by spaces.
func extractTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) <= maxTitleLength {
			return line
		}
	}

	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}
