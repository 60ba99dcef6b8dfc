package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"header at start", []byte("%PDF-1.7\n..."), true},
		{"header after junk", append([]byte("junk\r\n"), []byte("%PDF-1.4")...), true},
		{"plain text", []byte("hello world"), false},
		{"empty", nil, false},
		{"header beyond window", append(make([]byte, 2048), []byte("%PDF-1.4")...), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDF(tt.content))
			assert.Equal(t, tt.want, New().IsPDF(tt.content))
		})
	}
}

func TestIsPDFFile(t *testing.T) {
	dir := t.TempDir()

	pdfPath := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4\n"), 0o600))
	assert.True(t, IsPDFFile(pdfPath))

	txtPath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("not a pdf"), 0o600))
	assert.False(t, IsPDFFile(txtPath))

	assert.False(t, IsPDFFile(filepath.Join(dir, "missing.pdf")))
}

func TestExtractText_MissingFile(t *testing.T) {
	_, err := New().ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExtractText_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text pretending to be a pdf"), 0o600))

	_, err := New().ExtractText(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestExtractTextFromBytes_NoHeader(t *testing.T) {
	_, err := New().ExtractTextFromBytes(context.Background(), []byte("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestExtractTextFromBytes_TruncatedPDF(t *testing.T) {
	_, err := New().ExtractTextFromBytes(context.Background(), []byte("%PDF-1.4\n1 0 obj\n<<"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestExtractMetadata_MissingFile(t *testing.T) {
	_, err := New().ExtractMetadata(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
		want    string
	}{
		{
			name:    "first line",
			content: "Document Title\n\nSome content here.",
			path:    "/path/to/doc.pdf",
			want:    "Document Title",
		},
		{
			name:    "skip empty lines",
			content: "\n\n  \nActual Title\nContent",
			path:    "/path/to/doc.pdf",
			want:    "Actual Title",
		},
		{
			name:    "fallback to filename",
			content: "",
			path:    "/path/to/my_document.pdf",
			want:    "my document",
		},
		{
			name:    "skip very long first line",
			content: strings.Repeat("x", 250) + "\nShort Title",
			path:    "/path/to/doc.pdf",
			want:    "Short Title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTitle(tt.content, tt.path))
		})
	}
}

// buildPDF assembles a minimal PDF with one line of text per page.
// The Info dictionary is written only when title or author is set.
func buildPDF(t *testing.T, title, author string, pages ...string) []byte {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled in below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Title (%s) /Author (%s) >>", title, author),
	}
	var kids []string
	for i, text := range pages {
		pageNum := 5 + 2*i
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageNum+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	info := ""
	if title != "" || author != "" {
		info = " /Info 4 0 R"
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, info, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestExtractText_PagesInOrder(t *testing.T) {
	path := writePDF(t, "two.pdf", buildPDF(t, "", "", "First page text", "Second page text"))

	text, err := New().ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "First page text\nSecond page text", text)
}

func TestExtractTextFromBytes_ValidPDF(t *testing.T) {
	content := buildPDF(t, "", "", "Alpha", "Beta", "Gamma")

	text, err := New().ExtractTextFromBytes(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, "Alpha\nBeta\nGamma", text)
}

func TestExtractText_Cancelled(t *testing.T) {
	path := writePDF(t, "two.pdf", buildPDF(t, "", "", "one", "two"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ExtractText(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractMetadata(t *testing.T) {
	t.Run("info dictionary", func(t *testing.T) {
		content := buildPDF(t, "Quarterly Report", "Jane Analyst", "First page text", "Second page text")
		path := writePDF(t, "report.pdf", content)

		meta, err := New().ExtractMetadata(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "Quarterly Report", meta.Title)
		assert.Equal(t, "Jane Analyst", meta.Author)
		assert.Equal(t, 2, meta.PageCount)
		assert.Equal(t, int64(len(content)), meta.FileSize)
	})

	t.Run("title from first page", func(t *testing.T) {
		path := writePDF(t, "untitled.pdf", buildPDF(t, "", "", "Opening Line", "More"))

		meta, err := New().ExtractMetadata(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "Opening Line", meta.Title)
		assert.Empty(t, meta.Author)
		assert.Equal(t, 2, meta.PageCount)
	})

	t.Run("title from filename", func(t *testing.T) {
		path := writePDF(t, "annual_summary.pdf", buildPDF(t, "", "", ""))

		meta, err := New().ExtractMetadata(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "annual summary", meta.Title)
		assert.Equal(t, 1, meta.PageCount)
	})
}
