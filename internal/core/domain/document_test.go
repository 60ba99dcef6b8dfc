package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatus(t *testing.T) {
	tests := []struct {
		status   DocumentStatus
		valid    bool
		terminal bool
	}{
		{StatusPending, true, false},
		{StatusProcessing, true, false},
		{StatusAvailable, true, true},
		{StatusError, true, true},
		{DocumentStatus("deleted"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestDocument_DisplayTitle(t *testing.T) {
	doc := &Document{ID: "doc-1"}
	assert.Equal(t, "doc-1", doc.DisplayTitle())

	doc.Filename = "report.pdf"
	assert.Equal(t, "report.pdf", doc.DisplayTitle())

	doc.Metadata.Title = "Annual Report"
	assert.Equal(t, "Annual Report", doc.DisplayTitle())
}

func TestChunkWithSimilarity_EmbedsChunk(t *testing.T) {
	c := ChunkWithSimilarity{
		DocumentChunk: DocumentChunk{ID: "c1", ChunkIndex: 2, Content: "text"},
		Similarity:    0.8,
	}
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 2, c.ChunkIndex)
	assert.InDelta(t, 0.8, c.Similarity, 1e-9)
}
