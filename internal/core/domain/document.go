package domain

import "time"

// DocumentStatus is the processing lifecycle state of a document.
type DocumentStatus string

// Document lifecycle states. Available and error are terminal.
const (
	// StatusPending is the state of a freshly uploaded document.
	StatusPending DocumentStatus = "pending"

	// StatusProcessing is set while the ingestion pipeline runs.
	StatusProcessing DocumentStatus = "processing"

	// StatusAvailable means every chunk is embedded and searchable.
	StatusAvailable DocumentStatus = "available"

	// StatusError means the last pipeline run failed.
	StatusError DocumentStatus = "error"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAvailable, StatusError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states the pipeline leaves a document in.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusAvailable || s == StatusError
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// DocumentMetadata holds the descriptive fields read from a PDF.
type DocumentMetadata struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	PageCount int    `json:"page_count"`
	FileSize  int64  `json:"file_size"`
}

// Document represents an uploaded PDF.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// Filename is the name the document was uploaded with.
	Filename string `json:"filename"`

	// StoragePath is where the raw bytes were persisted.
	StoragePath string `json:"storage_path"`

	// Status is the processing lifecycle state.
	Status DocumentStatus `json:"status"`

	// Metadata is populated once text extraction succeeds.
	Metadata DocumentMetadata `json:"metadata"`

	// Error holds the message of the last failed pipeline run.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle returns the metadata title, falling back to the filename.
func (d *Document) DisplayTitle() string {
	if d.Metadata.Title != "" {
		return d.Metadata.Title
	}
	if d.Filename != "" {
		return d.Filename
	}
	return d.ID
}

// DocumentChunk is a bounded contiguous span of a document's text.
// ChunkIndex values of one document form the sequence 0..N-1.
type DocumentChunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"id"`

	// DocumentID links to the owning Document.
	DocumentID string `json:"document_id"`

	// ChunkIndex is the zero-based position in chunking order.
	ChunkIndex int `json:"chunk_index"`

	// Content is the text span.
	Content string `json:"content"`

	// TokenCount is the number of tokens in Content.
	TokenCount int `json:"token_count"`

	// EmbeddingID references the vector in the vector store.
	// Empty until the chunk has been embedded.
	EmbeddingID string `json:"embedding_id,omitempty"`
}

// ChunkWithSimilarity is a retrieved chunk and its similarity to the query.
type ChunkWithSimilarity struct {
	DocumentChunk

	// DocumentTitle is the display title of the owning document.
	DocumentTitle string `json:"document_title,omitempty"`

	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64 `json:"similarity_score"`
}

// ExtractedText is the plain text of a document as it flows through
// the text post-processing pipeline.
type ExtractedText struct {
	DocumentID string
	Content    string
}

// ProcessOptions overrides the configured chunking for one pipeline run.
// Zero values select the configured defaults.
type ProcessOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// ProcessResult is the aggregate outcome of ingesting one document.
type ProcessResult struct {
	DocumentPath string           `json:"document_path"`
	Metadata     DocumentMetadata `json:"metadata"`
	Chunks       []DocumentChunk  `json:"chunks"`
	TextChunks   []string         `json:"text_chunks"`
	TokenCounts  []int            `json:"token_counts"`
	EmbeddingIDs []string         `json:"embedding_ids"`
	Status       DocumentStatus   `json:"status"`
}

// IndexStats summarises the vector index and the documents feeding it.
type IndexStats struct {
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
	Documents  int    `json:"documents"`
	Available  int    `json:"available"`
	Model      string `json:"model"`
}
