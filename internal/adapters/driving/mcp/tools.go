package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"the text to find similar passages for"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default from settings)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity of returned passages"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []PassageOutput `json:"results"`
	Count   int             `json:"count"`
}

// PassageOutput is one retrieved chunk.
type PassageOutput struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string   `json:"question" jsonschema:"the question to answer from the ingested documents"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"number of passages used as context (default from settings)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity of context passages"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string          `json:"answer"`
	Cached  bool            `json:"cached"`
	Sources []PassageOutput `json:"sources"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Path         string `json:"path" jsonschema:"absolute path of a PDF file on this machine"`
	ChunkSize    int    `json:"chunk_size,omitempty" jsonschema:"chunk size in characters (default from settings)"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty" jsonschema:"chunk overlap in characters (default from settings)"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find passages of the ingested PDF documents similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the ingested PDF documents",
	}, s.handleAsk)

	if s.ports.Document != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Ingest a local PDF file so it can be searched and questioned",
		}, s.handleIngest)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.RetrievalOptions{TopK: input.Limit, Threshold: input.Threshold}
	results, err := s.ports.Query.Retrieve(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{Results: passages(results), Count: len(results)}, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts := domain.RetrievalOptions{TopK: input.TopK, Threshold: input.Threshold}
	resp, err := s.ports.Query.Ask(ctx, input.Question, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:  resp.ResponseText,
		Cached:  resp.Cached,
		Sources: passages(resp.RelevantDocuments),
	}, nil
}

// handleIngest handles the ingest tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	opts := domain.ProcessOptions{ChunkSize: input.ChunkSize, ChunkOverlap: input.ChunkOverlap}
	doc, result, err := s.ports.Document.UploadFromPath(ctx, input.Path, opts)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{
		DocumentID: doc.ID,
		Status:     doc.Status.String(),
		Chunks:     len(result.Chunks),
	}, nil
}

func passages(chunks []domain.ChunkWithSimilarity) []PassageOutput {
	out := make([]PassageOutput, len(chunks))
	for i := range chunks {
		out[i] = PassageOutput{
			DocumentID: chunks[i].DocumentID,
			Title:      chunks[i].DocumentTitle,
			ChunkIndex: chunks[i].ChunkIndex,
			Similarity: chunks[i].Similarity,
			Content:    chunks[i].Content,
		}
	}
	return out
}
