package domain

// RetrievalOptions configures a vector search for a query.
type RetrievalOptions struct {
	// TopK is the maximum number of chunks. Zero selects the configured default.
	TopK int

	// Threshold is the minimum similarity. Nil selects the configured default.
	Threshold *float64
}

// QueryResponse is the answer to one question.
type QueryResponse struct {
	// QueryID is generated per request.
	QueryID string `json:"query_id"`

	// QueryText is the question as asked.
	QueryText string `json:"query_text"`

	// ResponseText is the generated answer or a fallback apology.
	ResponseText string `json:"response_text"`

	// RelevantDocuments are the retrieved chunks in ranked order.
	RelevantDocuments []ChunkWithSimilarity `json:"relevant_documents"`

	// Cached is true when the answer came from the response cache.
	Cached bool `json:"cached"`
}
