// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Ingestion runs PDF extraction, chunking, token counting and embedding
// through a bounded worker pool. Answering builds a token-budgeted
// context from retrieved chunks and calls the language model with
// caching, retry on rate limits and a timeout fallback.
package services
