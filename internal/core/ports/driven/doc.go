// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for ingestion and retrieval to function:
//
//   - TextExtractor: Reads text and metadata out of PDFs
//   - FileStorage: Persists uploaded bytes
//   - DocumentStore: Document and chunk persistence
//   - TokenCounter: Counts tokens for chunk sizing and context budgets
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Vector storage and similarity search
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Language model. Without it, retrieval still works but ask is disabled.
//   - ResponseCache: Answer cache. Without it, every question calls the model.
//   - PromptStore: Customisable prompts. Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
