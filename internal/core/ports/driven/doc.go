// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - BlobStore: Fetches raw document bytes from object storage
//   - ExtractionEngine / NormaliserRegistry: Raw bytes to plain text
//   - PostProcessor / PostProcessorPipeline: Document text to chunks
//   - Index: The hybrid vector + keyword + metadata index
//   - DocumentStore: Document, chunk and embedding persistence
//   - JobStore: Bulk job record persistence
//   - ConfigStore: Persisted runtime settings
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - EmbeddingProvider: Generates vectors. Without it, semantic and
//     hybrid retrieval degrade to keyword-only.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
