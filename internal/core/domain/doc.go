// Package domain defines the core business entities for the knowledge
// base engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A knowledge base document and its processing status
//   - Chunk: The atomic unit of embedding and retrieval
//   - Embedding: An immutable vector record for one chunk
//   - RetrievalCandidate: A transient scored search hit
//   - RagContext: The assembled, budget-bounded retrieval payload
//   - BulkJob: A persisted batch ingestion/re-index job record
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
