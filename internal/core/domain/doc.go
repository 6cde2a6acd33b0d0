// Package domain defines the core business entities for Archivist.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - File, Folder: Entries in the hierarchical document store
//   - Pair: A source document and its text or metadata sidecar
//   - TextData, MetadataRecord: The sidecar payloads
//   - PipelineConfig: Folder roots, batch sizes and extraction tuning
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
