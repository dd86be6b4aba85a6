package knowledge

import "errors"

var (
	// ErrNotFound means no snapshot exists at the configured location: one
	// or both artifacts are missing. Recoverable by building and persisting.
	ErrNotFound = errors.New("knowledge: snapshot not found")

	// ErrCorrupt means a snapshot exists but cannot be decoded, or its
	// artifacts disagree with each other or with the configured embedder.
	// It stays fatal until the snapshot is rebuilt.
	ErrCorrupt = errors.New("knowledge: snapshot corrupt")

	// ErrEmpty is returned by Query and Persist before any Build or Load.
	ErrEmpty = errors.New("knowledge: no index loaded")

	// ErrEmbeddingUnavailable wraps any failure of the embedding service.
	ErrEmbeddingUnavailable = errors.New("knowledge: embedding unavailable")

	// ErrInvalidTopK is returned when a query asks for fewer than one hit.
	ErrInvalidTopK = errors.New("knowledge: top_k must be at least 1")

	// ErrEmptyQuery is returned for a blank query text.
	ErrEmptyQuery = errors.New("knowledge: empty query")
)
