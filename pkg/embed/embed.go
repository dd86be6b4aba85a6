// Package embed provides the text embedding interface and its
// implementations.
//
// An Embedder converts text into dense vectors. The knowledge store embeds
// every chunk at build time and every question at query time with the same
// Embedder, so implementations must be deterministic for identical input.
//
// # Implementations
//
//   - [OpenAI]: OpenAI text-embedding-3-small / -large, or any
//     OpenAI-compatible endpoint via [WithBaseURL]
//   - [DashScope]: Aliyun DashScope text-embedding-v4 (and v1/v2/v3)
//   - [Hashing]: local feature-hashing embedder with no network access
//   - [Cached]: decorator that memoizes another Embedder in a kv.Store
//
// # Quick Start
//
//	e := embed.NewOpenAI("sk-xxx", embed.WithModel(embed.ModelOpenAI3Small))
//	vec, err := e.Embed(ctx, "postpartum hemorrhage")
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts, in input
	// order. Implementations may split large batches into smaller API
	// calls transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Modeler is implemented by embedders that can name their model.
type Modeler interface {
	Model() string
}

// ModelOf returns e's model name, or "" if e does not implement [Modeler].
func ModelOf(e Embedder) string {
	if m, ok := e.(Modeler); ok {
		return m.Model()
	}
	return ""
}

var (
	// ErrEmptyInput is returned when the input text or batch is empty.
	ErrEmptyInput = errors.New("embed: empty input")

	// ErrDimension is returned when a service answers with vectors of a
	// different size than configured.
	ErrDimension = errors.New("embed: unexpected dimension")
)
