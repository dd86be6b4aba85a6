// Package vecstore provides positional approximate nearest-neighbor (ANN)
// indexes over dense float32 vectors.
//
// Vectors are addressed by insertion position: the first vector added is
// position 0, the next one position 1, and so on. Callers keep per-vector
// payloads in a parallel slice indexed by the same position.
//
// Two implementations are provided:
//
//   - [HNSW]: hierarchical navigable small world graph for production use
//   - [Flat]: exact brute-force scan for small corpora and tests
//
// Both serialize to a compact binary format via Save and are restored with
// [Load], which detects the kind from the leading magic bytes.
//
// An index is append-only; there is no delete.
package vecstore

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Index is the interface for approximate nearest-neighbor search over
// dense float32 vectors addressed by insertion position.
//
// Search is safe for concurrent use. Add must not race with Search unless
// the implementation says otherwise.
type Index interface {
	// Add appends vectors in order. The i-th vector of the first call on an
	// empty index gets position i.
	Add(vectors ...[]float32) error

	// Search returns the top-k nearest vectors to the query.
	// Results are ordered by ascending distance, ties by ascending position.
	Search(query []float32, topK int) ([]Match, error)

	// Len returns the number of vectors in the index.
	Len() int

	// Dim returns the vector dimension.
	Dim() int

	// Save serializes the index to w.
	Save(w io.Writer) error

	// Close releases resources held by the index.
	Close() error
}

// Match is a single result from a vector similarity search.
type Match struct {
	// Position is the insertion position of the matched vector.
	Position int

	// Distance is the cosine distance between the query and the matched
	// vector. Lower values indicate higher similarity.
	Distance float32
}

// Similarity converts the cosine distance back to cosine similarity.
func (m Match) Similarity() float32 {
	return 1 - m.Distance
}

// ErrUnknownFormat is returned by [Load] when the data does not start with a
// known magic.
var ErrUnknownFormat = errors.New("vecstore: unknown index format")

// Load deserializes an index previously written by [HNSW.Save] or
// [Flat.Save].
func Load(r io.Reader) (Index, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("vecstore: read magic: %w", err)
	}
	var magic [4]byte
	copy(magic[:], head)
	switch magic {
	case hnswMagic:
		return LoadHNSW(br)
	case flatMagic:
		return LoadFlat(br)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, head)
	}
}

func checkDim(got, want int) error {
	if got != want {
		return fmt.Errorf("vecstore: dimension mismatch: got %d, want %d", got, want)
	}
	return nil
}

// sortMatches orders by ascending distance and breaks ties by position so
// results are deterministic.
func sortMatches(ms []Match) {
	slices.SortFunc(ms, func(a, b Match) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
}
