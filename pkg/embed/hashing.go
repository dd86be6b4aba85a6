package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// ModelHashing names the [Hashing] embedder's model.
const ModelHashing = "hashing-v1"

const hashingDefaultDim = 384

// Hashing is a local [Embedder] that maps text to a vector by feature
// hashing: lowercased word unigrams and bigrams are hashed into buckets
// with a hash-derived sign, and the result is L2-normalized.
//
// Texts that share words land close together. It needs no network and no
// model files, which makes it suitable for offline use and tests; it
// carries no semantic knowledge beyond word overlap.
type Hashing struct {
	dim int
}

var _ Embedder = (*Hashing)(nil)

// NewHashing creates a hashing embedder. A non-positive dim selects 384.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = hashingDefaultDim
	}
	return &Hashing{dim: dim}
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hashing) Dimension() int { return h.dim }

func (h *Hashing) Model() string { return ModelHashing }

func (h *Hashing) vector(text string) []float32 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	acc := make([]float64, h.dim)
	add := func(feature string, weight float64) {
		f := fnv.New64a()
		f.Write([]byte(feature))
		sum := f.Sum64()
		idx := sum % uint64(h.dim)
		if sum>>63 == 1 {
			weight = -weight
		}
		acc[idx] += weight
	}
	for i, w := range words {
		add(w, 1)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	vec := make([]float32, h.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, x := range acc {
		vec[i] = float32(x / norm)
	}
	return vec
}
