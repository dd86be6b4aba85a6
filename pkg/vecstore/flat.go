package vecstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
)

// Flat is an exact Index that scores every vector on each search.
// Intended for small corpora (a few thousand chunks) and testing.
//
// It is safe for concurrent use.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty exact index. Panics if dim is not positive.
func NewFlat(dim int) *Flat {
	if dim <= 0 {
		panic("vecstore: Flat dimension must be positive")
	}
	return &Flat{dim: dim}
}

// Add appends vectors in order. Either all vectors are added or none are.
func (f *Flat) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if err := checkDim(len(v), f.dim); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		cp := make([]float32, len(v))
		copy(cp, v)
		f.vectors = append(f.vectors, cp)
	}
	return nil
}

func (f *Flat) Search(query []float32, topK int) ([]Match, error) {
	if err := checkDim(len(query), f.dim); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 || topK <= 0 {
		return nil, nil
	}

	matches := make([]Match, len(f.vectors))
	for i, vec := range f.vectors {
		matches[i] = Match{Position: i, Distance: CosineDistance(query, vec)}
	}
	sortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

func (f *Flat) Dim() int { return f.dim }

func (f *Flat) Close() error { return nil }

var flatMagic = [4]byte{'F', 'L', 'A', 'T'}

const flatVersion uint32 = 1

// Save writes the index as
//
//	[4B magic "FLAT"] [4B version] [4B dim] [4B count] [count × dim × 4B]
func (f *Flat) Save(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	if _, err := bw.Write(flatMagic[:]); err != nil {
		return fmt.Errorf("vecstore: save magic: %w", err)
	}
	for _, v := range []uint32{flatVersion, uint32(f.dim), uint32(len(f.vectors))} {
		if err := binary.Write(bw, le, v); err != nil {
			return fmt.Errorf("vecstore: save header: %w", err)
		}
	}
	for i, vec := range f.vectors {
		if err := binary.Write(bw, le, vec); err != nil {
			return fmt.Errorf("vecstore: save vector %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// LoadFlat deserializes an index written by [Flat.Save].
func LoadFlat(r io.Reader) (*Flat, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("vecstore: load magic: %w", err)
	}
	if magic != flatMagic {
		return nil, fmt.Errorf("vecstore: invalid magic %q", magic[:])
	}

	var version, dim, count uint32
	for _, v := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(br, le, v); err != nil {
			return nil, fmt.Errorf("vecstore: load header: %w", err)
		}
	}
	if version != flatVersion {
		return nil, fmt.Errorf("vecstore: unsupported version %d (want %d)", version, flatVersion)
	}
	if dim == 0 || dim > maxSerializedDim {
		return nil, fmt.Errorf("vecstore: invalid dimension %d in serialized index", dim)
	}

	vectors := make([][]float32, 0, min(count, 1<<16))
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(br, le, vec); err != nil {
			return nil, fmt.Errorf("vecstore: load vector %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return &Flat{dim: int(dim), vectors: vectors}, nil
}

// CosineDistance computes the cosine distance between two vectors.
// Returns a value in [0, 2] where 0 means identical direction and
// 2 means opposite direction. Mismatched dimensions yield 2; a zero-norm
// vector has no direction and yields 1.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	similarity = max(-1, min(1, similarity))
	return float32(1 - similarity)
}
