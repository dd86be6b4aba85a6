// Package knowledge is the vector index store: an ANN index over chunk
// embeddings plus the chunk sequence it was built from.
//
// Position i in the index always corresponds to chunk i. The index only
// reports positions, so this alignment is what turns a nearest-neighbor hit
// back into guideline text; every operation preserves it.
//
// Lifecycle:
//
//	s, _ := knowledge.New(knowledge.Config{Files: files, Embedder: e})
//	if err := s.Load(ctx); errors.Is(err, knowledge.ErrNotFound) {
//		// caller decides: load chunks, Build, Persist
//	}
//	hits, err := s.Query(ctx, "oxytocin dose", 5)
//
// Query may be called concurrently. Build, Load and Persist must not run
// concurrently with each other or with queries; construct and load the
// store once at startup, then share it.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kechemale/TenaAI/pkg/chunk"
	"github.com/kechemale/TenaAI/pkg/embed"
	"github.com/kechemale/TenaAI/pkg/storage"
	"github.com/kechemale/TenaAI/pkg/vecstore"
)

// Index kinds accepted by IndexOptions.Kind.
const (
	IndexHNSW = "hnsw"
	IndexFlat = "flat"
)

// IndexOptions selects and tunes the ANN index built by Build.
type IndexOptions struct {
	// Kind is IndexHNSW (default) or IndexFlat.
	Kind string

	// HNSW tunes the graph; Dim is ignored and taken from the embedder.
	HNSW vecstore.HNSWConfig
}

// Config configures a Store.
type Config struct {
	// Files holds the snapshot artifacts. Required.
	Files storage.FileStore

	// Embedder embeds chunks at build time and questions at query time.
	// Required.
	Embedder embed.Embedder

	Index IndexOptions

	// EmbeddingModel is recorded in the snapshot. Defaults to the
	// embedder's model name.
	EmbeddingModel string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Hit is one retrieval result.
type Hit struct {
	Chunk chunk.Chunk `json:"chunk" yaml:"chunk"`

	// Position is the chunk's index position.
	Position int `json:"position" yaml:"position"`

	// Score is the cosine similarity between query and chunk.
	Score float32 `json:"score" yaml:"score"`
}

// Info describes the store's current state.
type Info struct {
	Loaded         bool      `json:"loaded" yaml:"loaded"`
	Chunks         int       `json:"chunks" yaml:"chunks"`
	Dim            int       `json:"dim" yaml:"dim"`
	IndexKind      string    `json:"index_kind,omitempty" yaml:"index_kind,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	Location       string    `json:"location,omitempty" yaml:"location,omitempty"`
}

// Store owns an ANN index and its aligned chunk sequence.
type Store struct {
	files    storage.FileStore
	embedder embed.Embedder
	idxOpts  IndexOptions
	model    string
	logger   *slog.Logger

	mu        sync.RWMutex
	index     vecstore.Index // nil until Build or Load
	chunks    []chunk.Chunk
	createdAt time.Time
}

// New creates an empty store. Call Load or Build before Query.
func New(cfg Config) (*Store, error) {
	if cfg.Files == nil {
		return nil, errors.New("knowledge: Config.Files is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("knowledge: Config.Embedder is required")
	}
	if cfg.Embedder.Dimension() <= 0 {
		return nil, fmt.Errorf("knowledge: embedder dimension %d is not positive", cfg.Embedder.Dimension())
	}
	switch cfg.Index.Kind {
	case "":
		cfg.Index.Kind = IndexHNSW
	case IndexHNSW, IndexFlat:
	default:
		return nil, fmt.Errorf("knowledge: unknown index kind %q", cfg.Index.Kind)
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = embed.ModelOf(cfg.Embedder)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		files:    cfg.Files,
		embedder: cfg.Embedder,
		idxOpts:  cfg.Index,
		model:    cfg.EmbeddingModel,
		logger:   cfg.Logger,
	}, nil
}

// Build embeds every chunk, inserts the vectors in input order and keeps
// the chunks in the same order, replacing any previous in-memory state.
// It does not persist.
//
// An empty chunk slice yields a valid empty index whose queries return no
// hits. On any error the previous state is left untouched.
func (s *Store) Build(ctx context.Context, chunks []chunk.Chunk) error {
	if err := chunk.Validate(chunks); err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}

	dim := s.embedder.Dimension()
	idx := s.newIndex(dim)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		start := time.Now()
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
		}
		if len(vecs) != len(chunks) {
			return fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingUnavailable, len(vecs), len(chunks))
		}
		s.logger.DebugContext(ctx, "embedded chunks", "count", len(chunks), "elapsed", time.Since(start))

		if err := idx.Add(vecs...); err != nil {
			return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
		}
	}

	owned := make([]chunk.Chunk, len(chunks))
	copy(owned, chunks)

	s.mu.Lock()
	old := s.index
	s.index = idx
	s.chunks = owned
	s.createdAt = time.Now().UTC()
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.logger.InfoContext(ctx, "index built", "chunks", len(owned), "dim", dim, "kind", s.idxOpts.Kind)
	return nil
}

func (s *Store) newIndex(dim int) vecstore.Index {
	if s.idxOpts.Kind == IndexFlat {
		return vecstore.NewFlat(dim)
	}
	cfg := s.idxOpts.HNSW
	cfg.Dim = dim
	return vecstore.NewHNSW(cfg)
}

// Persist writes the index and the chunk manifest. Each artifact replaces
// its predecessor atomically; the manifest records the index checksum so
// Load detects artifacts from different builds.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return ErrEmpty
	}

	sum, err := writeIndex(ctx, s.files, s.index)
	if err != nil {
		return err
	}
	m := &manifest{
		Version:        manifestVersion,
		EmbeddingModel: s.model,
		Dim:            s.index.Dim(),
		IndexKind:      indexKind(s.index),
		IndexSHA256:    sum,
		CreatedAt:      s.createdAt,
		Chunks:         s.chunks,
	}
	if err := writeManifest(ctx, s.files, m); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "snapshot persisted", "chunks", len(s.chunks), "location", location(s.files))
	return nil
}

// Load replaces the in-memory state with the persisted snapshot.
//
// It returns ErrNotFound when either artifact is missing and ErrCorrupt
// when an artifact cannot be decoded, the vector and chunk counts differ,
// the artifacts come from different builds, or the snapshot's dimension
// differs from the embedder's.
func (s *Store) Load(ctx context.Context) error {
	for _, name := range []string{IndexFile, ChunksFile} {
		ok, err := s.files.Exists(ctx, name)
		if err != nil {
			return fmt.Errorf("knowledge: stat %s: %w", name, err)
		}
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrNotFound, name)
		}
	}

	m, err := readManifest(ctx, s.files)
	if err != nil {
		return err
	}
	idx, sum, err := readIndex(ctx, s.files)
	if err != nil {
		return err
	}
	if err := s.check(m, idx, sum); err != nil {
		idx.Close()
		return err
	}
	if m.EmbeddingModel != "" && s.model != "" && m.EmbeddingModel != s.model {
		s.logger.WarnContext(ctx, "snapshot built with a different embedding model",
			"snapshot_model", m.EmbeddingModel, "configured_model", s.model)
	}

	s.mu.Lock()
	old := s.index
	s.index = idx
	s.chunks = m.Chunks
	s.createdAt = m.CreatedAt
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.logger.InfoContext(ctx, "snapshot loaded", "chunks", len(m.Chunks), "dim", idx.Dim(), "location", location(s.files))
	return nil
}

func (s *Store) check(m *manifest, idx vecstore.Index, sum string) error {
	if idx.Len() != len(m.Chunks) {
		return fmt.Errorf("%w: index has %d vectors but manifest has %d chunks", ErrCorrupt, idx.Len(), len(m.Chunks))
	}
	if m.IndexSHA256 != "" && m.IndexSHA256 != sum {
		return fmt.Errorf("%w: %s does not belong to %s", ErrCorrupt, IndexFile, ChunksFile)
	}
	if m.Dim != idx.Dim() {
		return fmt.Errorf("%w: manifest dim %d, index dim %d", ErrCorrupt, m.Dim, idx.Dim())
	}
	if d := s.embedder.Dimension(); d != idx.Dim() {
		return fmt.Errorf("%w: snapshot dim %d, embedder dim %d", ErrCorrupt, idx.Dim(), d)
	}
	return nil
}

// Query embeds text and returns up to topK chunks ordered by descending
// similarity, ties by ascending position. An index holding fewer than topK
// vectors returns all of them.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	if topK < 1 {
		return nil, ErrInvalidTopK
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	s.mu.RLock()
	idx, chunks := s.index, s.chunks
	s.mu.RUnlock()

	if idx == nil {
		return nil, ErrEmpty
	}
	if idx.Len() == 0 {
		return []Hit{}, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	matches, err := idx.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		if m.Position < 0 || m.Position >= len(chunks) {
			return nil, fmt.Errorf("%w: position %d outside %d chunks", ErrCorrupt, m.Position, len(chunks))
		}
		hits = append(hits, Hit{
			Chunk:    chunks[m.Position],
			Position: m.Position,
			Score:    m.Similarity(),
		})
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dim returns the vector dimension of the loaded index, or the embedder's
// dimension before any Build or Load.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index != nil {
		return s.index.Dim()
	}
	return s.embedder.Dimension()
}

// Loaded reports whether Build or Load has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}

// Info returns a summary of the store's state.
func (s *Store) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		Loaded:         s.index != nil,
		Chunks:         len(s.chunks),
		Dim:            s.embedder.Dimension(),
		EmbeddingModel: s.model,
		Location:       location(s.files),
	}
	if s.index != nil {
		info.Dim = s.index.Dim()
		info.IndexKind = indexKind(s.index)
		info.CreatedAt = s.createdAt
	}
	return info
}

// Close releases the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	s.chunks = nil
	return err
}

func indexKind(idx vecstore.Index) string {
	switch idx.(type) {
	case *vecstore.HNSW:
		return IndexHNSW
	case *vecstore.Flat:
		return IndexFlat
	}
	return fmt.Sprintf("%T", idx)
}

func location(files storage.FileStore) string {
	switch f := files.(type) {
	case interface{ Location() string }:
		return f.Location()
	case interface{ Root() string }:
		return f.Root()
	}
	return ""
}
