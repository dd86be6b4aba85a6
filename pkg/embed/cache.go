package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/kechemale/TenaAI/pkg/kv"
	"github.com/vmihailenco/msgpack/v5"
)

// Cached wraps an Embedder and memoizes its vectors in a kv.Store.
//
// Entries are keyed by model, dimension and the SHA-256 of the text:
//
//	embed:{model}:{dim}:{sha256 hex}
//
// and stored as msgpack-encoded []float32. Because embedders are
// deterministic, a hit is indistinguishable from a fresh call.
type Cached struct {
	inner  Embedder
	store  kv.Store
	model  string
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Embedder = (*Cached)(nil)

// NewCached creates a caching decorator around inner. The model name is
// taken from inner when it implements [Modeler]; otherwise "default".
// A nil logger uses slog.Default().
func NewCached(inner Embedder, store kv.Store, logger *slog.Logger) *Cached {
	model := ModelOf(inner)
	if model == "" {
		model = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{inner: inner, store: store, model: model, logger: logger}
}

func (c *Cached) Dimension() int { return c.inner.Dimension() }

func (c *Cached) Model() string { return c.model }

// Stats returns the number of cache hits and misses since creation.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch serves what it can from the cache and sends only the misses
// to the wrapped embedder, in one batch. Cache read and write failures are
// logged and otherwise ignored.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.lookup(ctx, t); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	c.hits.Add(int64(len(texts) - len(missIdx)))
	c.misses.Add(int64(len(missIdx)))
	if len(missIdx) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vecs), len(missTexts))
	}

	entries := make([]kv.Entry, 0, len(vecs))
	for j, v := range vecs {
		out[missIdx[j]] = v
		b, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("embed: encode cache entry: %w", err)
		}
		entries = append(entries, kv.Entry{Key: c.key(missTexts[j]), Value: b})
	}
	if err := c.store.BatchSet(ctx, entries); err != nil {
		c.logger.WarnContext(ctx, "embedding cache write failed", "model", c.model, "error", err)
	}
	return out, nil
}

// Purge removes every cached vector of this embedder's model and returns
// how many were deleted.
func (c *Cached) Purge(ctx context.Context) (int, error) {
	var keys []kv.Key
	for e, err := range c.store.List(ctx, c.prefix()) {
		if err != nil {
			return 0, err
		}
		keys = append(keys, e.Key)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.store.BatchDelete(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *Cached) lookup(ctx context.Context, text string) ([]float32, bool) {
	b, err := c.store.Get(ctx, c.key(text))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger.WarnContext(ctx, "embedding cache read failed", "model", c.model, "error", err)
		}
		return nil, false
	}
	var v []float32
	if err := msgpack.Unmarshal(b, &v); err != nil || len(v) != c.inner.Dimension() {
		c.logger.DebugContext(ctx, "discarding bad cache entry", "model", c.model, "error", err)
		return nil, false
	}
	return v, true
}

func (c *Cached) prefix() kv.Key {
	return kv.Key{"embed", kv.Segment(c.model), strconv.Itoa(c.inner.Dimension())}
}

func (c *Cached) key(text string) kv.Key {
	sum := sha256.Sum256([]byte(text))
	return append(c.prefix(), hex.EncodeToString(sum[:]))
}
