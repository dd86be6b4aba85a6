package embed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kechemale/TenaAI/pkg/embed"
	"github.com/kechemale/TenaAI/pkg/kv"
)

// countingEmbedder records how many texts reach the underlying embedder.
type countingEmbedder struct {
	embed.Embedder
	texts int
	fail  error
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.texts += len(texts)
	return c.Embedder.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Model() string { return "counting:v1" }

func TestCachedHitAvoidsInnerCall(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{Embedder: embed.NewHashing(16)}
	c := embed.NewCached(inner, kv.NewMemory(nil), nil)

	first, err := c.EmbedBatch(ctx, []string{"a b", "c d"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.texts != 2 {
		t.Fatalf("inner saw %d texts, want 2", inner.texts)
	}

	second, err := c.EmbedBatch(ctx, []string{"c d", "e f", "a b"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.texts != 3 {
		t.Errorf("inner saw %d texts, want 3 (one new)", inner.texts)
	}
	for i := range first[0] {
		if first[0][i] != second[2][i] || first[1][i] != second[0][i] {
			t.Fatal("cached vector differs from original")
		}
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 3 {
		t.Errorf("Stats = %d hits, %d misses; want 2, 3", hits, misses)
	}
}

func TestCachedSingleEmbed(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{Embedder: embed.NewHashing(16)}
	c := embed.NewCached(inner, kv.NewMemory(nil), nil)

	c.Embed(ctx, "postpartum hemorrhage")
	c.Embed(ctx, "postpartum hemorrhage")
	if inner.texts != 1 {
		t.Errorf("inner saw %d texts, want 1", inner.texts)
	}
	if c.Model() != "counting:v1" || c.Dimension() != 16 {
		t.Errorf("Model=%q Dimension=%d", c.Model(), c.Dimension())
	}
}

func TestCachedPropagatesInnerError(t *testing.T) {
	boom := errors.New("service down")
	inner := &countingEmbedder{Embedder: embed.NewHashing(8), fail: boom}
	c := embed.NewCached(inner, kv.NewMemory(nil), nil)
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestCachedPurge(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)
	inner := &countingEmbedder{Embedder: embed.NewHashing(8)}
	c := embed.NewCached(inner, store, nil)
	c.EmbedBatch(ctx, []string{"one", "two", "three"})

	store.Set(ctx, kv.Key{"embed", "other", "8", "x"}, []byte{0x90})

	n, err := c.Purge(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("purged %d, want 3", n)
	}
	if _, err := store.Get(ctx, kv.Key{"embed", "other", "8", "x"}); err != nil {
		t.Errorf("other model's entry removed: %v", err)
	}

	c.Embed(ctx, "one")
	if inner.texts != 4 {
		t.Errorf("inner saw %d texts after purge, want 4", inner.texts)
	}
}

func TestCachedIgnoresCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)
	inner := &countingEmbedder{Embedder: embed.NewHashing(8)}
	c := embed.NewCached(inner, store, nil)
	c.Embed(ctx, "text")

	for e := range store.List(ctx, nil) {
		store.Set(ctx, e.Key, []byte("not msgpack"))
	}
	v, err := c.Embed(ctx, "text")
	if err != nil || len(v) != 8 {
		t.Fatalf("Embed = %v, %v", v, err)
	}
	if inner.texts != 2 {
		t.Errorf("corrupt entry was served from cache")
	}
}
