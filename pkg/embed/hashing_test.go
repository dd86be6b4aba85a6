package embed_test

import (
	"context"
	"math"
	"testing"

	"github.com/kechemale/TenaAI/pkg/embed"
	"github.com/kechemale/TenaAI/pkg/vecstore"
)

func TestHashingDeterministic(t *testing.T) {
	ctx := context.Background()
	h := embed.NewHashing(64)
	a, _ := h.Embed(ctx, "Give oxytocin 10IU IM after delivery.")
	b, _ := h.Embed(ctx, "Give oxytocin 10IU IM after delivery.")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestHashingNormalized(t *testing.T) {
	v, err := embed.NewHashing(32).Embed(context.Background(), "malaria treatment artemether")
	if err != nil {
		t.Fatal(err)
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm² = %f, want 1", norm)
	}
}

func TestHashingWordOverlap(t *testing.T) {
	ctx := context.Background()
	h := embed.NewHashing(256)
	q, _ := h.Embed(ctx, "oxytocin dose after delivery")
	near, _ := h.Embed(ctx, "Give oxytocin 10IU IM after delivery.")
	far, _ := h.Embed(ctx, "Measles vaccine schedule for infants.")

	if vecstore.CosineDistance(q, near) >= vecstore.CosineDistance(q, far) {
		t.Errorf("overlapping text is not closer: near=%f far=%f",
			vecstore.CosineDistance(q, near), vecstore.CosineDistance(q, far))
	}
}

func TestHashingPunctuationOnly(t *testing.T) {
	v, err := embed.NewHashing(8).Embed(context.Background(), "?!")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestHashingDefaultDim(t *testing.T) {
	if d := embed.NewHashing(0).Dimension(); d != 384 {
		t.Errorf("Dimension = %d, want 384", d)
	}
}
