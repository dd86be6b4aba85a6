package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kechemale/TenaAI/pkg/chunk"
	"github.com/kechemale/TenaAI/pkg/embed"
	"github.com/kechemale/TenaAI/pkg/storage"
)

var guidelineTexts = []string{
	"Give oxytocin 10IU IM after delivery to prevent postpartum hemorrhage.",
	"Artemether-lumefantrine is first-line treatment for uncomplicated falciparum malaria.",
	"Measure blood pressure at every antenatal visit.",
	"Screen pregnant women for anemia in the first trimester.",
	"Give BCG and OPV0 vaccines at birth.",
	"Exclusive breastfeeding is recommended for the first six months.",
	"Refer children with severe acute malnutrition to a stabilization center.",
	"Treat pneumonia in children under five with amoxicillin dispersible tablets.",
	"Magnesium sulfate is the drug of choice for severe pre-eclampsia.",
	"Start antiretroviral therapy for all people living with HIV.",
}

func testChunks(n int) []chunk.Chunk {
	chunks := make([]chunk.Chunk, n)
	for i := range chunks {
		text := guidelineTexts[i%len(guidelineTexts)]
		if i >= len(guidelineTexts) {
			text = fmt.Sprintf("%s (copy %d)", text, i)
		}
		chunks[i] = chunk.Chunk{ID: fmt.Sprint(i + 1), Text: text}
	}
	chunk.Normalize("guide", chunks)
	return chunks
}

// flakyEmbedder wraps Hashing and fails while fail is set.
type flakyEmbedder struct {
	*embed.Hashing
	mu   sync.Mutex
	fail bool
}

func (f *flakyEmbedder) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyEmbedder) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failing() {
		return nil, errors.New("connection refused")
	}
	return f.Hashing.Embed(ctx, text)
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failing() {
		return nil, errors.New("connection refused")
	}
	return f.Hashing.EmbedBatch(ctx, texts)
}

func newTestStore(t *testing.T, dir string, e embed.Embedder, kind string) *Store {
	t.Helper()
	files, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(Config{Files: files, Embedder: e, Index: IndexOptions{Kind: kind}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustBuild(t *testing.T, s *Store, chunks []chunk.Chunk) {
	t.Helper()
	if err := s.Build(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
}

func TestBuildPersistLoadIdenticalResults(t *testing.T) {
	for _, kind := range []string{IndexHNSW, IndexFlat} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			e := embed.NewHashing(64)

			s1 := newTestStore(t, dir, e, kind)
			mustBuild(t, s1, testChunks(25))
			if err := s1.Persist(ctx); err != nil {
				t.Fatal(err)
			}

			s2 := newTestStore(t, dir, e, kind)
			if err := s2.Load(ctx); err != nil {
				t.Fatal(err)
			}
			if s2.Len() != 25 {
				t.Fatalf("loaded Len = %d, want 25", s2.Len())
			}

			for _, q := range []string{
				"What drug prevents postpartum hemorrhage?",
				"malaria treatment",
				"vaccines at birth",
				"children pneumonia amoxicillin",
			} {
				before, err := s1.Query(ctx, q, 5)
				if err != nil {
					t.Fatal(err)
				}
				after, err := s2.Query(ctx, q, 5)
				if err != nil {
					t.Fatal(err)
				}
				if len(before) != len(after) {
					t.Fatalf("%q: %d hits before, %d after", q, len(before), len(after))
				}
				for i := range before {
					b, a := before[i], after[i]
					if b.Chunk.ID != a.Chunk.ID || b.Position != a.Position || b.Score != a.Score {
						t.Errorf("%q hit %d: before %+v, after %+v", q, i, b, a)
					}
					if a.Chunk.ContextText() != b.Chunk.ContextText() {
						t.Errorf("%q hit %d: metadata text lost", q, i)
					}
				}
			}
		})
	}
}

func TestQueryReturnsMinTopKN(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir(), embed.NewHashing(64), "")
	mustBuild(t, s, testChunks(10))

	for k := 1; k <= 15; k++ {
		hits, err := s.Query(ctx, "antenatal visit blood pressure", k)
		if err != nil {
			t.Fatal(err)
		}
		if want := min(k, 10); len(hits) != want {
			t.Fatalf("k=%d: got %d hits, want %d", k, len(hits), want)
		}
		for i := 1; i < len(hits); i++ {
			if hits[i].Score > hits[i-1].Score {
				t.Errorf("k=%d: scores not non-increasing at %d: %v > %v", k, i, hits[i].Score, hits[i-1].Score)
			}
			if hits[i].Score == hits[i-1].Score && hits[i].Position < hits[i-1].Position {
				t.Errorf("k=%d: tie at %d not ordered by position", k, i)
			}
		}
	}
}

func TestPositionsAlignWithChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir(), embed.NewHashing(128), "")
	chunks := testChunks(10)
	mustBuild(t, s, chunks)

	for i, c := range chunks {
		hits, err := s.Query(ctx, c.Text, 1)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].Position != i || hits[0].Chunk.ID != c.ID {
			t.Errorf("query for chunk %d returned position %d (id %s)", i, hits[0].Position, hits[0].Chunk.ID)
		}
	}
}

func TestEmptyBuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	e := embed.NewHashing(16)
	s := newTestStore(t, dir, e, "")
	mustBuild(t, s, nil)

	hits, err := s.Query(ctx, "anything", 3)
	if err != nil {
		t.Fatalf("Query on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %v, want none", hits)
	}
	if !s.Loaded() {
		t.Error("empty build should count as loaded")
	}

	if err := s.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	s2 := newTestStore(t, dir, e, "")
	if err := s2.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if hits, err := s2.Query(ctx, "anything", 3); err != nil || len(hits) != 0 {
		t.Errorf("reloaded empty: %v, %v", hits, err)
	}
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir(), embed.NewHashing(16), "")

	if _, err := s.Query(ctx, "q", 1); !errors.Is(err, ErrEmpty) {
		t.Errorf("before load: err = %v, want ErrEmpty", err)
	}
	if err := s.Persist(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("Persist before load: err = %v, want ErrEmpty", err)
	}

	mustBuild(t, s, testChunks(3))
	if _, err := s.Query(ctx, "q", 0); !errors.Is(err, ErrInvalidTopK) {
		t.Errorf("topK=0: err = %v", err)
	}
	if _, err := s.Query(ctx, "  ", 1); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank query: err = %v", err)
	}
}

func TestBuildRejectsInvalidChunks(t *testing.T) {
	s := newTestStore(t, t.TempDir(), embed.NewHashing(16), "")
	err := s.Build(context.Background(), []chunk.Chunk{{ID: "1", Text: ""}})
	if !errors.Is(err, chunk.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	if s.Loaded() {
		t.Error("failed build changed state")
	}
}

func TestEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	e := &flakyEmbedder{Hashing: embed.NewHashing(32)}
	s := newTestStore(t, t.TempDir(), e, "")
	mustBuild(t, s, testChunks(4))

	e.setFail(true)
	if err := s.Build(ctx, testChunks(8)); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("Build: err = %v, want ErrEmbeddingUnavailable", err)
	}
	if s.Len() != 4 {
		t.Errorf("failed build replaced state: Len = %d", s.Len())
	}
	if _, err := s.Query(ctx, "malaria", 2); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("Query: err = %v, want ErrEmbeddingUnavailable", err)
	}

	e.setFail(false)
	if hits, err := s.Query(ctx, "malaria", 2); err != nil || len(hits) != 2 {
		t.Errorf("after recovery: %v, %v", hits, err)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	for _, name := range []string{IndexFile, ChunksFile} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			e := embed.NewHashing(16)
			s := newTestStore(t, dir, e, "")
			mustBuild(t, s, testChunks(3))
			if err := s.Persist(ctx); err != nil {
				t.Fatal(err)
			}
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				t.Fatal(err)
			}

			s2 := newTestStore(t, dir, e, "")
			if err := s2.Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
			if s2.Loaded() {
				t.Error("failed load changed state")
			}
		})
	}
}

func TestLoadEmptyDir(t *testing.T) {
	s := newTestStore(t, t.TempDir(), embed.NewHashing(16), "")
	if err := s.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	in, err := os.Open(src)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCountMismatch(t *testing.T) {
	ctx := context.Background()
	e := embed.NewHashing(16)
	dirA, dirB := t.TempDir(), t.TempDir()

	a := newTestStore(t, dirA, e, "")
	mustBuild(t, a, testChunks(3))
	a.Persist(ctx)

	b := newTestStore(t, dirB, e, "")
	mustBuild(t, b, testChunks(2))
	b.Persist(ctx)

	copyFile(t, filepath.Join(dirB, IndexFile), filepath.Join(dirA, IndexFile))

	s := newTestStore(t, dirA, e, "")
	err := s.Load(ctx)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadCountMismatchWithoutChecksum(t *testing.T) {
	ctx := context.Background()
	e := embed.NewHashing(16)
	dir := t.TempDir()
	s := newTestStore(t, dir, e, "")
	mustBuild(t, s, testChunks(3))
	s.Persist(ctx)

	// A manifest that lists one chunk too few and carries no checksum.
	err := writeManifest(ctx, s.files, &manifest{
		Version: manifestVersion,
		Dim:     16,
		Chunks:  testChunks(2),
	})
	if err != nil {
		t.Fatal(err)
	}

	s2 := newTestStore(t, dir, e, "")
	if err := s2.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadMismatchedBuilds(t *testing.T) {
	ctx := context.Background()
	e := embed.NewHashing(16)
	dirA, dirB := t.TempDir(), t.TempDir()

	a := newTestStore(t, dirA, e, "")
	mustBuild(t, a, testChunks(3))
	a.Persist(ctx)

	other := testChunks(3)
	other[0].Text = "Completely different text."
	other[0].Metadata[chunk.MetaText] = other[0].Text
	b := newTestStore(t, dirB, e, "")
	mustBuild(t, b, other)
	b.Persist(ctx)

	copyFile(t, filepath.Join(dirB, IndexFile), filepath.Join(dirA, IndexFile))
	s := newTestStore(t, dirA, e, "")
	if err := s.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadGarbage(t *testing.T) {
	for _, name := range []string{IndexFile, ChunksFile} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			e := embed.NewHashing(16)
			s := newTestStore(t, dir, e, "")
			mustBuild(t, s, testChunks(3))
			s.Persist(ctx)

			if err := os.WriteFile(filepath.Join(dir, name), []byte("garbage"), 0644); err != nil {
				t.Fatal(err)
			}
			s2 := newTestStore(t, dir, e, "")
			if err := s2.Load(ctx); !errors.Is(err, ErrCorrupt) {
				t.Errorf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestLoadDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t, dir, embed.NewHashing(64), "")
	mustBuild(t, s, testChunks(3))
	s.Persist(ctx)

	s2 := newTestStore(t, dir, embed.NewHashing(32), "")
	if err := s2.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestPersistOverwritesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	e := embed.NewHashing(32)
	s := newTestStore(t, dir, e, "")
	mustBuild(t, s, testChunks(3))
	s.Persist(ctx)
	mustBuild(t, s, testChunks(7))
	if err := s.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	s2 := newTestStore(t, dir, e, "")
	if err := s2.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if s2.Len() != 7 {
		t.Errorf("Len = %d, want 7", s2.Len())
	}
}

func TestConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir(), embed.NewHashing(64), "")
	mustBuild(t, s, testChunks(30))

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := guidelineTexts[i%len(guidelineTexts)]
			hits, err := s.Query(ctx, q, 3)
			if err != nil {
				t.Error(err)
				return
			}
			if len(hits) != 3 {
				t.Errorf("got %d hits", len(hits))
			}
		}(i)
	}
	wg.Wait()
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t, dir, embed.NewHashing(16), IndexFlat)

	info := s.Info()
	if info.Loaded || info.Dim != 16 || info.EmbeddingModel != embed.ModelHashing {
		t.Errorf("before build: %+v", info)
	}
	mustBuild(t, s, testChunks(4))
	s.Persist(ctx)

	s2 := newTestStore(t, dir, embed.NewHashing(16), "")
	if err := s2.Load(ctx); err != nil {
		t.Fatal(err)
	}
	info = s2.Info()
	if !info.Loaded || info.Chunks != 4 || info.IndexKind != IndexFlat || info.CreatedAt.IsZero() {
		t.Errorf("after load: %+v", info)
	}
	if info.Location == "" {
		t.Error("location not reported")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	files, _ := storage.NewLocal(t.TempDir())
	e := embed.NewHashing(8)
	for name, cfg := range map[string]Config{
		"no files":    {Embedder: e},
		"no embedder": {Files: files},
		"bad kind":    {Files: files, Embedder: e, Index: IndexOptions{Kind: "ivf"}},
	} {
		if _, err := New(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
