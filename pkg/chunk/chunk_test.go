package chunk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	chunks := []Chunk{
		{Text: "first"},
		{ID: "keep", Text: "second", Metadata: map[string]string{MetaText: "override"}},
	}
	Normalize("guide", chunks)

	if chunks[0].ID != "guide#0" {
		t.Errorf("ID = %q, want guide#0", chunks[0].ID)
	}
	if got := chunks[0].ContextText(); got != "first" {
		t.Errorf("ContextText = %q, want first", got)
	}
	if got := chunks[0].Metadata[MetaSource]; got != "guide" {
		t.Errorf("source = %q, want guide", got)
	}
	if chunks[1].ID != "keep" {
		t.Errorf("ID = %q, want keep", chunks[1].ID)
	}
	if got := chunks[1].ContextText(); got != "override" {
		t.Errorf("existing metadata text replaced: %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); err != nil {
		t.Errorf("empty: %v", err)
	}
	err := Validate([]Chunk{{ID: "a", Text: "  "}})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank text: err = %v", err)
	}
	err = Validate([]Chunk{{ID: "a", Text: "x"}, {ID: "a", Text: "y"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate: err = %v", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", `{"id":"1","text":"Give oxytocin 10IU IM after delivery."}

{"id":"2","text":"Check blood pressure.","metadata":{"page":"4"}}
`)
	writeFile(t, dir, "b.json", `[{"id":"3","text":"Screen for anemia."}]`)
	writeFile(t, dir, "c.yaml", `
- id: "4"
  text: Vaccinate at birth.
  metadata:
    section: immunization
`)
	writeFile(t, dir, "notes.txt", "ignored")

	chunks, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		if c.ContextText() != c.Text {
			t.Errorf("chunk %s: metadata text %q != text %q", c.ID, c.ContextText(), c.Text)
		}
	}
	want := []string{"1", "2", "3", "4"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
	if chunks[1].Metadata["page"] != "4" {
		t.Errorf("metadata lost: %v", chunks[1].Metadata)
	}
	if chunks[3].Metadata["section"] != "immunization" {
		t.Errorf("yaml metadata lost: %v", chunks[3].Metadata)
	}
}

func TestLoadSingleFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "anc.jsonl", `{"text":"Four antenatal visits."}`)
	chunks, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].ID != "anc#0" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing path")
	}

	bad := writeFile(t, dir, "bad.jsonl", "{\"id\":\"1\",\"text\":\"ok\"}\nnot json\n")
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}

	dup := t.TempDir()
	writeFile(t, dup, "a.json", `[{"id":"x","text":"one"}]`)
	writeFile(t, dup, "b.json", `[{"id":"x","text":"two"}]`)
	if _, err := Load(dup); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}

	if _, err := LoadFile(writeFile(t, dir, "x.csv", "a,b")); err == nil {
		t.Error("expected error for unsupported type")
	}
}
