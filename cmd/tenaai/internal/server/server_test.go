package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kechemale/TenaAI/pkg/chunk"
	"github.com/kechemale/TenaAI/pkg/embed"
	"github.com/kechemale/TenaAI/pkg/knowledge"
	"github.com/kechemale/TenaAI/pkg/llm"
	"github.com/kechemale/TenaAI/pkg/rag"
	"github.com/kechemale/TenaAI/pkg/storage"
)

func newTestServer(t *testing.T, build bool, completer llm.Completer) *httptest.Server {
	t.Helper()
	files, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store, err := knowledge.New(knowledge.Config{Files: files, Embedder: embed.NewHashing(256)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	if build {
		chunks := []chunk.Chunk{
			{Text: "Give oxytocin 10 IU IM to prevent postpartum hemorrhage."},
			{Text: "Treat uncomplicated malaria with artemether-lumefantrine."},
			{Text: "Measure blood pressure at every antenatal visit."},
		}
		chunk.Normalize("guide", chunks)
		if err := store.Build(context.Background(), chunks); err != nil {
			t.Fatal(err)
		}
	}

	engine, err := rag.New(rag.Config{Retriever: store, Completer: completer})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(Handler(Config{Engine: engine, Index: store, DefaultTopK: 2}))
	t.Cleanup(srv.Close)
	return srv
}

var okLLM = llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
	return "Oxytocin.", nil
})

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAsk(t *testing.T) {
	srv := newTestServer(t, true, okLLM)

	resp, err := http.Post(srv.URL+"/api/ask", "application/json",
		strings.NewReader(`{"question":"How to prevent postpartum hemorrhage?","top_k":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		ID     string          `json:"id"`
		Status string          `json:"status"`
		Text   string          `json:"text"`
		Hits   []knowledge.Hit `json:"hits"`
	}
	decode(t, resp, &body)
	if body.Status != string(rag.StatusAnswered) || body.Text != "Oxytocin." {
		t.Errorf("body = %+v", body)
	}
	if len(body.Hits) != 1 || body.ID == "" {
		t.Errorf("hits = %d, id = %q", len(body.Hits), body.ID)
	}
}

func TestAskLLMFailure(t *testing.T) {
	failing := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("upstream 503")
	})
	srv := newTestServer(t, true, failing)

	resp, err := http.Post(srv.URL+"/api/ask", "application/json", strings.NewReader(`{"question":"malaria treatment"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for absorbed llm failure", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
		Text   string `json:"text"`
		Error  string `json:"error"`
	}
	decode(t, resp, &body)
	if body.Status != string(rag.StatusServiceFailed) {
		t.Errorf("status = %q", body.Status)
	}
	if body.Text != "Error generating answer: upstream 503" {
		t.Errorf("text = %q", body.Text)
	}
	if body.Error == "" {
		t.Error("error field empty")
	}
}

func TestAskBadRequests(t *testing.T) {
	srv := newTestServer(t, true, okLLM)
	for _, body := range []string{`not json`, `{"question":"  "}`, `{"question":"malaria","top_k":-1}`} {
		resp, err := http.Post(srv.URL+"/api/ask", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/api/ask")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/ask status = %d, want 405", resp.StatusCode)
	}
}

func TestAskIndexNotLoaded(t *testing.T) {
	srv := newTestServer(t, false, okLLM)
	resp, err := http.Post(srv.URL+"/api/ask", "application/json", strings.NewReader(`{"question":"anything"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, true, okLLM)

	resp, err := http.Get(srv.URL + "/api/search?q=malaria+treatment&k=3")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Total int             `json:"total"`
		Hits  []knowledge.Hit `json:"hits"`
	}
	decode(t, resp, &body)
	if body.Total != 3 || len(body.Hits) != 3 {
		t.Fatalf("total = %d, hits = %d", body.Total, len(body.Hits))
	}
	if !strings.Contains(body.Hits[0].Chunk.Text, "malaria") {
		t.Errorf("top hit = %q", body.Hits[0].Chunk.Text)
	}

	for _, q := range []string{"", "?q=x&k=0", "?q=x&k=abc"} {
		resp, err := http.Get(srv.URL + "/api/search" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestStatusAndHealth(t *testing.T) {
	srv := newTestServer(t, false, okLLM)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("healthz before load = %d, want 503", resp.StatusCode)
	}

	srv = newTestServer(t, true, okLLM)
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	var info knowledge.Info
	decode(t, resp, &info)
	if !info.Loaded || info.Chunks != 3 || info.Dim != 256 {
		t.Errorf("info = %+v", info)
	}
}
