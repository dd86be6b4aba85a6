package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kechemale/TenaAI/pkg/llm"
)

// newFakeGemini serves generateContent with the given finish reason and
// text, and records the last request body.
func newFakeGemini(t *testing.T, finish, text string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		if last != nil {
			json.NewDecoder(r.Body).Decode(last)
		}
		part, _ := json.Marshal(text)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":%s}]},"finishReason":%q}]}`, part, finish)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiComplete(t *testing.T) {
	var body map[string]any
	srv := newFakeGemini(t, "STOP", "Use oxytocin.", &body)

	g, err := llm.NewGemini(context.Background(), llm.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	answer, err := g.Complete(context.Background(), llm.Request{System: "only context", User: "q", Temperature: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Use oxytocin." {
		t.Errorf("answer = %q", answer)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Errorf("system instruction not sent: %v", body)
	}
}

func TestGeminiBlocked(t *testing.T) {
	srv := newFakeGemini(t, "SAFETY", "", nil)
	g, err := llm.NewGemini(context.Background(), llm.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Complete(context.Background(), llm.Request{User: "q"})
	if !errors.Is(err, llm.ErrBlocked) {
		t.Errorf("err = %v, want ErrBlocked", err)
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	if _, err := llm.NewGemini(context.Background(), llm.GeminiConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}
