package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kechemale/TenaAI/pkg/llm"
)

// chatRequest is the subset of the chat completions body the tests inspect.
type chatRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newFakeChat starts an OpenAI-compatible chat server. reply builds the
// assistant message from the decoded request; a non-zero status fails
// every request instead.
func newFakeChat(t *testing.T, status int, reply func(chatRequest) string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		content, _ := json.Marshal(reply(req))
		fmt.Fprintf(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": %q,
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": %s}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 5, "total_tokens": 10}
		}`, req.Model, content)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIComplete(t *testing.T) {
	var got chatRequest
	srv, _ := newFakeChat(t, 0, func(req chatRequest) string {
		got = req
		return "Oxytocin 10 IU IM."
	})

	c := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL))
	if c.Model() != llm.ModelDeepSeekChat {
		t.Errorf("default model = %q", c.Model())
	}
	answer, err := c.Complete(context.Background(), llm.Request{
		System:      "sys",
		User:        "question",
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Oxytocin 10 IU IM." {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != llm.ModelDeepSeekChat {
		t.Errorf("model sent = %q", got.Model)
	}
	if got.Temperature == nil || *got.Temperature != 0.1 {
		t.Errorf("temperature sent = %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[0].Content != "sys" || got.Messages[1].Content != "question" {
		t.Errorf("message contents = %+v", got.Messages)
	}
}

func TestOpenAIModelOverride(t *testing.T) {
	var model string
	srv, _ := newFakeChat(t, 0, func(req chatRequest) string {
		model = req.Model
		return "ok"
	})
	c := llm.NewOpenAI("k", llm.WithBaseURL(srv.URL), llm.WithModel("gpt-4o-mini"))
	c.Complete(context.Background(), llm.Request{User: "q"})
	if model != "gpt-4o-mini" {
		t.Errorf("model = %q", model)
	}
	c.Complete(context.Background(), llm.Request{User: "q", Model: "other"})
	if model != "other" {
		t.Errorf("per-request model = %q", model)
	}
}

func TestOpenAIServiceErrorNotRetried(t *testing.T) {
	srv, calls := newFakeChat(t, http.StatusTooManyRequests, nil)
	c := llm.NewOpenAI("k", llm.WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), llm.Request{User: "q"}); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestOpenAIEmptyContent(t *testing.T) {
	srv, _ := newFakeChat(t, 0, func(chatRequest) string { return "  " })
	c := llm.NewOpenAI("k", llm.WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), llm.Request{User: "q"})
	if !errors.Is(err, llm.ErrEmptyContent) {
		t.Errorf("err = %v, want ErrEmptyContent", err)
	}
}

func TestOpenAITimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := llm.NewOpenAI("k", llm.WithBaseURL(srv.URL), llm.WithTimeout(50*time.Millisecond))
	if _, err := c.Complete(context.Background(), llm.Request{User: "q"}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestCompleterFunc(t *testing.T) {
	var c llm.Completer = llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		return req.User, nil
	})
	got, _ := c.Complete(context.Background(), llm.Request{User: "echo"})
	if got != "echo" {
		t.Errorf("got %q", got)
	}
}
