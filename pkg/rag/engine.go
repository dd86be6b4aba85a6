// Package rag turns a question into an answer grounded in retrieved
// guideline text.
//
// For each question the engine retrieves the nearest chunks, joins their
// metadata text into a context, and asks the model to answer from that
// context alone. When nothing usable is retrieved the model is not called
// and a fixed no-information message is returned instead.
//
// [Engine.Ask] returns a tagged [Result]; [Engine.SearchAndSummarize]
// renders it as a plain string. Model failures never surface as the
// returned error of either: they become StatusServiceFailed. Retrieval
// failures (missing index, embedding outage) are returned as errors.
//
// The engine holds no per-question state and is safe for concurrent use
// when its Retriever and Completer are.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kechemale/TenaAI/pkg/knowledge"
	"github.com/kechemale/TenaAI/pkg/llm"
)

const (
	// DefaultTopK is the retrieval width when none is configured.
	DefaultTopK = 5

	// DefaultTemperature keeps decoding near-deterministic.
	DefaultTemperature = 0.1
)

// Retriever returns the chunks nearest to a text. *knowledge.Store
// implements it.
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]knowledge.Hit, error)
}

// Config configures an Engine.
type Config struct {
	Retriever Retriever
	Completer llm.Completer

	// Model is passed to the Completer; empty uses its default.
	Model string

	// Temperature is the decoding temperature. Zero selects
	// DefaultTemperature; use a small positive value for something lower.
	Temperature float64

	// TopK is the default retrieval width. Zero selects DefaultTopK.
	TopK int

	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine is the retrieval-augmented query engine.
type Engine struct {
	retriever   Retriever
	completer   llm.Completer
	model       string
	temperature float64
	topK        int
	system      string
	logger      *slog.Logger
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("rag: Config.Retriever is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("rag: Config.Completer is required")
	}
	if cfg.Temperature < 0 {
		return nil, fmt.Errorf("rag: negative temperature %v", cfg.Temperature)
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		retriever:   cfg.Retriever,
		completer:   cfg.Completer,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topK:        cfg.TopK,
		system:      cfg.SystemPrompt,
		logger:      cfg.Logger,
	}, nil
}

// TopK returns the default retrieval width.
func (e *Engine) TopK() int { return e.topK }

// Ask answers one question. A zero topK uses the configured default; a
// negative one is knowledge.ErrInvalidTopK.
//
// The returned error is non-nil only when retrieval fails; it wraps the
// retriever's error unchanged (e.g. knowledge.ErrEmpty,
// knowledge.ErrEmbeddingUnavailable). Every other outcome, including a
// failed model call, is described by the Result.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (Result, error) {
	start := time.Now()
	res := Result{ID: uuid.NewString(), Question: question}
	switch {
	case topK < 0:
		return res, fmt.Errorf("rag: top_k %d: %w", topK, knowledge.ErrInvalidTopK)
	case topK == 0:
		topK = e.topK
	}
	log := e.logger.With("session", res.ID)

	hits, err := e.retriever.Query(ctx, question, topK)
	if err != nil {
		return res, fmt.Errorf("rag: retrieve: %w", err)
	}
	res.Hits = hits
	res.Context = assembleContext(hits)
	log.DebugContext(ctx, "retrieved", "hits", len(hits), "context_bytes", len(res.Context))

	if strings.TrimSpace(res.Context) == "" {
		res.Status = StatusNoContext
		res.Elapsed = time.Since(start)
		log.InfoContext(ctx, "no context for question", "hits", len(hits))
		return res, nil
	}

	answer, err := e.completer.Complete(ctx, llm.Request{
		System:      e.system,
		User:        userPrompt(question, res.Context),
		Model:       e.model,
		Temperature: e.temperature,
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Status = StatusServiceFailed
		res.Err = &LLMCallError{Err: err}
		res.Error = res.Err.Error()
		log.WarnContext(ctx, "llm call failed", "error", err)
		return res, nil
	}

	res.Status = StatusAnswered
	res.Answer = strings.TrimSpace(answer)
	log.InfoContext(ctx, "answered", "hits", len(hits), "elapsed", res.Elapsed)
	return res, nil
}

// SearchAndSummarize answers one question as a plain string: the model's
// answer, NoContextMessage, or ErrorMarker followed by the failure detail.
// Only retrieval failures are returned as errors.
func (e *Engine) SearchAndSummarize(ctx context.Context, question string, topK int) (string, error) {
	res, err := e.Ask(ctx, question, topK)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}
