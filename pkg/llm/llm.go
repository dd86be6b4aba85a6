// Package llm provides the chat-completion interface the query engine
// talks to, with OpenAI-compatible and Gemini implementations.
//
// A Completer is stateless per call: one system prompt and one user
// prompt in, one text answer out. Transport, auth and rate-limit failures
// are returned as errors; an empty or refused answer is an error too, so
// callers never mistake a failure for a blank answer.
package llm

import (
	"context"
	"errors"
)

// Request is a single-turn completion request.
type Request struct {
	System string
	User   string

	// Model overrides the client's default model when non-empty.
	Model string

	// Temperature is passed to the model as is. Callers that want
	// near-deterministic output use a low value such as 0.1.
	Temperature float64
}

// Completer produces a completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to [Completer].
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var (
	// ErrNoChoices is returned when the service answers without any
	// candidate completion.
	ErrNoChoices = errors.New("llm: no choices in response")

	// ErrEmptyContent is returned when the completion text is blank.
	ErrEmptyContent = errors.New("llm: empty completion")

	// ErrBlocked is returned when the model refuses or a safety filter
	// stops the completion.
	ErrBlocked = errors.New("llm: completion blocked")
)
