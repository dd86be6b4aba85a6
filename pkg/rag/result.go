package rag

import (
	"errors"
	"time"

	"github.com/kechemale/TenaAI/pkg/knowledge"
)

// Status is the outcome of one question.
type Status string

const (
	// StatusAnswered means the model answered from retrieved context.
	StatusAnswered Status = "answered"

	// StatusNoContext means retrieval found no usable text; the model was
	// not called.
	StatusNoContext Status = "no_context"

	// StatusServiceFailed means the model call failed.
	StatusServiceFailed Status = "service_failed"
)

// ErrLLMCall matches every model-call failure recorded in Result.Err.
var ErrLLMCall = errors.New("rag: llm call failed")

// LLMCallError wraps the cause of a failed model call.
type LLMCallError struct {
	Err error
}

func (e *LLMCallError) Error() string { return ErrLLMCall.Error() + ": " + e.Err.Error() }

func (e *LLMCallError) Unwrap() error { return e.Err }

func (e *LLMCallError) Is(target error) bool { return target == ErrLLMCall }

// Result is one question's session: what was retrieved, what was sent and
// what came back. It is not persisted.
type Result struct {
	ID       string          `json:"id" yaml:"id"`
	Question string          `json:"question" yaml:"question"`
	Status   Status          `json:"status" yaml:"status"`
	Answer   string          `json:"answer,omitempty" yaml:"answer,omitempty"`
	Hits     []knowledge.Hit `json:"hits" yaml:"hits"`
	Context  string          `json:"-" yaml:"-"`
	Elapsed  time.Duration   `json:"elapsed_ns" yaml:"elapsed"`

	// Err is set for StatusServiceFailed and matches ErrLLMCall.
	Err error `json:"-" yaml:"-"`

	// Error mirrors Err for serialized output.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Text renders the result as a user-facing string. The three statuses use
// distinct templates so "no data" and "service error" stay
// distinguishable.
func (r Result) Text() string {
	switch r.Status {
	case StatusAnswered:
		return r.Answer
	case StatusNoContext:
		return NoContextMessage
	default:
		detail := "unknown error"
		var le *LLMCallError
		switch {
		case errors.As(r.Err, &le):
			detail = le.Err.Error()
		case r.Err != nil:
			detail = r.Err.Error()
		}
		return ErrorMarker + " " + detail
	}
}
