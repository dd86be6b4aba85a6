// Package server exposes the query engine over HTTP.
//
// Routes:
//
//	POST /api/ask       {"question": "...", "top_k": 5}
//	GET  /api/search    ?q=...&k=5
//	GET  /api/status
//	GET  /healthz
//
// The store and engine are constructed and loaded by the caller; the
// server never builds or reloads the index.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kechemale/TenaAI/pkg/knowledge"
	"github.com/kechemale/TenaAI/pkg/rag"
)

// Asker answers questions. *rag.Engine implements it.
type Asker interface {
	Ask(ctx context.Context, question string, topK int) (rag.Result, error)
}

// Index is the retrieval side. *knowledge.Store implements it.
type Index interface {
	Query(ctx context.Context, text string, topK int) ([]knowledge.Hit, error)
	Info() knowledge.Info
}

// Config configures the HTTP server.
type Config struct {
	Addr   string
	Engine Asker
	Index  Index

	// DefaultTopK applies when a request gives none.
	DefaultTopK int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New returns an http.Server serving the API. The caller starts it.
func New(cfg Config) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the API handler without a server, for tests and
// embedding.
func Handler(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = rag.DefaultTopK
	}
	h := &handlers{
		engine: cfg.Engine,
		index:  cfg.Index,
		topK:   cfg.DefaultTopK,
		logger: cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ask", h.handleAsk)
	mux.HandleFunc("GET /api/search", h.handleSearch)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return h.logRequests(mux)
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.logger.DebugContext(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path, "status", sw.status, "elapsed", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
