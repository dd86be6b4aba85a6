package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kechemale/TenaAI/pkg/knowledge"
	"github.com/kechemale/TenaAI/pkg/rag"
)

const maxBodyBytes = 64 << 10

type handlers struct {
	engine Asker
	index  Index
	topK   int
	logger *slog.Logger
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type askResponse struct {
	rag.Result
	Text string `json:"text"`
}

func (h *handlers) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing field 'question'"))
		return
	}
	if req.TopK == 0 {
		req.TopK = h.topK
	}

	res, err := h.engine.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		h.fail(w, r, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Result: res, Text: res.Text()})
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing query parameter 'q'"))
		return
	}
	k := h.topK
	if s := r.URL.Query().Get("k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid query parameter 'k'"))
			return
		}
		k = n
	}

	hits, err := h.index.Query(r.Context(), q, k)
	if err != nil {
		h.fail(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query": q,
		"hits":  hits,
		"total": len(hits),
	})
}

func (h *handlers) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.index.Info())
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.index.Info().Loaded {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "index not loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps retrieval errors to HTTP statuses.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, knowledge.ErrEmptyQuery), errors.Is(err, knowledge.ErrInvalidTopK):
		status = http.StatusBadRequest
	case errors.Is(err, knowledge.ErrEmpty), errors.Is(err, knowledge.ErrNotFound):
		status = http.StatusServiceUnavailable
	case errors.Is(err, knowledge.ErrEmbeddingUnavailable):
		status = http.StatusBadGateway
	}
	h.logger.WarnContext(r.Context(), op+" failed", "error", err, "status", status)
	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
