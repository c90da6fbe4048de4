package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"qbank/config"
	"qbank/internal/domain"
)

type stubEngine struct {
	ready     bool
	results   []domain.ResultRecord
	err       error
	lastQuery string
	lastK     int
}

func (s *stubEngine) Search(ctx context.Context, query string, k int) ([]domain.ResultRecord, error) {
	if !s.ready {
		return nil, domain.ErrNotReady
	}
	if s.err != nil {
		return nil, s.err
	}
	s.lastQuery, s.lastK = query, k
	if k > len(s.results) {
		return nil, fmt.Errorf("%w: k=%d", domain.ErrInvalidArgument, k)
	}
	return s.results[:k], nil
}

func (s *stubEngine) Ask(ctx context.Context, query string, k int) (*domain.Answer, error) {
	results, err := s.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	top := results[0]
	return &domain.Answer{Query: query, Answer: top.AnswerText, Match: &top, Alternatives: results[1:]}, nil
}

func (s *stubEngine) Stats() (domain.Stats, error) {
	if !s.ready {
		return domain.Stats{}, domain.ErrNotReady
	}
	return s.Snapshot(), nil
}

func (s *stubEngine) Snapshot() domain.Stats {
	if !s.ready {
		return domain.Stats{}
	}
	dim := 64
	return domain.Stats{
		TotalQuestions:     len(s.results),
		ModelName:          "hash-64",
		EmbeddingDimension: &dim,
		HasEmbeddings:      true,
		HasIndex:           true,
	}
}

func (s *stubEngine) Ready() bool { return s.ready }

func readyEngine() *stubEngine {
	results := make([]domain.ResultRecord, 6)
	for i := range results {
		results[i] = domain.ResultRecord{
			Rank:            i + 1,
			ID:              domain.Int64Ptr(int64(100 + i)),
			Question:        fmt.Sprintf("প্রশ্ন %d", i+1),
			QuestionCleaned: fmt.Sprintf("প্রশ্ন %d", i+1),
			AnswerText:      domain.StringPtr(fmt.Sprintf("উত্তর %d", i+1)),
			SimilarityScore: 1 - float64(i)/10,
			Distance:        float64(i) / 10,
		}
	}
	return &stubEngine{ready: true, results: results}
}

func newTestRouter(engine Engine) http.Handler {
	cfg := config.DefaultConfig()
	return NewRouter(NewHandler(engine, cfg.Retrieve, zap.NewNop()), cfg.Server, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHandleIndex(t *testing.T) {
	w, body := do(t, newTestRouter(readyEngine()), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Version, body["version"])
	endpoints := body["endpoints"].(map[string]any)
	assert.Contains(t, endpoints, "search")
	assert.Contains(t, endpoints, "chat")
}

func TestHandleSearch(t *testing.T) {
	engine := readyEngine()
	router := newTestRouter(engine)

	t.Run("default k", func(t *testing.T) {
		w, body := do(t, router, http.MethodGet, "/search?query=%E0%A6%AA%E0%A7%8D%E0%A6%B0%E0%A6%B6%E0%A7%8D%E0%A6%A8", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "প্রশ্ন", body["query"])
		assert.Equal(t, float64(5), body["total_results"])
		assert.Len(t, body["results"], 5)
		assert.Equal(t, 5, engine.lastK)

		stats := body["system_stats"].(map[string]any)
		assert.Equal(t, "hash-64", stats["model_name"])

		first := body["results"].([]any)[0].(map[string]any)
		assert.Equal(t, float64(1), first["rank"])
		assert.Equal(t, float64(100), first["id"])
		assert.Contains(t, first, "option_1")
		assert.Nil(t, first["option_1"])
	})

	t.Run("explicit k", func(t *testing.T) {
		w, body := do(t, router, http.MethodGet, "/search?query=abc&k=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), body["total_results"])
	})

	t.Run("missing query", func(t *testing.T) {
		w, body := do(t, router, http.MethodGet, "/search?k=2", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", body["error"])
		assert.Contains(t, body["details"], "query")
	})

	t.Run("k out of range", func(t *testing.T) {
		for _, k := range []string{"0", "51", "-3", "abc"} {
			w, body := do(t, router, http.MethodGet, "/search?query=abc&k="+k, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, "k=%s", k)
			assert.Contains(t, body["details"], "k")
		}
	})

	t.Run("k above build cap", func(t *testing.T) {
		w, body := do(t, router, http.MethodGet, "/search?query=abc&k=20", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", body["error"])
	})

	t.Run("provider failure", func(t *testing.T) {
		failing := readyEngine()
		failing.err = fmt.Errorf("%w: connection refused", domain.ErrProvider)
		w, body := do(t, newTestRouter(failing), http.MethodGet, "/search?query=abc", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal_error", body["error"])
	})
}

func TestHandleAsk(t *testing.T) {
	engine := readyEngine()
	router := newTestRouter(engine)

	w, body := do(t, router, http.MethodGet, "/ask?query=abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, engine.lastK)
	assert.Equal(t, "abc", body["query"])
	assert.Equal(t, "উত্তর 1", body["answer"])
	assert.Equal(t, float64(100), body["match"].(map[string]any)["id"])
	assert.Len(t, body["alternatives"], 2)

	w, _ = do(t, router, http.MethodGet, "/ask?query=abc&k=11", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat(t *testing.T) {
	engine := readyEngine()
	router := newTestRouter(engine)

	t.Run("default k", func(t *testing.T) {
		w, body := do(t, router, http.MethodPost, "/chat", []byte(`{"message":"রাজধানী"}`))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "রাজধানী", body["user_message"])
		assert.Equal(t, "উত্তর 1", body["answer"])
		assert.Len(t, body["alternatives"], 2)
		assert.Equal(t, 3, engine.lastK)
	})

	t.Run("explicit k", func(t *testing.T) {
		w, body := do(t, router, http.MethodPost, "/chat", []byte(`{"message":"abc","k":1}`))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, body["alternatives"])
		assert.NotNil(t, body["alternatives"])
	})

	t.Run("missing message", func(t *testing.T) {
		w, body := do(t, router, http.MethodPost, "/chat", []byte(`{"k":2}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["details"], "message")
	})

	t.Run("invalid body", func(t *testing.T) {
		w, _ := do(t, router, http.MethodPost, "/chat", []byte(`{`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid k", func(t *testing.T) {
		w, _ := do(t, router, http.MethodPost, "/chat", []byte(`{"message":"abc","k":0}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNotReady(t *testing.T) {
	router := newTestRouter(&stubEngine{})

	for _, tc := range []struct {
		method, target string
		body           []byte
	}{
		{http.MethodGet, "/search?query=abc", nil},
		{http.MethodGet, "/ask?query=abc", nil},
		{http.MethodPost, "/chat", []byte(`{"message":"abc"}`)},
		{http.MethodGet, "/stats", nil},
		{http.MethodGet, "/health/ready", nil},
	} {
		w, _ := do(t, router, tc.method, tc.target, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, tc.target)
	}

	w, body := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["rag_system_initialized"])
}

func TestHandleStatsAndHealth(t *testing.T) {
	router := newTestRouter(readyEngine())

	w, body := do(t, router, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(6), body["total_questions"])
	assert.Equal(t, float64(64), body["embedding_dimension"])
	assert.Equal(t, true, body["has_index"])

	w, body = do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["rag_system_initialized"])

	w, body = do(t, router, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestNotFound(t *testing.T) {
	w, body := do(t, newTestRouter(readyEngine()), http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestWriteErrorUnknown(t *testing.T) {
	h := NewHandler(readyEngine(), config.DefaultConfig().Retrieve, nil)
	w := httptest.NewRecorder()
	h.writeError(w, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
