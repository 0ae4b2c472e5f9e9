package reranker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/rank"
)

func TestRerankReturnsScoresInCandidateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Len(t, body.Documents, 2)

		resp := rerankResponse{}
		resp.Results = []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		}{
			{Index: 1, Score: 0.9},
			{Index: 0, Score: 0.2},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	r, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	scores, err := r.Rerank("query", []rank.RerankCandidate{
		{ID: "a", Text: "alpha"},
		{ID: "b", Text: "beta"},
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 0.2, scores[0])
	assert.Equal(t, 0.9, scores[1])
}

func TestRerankSurfacesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	r, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = r.Rerank("query", []rank.RerankCandidate{{ID: "a", Text: "alpha"}})
	assert.Error(t, err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
