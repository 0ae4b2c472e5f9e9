// Package reranker implements the optional external cross-encoder
// reranking stage, toggled via Options.Toggles.Reranker == "api": a
// plain net/http client posting {query, documents} and reading back
// per-document scores, adapted to the rank.Reranker interface's
// {ID, Text} candidate shape and configured from CODEVAULT_RERANK_API_*.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codevault/codevault/internal/cverr"
	"github.com/codevault/codevault/internal/rank"
)

// DefaultTimeout bounds one rerank HTTP call.
const DefaultTimeout = 10 * time.Second

// Config configures an HTTPReranker.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPReranker scores candidates against a query via a remote rerank
// endpoint, implementing rank.Reranker.
type HTTPReranker struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

var _ rank.Reranker = (*HTTPReranker)(nil)

// New builds an HTTPReranker. BaseURL is required.
func New(cfg Config) (*HTTPReranker, error) {
	if cfg.BaseURL == "" {
		return nil, cverr.New(cverr.KindValidation, "reranker requires a base URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPReranker{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank implements rank.Reranker: it scores candidates in the order
// given and returns one score per candidate, same order in, same order
// out (the caller re-sorts by score).
func (r *HTTPReranker) Rerank(query string, candidates []rank.RerankCandidate) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}

	body, err := json.Marshal(rerankRequest{Query: query, Documents: docs, Model: r.model})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]float64, len(candidates))
	for _, res := range parsed.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.Score
		}
	}
	return scores, nil
}
