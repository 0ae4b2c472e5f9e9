// Package config reads CodeVault's recognized environment variables
// directly. There is deliberately no generic config-file loader here;
// each component asks for the handful of named variables it actually
// needs.
package config

import (
	"os"
	"strconv"
	"strings"
)

// String returns the first set, non-empty variable among names, or def.
func String(def string, names ...string) string {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return def
}

// Int returns the first parseable integer variable among names, or def.
func Int(def int, names ...string) int {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return def
}

// Bool returns the first parseable boolean variable among names, or def.
func Bool(def bool, names ...string) bool {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		}
	}
	return def
}

// CommaList splits a comma-separated env var into trimmed, non-empty parts.
func CommaList(names ...string) []string {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					out = append(out, p)
				}
			}
			return out
		}
	}
	return nil
}

// Embedding-related environment variables.
const (
	EnvEmbeddingAPIKey       = "CODEVAULT_EMBEDDING_API_KEY"
	EnvOpenAIAPIKey          = "OPENAI_API_KEY"
	EnvEmbeddingBaseURL      = "CODEVAULT_EMBEDDING_BASE_URL"
	EnvOpenAIBaseURL         = "OPENAI_BASE_URL"
	EnvEmbeddingModel        = "CODEVAULT_EMBEDDING_MODEL"
	EnvEmbeddingDimensions   = "CODEVAULT_EMBEDDING_DIMENSIONS"
	EnvEmbeddingMaxTokens    = "CODEVAULT_EMBEDDING_MAX_TOKENS"
	EnvEmbeddingRateLimitRPM = "CODEVAULT_EMBEDDING_RATE_LIMIT_RPM"
	EnvEmbeddingRateLimitTPM = "CODEVAULT_EMBEDDING_RATE_LIMIT_TPM"
	EnvEncryptionKey         = "CODEVAULT_ENCRYPTION_KEY"
	EnvEncryptionDeprecated  = "CODEVAULT_ENCRYPTION_DEPRECATED_KEYS"
	EnvQuiet                 = "CODEVAULT_QUIET"
	EnvLogLevel              = "CODEVAULT_LOG_LEVEL"
	EnvIndexingConcurrency   = "CODEVAULT_INDEXING_CONCURRENCY"
	EnvMaxBM25Cache          = "CODEVAULT_MAX_BM25_CACHE"
	EnvMaxChunkCache         = "CODEVAULT_MAX_CHUNK_CACHE"
	EnvRerankerMax           = "CODEVAULT_RERANKER_MAX"
	EnvBM25PrefilterLimit    = "CODEVAULT_BM25_PREFILTER_LIMIT"
	EnvRerankAPIURL          = "CODEVAULT_RERANK_API_URL"
	EnvRerankAPIKey          = "CODEVAULT_RERANK_API_KEY"
	EnvRerankModel           = "CODEVAULT_RERANK_MODEL"
	EnvANNEnabled            = "CODEVAULT_ANN_ENABLED"
	EnvLogDev                = "CODEVAULT_LOG_DEV"
)
