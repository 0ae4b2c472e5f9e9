package rank

import (
	"strings"

	"github.com/codevault/codevault/internal/metadb"
)

const (
	intentBoost   = 0.20
	tagBoost      = 0.10
	docPathBoost  = 0.15

	symbolSignatureBoost = 0.30
	neighborSignatureBoost = 0.15
	maxSymbolBoost         = 0.45
)

// denseBoost computes the additive pre-cap boost applied on top of raw
// cosine similarity.
func denseBoost(query string, c metadb.Chunk) float64 {
	var boost float64
	if c.Intent != "" && strings.Contains(query, strings.ToLower(c.Intent)) {
		boost += intentBoost
	}
	for _, tag := range c.Tags {
		if tag != "" && strings.Contains(query, strings.ToLower(tag)) {
			boost += tagBoost
		}
	}
	if isDocPath(c.FilePath) {
		boost += docPathBoost
	}
	return boost
}

// queryTokens returns the query's whitespace-separated tokens of length
// >= 3, the symbol-boost stage's match unit.
func queryTokens(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// symbolBoostFor computes the 0-0.45 symbol-signature bonus for one chunk:
// +0.30 if a query token matches its own signature, +0.15 if one matches a
// resolved neighbor's signature, capped at 0.45.
func symbolBoostFor(tokens []string, c metadb.Chunk, byChunkID map[string]metadb.Chunk) (float64, []string) {
	var boost float64
	var sources []string

	sig := strings.ToLower(c.SymbolSignature)
	if sig != "" {
		for _, tok := range tokens {
			if strings.Contains(sig, tok) {
				boost += symbolSignatureBoost
				sources = append(sources, "own signature matched")
				break
			}
		}
	}

	for _, neighborID := range c.SymbolNeighbors {
		neighbor, ok := byChunkID[neighborID]
		if !ok {
			continue
		}
		neighborSig := strings.ToLower(neighbor.SymbolSignature)
		if neighborSig == "" {
			continue
		}
		matched := false
		for _, tok := range tokens {
			if strings.Contains(neighborSig, tok) {
				matched = true
				break
			}
		}
		if matched {
			boost += neighborSignatureBoost
			sources = append(sources, "neighbor "+neighbor.Symbol+" signature matched")
			if boost >= maxSymbolBoost {
				break
			}
		}
	}

	if boost > maxSymbolBoost {
		boost = maxSymbolBoost
	}
	return boost, sources
}
