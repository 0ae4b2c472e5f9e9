package rank

import "github.com/codevault/codevault/internal/cverr"

// Overview returns up to limit chunks ordered by an importance heuristic
// that prefers top-level container chunks, each scored 1.0 since no query
// participates.
func (r *Ranker) Overview(limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	chunks, err := r.metaDB.GetOverviewChunks(limit)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "load overview chunks", err)
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, Result{
			Type: "code",
			Lang: c.Language,
			Path: c.FilePath,
			Sha:  c.Sha,
			Meta: Meta{
				ID:          c.ChunkID,
				Symbol:      c.Symbol,
				Score:       1.0,
				VectorScore: 1.0,
				Intent:      c.Intent,
				Description: c.Description,
				SearchType:  "overview",
			},
		})
	}

	return &SearchResult{
		Results:    results,
		SearchType: "overview",
	}, nil
}
