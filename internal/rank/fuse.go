package rank

// rrfK is the reciprocal-rank-fusion constant, fixed at 60.
const rrfK = 60

// reciprocalRankFusion computes RRF scores over the union of two ranked ID
// lists (dense candidates and BM25 results, each already truncated to the
// selection budget B): score(d) = sum of 1/(k + rank_L(d)) over every list
// L that contains d, using 1-indexed ranks.
func reciprocalRankFusion(lists ...[]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for i, id := range list {
			rank := i + 1
			scores[id] += 1.0 / float64(rrfK+rank)
		}
	}
	return scores
}
