package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReciprocalRankFusionFavorsDocumentInBothLists(t *testing.T) {
	vector := []string{"b", "a", "c"}
	bm25 := []string{"a", "d", "b"}

	scores := reciprocalRankFusion(vector, bm25)

	assert.Greater(t, scores["a"], scores["c"], "a appears near the top of both lists")
	assert.Greater(t, scores["a"], scores["d"], "d only appears in one list")
	_, onlyVector := scores["c"]
	assert.True(t, onlyVector, "a document present in only one list still gets a score")
}

func TestReciprocalRankFusionIsOrderSensitiveWithinAList(t *testing.T) {
	scores := reciprocalRankFusion([]string{"x", "y"})
	assert.Greater(t, scores["x"], scores["y"])
}
