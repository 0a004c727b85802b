package dedupe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentmem/memcore/pkg/dedupe"
)

func TestFindDuplicateReturnsFirstAboveThreshold(t *testing.T) {
	candidates := []dedupe.Candidate{
		{ID: "a", Score: 0.4},
		{ID: "b", Score: 0.97},
		{ID: "c", Score: 0.99},
	}
	assert.Equal(t, "b", dedupe.FindDuplicate(candidates, dedupe.DefaultThreshold))
}

func TestFindDuplicateNoneQualifies(t *testing.T) {
	candidates := []dedupe.Candidate{{ID: "a", Score: 0.5}}
	assert.Equal(t, "", dedupe.FindDuplicate(candidates, dedupe.DefaultThreshold))
}

func TestNormalizeTextCollapsesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, "hello world", dedupe.NormalizeText("  Hello   WORLD \n"))
}

func TestJaccardSimilarityIdenticalTextIsOne(t *testing.T) {
	sim := dedupe.JaccardSimilarity("the quick brown fox", "The Quick Brown Fox")
	assert.Equal(t, 1.0, sim)
}

func TestJaccardSimilarityDisjointTextIsZero(t *testing.T) {
	sim := dedupe.JaccardSimilarity("apples oranges", "trucks planes")
	assert.Equal(t, 0.0, sim)
}

func TestJaccardSimilarityPartialOverlap(t *testing.T) {
	sim := dedupe.JaccardSimilarity("the quick fox", "the slow fox")
	// intersection {the, fox} = 2, union {the, quick, fox, slow} = 4
	assert.InDelta(t, 0.5, sim, 1e-9)
}
