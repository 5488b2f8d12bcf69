package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSimilarityExamples(t *testing.T) {
	a := &Competency{ID: "a", Name: "Team collaboration", Category: "Social", Keywords: []string{"team", "collaboration"}}
	b := &Competency{ID: "b", Name: "Team leadership", Category: "Social", Keywords: []string{"team", "leadership"}}
	c := &Competency{ID: "c", Name: "Fundraising", Category: "Org", Related: []string{"a"}}

	assert.Equal(t, 1.0, Similarity(a, a))
	assert.Equal(t, 0.8, Similarity(a, c))
	assert.Equal(t, 0.8, Similarity(c, a))
	// name 1/3, keywords 1/3, same category
	assert.InDelta(t, 0.3/3+0.4/3+0.3, Similarity(a, b), 1e-9)
	assert.Equal(t, 0.0, Similarity(nil, a))
}

func genCompetency(t *rapid.T, label string) *Competency {
	words := []string{"team", "project", "planning", "python", "data", "care", "event"}
	return &Competency{
		ID:       rapid.SampledFrom([]string{"1", "2", "3", "4"}).Draw(t, label+"_id"),
		Name:     rapid.StringMatching(`[a-z ]{0,20}`).Draw(t, label+"_name"),
		Category: rapid.SampledFrom([]string{"", "soft", "technical"}).Draw(t, label+"_category"),
		Keywords: rapid.SliceOfN(rapid.SampledFrom(words), 0, 5).Draw(t, label+"_keywords"),
		Related:  rapid.SliceOfN(rapid.SampledFrom([]string{"1", "2", "3", "4"}), 0, 2).Draw(t, label+"_related"),
	}
}

func TestSimilarityProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genCompetency(t, "a")
		b := genCompetency(t, "b")

		score := Similarity(a, b)
		if score < 0 || score > 1 {
			t.Fatalf("score %v out of bounds", score)
		}
		if Similarity(a, a) != 1 {
			t.Fatalf("self similarity must be 1")
		}
		if score != Similarity(b, a) {
			t.Fatalf("similarity must be symmetric: %v vs %v", score, Similarity(b, a))
		}
		if Similarity(a, b) != score {
			t.Fatalf("similarity must be deterministic")
		}
	})
}
