package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"label-resolver/internal/resolve/model"
)

func TestSimilarity_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"", ""}, {"A", ""}, {"", "A"}, {"A", "A"}, {"AB", "BA"},
		{"BRISKET", "BRISKETS"}, {"PORK RIBS", "RIBS"}, {"ZZZ", "CUPIM"},
		{"PAO DE QUEIJO", "QUEIJO"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0, "%q vs %q", p[0], p[1])
		assert.LessOrEqual(t, s, 1.0, "%q vs %q", p[0], p[1])
		assert.Equal(t, s, Similarity(p[1], p[0]), "symmetry %q vs %q", p[0], p[1])
	}
}

func TestSimilarity_Identity(t *testing.T) {
	for _, s := range []string{"A", "BRISKET", "PORK RIBS"} {
		assert.Equal(t, 1.0, Similarity(s, s))
	}
	assert.Equal(t, 0.0, Similarity("", ""))
}

func TestBigram(t *testing.T) {
	assert.Equal(t, 1.0, Bigram("AB", "AB"))
	assert.Equal(t, 0.0, Bigram("A", "A"))
	// AB BC vs AB BD: one shared pair of four
	assert.InDelta(t, 0.5, Bigram("ABC", "ABD"), 1e-9)
	// repeated pairs count as a multiset
	assert.InDelta(t, 2.0/3.0, Bigram("AAA", "AA"), 1e-9)
}

func TestEditSimilarity(t *testing.T) {
	assert.InDelta(t, 1-3.0/7.0, EditSimilarity("KITTEN", "SITTING"), 1e-9)
	assert.Equal(t, 0.0, EditSimilarity("", "X"))
	assert.Equal(t, 1.0, EditSimilarity("X", "X"))
	assert.Equal(t, 3, levenshtein([]rune("KITTEN"), []rune("SITTING")))
	assert.Equal(t, 2, levenshtein([]rune(""), []rune("AB")))
}

func TestScoreItem(t *testing.T) {
	brisket := model.CatalogItem{ID: "1", Name: "Brisket", ShortCode: "b12"}

	assert.Equal(t, 0.0, ScoreItem("", brisket))
	assert.Equal(t, 1.0, ScoreItem("BRISKET", brisket))
	assert.Equal(t, 1.0, ScoreItem("B12 QUALQUER", brisket), "code inside the query wins")
	assert.GreaterOrEqual(t, ScoreItem("BRISKET DEFUMADO FATIADO", brisket), 0.85)
	assert.Less(t, ScoreItem("ZZZ", brisket), MediumThreshold)

	noCode := model.CatalogItem{ID: "2", Name: "Cupim"}
	assert.GreaterOrEqual(t, ScoreItem("CUPIM DE BOI", noCode), 0.80)
}
