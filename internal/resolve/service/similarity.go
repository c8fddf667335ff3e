package service

import (
	"strings"

	"label-resolver/internal/resolve/model"
)

// Score floors applied on top of plain similarity.
const (
	scoreCodeHit       = 1.0
	scoreExactName     = 0.95
	scoreContainsName  = 0.85
	scoreContainsShort = 0.80
	minContainedName   = 4
)

// Similarity of two normalized strings in [0..1]: the better of the bigram
// Dice coefficient and the normalized edit distance.
func Similarity(a, b string) float64 {
	return max(Bigram(a, b), EditSimilarity(a, b))
}

// Bigram is the Dice coefficient over the multisets of adjacent rune pairs.
func Bigram(a, b string) float64 {
	ba, bb := bigrams(a), bigrams(b)
	na, nb := countAll(ba), countAll(bb)
	if na == 0 || nb == 0 {
		return 0
	}
	inter := 0
	for g, ca := range ba {
		inter += min(ca, bb[g])
	}
	return 2 * float64(inter) / float64(na+nb)
}

func bigrams(s string) map[string]int {
	r := []rune(s)
	m := make(map[string]int, len(r))
	for i := 0; i+1 < len(r); i++ {
		m[string(r[i:i+2])]++
	}
	return m
}

func countAll(m map[string]int) int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// EditSimilarity is 1 - levenshtein/maxLen; 0 when either side is empty.
func EditSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	m := max(len(ra), len(rb))
	return 1 - float64(levenshtein(ra, rb))/float64(m)
}

// ScoreItem scores a normalized query against one catalog item: plain
// similarity to the normalized name and code, raised by the code/name rules.
func ScoreItem(query string, item model.CatalogItem) float64 {
	return scoreKeys(query, Normalize(item.Name), Normalize(item.ShortCode))
}

// scoreKeys is ScoreItem over already normalized name and code.
func scoreKeys(query, name, code string) float64 {
	if query == "" {
		return 0
	}
	if code != "" && strings.Contains(query, code) {
		return scoreCodeHit
	}

	score := Similarity(query, name)
	if code != "" {
		score = max(score, Similarity(query, code))
	}
	if name == "" {
		return score
	}
	if query == name {
		score = max(score, scoreExactName)
	}
	if strings.Contains(query, name) {
		score = max(score, scoreContainsName)
	}
	if len(name) >= minContainedName && strings.Contains(query, name) {
		score = max(score, scoreContainsShort)
	}
	return score
}
