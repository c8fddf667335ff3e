package fileio

import (
	"strings"

	"label-resolver/internal/resolve/service"
)

// header keys compare accent- and case-insensitively
func normHeaderKey(s string) string {
	return strings.ToLower(service.Normalize(s))
}

// resolveKey finds the real header in rec for the wanted name.
// Alternatives are separated by "|" ("name|nome|item"); exact normalized
// matches win over partial ones ("nome do item" contains "nome").
func resolveKey(rec map[string]string, want string) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}
	alts := strings.Split(want, "|")
	nWant := make([]string, 0, len(alts))
	for _, a := range alts {
		if n := normHeaderKey(a); n != "" {
			nWant = append(nWant, n)
		}
	}

	bestKey := ""
	bestScore := 0
	for k := range rec {
		nk := normHeaderKey(k)
		if nk == "" {
			continue
		}
		score := 0
		for i, n := range nWant {
			if nk == n {
				// earlier alternatives are preferred
				score = max(score, 1000-i)
				continue
			}
			if containsWord(nk, n) {
				score = max(score, len(n))
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && k < bestKey) {
			bestScore, bestKey = score, k
		}
	}
	return bestKey
}

func containsWord(haystack, word string) bool {
	return strings.Contains(" "+haystack+" ", " "+word+" ")
}
