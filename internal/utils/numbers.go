package utils

import (
	"strconv"
	"strings"
)

// ParseQuantity parses a run of ASCII digits as a label count.
// Anything that does not fit a positive int falls back to 1.
func ParseQuantity(digits string) int {
	digits = strings.TrimSpace(digits)
	if digits == "" {
		return 1
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// LeadingDigits splits "10brisket" into "10" and "brisket".
func LeadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CleanCode turns spreadsheet renderings of short codes ("123.0", " 0042 ",
// "1 234") into the code as typed.
func CleanCode(s string) string {
	s = strings.TrimSpace(s)
	if compact := strings.NewReplacer("\u00A0", "", "\u202F", "", " ", "").Replace(s); IsDigits(compact) {
		return compact
	}
	if i := strings.IndexByte(s, '.'); i > 0 && IsDigits(s[:i]) && strings.Trim(s[i+1:], "0") == "" {
		return s[:i]
	}
	return s
}
