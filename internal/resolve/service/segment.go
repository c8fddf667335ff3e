package service

import (
	"regexp"
	"strings"
	"unicode"

	"label-resolver/internal/resolve/model"
	"label-resolver/internal/utils"
)

// strong separators between order lines
var reStrongSep = regexp.MustCompile(`[\n,;.]+`)

// Cardinal words 1..20 keyed by their normalized spelling.
var cardinals = map[string]map[string]int{
	"pt": {
		"UM": 1, "UMA": 1, "DOIS": 2, "DUAS": 2, "TRES": 3, "QUATRO": 4, "CINCO": 5,
		"SEIS": 6, "SETE": 7, "OITO": 8, "NOVE": 9, "DEZ": 10, "ONZE": 11, "DOZE": 12,
		"TREZE": 13, "QUATORZE": 14, "CATORZE": 14, "QUINZE": 15,
		"DEZESSEIS": 16, "DEZASSEIS": 16, "DEZESSETE": 17, "DEZASSETE": 17,
		"DEZOITO": 18, "DEZENOVE": 19, "DEZANOVE": 19, "VINTE": 20,
	},
	"en": {
		"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5, "SIX": 6, "SEVEN": 7,
		"EIGHT": 8, "NINE": 9, "TEN": 10, "ELEVEN": 11, "TWELVE": 12, "THIRTEEN": 13,
		"FOURTEEN": 14, "FIFTEEN": 15, "SIXTEEN": 16, "SEVENTEEN": 17, "EIGHTEEN": 18,
		"NINETEEN": 19, "TWENTY": 20,
	},
}

const DefaultLanguage = "pt"

// Segmenter splits an utterance into quantity + description fragments.
type Segmenter struct {
	words map[string]int
}

// NewSegmenter picks the cardinal vocabulary for lang; unknown languages get the default.
func NewSegmenter(lang string) *Segmenter {
	words, ok := cardinals[strings.ToLower(strings.TrimSpace(lang))]
	if !ok {
		words = cardinals[DefaultLanguage]
	}
	return &Segmenter{words: words}
}

var defaultSegmenter = NewSegmenter(DefaultLanguage)

// Segment splits text with the default vocabulary.
func Segment(text string) []model.Segment { return defaultSegmenter.Segment(text) }

// Segment returns the ordered fragments of text. Blank input gives nil.
func (s *Segmenter) Segment(text string) []model.Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var parts []string
	for _, p := range reStrongSep.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = []string{strings.TrimSpace(text)}
	}

	var out []model.Segment
	for _, part := range parts {
		for _, frag := range s.splitOnQuantities(part) {
			// an opening bracket or slash before the next count belongs to neither item
			raw := strings.TrimSpace(strings.TrimRight(frag, " \t/([{-+&"))
			if raw == "" {
				continue
			}
			qty, desc := s.leadingQuantity(raw)
			out = append(out, model.Segment{
				Raw:      raw,
				Quantity: qty,
				Text:     Normalize(desc),
			})
		}
	}
	return out
}

type span struct{ start, end int }

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// words of part with their byte offsets; any other rune is a boundary
func wordSpans(part string) []span {
	var spans []span
	start := -1
	for i, r := range part {
		if !isWordRune(r) {
			if start >= 0 {
				spans = append(spans, span{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, span{start, len(part)})
	}
	return spans
}

func (s *Segmenter) isQuantityToken(word string) bool {
	if utils.IsDigits(word) {
		return true
	}
	_, ok := s.words[Normalize(word)]
	return ok
}

// splitOnQuantities cuts a part at every quantity token once it holds two or more.
func (s *Segmenter) splitOnQuantities(part string) []string {
	var cuts []int
	for _, w := range wordSpans(part) {
		if s.isQuantityToken(part[w.start:w.end]) {
			cuts = append(cuts, w.start)
		}
	}
	if len(cuts) < 2 {
		return []string{part}
	}

	frags := make([]string, 0, len(cuts)+1)
	if lead := part[:cuts[0]]; strings.TrimSpace(lead) != "" {
		frags = append(frags, lead)
	}
	for i, c := range cuts {
		end := len(part)
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		frags = append(frags, part[c:end])
	}
	return frags
}

// leadingQuantity binds a leading digit run or cardinal word; default 1.
func (s *Segmenter) leadingQuantity(frag string) (int, string) {
	if digits, rest := utils.LeadingDigits(frag); digits != "" {
		return utils.ParseQuantity(digits), strings.TrimSpace(rest)
	}
	first, rest := frag, ""
	if i := strings.IndexFunc(frag, func(r rune) bool { return !isWordRune(r) }); i >= 0 {
		first, rest = frag[:i], frag[i:]
	}
	if n, ok := s.words[Normalize(first)]; ok {
		return n, strings.TrimSpace(rest)
	}
	return 1, frag
}
