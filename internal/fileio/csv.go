package fileio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacy single-byte encodings Excel and POS exports still produce
var csvDecoders = map[string]*charmap.Charmap{
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
}

// readCSV reads a catalog export with headerRow (1-based). The delimiter is
// guessed from the first line since localized Excel writes ";".
func readCSV(r io.Reader, headerRow int) ([]map[string]string, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(2048)
	if bytes.HasPrefix(peek, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		peek = peek[len(utf8BOM):]
	}

	cr := csv.NewReader(utf8Reader(br, peek))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = guessDelimiter(peek)

	rows, err := readRecords(cr)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rowsToMaps(rows, pickHeader(rows, headerRow), headerRow), nil
}

// utf8Reader wraps r in a decoder when chardet recognizes a legacy charset.
func utf8Reader(r io.Reader, sample []byte) io.Reader {
	if len(sample) == 0 {
		return r
	}
	det, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || det == nil {
		return r
	}
	cm, ok := csvDecoders[strings.ToLower(det.Charset)]
	if !ok {
		return r
	}
	return transform.NewReader(r, cm.NewDecoder())
}

func readRecords(cr *csv.Reader) ([][]string, error) {
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		for i, v := range rec {
			rec[i] = normalizeCell(v)
		}
		rows = append(rows, rec)
	}
}

// guessDelimiter picks the most frequent of , ; \t on the first line.
func guessDelimiter(peek []byte) rune {
	line, _, _ := bytes.Cut(peek, []byte{'\n'})
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
