package fileio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ReadAnyMaps picks a parser by extension and returns the rows below the
// header as map[header]value. headerRow is 1-based.
func ReadAnyMaps(r io.Reader, filename string, headerRow int) ([]map[string]string, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return readXLSX(r, headerRow)
	case ".xls":
		return readXLS(r, headerRow)
	case ".csv":
		return readCSV(r, headerRow)
	default:
		return nil, fmt.Errorf("unsupported file: %s", filename)
	}
}

// normalizeCell trims a cell and drops the NBSP variants spreadsheets like to emit.
func normalizeCell(v string) string {
	v = strings.NewReplacer("\u00A0", " ", "\u202F", " ").Replace(v)
	return strings.TrimSpace(v)
}

// pickHeader returns the header names of rows[headerRow-1] (the first row
// when out of range). Blank names become "Column N" and repeated names get
// a " (2)" suffix so no column shadows another.
func pickHeader(rows [][]string, headerRow int) []string {
	idx := headerRow - 1
	if idx < 0 || idx >= len(rows) {
		idx = 0
	}
	seen := make(map[string]int, len(rows[idx]))
	out := make([]string, len(rows[idx]))
	for i, v := range rows[idx] {
		v = normalizeCell(v)
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		seen[v]++
		if n := seen[v]; n > 1 {
			v = fmt.Sprintf("%s (%d)", v, n)
		}
		out[i] = v
	}
	return out
}

// rowsToMaps maps every row after the header by column name. Rows with no
// value at all are dropped.
func rowsToMaps(rows [][]string, headers []string, headerRow int) []map[string]string {
	var out []map[string]string
	for _, rec := range rows[min(headerRow, len(rows)):] {
		m := make(map[string]string, len(headers))
		empty := true
		for c, name := range headers {
			var v string
			if c < len(rec) {
				v = rec[c]
			}
			if strings.TrimSpace(v) != "" {
				empty = false
			}
			m[name] = v
		}
		if !empty {
			out = append(out, m)
		}
	}
	return out
}
