package fileio

import (
	"bytes"
	"io"
	"strings"

	excelize "github.com/xuri/excelize/v2"
)

// sheets tried before falling back to the first one
var catalogSheets = []string{"items", "itens", "catalog", "catalogo"}

func readXLSX(r io.Reader, headerRow int) ([]map[string]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(pickSheet(f.GetSheetList()))
	if err != nil {
		return nil, err
	}
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = normalizeCell(rows[i][j])
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	h := pickHeader(rows, headerRow)
	return rowsToMaps(rows, h, headerRow), nil
}

func pickSheet(names []string) string {
	for _, want := range catalogSheets {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), want) {
				return n
			}
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}
