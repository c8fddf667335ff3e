// Legacy .xls catalogs: the table width is measured up front and every cell
// up to it is read, since Row.LastCol() under-reports on exported sheets.
package fileio

import (
	"bytes"
	"errors"
	"io"

	xls "github.com/extrame/xls"
)

// старые выгрузки POS-систем: чаще cp1252, иногда UTF-8/latin1
var xlsCharsets = []string{"windows-1252", "utf-8", "iso-8859-1"}

const xlsProbeCols = 512

func readXLS(r io.Reader, headerRow int) ([]map[string]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	wb, err := openXLS(b)
	if err != nil {
		return nil, err
	}
	sheet := catalogSheet(wb)
	if sheet == nil {
		return nil, nil
	}

	width := sheetWidth(sheet)
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	last := -1
	for i := 0; i <= int(sheet.MaxRow); i++ {
		cols := make([]string, width)
		if row := sheet.Row(i); row != nil {
			for j := range cols {
				cols[j] = normalizeCell(row.Col(j))
				if cols[j] != "" {
					last = i
				}
			}
		}
		rows = append(rows, cols)
	}
	rows = rows[:last+1]
	if len(rows) == 0 {
		return nil, nil
	}
	h := pickHeader(rows, headerRow)
	return rowsToMaps(rows, h, headerRow), nil
}

func openXLS(b []byte) (*xls.WorkBook, error) {
	var lastErr error
	for _, cs := range xlsCharsets {
		wb, err := xls.OpenReader(bytes.NewReader(b), cs)
		if err == nil && wb != nil {
			return wb, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("xls: failed to open workbook")
	}
	return nil, lastErr
}

// catalogSheet prefers a sheet named like a catalog, else the first one.
func catalogSheet(wb *xls.WorkBook) *xls.WorkSheet {
	n := wb.NumSheets()
	if n == 0 {
		return nil
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		if s := wb.GetSheet(i); s != nil {
			names[i] = s.Name
		}
	}
	want := pickSheet(names)
	for i, name := range names {
		if name == want {
			return wb.GetSheet(i)
		}
	}
	return wb.GetSheet(0)
}

// sheetWidth is the rightmost non-empty column over all rows (at least 1).
func sheetWidth(sheet *xls.WorkSheet) int {
	width := 1
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		for j := xlsProbeCols - 1; j >= width; j-- {
			if normalizeCell(row.Col(j)) != "" {
				width = j + 1
				break
			}
		}
	}
	return width
}
