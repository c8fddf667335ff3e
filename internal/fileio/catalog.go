package fileio

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"label-resolver/internal/resolve/model"
	"label-resolver/internal/resolve/service"
	"label-resolver/internal/utils"
)

// Column names accepted for each catalog field, alternatives separated by "|".
const (
	colID        = "id|item id|codigo interno"
	colName      = "name|nome|item|produto|descricao"
	colCode      = "code|short code|codigo|cod|atalho"
	colMethods   = "methods|storage methods|metodos|armazenamento|conservacao"
	colPreferred = "preferred|preferred method|preferido|metodo preferido"
)

var reListSep = regexp.MustCompile(`[,;|/]+`)

// ReadCatalog reads catalog items from a .csv/.xls/.xlsx sheet with a header row.
// Rows without a name or without any storage method are skipped.
func ReadCatalog(r io.Reader, filename string, headerRow int) ([]model.CatalogItem, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	recs, err := ReadAnyMaps(r, filename, headerRow)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	keys := map[string]string{
		colID:        resolveKey(recs[0], colID),
		colName:      resolveKey(recs[0], colName),
		colCode:      resolveKey(recs[0], colCode),
		colMethods:   resolveKey(recs[0], colMethods),
		colPreferred: resolveKey(recs[0], colPreferred),
	}
	if keys[colName] == "" {
		return nil, fmt.Errorf("%s: no name column", filename)
	}

	seen := make(map[string]struct{}, len(recs))
	out := make([]model.CatalogItem, 0, len(recs))
	for _, rec := range recs {
		name := strings.TrimSpace(rec[keys[colName]])
		if name == "" {
			continue
		}
		it := model.CatalogItem{
			ID:              strings.TrimSpace(rec[keys[colID]]),
			Name:            name,
			ShortCode:       utils.CleanCode(rec[keys[colCode]]),
			EnabledMethods:  splitMethods(rec[keys[colMethods]]),
			PreferredMethod: normMethod(rec[keys[colPreferred]]),
		}
		if it.ID == "" {
			// stable across re-imports of the same sheet
			it.ID = service.Normalize(name)
		}
		if len(it.EnabledMethods) == 0 {
			continue
		}
		if it.PreferredMethod != "" && !it.HasMethod(it.PreferredMethod) {
			it.PreferredMethod = ""
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}

func splitMethods(s string) []string {
	var out []string
	for _, p := range reListSep.Split(s, -1) {
		m := normMethod(p)
		if m == "" {
			continue
		}
		dup := false
		for _, x := range out {
			if x == m {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, m)
		}
	}
	return out
}

// storage method tags are lower-case, accent-free, underscore separated
func normMethod(s string) string {
	n := service.Normalize(s)
	return strings.ToLower(strings.ReplaceAll(n, " ", "_"))
}

// CatalogFile serves one spreadsheet as the catalog of a single tenant.
type CatalogFile struct {
	TenantID string
	Path     string
}

// ListActiveItems implements catalog.Reader. Other tenants get nothing.
func (f CatalogFile) ListActiveItems(_ context.Context, tenantID string) ([]model.CatalogItem, error) {
	if tenantID != f.TenantID {
		return nil, nil
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadCatalog(fh, f.Path, 1)
}
