package fileio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	excelize "github.com/xuri/excelize/v2"

	"label-resolver/internal/resolve/model"
)

const semicolonCSV = "Nome;Codigo;Metodos;Preferido\n" +
	"Brisket;B1;Resfriado, Congelado;congelado\n" +
	"Cupim;;resfriado;\n" +
	"Sem metodo;X;;\n" +
	";;;\n" +
	"Brisket;B2;resfriado;\n"

func TestReadCatalog_SemicolonCSV(t *testing.T) {
	items, err := ReadCatalog(strings.NewReader(semicolonCSV), "itens.csv", 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, model.CatalogItem{
		ID:              "BRISKET",
		Name:            "Brisket",
		ShortCode:       "B1",
		EnabledMethods:  []string{"resfriado", "congelado"},
		PreferredMethod: "congelado",
	}, items[0])
	assert.Equal(t, "CUPIM", items[1].ID)
	assert.Equal(t, []string{"resfriado"}, items[1].EnabledMethods)
	assert.Empty(t, items[1].PreferredMethod)
}

func TestReadCatalog_CommaCSVWithIDs(t *testing.T) {
	csv := "\xEF\xBB\xBFid,name,short code,storage methods,preferred method\n" +
		"10,Pork Ribs,\"1 234\",\"chilled|frozen\",hot hold\n" +
		"11,Picanha,123.0,frozen,frozen\n"
	items, err := ReadCatalog(strings.NewReader(csv), "catalog.CSV", 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "10", items[0].ID)
	assert.Equal(t, "1234", items[0].ShortCode)
	assert.Equal(t, []string{"chilled", "frozen"}, items[0].EnabledMethods)
	assert.Empty(t, items[0].PreferredMethod, "hot_hold is not enabled for the item")
	assert.Equal(t, "123", items[1].ShortCode)
	assert.Equal(t, "frozen", items[1].PreferredMethod)
}

func TestReadCatalog_NoNameColumn(t *testing.T) {
	_, err := ReadCatalog(strings.NewReader("a,b\n1,2\n"), "x.csv", 1)
	assert.ErrorContains(t, err, "no name column")
}

func TestReadCatalog_Unsupported(t *testing.T) {
	_, err := ReadCatalog(strings.NewReader(""), "x.pdf", 1)
	assert.ErrorContains(t, err, "unsupported file")
}

func TestReadCatalog_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("Itens")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"nothing", "here"}))
	require.NoError(t, f.SetSheetRow("Itens", "A1", &[]any{"Produto", "Cod", "Armazenamento"}))
	require.NoError(t, f.SetSheetRow("Itens", "A2", &[]any{"Coração de Frango", 42, "Resfriado/Congelado"}))
	require.NoError(t, f.SetSheetRow("Itens", "A3", &[]any{"Fraldinha", "", "congelado"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	items, err := ReadCatalog(buf, "catalogo.xlsx", 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "CORACAO DE FRANGO", items[0].ID)
	assert.Equal(t, "Coração de Frango", items[0].Name)
	assert.Equal(t, "42", items[0].ShortCode)
	assert.Equal(t, []string{"resfriado", "congelado"}, items[0].EnabledMethods)
	assert.Equal(t, "FRALDINHA", items[1].ID)
}

func TestCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itens.csv")
	require.NoError(t, os.WriteFile(path, []byte(semicolonCSV), 0o644))
	src := CatalogFile{TenantID: "t1", Path: path}

	items, err := src.ListActiveItems(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = src.ListActiveItems(context.Background(), "t2")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestResolveKey(t *testing.T) {
	rec := map[string]string{"Nome do Item": "", "Código": "", "ID": ""}
	assert.Equal(t, "Nome do Item", resolveKey(rec, colName))
	assert.Equal(t, "Código", resolveKey(rec, colCode))
	assert.Equal(t, "ID", resolveKey(rec, colID))
	assert.Equal(t, "", resolveKey(rec, colMethods))
	assert.Equal(t, "", resolveKey(rec, ""))
}

func TestGuessDelimiter(t *testing.T) {
	assert.Equal(t, ';', guessDelimiter([]byte("a;b;c\n1,5;2;3")))
	assert.Equal(t, ',', guessDelimiter([]byte("a,b,c")))
	assert.Equal(t, '\t', guessDelimiter([]byte("a\tb\tc")))
	assert.Equal(t, ',', guessDelimiter(nil))
}

func TestPickSheet(t *testing.T) {
	assert.Equal(t, " ITENS ", pickSheet([]string{"Resumo", " ITENS "}))
	assert.Equal(t, "Resumo", pickSheet([]string{"Resumo", "Outro"}))
	assert.Equal(t, "", pickSheet(nil))
}
