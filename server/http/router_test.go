package serverhttp

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"label-resolver/internal/alias"
	"label-resolver/internal/catalog"
	"label-resolver/internal/config"
	"label-resolver/internal/order"
	resHnd "label-resolver/internal/resolve/handler"
	"label-resolver/internal/resolve/model"
	"label-resolver/internal/resolve/service"
	"label-resolver/internal/store/sqlite"
)

type testServer struct {
	srv    *httptest.Server
	db     *sqlite.Store
	dbPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "labels.db")
	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.SaveItems(context.Background(), "t1", []model.CatalogItem{
		{ID: "1", Name: "Brisket", EnabledMethods: []string{"chilled"}},
		{ID: "2", Name: "Cupim", EnabledMethods: []string{"chilled", "frozen"}},
		{ID: "4", Name: "Picanha", EnabledMethods: []string{"frozen"}},
	}))

	cache := catalog.NewCache(db, log)
	aliases := alias.NewStore(db, cache, log)
	resolver := service.NewResolver(cache, aliases, log)
	orders := order.NewService(order.Deps{
		Catalog:    cache,
		Resolver:   resolver,
		Dispatcher: db,
		Learner:    aliases,
	}, order.Config{}, log)
	h := resHnd.New(resHnd.Deps{
		Segmenter: service.NewSegmenter("pt"),
		Resolver:  resolver,
		Orders:    orders,
		Catalog:   cache,
		Writer:    db,
		Aliases:   aliases,
	}, 1, log)

	cfg := config.Config{AllowOrigins: []string{"*"}, MaxUploadMB: 1}
	srv := httptest.NewServer(NewRouter(cfg, h, db, log))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, db: db, dbPath: dbPath}
}

// count reads a tenant's row count straight from the database file.
func (ts *testServer) count(t *testing.T, table, tenantID string) int {
	t.Helper()
	conn, err := sql.Open("sqlite", ts.dbPath)
	require.NoError(t, err)
	defer conn.Close()
	var n int
	require.NoError(t, conn.QueryRowContext(context.Background(),
		`SELECT COUNT(1) FROM `+table+` WHERE tenant_id = ?`, tenantID).Scan(&n))
	return n
}

func (ts *testServer) post(t *testing.T, path, tenant, contentType string, body []byte) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (ts *testServer) postJSON(t *testing.T, path string, v any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return ts.post(t, path, "t1", "application/json", b)
}

func multipartBody(t *testing.T, field, filename string, data []byte) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.Bytes()
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestResolve(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.postJSON(t, "/resolve", map[string]string{"text": "10 brisket 5 cupim"})
	require.Equal(t, http.StatusOK, code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "1", first["itemId"])
	assert.Equal(t, 10.0, first["segment"].(map[string]any)["quantity"])
	assert.Equal(t, "high", body["aggregate"].(map[string]any)["tier"])
}

func TestResolve_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.post(t, "/resolve", "", "application/json", []byte(`{"text":"brisket"}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["kind"])

	code, body = ts.post(t, "/resolve", "t1", "application/json", []byte(`{"text":`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["kind"])

	code, _ = ts.post(t, "/resolve", "t1", "application/json", []byte(`{"text":"brisket","extra":1}`))
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.postJSON(t, "/resolve", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "no valid items found", body["error"])

	code, _ = ts.postJSON(t, "/resolve", map[string]string{"text": strings.Repeat("a", 5000)})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPreview_Unresolved(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.postJSON(t, "/orders/preview", map[string]string{"text": "xyzzy"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "unresolved", body["kind"])
	assert.Equal(t, "no valid items found", body["error"])
}

func TestPreview_OK(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.postJSON(t, "/orders/preview", map[string]string{"text": "2 picanha"})
	require.Equal(t, http.StatusOK, code)
	lines := body["lines"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, "4", line["itemId"])
	assert.Equal(t, 2.0, line["quantity"])
	assert.Equal(t, "accept", line["decision"])
	assert.Equal(t, "local", line["source"])
}

func TestConfirm(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.postJSON(t, "/orders/confirm", map[string]any{
		"lines": []map[string]any{{"phrase": "boi", "itemId": "4", "quantity": 2}},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["learned"])

	assert.Equal(t, 1, ts.count(t, "label_records", "t1"))
	assert.Equal(t, 1, ts.count(t, "aliases", "t1"))

	// confirming the same phrase again prints but learns nothing new
	code, body = ts.postJSON(t, "/orders/confirm", map[string]any{
		"lines": []map[string]any{{"phrase": "boi", "itemId": "4", "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["learned"])
	assert.Equal(t, 2, ts.count(t, "label_records", "t1"))
	assert.Equal(t, 1, ts.count(t, "aliases", "t1"))

	// the learned phrase now resolves through the alias
	code, body = ts.postJSON(t, "/resolve", map[string]string{"text": "boi"})
	require.Equal(t, http.StatusOK, code)
	entry := body["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "4", entry["itemId"])
	assert.Equal(t, true, entry["viaAlias"])
}

func TestConfirm_Invalid(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.postJSON(t, "/orders/confirm", map[string]any{
		"lines": []map[string]any{{"itemId": "404", "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["kind"])

	code, _ = ts.postJSON(t, "/orders/confirm", map[string]any{"lines": []any{}})
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Equal(t, 0, ts.count(t, "label_records", "t1"))
}

func TestVoice_NoTranscriber(t *testing.T) {
	ts := newTestServer(t)
	ct, body := multipartBody(t, "audio", "order.webm", []byte("RIFF...."))
	code, out := ts.post(t, "/orders/voice", "t1", ct, body)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "fallback_unavailable", out["kind"])

	code, _ = ts.post(t, "/orders/voice", "t1", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCatalogImportAndRefresh(t *testing.T) {
	ts := newTestServer(t)

	// warm the cache so the import has something to invalidate
	code, _ := ts.postJSON(t, "/resolve", map[string]string{"text": "fraldinha"})
	require.Equal(t, http.StatusOK, code)

	csv := "id,nome,metodos\n9,Fraldinha,congelado\n10,Sem metodo,\n"
	ct, body := multipartBody(t, "file", "itens.csv", []byte(csv))
	code, out := ts.post(t, "/catalog/import", "t1", ct, body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, out["items"])

	code, out = ts.postJSON(t, "/resolve", map[string]string{"text": "2 fraldinha"})
	require.Equal(t, http.StatusOK, code)
	entry := out["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "9", entry["itemId"])

	code, out = ts.post(t, "/catalog/refresh", "t1", "application/json", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4.0, out["items"])

	ct, body = multipartBody(t, "file", "itens.pdf", []byte("%PDF"))
	code, _ = ts.post(t, "/catalog/import", "t1", ct, body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateAlias(t *testing.T) {
	ts := newTestServer(t)

	code, out := ts.postJSON(t, "/aliases", map[string]string{"phrase": "Peito Bovino", "itemId": "1"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "PEITO BOVINO", out["phrase"])

	assert.Equal(t, true, out["created"])

	// rebinding an existing phrase leaves it alone
	code, out = ts.postJSON(t, "/aliases", map[string]string{"phrase": "peito bovino", "itemId": "2"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["created"])

	code, _ = ts.postJSON(t, "/aliases", map[string]string{"phrase": "x", "itemId": "404"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.postJSON(t, "/aliases", map[string]string{"phrase": " ", "itemId": "1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = ts.postJSON(t, "/resolve", map[string]string{"text": "peito bovino"})
	require.Equal(t, http.StatusOK, code)
	entry := out["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "1", entry["itemId"])
	assert.Equal(t, true, entry["viaAlias"])
}
