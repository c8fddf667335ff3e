package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"label-resolver/internal/common"
	"label-resolver/internal/resolve/model"
)

var hint = []model.CatalogItem{
	{ID: "1", Name: "Brisket"},
	{ID: "4", Name: "Picanha"},
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zerolog.Nop())
}

func TestParseOrder_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		_, _ = io.WriteString(w, chatReply(`{"items":[{"item_id":"4","quantity":3}]}`))
	})

	lines, err := c.ParseOrder(context.Background(), "tres picanhas", "t1", hint)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "4", lines[0].ItemID)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestParseOrder_OffCatalogReplyFailsValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply(`{"items":[{"item_id":"99","quantity":1}]}`))
	})
	_, err := c.ParseOrder(context.Background(), "fraldinha", "t1", hint)
	assert.ErrorIs(t, err, common.ErrFallbackUnavailable)
}

func TestParseOrder_EmptyItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply(`{"items":[]}`))
	})
	_, err := c.ParseOrder(context.Background(), "hmm", "t1", hint)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFallbackUnavailable)
	assert.Contains(t, err.Error(), common.NoValidItems)
}

func TestParseOrder_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, common.ErrInvalidCredential},
		{http.StatusForbidden, common.ErrInvalidCredential},
		{http.StatusTooManyRequests, common.ErrFallbackUnavailable},
		{http.StatusInternalServerError, common.ErrFallbackUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := c.ParseOrder(context.Background(), "brisket", "t1", hint)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestParseOrder_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	_, err := c.ParseOrder(context.Background(), "brisket", "t1", hint)
	assert.ErrorIs(t, err, common.ErrFallbackUnavailable)

	c = NewClient(Config{APIKey: "k"}, zerolog.Nop())
	_, err = c.ParseOrder(context.Background(), "brisket", "t1", nil)
	assert.ErrorIs(t, err, common.ErrFallbackUnavailable)
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "pt", r.FormValue("language"))
		if f, hdr, err := r.FormFile("file"); assert.NoError(t, err) {
			assert.Equal(t, "order.webm", hdr.Filename)
			_ = f.Close()
		}
		_, _ = io.WriteString(w, `{"text":"  dois briskets "}`)
	})

	text, err := c.Transcribe(context.Background(), []byte("RIFF"), "order.webm", "pt")
	require.NoError(t, err)
	assert.Equal(t, "dois briskets", text)
}

func TestTranscribe_Errors(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	_, err := c.Transcribe(context.Background(), []byte("RIFF"), "a.webm", "pt")
	assert.ErrorIs(t, err, common.ErrInvalidCredential)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"text":""}`)
	})
	_, err = c.Transcribe(context.Background(), []byte("RIFF"), "a.webm", "pt")
	assert.ErrorIs(t, err, common.ErrFallbackUnavailable)

	_, err = c.Transcribe(context.Background(), nil, "a.webm", "pt")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
