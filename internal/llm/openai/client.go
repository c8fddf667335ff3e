package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"label-resolver/internal/common"
	"label-resolver/internal/llm"
	"label-resolver/internal/resolve/model"
)

// ParseOrder implements llm.OrderParser over chat/completions with a JSON
// schema restricted to the tenant's item ids.
func (c *Client) ParseOrder(ctx context.Context, text, tenantID string, hint []model.CatalogItem) ([]llm.ParsedLine, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := c.log.With().Str("req_id", rid).Str("tenant", tenantID).Logger()

	if c.cfg.APIKey == "" {
		return nil, common.FallbackUnavailable("remote parser not configured", nil)
	}
	if strings.TrimSpace(text) == "" || len(hint) == 0 {
		return nil, common.FallbackUnavailable(common.NoValidItems, nil)
	}
	if len(hint) > c.cfg.MaxHintItems {
		hint = hint[:c.cfg.MaxHintItems]
	}

	ids := make([]string, 0, len(hint))
	known := make(map[string]struct{}, len(hint))
	for _, it := range hint {
		ids = append(ids, it.ID)
		known[it.ID] = struct{}{}
	}
	schema := llm.BuildOrderJSONSchema(ids)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(text, hint)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	log.Info().Int("text_len", len(text)).Int("hint_items", len(hint)).Str("model", c.cfg.Model).Msg("llm.parse.start")

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.postJSON(ctx, endpoint, body)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("llm.parse.http_error")
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, common.FallbackUnavailable("decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		return nil, common.FallbackUnavailable("no choices in openai response", nil)
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		log.Warn().Err(err).Str("content", string(content)).Msg("llm.parse.schema_validation_failed")
		return nil, common.FallbackUnavailable("schema validation failed", err)
	}

	var out struct {
		Items []llm.ParsedLine `json:"items"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, common.FallbackUnavailable("unmarshal order", err)
	}

	lines := make([]llm.ParsedLine, 0, len(out.Items))
	for _, l := range out.Items {
		if _, ok := known[l.ItemID]; !ok || l.Quantity < 1 {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		log.Info().Dur("elapsed", time.Since(start)).Msg("llm.parse.empty")
		return nil, common.FallbackUnavailable(common.NoValidItems, nil)
	}

	log.Info().Int("items", len(lines)).Dur("elapsed", time.Since(start)).Msg("llm.parse.ok")
	return lines, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, common.Internal("marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, common.Internal("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends req with auth and maps the status to an error kind.
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.FallbackUnavailable("openai unreachable", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn().Err(err).Msg("openai response body close error")
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, common.InvalidCredential("openai rejected the api key", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode/100 != 2:
		return nil, common.FallbackUnavailable("openai request failed", fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(string(raw), 300)))
	}
	return raw, nil
}

func buildSystemPrompt() string {
	parts := []string{
		"You turn kitchen label orders into catalog items.",
		"The order is free text, possibly transcribed speech, in Portuguese or English.",
		"Each line of the order names a quantity and an item; the quantity defaults to 1.",
		"Only use item_id values from the catalog list. Skip anything you cannot match.",
		`Return ONLY JSON of the form {"items":[{"item_id":"...","quantity":1}]}.`,
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(text string, hint []model.CatalogItem) string {
	var b strings.Builder
	b.WriteString("Catalog (id | name | code):\n")
	for _, it := range hint {
		b.WriteString(it.ID)
		b.WriteString(" | ")
		b.WriteString(it.Name)
		b.WriteString(" | ")
		b.WriteString(it.ShortCode)
		b.WriteString("\n")
	}
	b.WriteString("\nOrder:\n")
	b.WriteString(truncate(text, 2000))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
