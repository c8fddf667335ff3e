package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"label-resolver/internal/common"
)

// Transcribe implements llm.Transcriber over audio/transcriptions.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", common.InvalidCredential("transcription api key not configured", nil)
	}
	if len(audio) == 0 {
		return "", common.InvalidInput("empty audio")
	}
	if filename == "" {
		filename = "audio.webm"
	}
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", common.Internal("build multipart", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", common.Internal("build multipart", err)
	}
	_ = mw.WriteField("model", c.cfg.TranscribeModel)
	if language != "" {
		_ = mw.WriteField("language", language)
	}
	if err := mw.Close(); err != nil {
		return "", common.Internal("build multipart", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", common.Internal("build request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, err := c.do(req)
	if err != nil {
		c.log.Error().Err(err).Str("language", language).Dur("elapsed", time.Since(start)).Msg("llm.transcribe.http_error")
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", common.FallbackUnavailable("decode transcription", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", common.FallbackUnavailable("empty transcription", nil)
	}
	c.log.Info().Str("language", language).Int("text_len", len(text)).Dur("elapsed", time.Since(start)).Msg("llm.transcribe.ok")
	return text, nil
}
