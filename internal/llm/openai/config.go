package openai

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config for the OpenAI-compatible client.
type Config struct {
	APIKey          string
	BaseURL         string        // default https://api.openai.com/v1
	Model           string        // chat model for order parsing
	TranscribeModel string        // audio model
	Temperature     float32       // 0..2
	Timeout         time.Duration // http client timeout
	MaxHintItems    int           // catalog entries sent with a prompt
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxHintItems <= 0 {
		cfg.MaxHintItems = 400
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.With().Str("component", "openai").Logger(),
	}
}
