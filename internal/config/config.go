package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	LogFormat    string // console | json
	MaxUploadMB  int
	LogFile      string

	DBDriver string // sqlite | postgres
	DBURL    string // file path for sqlite, DSN for postgres

	CatalogTTL time.Duration
	NumberLang string   // cardinal words used by the segmenter
	VoiceLangs []string // transcription candidates

	// RemoteFallback enables the LLM parser for low-confidence lines.
	RemoteFallback bool
	OpenAI         OpenAIConfig
}

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
	Timeout         time.Duration
}

func Load() Config {
	port, _ := strconv.Atoi(getenv("PORT", "8082"))
	mb, _ := strconv.Atoi(getenv("MAX_UPLOAD_MB", "32"))
	origins := strings.Split(getenv("ALLOW_ORIGINS", "*"), ",")
	return Config{
		Host:         getenv("HOST", "127.0.0.1"),
		Port:         port,
		AllowOrigins: origins,
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    strings.ToLower(getenv("LOG_FORMAT", "console")),
		MaxUploadMB:  mb,
		LogFile:      getenv("LOG_FILE", "logs/label-resolver.log"),

		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBURL:    getenv("DB_URL", "data/label-resolver.db"),

		CatalogTTL: getDuration("CATALOG_TTL", 120*time.Second),
		NumberLang: getenv("NUMBER_LANG", "pt"),
		VoiceLangs: splitList(getenv("VOICE_LANGUAGES", "pt,en")),

		RemoteFallback: getBool("REMOTE_FALLBACK", false),
		OpenAI: OpenAIConfig{
			APIKey:          os.Getenv("OPENAI_API_KEY"),
			BaseURL:         getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:           getenv("OPENAI_MODEL", "gpt-4o-mini"),
			TranscribeModel: getenv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
			Timeout:         getDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
	}
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Validate rejects combinations the service cannot run with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBURL == "" {
		return errors.New("DB_URL is required")
	}
	if c.RemoteFallback && c.OpenAI.APIKey == "" {
		return errors.New("REMOTE_FALLBACK needs OPENAI_API_KEY")
	}
	if c.Port <= 0 {
		return errors.New("PORT must be positive")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
