package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/lgc202/go-mistral/httpx"
	"github.com/lgc202/go-mistral/mistralai"
	"github.com/lgc202/go-mistral/transcription"
)

// EnvPrefix prefixes every environment override, e.g. MISTRAL_API_KEY or
// MISTRAL_CHAT_MODEL.
const EnvPrefix = "MISTRAL"

// Properties is the file/env surface of the clients.
type Properties struct {
	BaseURL string        `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	APIKey  string        `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`

	Retry         RetryProperties         `mapstructure:"retry" json:"retry" yaml:"retry"`
	Chat          ChatProperties          `mapstructure:"chat" json:"chat" yaml:"chat"`
	Embedding     EmbeddingProperties     `mapstructure:"embedding" json:"embedding" yaml:"embedding"`
	Transcription TranscriptionProperties `mapstructure:"transcription" json:"transcription" yaml:"transcription"`
	Log           LogProperties           `mapstructure:"log" json:"log" yaml:"log"`
}

type RetryProperties struct {
	MaxAttempts    int           `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" json:"max_backoff" yaml:"max_backoff"`
	// RetryPOST allows replaying completions; a retried completion may be billed twice.
	RetryPOST bool `mapstructure:"retry_post" json:"retry_post" yaml:"retry_post"`
}

type ChatProperties struct {
	Model       string  `mapstructure:"model" json:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" json:"temperature" yaml:"temperature"`
	TopP        float64 `mapstructure:"top_p" json:"top_p" yaml:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	SafePrompt  bool    `mapstructure:"safe_prompt" json:"safe_prompt" yaml:"safe_prompt"`
}

type EmbeddingProperties struct {
	Model          string `mapstructure:"model" json:"model" yaml:"model"`
	EncodingFormat string `mapstructure:"encoding_format" json:"encoding_format" yaml:"encoding_format"`
}

type TranscriptionProperties struct {
	BaseURL     string  `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	APIKey      string  `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
	Model       string  `mapstructure:"model" json:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" json:"temperature" yaml:"temperature"`
}

type LogProperties struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
}

// DefaultValues lists every key so that environment overrides resolve.
func DefaultValues() map[string]any {
	return map[string]any{
		"base_url": mistralai.DefaultBaseURL,
		"api_key":  "",
		"timeout":  120 * time.Second,

		"retry.max_attempts":    3,
		"retry.initial_backoff": 200 * time.Millisecond,
		"retry.max_backoff":     3 * time.Second,
		"retry.retry_post":      false,

		"chat.model":       mistralai.DefaultChatModel,
		"chat.temperature": mistralai.DefaultTemperature,
		"chat.top_p":       mistralai.DefaultTopP,
		"chat.max_tokens":  0,
		"chat.safe_prompt": false,

		"embedding.model":           mistralai.DefaultEmbeddingModel,
		"embedding.encoding_format": mistralai.DefaultEncodingFormat,

		"transcription.base_url":    transcription.DefaultBaseURL,
		"transcription.api_key":     "",
		"transcription.model":       transcription.DefaultModel,
		"transcription.temperature": transcription.DefaultTemperature,

		"log.level": "info",
	}
}

// LoadProperties reads path (optional) over DefaultValues with MISTRAL_* overrides.
func LoadProperties(path string) (*Config[Properties], error) {
	return Load(path,
		WithDefaults[Properties](DefaultValues()),
		WithEnv[Properties](EnvPrefix),
	)
}

// HTTPOptions maps timeout and retry settings onto httpx.
func (p Properties) HTTPOptions() []httpx.Option {
	var opts []httpx.Option
	if p.Timeout > 0 {
		opts = append(opts, httpx.WithTimeout(p.Timeout))
	}
	opts = append(opts, httpx.WithRetry(p.Retry.retryConfig()))
	return opts
}

func (r RetryProperties) retryConfig() httpx.RetryConfig {
	rc := httpx.DefaultRetryConfig()
	rc.MaxAttempts = r.MaxAttempts
	backoff := httpx.DefaultBackoff().(httpx.ExponentialBackoff)
	if r.InitialBackoff > 0 {
		backoff.Base = r.InitialBackoff
	}
	if r.MaxBackoff > 0 {
		backoff.Max = r.MaxBackoff
	}
	rc.Backoff = backoff
	rc.AllowPOST = r.RetryPOST
	return rc
}

// ClientConfig builds the chat/embeddings client configuration.
func (p Properties) ClientConfig(logger *slog.Logger) mistralai.Config {
	return mistralai.Config{
		BaseURL:      p.BaseURL,
		APIKey:       p.APIKey,
		DefaultModel: p.Chat.Model,
		HTTPOptions:  p.HTTPOptions(),
		Logger:       logger,
	}
}

// ChatOptions turns the chat section into request options.
func (p Properties) ChatOptions() []mistralai.RequestOption {
	opts := []mistralai.RequestOption{
		mistralai.WithTemperature(p.Chat.Temperature),
		mistralai.WithTopP(p.Chat.TopP),
		mistralai.WithSafePrompt(p.Chat.SafePrompt),
	}
	if p.Chat.MaxTokens > 0 {
		opts = append(opts, mistralai.WithMaxTokens(p.Chat.MaxTokens))
	}
	return opts
}

func (p Properties) EmbeddingOptions() []mistralai.EmbeddingOption {
	return []mistralai.EmbeddingOption{
		mistralai.WithEmbeddingModel(p.Embedding.Model),
		mistralai.WithEncodingFormat(p.Embedding.EncodingFormat),
	}
}

func (p Properties) TranscriptionConfig(logger *slog.Logger) transcription.Config {
	return transcription.Config{
		BaseURL:     p.Transcription.BaseURL,
		APIKey:      p.Transcription.APIKey,
		Model:       p.Transcription.Model,
		Temperature: &p.Transcription.Temperature,
		HTTPOptions: p.HTTPOptions(),
		Logger:      logger,
	}
}

// Redacted masks secrets for display.
func (p Properties) Redacted() Properties {
	p.APIKey = mask(p.APIKey)
	p.Transcription.APIKey = mask(p.Transcription.APIKey)
	return p
}

func mask(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}
