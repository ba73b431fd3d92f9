package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgc202/go-mistral/httpx"
	"github.com/lgc202/go-mistral/mistralai"
	"github.com/lgc202/go-mistral/transcription"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadProperties_Defaults(t *testing.T) {
	cfg, err := LoadProperties("")
	require.NoError(t, err)

	p := cfg.Get()
	assert.Equal(t, mistralai.DefaultBaseURL, p.BaseURL)
	assert.Equal(t, 120*time.Second, p.Timeout)
	assert.Equal(t, 3, p.Retry.MaxAttempts)
	assert.False(t, p.Retry.RetryPOST)
	assert.Equal(t, mistralai.ChatModelTiny, p.Chat.Model)
	assert.Equal(t, 0.7, p.Chat.Temperature)
	assert.Equal(t, 1.0, p.Chat.TopP)
	assert.Equal(t, "mistral-embed", p.Embedding.Model)
	assert.Equal(t, "float", p.Embedding.EncodingFormat)
	assert.Equal(t, "whisper-1", p.Transcription.Model)
	assert.Equal(t, transcription.DefaultBaseURL, p.Transcription.BaseURL)
	assert.Equal(t, "info", p.Log.Level)
	assert.Empty(t, cfg.Path())
}

func TestLoadProperties_EnvOverrides(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "env-key")
	t.Setenv("MISTRAL_CHAT_MODEL", mistralai.ChatModelLarge)
	t.Setenv("MISTRAL_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("MISTRAL_TIMEOUT", "30s")

	cfg, err := LoadProperties("")
	require.NoError(t, err)

	p := cfg.Get()
	assert.Equal(t, "env-key", p.APIKey)
	assert.Equal(t, mistralai.ChatModelLarge, p.Chat.Model)
	assert.Equal(t, 5, p.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, p.Timeout)
}

func TestLoadProperties_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mistral.yaml")
	writeFile(t, path, `
base_url: https://proxy.internal/mistral
api_key: file-key
chat:
  model: mistral-small-latest
  max_tokens: 512
retry:
  retry_post: true
  initial_backoff: 50ms
`)

	cfg, err := LoadProperties(path)
	require.NoError(t, err)

	p := cfg.Get()
	assert.Equal(t, "https://proxy.internal/mistral", p.BaseURL)
	assert.Equal(t, "file-key", p.APIKey)
	assert.Equal(t, mistralai.ChatModelSmall, p.Chat.Model)
	assert.Equal(t, 512, p.Chat.MaxTokens)
	assert.Equal(t, 0.7, p.Chat.Temperature)
	assert.True(t, p.Retry.RetryPOST)
	assert.Equal(t, 50*time.Millisecond, p.Retry.InitialBackoff)
	assert.Equal(t, path, cfg.Path())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadProperties(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

type watched struct {
	Name string   `mapstructure:"name"`
	Tags []string `mapstructure:"tags"`
}

func TestConfig_GetReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "name: a\ntags: [x, y]\n")

	cfg, err := Load[watched](path)
	require.NoError(t, err)

	v := cfg.Get()
	v.Tags[0] = "mutated"
	assert.Equal(t, []string{"x", "y"}, cfg.Get().Tags)
}

func TestConfig_OnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "name: a\n")

	cfg, err := Load[watched](path)
	require.NoError(t, err)

	var calls atomic.Int32
	var got atomic.Value
	cfg.OnChange(func(old, new watched) {
		if Changed(old.Name, new.Name) {
			calls.Add(1)
			got.Store(new.Name)
		}
	})
	cfg.OnChange(func(old, new watched) { panic("ignored") })

	writeFile(t, path, "name: b\n")

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "b", got.Load())
	assert.Equal(t, "b", cfg.Get().Name)
}

func TestChanged(t *testing.T) {
	assert.False(t, Changed(watched{Name: "a"}, watched{Name: "a"}))
	assert.True(t, Changed(watched{Name: "a"}, watched{Name: "a", Tags: []string{"t"}}))
}

func TestProperties_RetryConfig(t *testing.T) {
	rc := RetryProperties{MaxAttempts: 4, InitialBackoff: time.Second, MaxBackoff: 9 * time.Second}.retryConfig()
	assert.Equal(t, 4, rc.MaxAttempts)
	assert.Equal(t, httpx.ExponentialBackoff{Base: time.Second, Max: 9 * time.Second, Jitter: 0.2}, rc.Backoff)
	assert.False(t, rc.AllowPOST)
	assert.Equal(t, 30*time.Second, rc.MaxRetryAfter)

	rc = RetryProperties{MaxAttempts: 2, RetryPOST: true}.retryConfig()
	assert.True(t, rc.AllowPOST)
}

func TestProperties_ClientConfig(t *testing.T) {
	cfg, err := LoadProperties("")
	require.NoError(t, err)
	p := cfg.Get()
	p.APIKey = "k"

	cc := p.ClientConfig(nil)
	assert.Equal(t, mistralai.DefaultBaseURL, cc.BaseURL)
	assert.Equal(t, "k", cc.APIKey)
	assert.Equal(t, mistralai.ChatModelTiny, cc.DefaultModel)
	assert.Len(t, cc.HTTPOptions, 2)

	_, err = mistralai.New(cc)
	require.NoError(t, err)
	_, err = transcription.New(p.TranscriptionConfig(nil))
	require.NoError(t, err)

	req := mistralai.NewChatCompletionRequest("", nil, p.ChatOptions()...)
	assert.Nil(t, req.MaxTokens)
	assert.Equal(t, 0.7, *req.Temperature)

	p.Chat.MaxTokens = 64
	req = mistralai.NewChatCompletionRequest("", nil, p.ChatOptions()...)
	assert.Equal(t, 64, *req.MaxTokens)

	ereq, err := mistralai.NewEmbeddingRequest(mistralai.TextInput("x"), p.EmbeddingOptions()...)
	require.NoError(t, err)
	assert.Equal(t, "mistral-embed", ereq.Model)
}

func TestProperties_Redacted(t *testing.T) {
	p := Properties{APIKey: "sk-1234567890abcd", Transcription: TranscriptionProperties{APIKey: "short"}}
	r := p.Redacted()
	assert.Equal(t, "sk-1****abcd", r.APIKey)
	assert.Equal(t, "****", r.Transcription.APIKey)
	assert.Equal(t, "sk-1234567890abcd", p.APIKey)
}
