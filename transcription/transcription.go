// Package transcription turns audio into text through an OpenAI-compatible
// POST /v1/audio/transcriptions endpoint.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lgc202/go-mistral/httpx"
	"github.com/lgc202/go-mistral/mistralai"
	"github.com/lgc202/go-mistral/version"
)

const (
	DefaultBaseURL     = "https://api.openai.com"
	Path               = "/v1/audio/transcriptions"
	DefaultModel       = "whisper-1"
	DefaultTemperature = 0.7
)

type ResponseFormat string

const (
	FormatJSON        ResponseFormat = "json"
	FormatText        ResponseFormat = "text"
	FormatSRT         ResponseFormat = "srt"
	FormatVerboseJSON ResponseFormat = "verbose_json"
	FormatVTT         ResponseFormat = "vtt"
)

// Request describes one audio file to transcribe. Zero fields fall back to the
// client defaults.
type Request struct {
	Audio    io.Reader
	FileName string

	Model       string
	Language    string
	Prompt      string
	Temperature *float64
	Format      ResponseFormat

	// TimestampGranularities is only honoured with FormatVerboseJSON.
	TimestampGranularities []string
}

type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
	Words    []Word    `json:"words,omitempty"`

	Metadata Metadata `json:"-"`
}

type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Metadata is read from the response headers.
type Metadata struct {
	RequestID string
	RateLimit RateLimit
}

type RateLimit struct {
	RequestsLimit     int
	RequestsRemaining int
	RequestsReset     time.Duration
	TokensLimit       int
	TokensRemaining   int
	TokensReset       time.Duration
}

type Config struct {
	BaseURL string
	APIKey  string

	Model string
	// Temperature defaults to DefaultTemperature when nil; point at 0 for
	// deterministic output.
	Temperature *float64

	HTTPClient   *httpx.Client
	HTTPOptions  []httpx.Option
	ErrorHandler mistralai.ErrorHandler
	Logger       *slog.Logger
}

// DefaultConfig uses whisper-1 at temperature 0.7.
func DefaultConfig() Config {
	t := DefaultTemperature
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: &t,
	}
}

type Client struct {
	http         *httpx.Client
	apiKey       string
	model        string
	temperature  float64
	errorHandler mistralai.ErrorHandler
	logger       *slog.Logger
}

func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		baseURL := strings.TrimSpace(cfg.BaseURL)
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
		opts := append([]httpx.Option{
			httpx.WithBaseURL(baseURL),
			httpx.WithUserAgent(version.UserAgent()),
		}, cfg.HTTPOptions...)
		var err error
		if hc, err = httpx.New(opts...); err != nil {
			return nil, fmt.Errorf("transcription: build http client: %w", err)
		}
		hc.WithHooks(nil, []httpx.AfterHook{httpx.LogHook(logger)})
	}
	c := &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        cfg.Model,
		temperature:  DefaultTemperature,
		errorHandler: cfg.ErrorHandler,
		logger:       logger,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if cfg.Temperature != nil {
		c.temperature = *cfg.Temperature
	}
	if c.errorHandler == nil {
		c.errorHandler = mistralai.DefaultErrorHandler
	}
	return c, nil
}

func (c *Client) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	if req.Audio == nil {
		return nil, fmt.Errorf("%w: transcription audio is required", mistralai.ErrInvalidRequest)
	}
	format := req.Format
	if format == "" {
		format = FormatJSON
	}

	body, contentType, err := c.encodeForm(req, format)
	if err != nil {
		return nil, err
	}

	opts := []httpx.RequestOption{
		httpx.WithBodyBytes(body),
		httpx.WithContentType(contentType),
	}
	if c.apiKey != "" {
		opts = append(opts, httpx.WithRequestBearerToken(c.apiKey))
	}
	httpReq, err := c.http.NewRequest(ctx, http.MethodPost, Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("transcription: build request: %w", err)
	}
	resp, err := c.http.DoStatus(httpReq)
	if err != nil {
		if he, ok := httpx.AsError(err); ok && he.StatusCode != 0 {
			return nil, c.errorHandler(he)
		}
		return nil, fmt.Errorf("transcription: POST %s: %w", Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transcription: read response: %w", err)
	}

	var out Transcript
	switch format {
	case FormatJSON, FormatVerboseJSON:
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, &mistralai.DecodeError{Frame: raw, Cause: err}
		}
	default:
		out.Text = string(raw)
	}
	out.Metadata = metadataFrom(resp.Header, httpReq.Header)
	c.logger.Debug("audio transcribed", "model", c.modelFor(req), "format", format, "chars", len(out.Text))
	return &out, nil
}

func (c *Client) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}

func (c *Client) encodeForm(req Request, format ResponseFormat) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := filepath.Base(req.FileName)
	if req.FileName == "" {
		name = "audio"
	}
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("transcription: encode form: %w", err)
	}
	if _, err := io.Copy(fw, req.Audio); err != nil {
		return nil, "", fmt.Errorf("transcription: read audio: %w", err)
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	fields := [][2]string{
		{"model", c.modelFor(req)},
		{"temperature", strconv.FormatFloat(temperature, 'f', -1, 64)},
		{"response_format", string(format)},
		{"language", req.Language},
		{"prompt", req.Prompt},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("transcription: encode form: %w", err)
		}
	}
	for _, g := range req.TimestampGranularities {
		if err := w.WriteField("timestamp_granularities[]", g); err != nil {
			return nil, "", fmt.Errorf("transcription: encode form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("transcription: encode form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func metadataFrom(h, reqHeader http.Header) Metadata {
	md := Metadata{RequestID: h.Get("X-Request-Id")}
	if md.RequestID == "" {
		md.RequestID = reqHeader.Get("X-Request-Id")
	}
	md.RateLimit = RateLimit{
		RequestsLimit:     headerInt(h, "X-Ratelimit-Limit-Requests"),
		RequestsRemaining: headerInt(h, "X-Ratelimit-Remaining-Requests"),
		RequestsReset:     headerDuration(h, "X-Ratelimit-Reset-Requests"),
		TokensLimit:       headerInt(h, "X-Ratelimit-Limit-Tokens"),
		TokensRemaining:   headerInt(h, "X-Ratelimit-Remaining-Tokens"),
		TokensReset:       headerDuration(h, "X-Ratelimit-Reset-Tokens"),
	}
	return md
}

func headerInt(h http.Header, key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(h.Get(key)))
	return n
}

func headerDuration(h http.Header, key string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(h.Get(key)))
	return d
}
