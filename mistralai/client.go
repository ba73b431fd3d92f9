package mistralai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lgc202/go-mistral/httpx"
	"github.com/lgc202/go-mistral/internal/sse"
	"github.com/lgc202/go-mistral/version"
)

const (
	DefaultBaseURL = "https://api.mistral.ai"

	ChatCompletionsPath = "/v1/chat/completions"
	EmbeddingsPath      = "/v1/embeddings"
)

// Config is read once by New.
type Config struct {
	// BaseURL defaults to DefaultBaseURL. Ignored when HTTPClient is set.
	BaseURL string
	APIKey  string

	// DefaultModel fills chat requests that leave Model empty. Defaults to DefaultChatModel.
	DefaultModel string

	// HTTPClient is used as is when set; it must carry the base URL.
	HTTPClient *httpx.Client
	// HTTPOptions are applied when New builds its own httpx.Client.
	HTTPOptions []httpx.Option

	// ErrorHandler maps non-2xx responses. Defaults to DefaultErrorHandler.
	ErrorHandler ErrorHandler

	Logger *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	http         *httpx.Client
	apiKey       string
	defaultModel string
	errorHandler ErrorHandler
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
		opts := []httpx.Option{
			httpx.WithBaseURL(baseURL),
			httpx.WithUserAgent(version.UserAgent()),
		}
		opts = append(opts, cfg.HTTPOptions...)
		var err error
		hc, err = httpx.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("mistralai: build http client: %w", err)
		}
		hc.WithHooks(nil, []httpx.AfterHook{httpx.LogHook(logger)})
	}

	c := &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		defaultModel: cfg.DefaultModel,
		errorHandler: cfg.ErrorHandler,
		logger:       logger,
	}
	if c.defaultModel == "" {
		c.defaultModel = DefaultChatModel
	}
	if c.errorHandler == nil {
		c.errorHandler = DefaultErrorHandler
	}
	return c, nil
}

// ChatCompletion performs a synchronous chat completion. req.Stream must be false.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletion, error) {
	if req.Stream {
		return nil, fmt.Errorf("%w: ChatCompletion requires stream=false, use ChatCompletionStream", ErrStreamMismatch)
	}
	req = c.withDefaultModel(req)

	resp, err := c.post(ctx, ChatCompletionsPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ChatCompletion
	if err := c.decode(resp.Body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatCompletionStream starts a streamed chat completion. req.Stream must be true.
// The caller owns the returned stream and must Close it or drain it.
func (c *Client) ChatCompletionStream(ctx context.Context, req ChatCompletionRequest) (*ChunkStream, error) {
	if !req.Stream {
		return nil, fmt.Errorf("%w: ChatCompletionStream requires stream=true, use ChatCompletion", ErrStreamMismatch)
	}
	req = c.withDefaultModel(req)

	resp, err := c.post(ctx, ChatCompletionsPath, req, httpx.WithHeader("Accept", "text/event-stream"))
	if err != nil {
		return nil, err
	}
	s := NewChunkStream(sse.NewFrames(resp.Body), resp.Body)
	s.logger = c.logger
	return s, nil
}

// Embeddings computes embeddings for the request input.
func (c *Client) Embeddings(ctx context.Context, req EmbeddingRequest) (*EmbeddingList, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = DefaultEmbeddingModel
	}
	if req.EncodingFormat == "" {
		req.EncodingFormat = DefaultEncodingFormat
	}

	// Embedding the same input twice is harmless, so transient failures are replayed.
	resp, err := c.post(ctx, EmbeddingsPath, req, httpx.WithIdempotent())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out EmbeddingList
	if err := c.decode(resp.Body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) withDefaultModel(req ChatCompletionRequest) ChatCompletionRequest {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	return req
}

func (c *Client) post(ctx context.Context, path string, body any, opts ...httpx.RequestOption) (*http.Response, error) {
	if c.apiKey != "" {
		opts = append(opts, httpx.WithRequestBearerToken(c.apiKey))
	}
	httpReq, err := c.http.NewJSONRequest(ctx, http.MethodPost, path, body, opts...)
	if err != nil {
		return nil, fmt.Errorf("mistralai: build request: %w", err)
	}
	resp, err := c.http.DoStatus(httpReq)
	if err != nil {
		if he, ok := httpx.AsError(err); ok && he.StatusCode != 0 {
			return nil, c.errorHandler(he)
		}
		return nil, fmt.Errorf("mistralai: POST %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) decode(r io.Reader, dst any) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("mistralai: read response: %w", err)
	}
	return unmarshalObject(b, dst)
}

var errNotObject = errors.New("payload is not a JSON object")

// unmarshalObject decodes b into dst and rejects payloads that are not an
// object, such as null, which json.Unmarshal would accept as a no-op.
func unmarshalObject(b []byte, dst any) error {
	if t := bytes.TrimSpace(b); len(t) == 0 || t[0] != '{' {
		return decodeError(b, errNotObject)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return decodeError(b, err)
	}
	return nil
}
