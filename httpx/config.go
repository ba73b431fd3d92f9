package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config configures a Client. Use DefaultConfig() as a baseline.
type Config struct {
	// BaseURL is the API root, e.g. https://api.mistral.ai. Relative request
	// paths resolve under its path, so a /v1 suffix here is kept.
	BaseURL string

	// Timeout bounds the whole call including retries and, for streamed
	// responses, reading the body. The earlier of this and the context deadline wins.
	Timeout time.Duration

	// Transport defaults to DefaultTransport().
	Transport http.RoundTripper

	// DefaultHeaders are copied into every request (caller headers win).
	DefaultHeaders http.Header

	// BearerToken is the API key, sent unless the request supplies its own.
	BearerToken string

	UserAgent string

	Retry RetryConfig

	// MaxErrorBodyBytes limits how much of a non-2xx body is kept in Error.RawBody.
	// Zero means DefaultMaxErrorBodyBytes; negative keeps nothing.
	MaxErrorBodyBytes int64

	RequestID RequestIDConfig
}

const DefaultMaxErrorBodyBytes int64 = 64 << 10 // 64KiB

// DefaultConfig returns a conservative baseline. The timeout is generous because
// chat completions on large models routinely take tens of seconds.
func DefaultConfig() Config {
	return Config{
		Timeout:           120 * time.Second,
		Transport:         DefaultTransport(),
		DefaultHeaders:    make(http.Header),
		Retry:             DefaultRetryConfig(),
		MaxErrorBodyBytes: DefaultMaxErrorBodyBytes,
		RequestID:         DefaultRequestIDConfig(),
	}
}

func (cfg Config) baseURL() (*url.URL, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: cfg.BaseURL, Err: errors.New("base url must be absolute")}
	}
	if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// withDefaults fills the zero fields a hand-built Config leaves empty.
func (cfg Config) withDefaults() Config {
	if cfg.Transport == nil {
		cfg.Transport = DefaultTransport()
	}
	cfg.DefaultHeaders = cfg.DefaultHeaders.Clone()
	if cfg.DefaultHeaders == nil {
		cfg.DefaultHeaders = make(http.Header)
	}
	if cfg.MaxErrorBodyBytes == 0 {
		cfg.MaxErrorBodyBytes = DefaultMaxErrorBodyBytes
	}
	if cfg.Retry.Backoff == nil {
		cfg.Retry.Backoff = DefaultBackoff()
	}
	if cfg.RequestID.New == nil && cfg.RequestID.Header != "" {
		cfg.RequestID.New = DefaultRequestID
	}
	return cfg
}
