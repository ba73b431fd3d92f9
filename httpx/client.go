package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client is safe for concurrent use once constructed. Hooks must be installed
// before the first request.
type Client struct {
	httpClient *http.Client

	baseURL *url.URL

	timeout        time.Duration
	defaultHeaders http.Header
	bearerToken    string
	userAgent      string

	retry      RetryConfig
	maxErrBody int64

	requestID RequestIDConfig

	before []BeforeHook
	after  []AfterHook
}

// New constructs a Client from DefaultConfig() plus the provided options.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Client, error) {
	bu, err := cfg.baseURL()
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Client{
		httpClient:     &http.Client{Transport: cfg.Transport},
		baseURL:        bu,
		timeout:        cfg.Timeout,
		defaultHeaders: cfg.DefaultHeaders,
		bearerToken:    strings.TrimSpace(cfg.BearerToken),
		userAgent:      cfg.UserAgent,
		retry:          cfg.Retry,
		maxErrBody:     cfg.MaxErrorBodyBytes,
		requestID:      cfg.RequestID,
	}, nil
}

// WithHooks adds hooks (executed for every attempt).
// Call this during initialization, before the client is used concurrently.
func (c *Client) WithHooks(before []BeforeHook, after []AfterHook) *Client {
	c.before = append(c.before, before...)
	c.after = append(c.after, after...)
	return c
}

func (c *Client) resolveURL(path string, q url.Values) (*url.URL, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty url/path")
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		if c.baseURL == nil {
			return nil, errors.New("relative path requires BaseURL")
		}
		// A leading "/" is relative to the BaseURL prefix, so https://host/api + /v1/x => /api/v1/x.
		if strings.HasPrefix(u.Path, "/") {
			u2 := *u
			u2.Path = strings.TrimPrefix(u2.Path, "/")
			u = &u2
		}
		u = c.baseURL.ResolveReference(u)
	} else {
		u2 := *u
		u = &u2
	}
	if q != nil {
		qq := u.Query()
		for k, vv := range q {
			for _, v := range vv {
				qq.Add(k, v)
			}
		}
		u.RawQuery = qq.Encode()
	}
	return u, nil
}

func withEarlierDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return ctx, func() {}
	}
	if existing, ok := ctx.Deadline(); ok && !existing.After(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

func earliestDeadline(base context.Context, timeouts ...time.Duration) (time.Time, bool) {
	now := time.Now()
	var earliest time.Time
	for _, d := range timeouts {
		if d <= 0 {
			continue
		}
		dd := now.Add(d)
		if earliest.IsZero() || dd.Before(earliest) {
			earliest = dd
		}
	}
	if dl, ok := base.Deadline(); ok {
		if earliest.IsZero() || dl.Before(earliest) {
			earliest = dl
		}
	}
	if earliest.IsZero() {
		return time.Time{}, false
	}
	return earliest, true
}

// cancelOnClose ties the lifetime of a derived deadline to the response body,
// so a streamed body stays readable after Do returns.
type cancelOnClose struct {
	io.ReadCloser
	once   sync.Once
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cancel)
	return err
}

// Do executes the request with retries (if configured). It mirrors net/http semantics:
// - transport errors are returned as error
// - non-2xx responses are returned as resp with nil error
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, false)
}

// DoStatus executes the request with retries and converts non-2xx responses into *Error.
// It reads up to MaxErrorBodyBytes from the response body and then closes it.
// On success the body is left unread; closing it releases the connection.
func (c *Client) DoStatus(req *http.Request) (*http.Response, error) {
	return c.do(req, true)
}

func (c *Client) do(req *http.Request, statusAsError bool) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	ctx := req.Context()
	cancel := context.CancelFunc(func() {})
	if dl, ok := earliestDeadline(ctx, c.timeout, requestTimeout(ctx)); ok {
		ctx, cancel = withEarlierDeadline(ctx, dl)
	}
	req = req.Clone(ctx)

	resp, err := c.attempts(ctx, req, statusAsError)
	if err == nil && resp != nil && resp.Body != nil {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	cancel()
	return resp, err
}

func (c *Client) attempts(ctx context.Context, req *http.Request, statusAsError bool) (*http.Response, error) {
	maxAttempts := max(c.retry.MaxAttempts, 1)
	replayable := c.retry.replayable(req)

	var lastResp *http.Response
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 1 && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return nil, errors.New("httpx: request body is not replayable (missing req.GetBody)")
			}
			b, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = b
		}

		for _, h := range c.before {
			if h == nil {
				continue
			}
			if err := h(req, attempt); err != nil {
				return nil, err
			}
		}

		t0 := time.Now()
		resp, err := c.httpClient.Do(req)
		dur := time.Since(t0)

		for _, h := range c.after {
			if h != nil {
				h(req, resp, err, dur, attempt)
			}
		}

		if err == nil && resp != nil {
			// DoStatus callers decode the body as a result, so only 2xx passes.
			if statusAsError && resp.StatusCode/100 == 2 {
				return resp, nil
			}
			if !statusAsError && (resp.StatusCode < 400 || !retryableStatus(resp.StatusCode)) {
				return resp, nil
			}
		}

		lastResp = resp
		lastErr = err

		retry := attempt < maxAttempts && replayable
		if retry {
			switch {
			case err != nil:
				retry = retryableNetErr(err)
			case resp != nil:
				retry = retryableStatus(resp.StatusCode)
			default:
				retry = false
			}
		}
		if retry && req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			retry = false
		}
		if !retry {
			break
		}

		// Drain body for connection reuse before retrying.
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
		}

		if err := sleep(ctx, c.retry.delay(attempt, resp)); err != nil {
			return nil, err
		}
	}

	if lastResp == nil && lastErr == nil {
		lastErr = context.DeadlineExceeded
	}
	if !statusAsError {
		return lastResp, lastErr
	}
	if lastErr != nil {
		// http.Client may return a non-nil resp alongside an error (e.g. redirect issues).
		if lastResp != nil && lastResp.Body != nil {
			_ = lastResp.Body.Close()
		}
		return nil, &Error{
			Method:    req.Method,
			URL:       req.URL.String(),
			RequestID: strings.TrimSpace(req.Header.Get(c.requestID.Header)),
			Cause:     lastErr,
			Retryable: replayable && retryableNetErr(lastErr),
		}
	}
	return responseToError(req, lastResp, c.requestID.Header, c.maxErrBody, replayable && retryableStatus(lastResp.StatusCode))
}

func responseToError(req *http.Request, resp *http.Response, requestIDHeader string, maxErrBody int64, retryable bool) (*http.Response, error) {
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	var raw []byte
	if resp.Body != nil && maxErrBody != 0 {
		raw, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	}

	// Expose the captured bytes to the caller without holding the socket open.
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	rid := ""
	if requestIDHeader != "" {
		rid = strings.TrimSpace(resp.Header.Get(requestIDHeader))
		if rid == "" {
			rid = strings.TrimSpace(req.Header.Get(requestIDHeader))
		}
	}
	ra, _ := parseRetryAfter(resp.Header, time.Now())

	return resp, &Error{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		RequestID:  rid,
		RetryAfter: ra,
		RawBody:    raw,
		Header:     resp.Header.Clone(),
		Retryable:  retryable,
		Cause:      errors.New(http.StatusText(resp.StatusCode)),
	}
}
