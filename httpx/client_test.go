package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL_BaseURLAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/v1/models?x=1", WithQueryParam("y", "2"))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	b, _ := io.ReadAll(resp.Body)
	got := string(b)
	assert.True(t, strings.HasPrefix(got, "/v1/models?"), got)
	assert.Contains(t, got, "x=1")
	assert.Contains(t, got, "y=2")
}

func TestResolveURL_BaseURLWithPathPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL + "/proxy"))
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/v1/chat/completions")
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "/proxy/v1/chat/completions", gotPath)
}

func TestNewWithConfig_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New(WithBaseURL("api.mistral.ai"))
	assert.Error(t, err)
}

func TestNewRequest_BearerTokenAndRequestID(t *testing.T) {
	c, err := New(WithBaseURL("https://example.test"), WithBearerToken("secret"), WithUserAgent("ua/1"))
	require.NoError(t, err)

	req, err := c.NewJSONRequest(context.Background(), http.MethodPost, "/v1/embeddings", map[string]string{"a": "b"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "ua/1", req.Header.Get("User-Agent"))

	_, err = ulid.ParseStrict(req.Header.Get("X-Request-ID"))
	assert.NoError(t, err)

	override, err := c.NewRequest(context.Background(), http.MethodGet, "/", WithRequestBearerToken("other"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer other", override.Header.Get("Authorization"))
}

func TestNewRequest_JSONMarshalError(t *testing.T) {
	c, err := New(WithBaseURL("https://example.test"))
	require.NoError(t, err)

	_, err = c.NewJSONRequest(context.Background(), http.MethodPost, "/", map[string]any{"f": func() {}})
	assert.ErrorContains(t, err, "encode json body")
}

func TestDoStatus_RetriesOn5xx(t *testing.T) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("nope"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL), WithRetry(RetryConfig{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff{Base: time.Millisecond, Max: 5 * time.Millisecond},
	}))
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/")
	require.NoError(t, err)
	resp, err := c.DoStatus(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	assert.EqualValues(t, 3, atomic.LoadInt32(&n))
}

func TestDoStatus_NoRetryForPOSTByDefault(t *testing.T) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/v1/chat/completions", WithBodyBytes([]byte(`{}`)))
	require.NoError(t, err)
	_, err = c.DoStatus(req)
	require.Error(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&n))
	assert.False(t, IsRetryable(err))
	assert.True(t, IsHTTPStatus(err, http.StatusServiceUnavailable))
}

func TestDoStatus_ErrorBodyLimitAndRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	t.Cleanup(srv.Close)

	c, err := New(
		WithBaseURL(srv.URL),
		WithMaxErrorBodyBytes(10),
		WithRetry(RetryConfig{MaxAttempts: 1}),
	)
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/")
	require.NoError(t, err)
	resp, err := c.DoStatus(req)
	require.Error(t, err)

	he, ok := AsError(err)
	require.True(t, ok, "expected *httpx.Error, got %T", err)
	assert.Len(t, he.RawBody, 10)
	assert.Equal(t, 7*time.Second, he.RetryAfter)
	assert.Equal(t, "7", he.Header.Get("Retry-After"))
	assert.NotEmpty(t, he.RequestID)

	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Len(t, b, 10)
}

func TestRequestTimeoutOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(
		WithBaseURL(srv.URL),
		WithTimeout(2*time.Second),
		WithRetry(RetryConfig{MaxAttempts: 1}),
	)
	require.NoError(t, err)
	req, err := c.NewRequest(context.Background(), http.MethodGet, "/", WithRequestTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.DoStatus(req)
	require.Error(t, err)
	he, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, he.Timeout())
}

func TestDoStatus_StreamedBodyOutlivesCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		_, _ = io.WriteString(w, "data: one\n\n")
		fl.Flush()
		time.Sleep(20 * time.Millisecond)
		_, _ = io.WriteString(w, "data: two\n\n")
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL), WithTimeout(5*time.Second))
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/", WithBodyBytes([]byte(`{}`)))
	require.NoError(t, err)
	resp, err := c.DoStatus(req)
	require.NoError(t, err)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "data: one\n\ndata: two\n\n", string(b))
}

func TestHooks_RunForEveryAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tenant-a", r.Header.Get("X-Tenant"))
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	var after int32
	c.WithHooks(
		[]BeforeHook{func(req *http.Request, attempt int) error {
			req.Header.Set("X-Tenant", "tenant-a")
			return nil
		}},
		[]AfterHook{func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int) {
			atomic.AddInt32(&after, 1)
		}},
	)

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/")
	require.NoError(t, err)
	resp, err := c.DoStatus(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.EqualValues(t, 1, atomic.LoadInt32(&after))
}

func TestDoStatus_IdempotentPOSTRetries(t *testing.T) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"input":"x"}`, string(b))
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL), WithRetry(RetryConfig{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff{Base: time.Millisecond, Max: 2 * time.Millisecond},
	}))
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/v1/embeddings",
		WithBodyBytes([]byte(`{"input":"x"}`)), WithIdempotent())
	require.NoError(t, err)
	resp, err := c.DoStatus(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.EqualValues(t, 3, atomic.LoadInt32(&n))
}

func TestRetryConfig_Replayable(t *testing.T) {
	post, err := http.NewRequest(http.MethodPost, "http://x/v1/chat/completions", nil)
	require.NoError(t, err)
	get, err := http.NewRequest(http.MethodGet, "http://x/v1/models", nil)
	require.NoError(t, err)
	marked := post.WithContext(markIdempotent(context.Background()))

	rc := RetryConfig{MaxAttempts: 3}
	assert.False(t, rc.replayable(post))
	assert.True(t, rc.replayable(get))
	assert.True(t, rc.replayable(marked))

	rc.AllowPOST = true
	assert.True(t, rc.replayable(post))

	rc.MaxAttempts = 1
	assert.False(t, rc.replayable(get))
}

func TestRetryConfig_DelayClampsRetryAfter(t *testing.T) {
	rc := RetryConfig{
		MaxRetryAfter: 2 * time.Second,
		Backoff:       ExponentialBackoff{Base: 10 * time.Millisecond, Max: 10 * time.Millisecond},
	}
	resp := func(code int, kv ...string) *http.Response {
		h := make(http.Header)
		for i := 0; i+1 < len(kv); i += 2 {
			h.Set(kv[i], kv[i+1])
		}
		return &http.Response{StatusCode: code, Header: h}
	}

	assert.Equal(t, 2*time.Second, rc.delay(1, resp(http.StatusTooManyRequests, "Retry-After", "60")))
	assert.Equal(t, 250*time.Millisecond, rc.delay(1, resp(http.StatusTooManyRequests, "Retry-After-Ms", "250", "Retry-After", "1")))
	assert.Equal(t, time.Second, rc.delay(1, resp(http.StatusServiceUnavailable, "Retry-After", "1")))
	// Hints on other statuses are ignored.
	assert.Equal(t, 10*time.Millisecond, rc.delay(1, resp(http.StatusBadGateway, "Retry-After", "1")))
	assert.Equal(t, 10*time.Millisecond, rc.delay(1, resp(http.StatusTooManyRequests, "Retry-After", "soon")))
}

func TestExponentialBackoff_Next(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Max: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 400*time.Millisecond, b.Next(3))
	assert.Equal(t, time.Second, b.Next(10))

	b.Jitter = 0.5
	for range 20 {
		d := b.Next(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestDoStatus_RedirectStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/v1/models")
	require.NoError(t, err)
	_, err = c.DoStatus(req)
	require.Error(t, err)
	assert.True(t, IsHTTPStatus(err, http.StatusNotModified))
	assert.False(t, IsRetryable(err))

	// Do keeps net/http semantics.
	req, err = c.NewRequest(context.Background(), http.MethodGet, "/v1/models")
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestError_MessageOmitsQuery(t *testing.T) {
	e := &Error{
		Method:     "post",
		URL:        "https://api.mistral.ai/v1/embeddings?key=secret",
		StatusCode: http.StatusUnauthorized,
		RequestID:  "r1",
	}
	assert.Equal(t, "POST /v1/embeddings: http 401 Unauthorized request_id=r1", e.Error())
	assert.False(t, e.Timeout())
}

func TestNewWithConfig_FillsZeroFields(t *testing.T) {
	c, err := NewWithConfig(Config{BaseURL: "https://api.mistral.ai", RequestID: DefaultRequestIDConfig()})
	require.NoError(t, err)
	assert.NotNil(t, c.httpClient.Transport)
	assert.NotNil(t, c.retry.Backoff)
	assert.NotNil(t, c.requestID.New)
	assert.Equal(t, DefaultMaxErrorBodyBytes, c.maxErrBody)
	assert.NotNil(t, c.defaultHeaders)
}
