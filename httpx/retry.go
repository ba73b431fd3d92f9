package httpx

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls replays of failed attempts.
//
// Idempotent methods are retried on 408, 429, 5xx gateway statuses and network
// timeouts. POST is replayed only when AllowPOST is set or the request was built
// with WithIdempotent: a replayed completion is billed again.
type RetryConfig struct {
	// MaxAttempts includes the initial attempt. If <= 1, retries are disabled.
	MaxAttempts int

	AllowPOST bool

	// Backoff computes the sleep before the next attempt. Nil means DefaultBackoff().
	Backoff Backoff

	// MaxRetryAfter caps a server supplied Retry-After / Retry-After-Ms delay.
	// Zero means no cap.
	MaxRetryAfter time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		Backoff:       DefaultBackoff(),
		MaxRetryAfter: 30 * time.Second,
	}
}

type Backoff interface {
	// Next returns the sleep before retry number attempt, starting at 1.
	Next(attempt int) time.Duration
}

// ExponentialBackoff doubles Base per attempt up to Max, spread by +/- Jitter (0..1).
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		Base:   200 * time.Millisecond,
		Max:    3 * time.Second,
		Jitter: 0.2,
	}
}

func (b ExponentialBackoff) Next(attempt int) time.Duration {
	base, limit := b.Base, b.Max
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if limit <= 0 {
		limit = 3 * time.Second
	}

	d := base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	d = min(d, limit)

	j := min(b.Jitter, 1)
	if j <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*j))
}

type idempotentKey struct{}

// WithIdempotent marks one request as safe to replay whatever its method,
// e.g. an embeddings POST.
func WithIdempotent() RequestOption {
	return requestOptionFunc(func(c *requestConfig) { c.idempotent = true })
}

func markIdempotent(ctx context.Context) context.Context {
	return context.WithValue(ctx, idempotentKey{}, true)
}

// replayable reports whether req may be sent again under this policy.
func (c RetryConfig) replayable(req *http.Request) bool {
	if c.MaxAttempts <= 1 {
		return false
	}
	if ok, _ := req.Context().Value(idempotentKey{}).(bool); ok {
		return true
	}
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return true
	case http.MethodPost:
		return c.AllowPOST
	default:
		return false
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func retryableNetErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// delay is the wait before the next attempt: the server hint for 429/503 when
// present, capped by MaxRetryAfter, else the backoff.
func (c RetryConfig) delay(attempt int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if ra, ok := parseRetryAfter(resp.Header, time.Now()); ok {
			if c.MaxRetryAfter > 0 {
				ra = min(ra, c.MaxRetryAfter)
			}
			return ra
		}
	}
	return c.Backoff.Next(attempt)
}

// parseRetryAfter reads Retry-After-Ms (milliseconds) or Retry-After (seconds
// or an HTTP date).
func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	if v := strings.TrimSpace(h.Get("Retry-After-Ms")); v != "" {
		if ms, err := strconv.ParseFloat(v, 64); err == nil && ms >= 0 {
			return time.Duration(ms * float64(time.Millisecond)), true
		}
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(t.Sub(now), 0), true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
