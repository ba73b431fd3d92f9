package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

type BeforeHook func(req *http.Request, attempt int) error

type AfterHook func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int)

// LogHook reports every attempt at debug level. Failed attempts are logged at warn.
func LogHook(logger *slog.Logger) AfterHook {
	return func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int) {
		if logger == nil {
			return
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		attrs := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"dur", dur,
			"attempt", attempt,
		}
		if err != nil {
			logger.Warn("http attempt failed", append(attrs, "err", err)...)
			return
		}
		logger.Debug("http attempt", attrs...)
	}
}
