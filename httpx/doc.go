// Package httpx is the HTTP collaborator injected into the provider clients.
//
// It owns everything the typed clients deliberately do not:
//   - base URL resolution, default headers and bearer authentication set once at construction
//   - per-client and per-request deadlines (released on body close for streamed responses)
//   - retry with exponential backoff and jitter for idempotent methods; POST only via WithIdempotent or AllowPOST
//   - Retry-After / Retry-After-Ms honoured for 429 and 503, capped by MaxRetryAfter
//   - an error type carrying status, request id, retry-after and a bounded copy of the body
//   - hook points for logging/metrics without hard dependencies
package httpx
