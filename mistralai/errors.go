package mistralai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lgc202/go-mistral/httpx"
)

var (
	// ErrInvalidRequest marks precondition violations detected before any I/O.
	ErrInvalidRequest = errors.New("mistralai: invalid request")

	// ErrStreamMismatch is returned when the request's Stream flag does not
	// match the invoked operation.
	ErrStreamMismatch = fmt.Errorf("%w: stream flag mismatch", ErrInvalidRequest)

	// ErrDecode marks payloads that could not be decoded.
	ErrDecode = errors.New("mistralai: decode failure")

	ErrStreamClosed = errors.New("mistralai: stream closed")
)

// DecodeError reports a response body or stream frame that is not a valid payload.
type DecodeError struct {
	Frame []byte
	Cause error
}

func (e *DecodeError) Error() string {
	frame := string(e.Frame)
	if len(frame) > 128 {
		frame = frame[:128] + "..."
	}
	if e.Cause == nil {
		return fmt.Sprintf("%v: %q", ErrDecode, frame)
	}
	return fmt.Sprintf("%v: %q: %v", ErrDecode, frame, e.Cause)
}

func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Cause}
}

func decodeError(frame []byte, cause error) *DecodeError {
	return &DecodeError{Frame: append([]byte(nil), frame...), Cause: cause}
}

// ErrorHandler converts a non-2xx response into the error returned to callers.
type ErrorHandler func(*httpx.Error) error

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int

	// Code and Type are provider specific.
	Code string
	Type string

	Message   string
	Param     string
	RequestID string

	RetryAfter time.Duration

	// Raw is the (possibly truncated) response body.
	Raw []byte

	Cause *httpx.Error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString("mistralai: ")
	if e.StatusCode != 0 {
		b.WriteString(fmt.Sprintf("http %d", e.StatusCode))
	} else {
		b.WriteString("http error")
	}

	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.StatusCode != 0 {
		msg = http.StatusText(e.StatusCode)
	}
	if msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if c := strings.TrimSpace(e.Code); c != "" {
		b.WriteString(" (")
		b.WriteString(c)
		b.WriteString(")")
	}
	if id := strings.TrimSpace(e.RequestID); id != "" {
		b.WriteString(" request_id=")
		b.WriteString(id)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsRateLimit(err error) bool {
	ae, ok := AsAPIError(err)
	if !ok {
		return false
	}
	if ae.StatusCode == http.StatusTooManyRequests {
		return true
	}
	code := strings.ToLower(strings.TrimSpace(ae.Code))
	return code == "rate_limit" || code == "rate_limit_exceeded"
}

func IsAuth(err error) bool {
	ae, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return ae.StatusCode == http.StatusUnauthorized || ae.StatusCode == http.StatusForbidden
}

// IsTemporary reports whether the call may succeed if repeated: a throttling or
// gateway status, or a transport timeout before any response arrived.
func IsTemporary(err error) bool {
	ae, ok := AsAPIError(err)
	if !ok {
		he, ok := httpx.AsError(err)
		return ok && he.StatusCode == 0 && he.Timeout()
	}
	switch ae.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// errorEnvelope covers the shapes the API uses for errors:
//
//	{"object":"error","message":"...","type":"...","param":null,"code":"..."}
//	{"message":"Unauthorized","request_id":"..."}
//	{"error":{"message":"...","type":"...","code":"..."}}
//	{"detail":[{"loc":["body","model"],"msg":"...","type":"..."}]}
type errorEnvelope struct {
	Message   json.RawMessage `json:"message"`
	Type      string          `json:"type"`
	Param     json.RawMessage `json:"param"`
	Code      json.RawMessage `json:"code"`
	RequestID string          `json:"request_id"`
	Error     *struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// DefaultErrorHandler maps an *httpx.Error to an *APIError, extracting the
// provider message when the body is a recognised error envelope.
func DefaultErrorHandler(he *httpx.Error) error {
	if he == nil {
		return nil
	}
	ae := &APIError{
		StatusCode: he.StatusCode,
		RequestID:  he.RequestID,
		RetryAfter: he.RetryAfter,
		Raw:        he.RawBody,
		Cause:      he,
	}

	var env errorEnvelope
	if len(he.RawBody) == 0 || json.Unmarshal(he.RawBody, &env) != nil {
		ae.Message = strings.TrimSpace(string(he.RawBody))
		return ae
	}
	ae.Message = rawText(env.Message)
	ae.Type = env.Type
	ae.Param = rawText(env.Param)
	ae.Code = rawText(env.Code)
	if ae.RequestID == "" {
		ae.RequestID = env.RequestID
	}
	if env.Error != nil {
		if ae.Message == "" {
			ae.Message = env.Error.Message
		}
		if ae.Type == "" {
			ae.Type = env.Error.Type
		}
		if ae.Code == "" {
			ae.Code = rawText(env.Error.Code)
		}
	}
	if ae.Message == "" && len(env.Detail) > 0 {
		ae.Message = detailText(env.Detail)
	}
	return ae
}

// rawText renders a JSON string, number or object as plain text; null is "".
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func detailText(raw json.RawMessage) string {
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) != nil {
		return rawText(raw)
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if len(it.Loc) == 0 {
			parts = append(parts, it.Msg)
			continue
		}
		loc := make([]string, len(it.Loc))
		for i, l := range it.Loc {
			loc[i] = fmt.Sprint(l)
		}
		parts = append(parts, strings.Join(loc, ".")+": "+it.Msg)
	}
	return strings.Join(parts, "; ")
}
