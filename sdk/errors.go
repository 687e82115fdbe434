package sdk

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/voicecode-ai/mentor/pkg/core"
)

// SDK-level error type that wraps core errors
type Error = core.Error

// Error types
const (
	ErrInvalidRequest = core.ErrInvalidRequest
	ErrNotFound       = core.ErrNotFound
	ErrRateLimit      = core.ErrRateLimit
	ErrAIService      = core.ErrAIService
	ErrUnavailable    = core.ErrUnavailable
	ErrInternal       = core.ErrInternal
)

// TransportError represents transport-level failures (DNS, timeouts,
// connection reset, TLS handshake, websocket dial) while talking to the
// mentor backend.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from canonical API errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}

// detailEnvelope matches the backend error body. The detail field is either
// a bare string or an object carrying at least a message.
type detailEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

type detailObject struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retry_after"`
}

// parseAPIError turns a non-2xx response body into a *core.Error. Bodies
// that do not match the error envelope degrade to a generic error with the
// HTTP status.
func parseAPIError(status int, body []byte) *core.Error {
	var env detailEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Detail) > 0 {
		var msg string
		if err := json.Unmarshal(env.Detail, &msg); err == nil && strings.TrimSpace(msg) != "" {
			return &core.Error{Type: typeForStatus(status), Message: msg}
		}
		var obj detailObject
		if err := json.Unmarshal(env.Detail, &obj); err == nil && obj.Message != "" {
			e := &core.Error{Type: typeForStatus(status), Message: obj.Message, RetryAfter: obj.RetryAfter}
			if obj.Error != "" {
				e.Type = core.ErrorType(obj.Error)
			}
			return e
		}
	}
	return &core.Error{
		Type:    typeForStatus(status),
		Message: fmt.Sprintf("http status %d", status),
	}
}

func typeForStatus(status int) core.ErrorType {
	switch status {
	case 400:
		return core.ErrInvalidRequest
	case 404:
		return core.ErrNotFound
	case 429:
		return core.ErrRateLimit
	case 503:
		return core.ErrUnavailable
	default:
		return core.ErrInternal
	}
}
