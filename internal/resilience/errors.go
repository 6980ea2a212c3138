package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind categorizes an external-call failure.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindTimeout     Kind = "timeout"
	KindServer      Kind = "server_error"
	KindBadRequest  Kind = "bad_request"
	KindAuth        Kind = "auth"
	KindCanceled    Kind = "canceled"
	KindUnknown     Kind = "unknown"
)

// CallError is the structured error returned once a call is abandoned,
// either because retries were exhausted or the failure was fatal.
// It never escapes as a panic; callers receive it as a value.
type CallError struct {
	Op       string `json:"op"`
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %s", e.Op, e.Kind, e.Attempts, e.Message)
}

// HTTPError carries a non-2xx status from a provider so the classifier can
// decide whether the failure is transient.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, body)
}

// Class is the verdict of an error classifier.
type Class struct {
	Transient bool
	Kind      Kind
}

// Classifier decides whether a failure is worth retrying.
type Classifier func(err error) Class

// DefaultClassifier treats rate limits, timeouts and server-side errors as
// transient; everything else (bad request, auth, malformed input) is fatal.
func DefaultClassifier(err error) Class {
	if err == nil {
		return Class{}
	}

	if errors.Is(err, context.Canceled) {
		return Class{Transient: false, Kind: KindCanceled}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Class{Transient: true, Kind: KindTimeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Class{Transient: true, Kind: KindTimeout}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return Class{Transient: true, Kind: KindRateLimited}
		case httpErr.StatusCode == http.StatusRequestTimeout:
			return Class{Transient: true, Kind: KindTimeout}
		case httpErr.StatusCode == http.StatusUnauthorized,
			httpErr.StatusCode == http.StatusForbidden:
			return Class{Transient: false, Kind: KindAuth}
		case httpErr.StatusCode >= 500:
			return Class{Transient: true, Kind: KindServer}
		default:
			return Class{Transient: false, Kind: KindBadRequest}
		}
	}

	// Provider SDKs fold rate limit info into the message.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		return Class{Transient: true, Kind: KindRateLimited}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return Class{Transient: true, Kind: KindTimeout}
	}

	return Class{Transient: false, Kind: KindUnknown}
}
