package responses

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClient is the root of every error returned by this package.
// Use errors.Is(err, ErrClient) to tell library failures from anything else.
var ErrClient = errors.New("openai responses")

// ValidationError reports a request field that failed a pre-flight check.
// It is always returned before any network activity.
type ValidationError struct {
	Field   string
	Value   string
	Allowed []string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("invalid value %q", e.Value)
	}
	if len(e.Allowed) > 0 {
		msg += ". Must be one of: " + strings.Join(e.Allowed, ", ")
	}
	if e.Field == "" {
		return "validation error: " + msg
	}
	return fmt.Sprintf("validation error on %s: %s", e.Field, msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrClient }

// APIError is a failed exchange with the service. StatusCode is zero when
// no HTTP response was received.
type APIError struct {
	StatusCode int
	Message    string
	Body       map[string]any
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return "api error: " + e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool { return target == ErrClient }

// AuthenticationError is returned for a missing credential or an HTTP 401.
// It is never retried.
type AuthenticationError struct{ *APIError }

func (e *AuthenticationError) Unwrap() error { return e.APIError }

// RateLimitError is returned once HTTP 429 responses outlast the retry budget.
type RateLimitError struct {
	*APIError
	RetryAfter int
}

func (e *RateLimitError) Unwrap() error { return e.APIError }

// QuotaExceededError is returned for HTTP 402. It is never retried.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Unwrap() error { return e.APIError }

func newAuthenticationError(msg string, body map[string]any) *AuthenticationError {
	if msg == "" {
		msg = "Authentication failed. Please check your API key."
	}
	return &AuthenticationError{&APIError{StatusCode: 401, Message: msg, Body: body}}
}

func newRateLimitError(retryAfter int, body map[string]any) *RateLimitError {
	return &RateLimitError{
		APIError:   &APIError{StatusCode: 429, Message: "Rate limit exceeded. Please try again later.", Body: body},
		RetryAfter: retryAfter,
	}
}

func newQuotaExceededError(body map[string]any) *QuotaExceededError {
	return &QuotaExceededError{&APIError{StatusCode: 402, Message: "Quota exceeded. Please check your OpenAI account.", Body: body}}
}

// wrapUnexpected passes taxonomy errors through untouched and turns anything
// else into an APIError carrying the original cause.
func wrapUnexpected(err error) error {
	if err == nil || errors.Is(err, ErrClient) {
		return err
	}
	return &APIError{Message: "unexpected error: " + err.Error(), Err: err}
}
