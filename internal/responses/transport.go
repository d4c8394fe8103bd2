package responses

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultUserAgent  = "openai-responses-go/" + Version

	// defaultRetryAfter applies when a 429 carries no usable Retry-After header.
	defaultRetryAfter = 60 * time.Second
	// maxRetryAfter caps the wait a server may ask for.
	maxRetryAfter = 5 * time.Minute
)

// Version is the client identifier version sent in User-Agent.
const Version = "0.1.0"

// TransportConfig configures a Transport. APIKey must already be resolved.
type TransportConfig struct {
	APIKey     string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Logger     *zap.Logger
}

// Transport owns the HTTP session to the responses endpoint and applies the
// retry policy. It is meant for sequential use.
type Transport struct {
	client     *http.Client
	base       *http.Transport
	endpoint   string
	userAgent  string
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	closed bool
}

// NewTransport builds a transport. It fails with an AuthenticationError when
// no credential is configured.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, newAuthenticationError(
			"OpenAI API key is required. Set "+APIKeyEnv+" environment variable or pass an API key.", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxIdleConns = 10
	base.MaxIdleConnsPerHost = 10
	base.IdleConnTimeout = 90 * time.Second
	base.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	// oauth2.Transport stamps "Authorization: Bearer <key>" on every request.
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})

	return &Transport{
		client: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: base},
		},
		base:       base,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/responses",
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
		sleep:      sleepContext,
	}, nil
}

// Endpoint returns the URL requests are posted to.
func (t *Transport) Endpoint() string { return t.endpoint }

// Post sends payload and returns the decoded JSON reply.
//
// 2xx returns at once. 401 and 402 fail without retry. 429 waits for
// Retry-After and retries while attempts remain. Timeouts and connection
// failures back off 1s, 2s, 4s... Any other status fails without retry.
// A wait that would outlast ctx's deadline is not taken; the last error is
// returned instead.
func (t *Transport) Post(ctx context.Context, payload any) (map[string]any, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, &APIError{Message: "transport is closed"}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Message: "failed to marshal request", Err: err}
	}

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		canRetry := attempt < t.maxRetries
		start := time.Now()

		status, header, body, err := t.send(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &APIError{Message: "request canceled", Err: ctx.Err()}
			}
			msg := "Request failed: " + err.Error()
			if isTimeout(err) {
				msg = "Request timeout"
			}
			wait := time.Duration(1<<attempt) * time.Second
			if !canRetry || !fitsDeadline(ctx, wait) {
				t.logger.Error("Responses API request failed",
					zap.Int("attempt", attempt+1),
					zap.Error(err))
				return nil, &APIError{Message: msg, Err: err}
			}
			t.logger.Warn("Responses API transport error, backing off",
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(err))
			if err := t.sleep(ctx, wait); err != nil {
				return nil, &APIError{Message: "request canceled", Err: err}
			}
			continue
		}

		t.logger.Debug("Responses API replied",
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("body_length", len(body)))

		switch {
		case status >= 200 && status < 300:
			var out map[string]any
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, &APIError{StatusCode: status, Message: "invalid JSON in response", Err: err}
			}
			return out, nil

		case status == http.StatusUnauthorized:
			return nil, newAuthenticationError("Invalid API key or authentication failed.", parseErrorBody(body))

		case status == http.StatusPaymentRequired:
			return nil, newQuotaExceededError(parseErrorBody(body))

		case status == http.StatusTooManyRequests:
			wait := retryAfter(header.Get("Retry-After"), time.Now())
			if !canRetry {
				t.logger.Error("Rate limit persisted after retries", zap.Int("attempts", attempt+1))
				return nil, newRateLimitError(int(wait/time.Second), parseErrorBody(body))
			}
			if !fitsDeadline(ctx, wait) {
				t.logger.Warn("Rate limit wait exceeds request deadline",
					zap.Int("attempt", attempt+1),
					zap.Duration("retry_after", wait))
				return nil, newRateLimitError(int(wait/time.Second), parseErrorBody(body))
			}
			t.logger.Warn("Rate limit encountered, waiting",
				zap.Int("attempt", attempt+1),
				zap.Duration("retry_after", wait))
			if err := t.sleep(ctx, wait); err != nil {
				return nil, &APIError{Message: "request canceled", Err: err}
			}
			continue

		default:
			parsed := parseErrorBody(body)
			t.logger.Warn("Responses API returned error",
				zap.Int("status", status),
				zap.String("body", truncate(string(body), 512)))
			return nil, &APIError{
				StatusCode: status,
				Message:    errorMessage(parsed, fmt.Sprintf("HTTP %d", status)),
				Body:       parsed,
			}
		}
	}

	return nil, &APIError{Message: "exhausted retries"}
}

// send performs one HTTP exchange and reads the whole body within the
// per-request timeout.
func (t *Transport) send(ctx context.Context, data []byte) (int, http.Header, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("X-Client-Request-Id", uuid.NewString())

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// Close releases idle connections. Calling it more than once is safe.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.base.CloseIdleConnections()
	return nil
}

// retryAfter reads a Retry-After header given as delta-seconds or an HTTP
// date, capped at maxRetryAfter.
func retryAfter(h string, now time.Time) time.Duration {
	d := parseRetryAfter(h, now)
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

func parseRetryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			secs = 0
		}
		if limit := int(maxRetryAfter / time.Second); secs > limit {
			secs = limit
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}

func parseErrorBody(body []byte) map[string]any {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return map[string]any{"raw": string(body)}
	}
	return m
}

func errorMessage(body map[string]any, fallback string) string {
	if e, ok := body["error"].(map[string]any); ok {
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fallback
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// fitsDeadline reports whether waiting d still ends before ctx's deadline.
func fitsDeadline(ctx context.Context, d time.Duration) bool {
	deadline, ok := ctx.Deadline()
	return !ok || time.Now().Add(d).Before(deadline)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
