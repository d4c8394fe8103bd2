package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sk-test-123"

// withSleep replaces the retry sleeper.
func withSleep(f func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.sleep = f }
}

// recordingSleeper returns immediately and remembers every requested wait.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	all := append([]Option{WithAPIKey(testKey), WithBaseURL(baseURL)}, opts...)
	c, err := New(all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

const okBody = `{
	"id": "resp_1",
	"object": "response",
	"model": "gpt-4o",
	"status": "completed",
	"created_at": 1710000000,
	"output": [{"type": "message", "content": [{"type": "output_text", "text": "Hi!"}]}],
	"usage": {"input_tokens": 5, "output_tokens": 2, "total_tokens": 7}
}`

func TestNew_MissingKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	c, err := New()
	assert.Nil(t, c)

	var aerr *AuthenticationError
	require.True(t, errors.As(err, &aerr))
	assert.Contains(t, aerr.Error(), APIKeyEnv)
	assert.True(t, errors.Is(err, ErrClient))
}

func TestNew_KeyFromEnvironment(t *testing.T) {
	t.Setenv(APIKeyEnv, "  sk-env  ")
	assert.Equal(t, "sk-env", ResolveAPIKey(""))
	assert.Equal(t, "sk-explicit", ResolveAPIKey("sk-explicit"))

	c, err := New()
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, DefaultBaseURL+"/responses", c.Endpoint())
}

func TestGenerate_Success(t *testing.T) {
	var got map[string]any
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/responses", r.URL.Path)
		header = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1/")
	res, err := c.Generate(context.Background(), GenerateRequest{
		Prompt: "Say hello",
		Format: ResponseFormat{Type: "Message", Tone: "friendly"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi!", res.Content())
	assert.Equal(t, "resp_1", res.ID())
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}, res.Usage())

	assert.Equal(t, "Bearer "+testKey, header.Get("Authorization"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, DefaultUserAgent, header.Get("User-Agent"))
	assert.NotEmpty(t, header.Get("X-Client-Request-Id"))

	assert.Equal(t, DefaultModel, got["model"])
	assert.Equal(t, "Say hello", got["input"])
	_, hasInstructions := got["instructions"]
	assert.False(t, hasInstructions)
}

func TestGenerate_FormatInstructions(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithFormatInstructions(true), WithDefaultModel("gpt-4o-mini"))
	_, err := c.Email(context.Background(), GenerateRequest{Prompt: "Ask for a day off"})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Equal(t,
		"Write the response as a professional email with a polite tone. Respond in language: en.",
		got["instructions"])
}

func TestGenerate_InvalidFormatNeverHitsNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{
		Prompt: "x",
		Format: ResponseFormat{Type: "memo"},
	})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "format.type", verr.Field)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestWrappers_ApplyDefaults(t *testing.T) {
	assert.Equal(t, ResponseFormat{Type: "email", Style: "professional", Tone: "polite"},
		withFormatDefaults(GenerateRequest{}, "email", "professional", "polite").Format)

	req := GenerateRequest{Format: ResponseFormat{Type: "note", Tone: "assertive"}}
	got := withFormatDefaults(req, "letter", "formal", "polite").Format
	assert.Equal(t, "letter", got.Type)
	assert.Equal(t, "formal", got.Style)
	assert.Equal(t, "assertive", got.Tone)
}

func TestTransport_RateLimitThenSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	start := time.Now()
	res, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "Hi!", res.Content())
}

func TestTransport_RateLimitExhausted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, srv.URL, WithMaxRetries(2), withSleep(sleeper.sleep))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var rerr *RateLimitError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 7, rerr.RetryAfter)
	assert.Equal(t, 429, rerr.StatusCode)
	assert.Equal(t, "slow down", rerr.Body["error"].(map[string]any)["message"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second}, sleeper.recorded())
}

func TestTransport_AuthenticationNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, srv.URL, withSleep(sleeper.sleep))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var aerr *AuthenticationError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "Invalid API key or authentication failed.", aerr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, sleeper.recorded())
}

func TestTransport_QuotaNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var qerr *QuotaExceededError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, 402, qerr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTransport_OtherStatusNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)

	var rerr *RateLimitError
	assert.False(t, errors.As(err, &rerr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTransport_InvalidJSONOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid JSON in response", apiErr.Message)
}

func TestTransport_NetworkFailureBacksOff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, url, withSleep(sleeper.sleep))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Request failed")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.recorded())
}

func TestTransport_ZeroRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithMaxRetries(0))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var rerr *RateLimitError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 60, rerr.RetryAfter)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTransport_CanceledContextStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	canceling := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	c := newTestClient(t, srv.URL, withSleep(canceling))
	_, err := c.Generate(ctx, GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, err := New(WithAPIKey(testKey))
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	_, err = c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "transport is closed", apiErr.Message)
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 5*time.Second, retryAfter("5", now))
	assert.Equal(t, defaultRetryAfter, retryAfter("", now))
	assert.Equal(t, defaultRetryAfter, retryAfter("soon", now))
	assert.Equal(t, time.Duration(0), retryAfter("-3", now))
	assert.Equal(t, maxRetryAfter, retryAfter("3600", now))
	assert.Equal(t, maxRetryAfter, retryAfter("99999999999999", now))
	assert.Equal(t, maxRetryAfter, retryAfter(now.Add(2*time.Hour).Format(http.TimeFormat), now))

	date := now.Add(10 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 10*time.Second, retryAfter(date, now))
}

func TestTransport_RateLimitWaitPastDeadline(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, srv.URL, withSleep(sleeper.sleep))
	_, err := c.Generate(ctx, GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var rerr *RateLimitError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 60, rerr.RetryAfter)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, sleeper.recorded())
}

func TestTransport_BackoffStopsAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, url, withSleep(sleeper.sleep))
	_, err := c.Generate(ctx, GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "Request failed")
	assert.Equal(t, []time.Duration{time.Second}, sleeper.recorded())
}

func TestTransport_RequestTimeoutIsQuiet(t *testing.T) {
	var stdlog bytes.Buffer
	log.SetOutput(&stdlog)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithTimeout(50*time.Millisecond), WithMaxRetries(0))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", Format: ResponseFormat{Type: "note"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Request timeout", apiErr.Message)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, stdlog.String())
}
