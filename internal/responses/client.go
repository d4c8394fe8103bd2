// Package responses is a client for the OpenAI Responses API.
//
// It validates request shapes before anything touches the network, posts
// them with a bounded retry policy, and exposes replies through Result,
// which hides the different output layouts the service produces.
//
// A Client is meant for sequential use. Callers that need parallel requests
// should hold one Client per goroutine.
package responses

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// APIKeyEnv is the environment variable consulted when no key is passed.
const APIKeyEnv = "OPENAI_API_KEY"

// DefaultModel is used when neither the request nor the client names one.
const DefaultModel = "gpt-4o"

// ResolveAPIKey returns explicit when set, otherwise the value of APIKeyEnv.
func ResolveAPIKey(explicit string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	return strings.TrimSpace(os.Getenv(APIKeyEnv))
}

type options struct {
	transport          TransportConfig
	defaultModel       string
	formatInstructions bool
	sleep              func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*options)

func WithAPIKey(key string) Option { return func(o *options) { o.transport.APIKey = key } }

func WithBaseURL(url string) Option { return func(o *options) { o.transport.BaseURL = url } }

func WithTimeout(d time.Duration) Option { return func(o *options) { o.transport.Timeout = d } }

// WithMaxRetries sets how many attempts follow the first one.
func WithMaxRetries(n int) Option { return func(o *options) { o.transport.MaxRetries = n } }

func WithUserAgent(ua string) Option { return func(o *options) { o.transport.UserAgent = ua } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.transport.Logger = l } }

func WithDefaultModel(model string) Option { return func(o *options) { o.defaultModel = model } }

// WithFormatInstructions makes the client send the validated response format
// as the request's instructions.
func WithFormatInstructions(on bool) Option {
	return func(o *options) { o.formatInstructions = on }
}

// Client is the entry point of the package.
type Client struct {
	transport          *Transport
	logger             *zap.Logger
	defaultModel       string
	formatInstructions bool
}

// New resolves the credential once (explicit option, then OPENAI_API_KEY)
// and opens the underlying session. It returns an AuthenticationError when
// no credential is available.
func New(opts ...Option) (*Client, error) {
	o := options{
		transport:    TransportConfig{MaxRetries: DefaultMaxRetries},
		defaultModel: DefaultModel,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.transport.APIKey = ResolveAPIKey(o.transport.APIKey)
	if o.transport.Logger == nil {
		o.transport.Logger = zap.NewNop()
	}

	t, err := NewTransport(o.transport)
	if err != nil {
		return nil, err
	}
	if o.sleep != nil {
		t.sleep = o.sleep
	}
	return &Client{
		transport:          t,
		logger:             o.transport.Logger,
		defaultModel:       o.defaultModel,
		formatInstructions: o.formatInstructions,
	}, nil
}

// GenerateRequest is the input of Generate. Model falls back to the client's
// default model and Parameters to the model family's defaults.
type GenerateRequest struct {
	Prompt             string
	Format             ResponseFormat
	Model              string
	Parameters         Parameters
	Tools              []Tool
	ToolChoice         *ToolChoice
	PreviousResponseID string
	MaxOutputTokens    int
}

// Generate validates req, sends it and decodes the reply. The error is
// always one of this package's types.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	format, err := req.Format.Validate()
	if err != nil {
		return nil, err
	}
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = c.defaultModel
	}

	r := Request{
		Prompt:             req.Prompt,
		Format:             format,
		Model:              model,
		Parameters:         req.Parameters,
		Tools:              req.Tools,
		ToolChoice:         req.ToolChoice,
		PreviousResponseID: req.PreviousResponseID,
		MaxOutputTokens:    req.MaxOutputTokens,
	}
	if c.formatInstructions {
		r.Instructions = format.Instructions()
	}

	payload, err := BuildPayload(r)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Generating response",
		zap.String("model", model),
		zap.String("format", format.Type),
		zap.Int("tools", len(payload.Tools)),
		zap.Bool("continuation", payload.PreviousResponseID != ""))

	raw, err := c.transport.Post(ctx, payload)
	if err != nil {
		return nil, wrapUnexpected(err)
	}
	return NewResult(raw), nil
}

// Email generates with format type "email". Style and tone default to
// professional and polite.
func (c *Client) Email(ctx context.Context, req GenerateRequest) (*Result, error) {
	return c.Generate(ctx, withFormatDefaults(req, "email", "professional", "polite"))
}

// Letter generates with format type "letter". Style and tone default to
// formal and polite.
func (c *Client) Letter(ctx context.Context, req GenerateRequest) (*Result, error) {
	return c.Generate(ctx, withFormatDefaults(req, "letter", "formal", "polite"))
}

// Message generates with format type "message". Style and tone default to
// casual and friendly.
func (c *Client) Message(ctx context.Context, req GenerateRequest) (*Result, error) {
	return c.Generate(ctx, withFormatDefaults(req, "message", "casual", "friendly"))
}

func withFormatDefaults(req GenerateRequest, typ, style, tone string) GenerateRequest {
	req.Format.Type = typ
	if req.Format.Style == "" {
		req.Format.Style = style
	}
	if req.Format.Tone == "" {
		req.Format.Tone = tone
	}
	return req
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string { return c.transport.Endpoint() }

// Close releases the session. It is safe to call more than once.
func (c *Client) Close() error {
	return c.transport.Close()
}
