package models

import "github.com/jnieblas/openai-response-api-demo/internal/responses"

// Web API request/response bodies

// GenerateRequest is the body of the generate endpoints
type GenerateRequest struct {
	Prompt string         `json:"prompt" binding:"required"`
	Format map[string]any `json:"format"`
	Model  string         `json:"model,omitempty"`

	// Sampling models
	Temperature *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	TopP        *float64 `json:"top_p,omitempty" binding:"omitempty,gte=0,lte=1"`
	// Reasoning models
	Effort    string `json:"effort,omitempty"`
	Verbosity string `json:"verbosity,omitempty"`

	MaxOutputTokens    int    `json:"max_output_tokens,omitempty" binding:"omitempty,gte=1"`
	Tools              []any  `json:"tools,omitempty"`
	ToolChoice         any    `json:"tool_choice,omitempty"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`

	// SessionID groups requests for history and continuation
	SessionID string `json:"session_id,omitempty" binding:"omitempty,uuid"`
	// Continue reuses the session's last response ID as previous_response_id
	Continue bool `json:"continue,omitempty"`
	// APIKey overrides the server's configured credential for this request
	APIKey string `json:"api_key,omitempty"`
}

// GenerateResponse is the normalized reply returned to web clients
type GenerateResponse struct {
	SessionID    string               `json:"session_id"`
	ID           string               `json:"id"`
	Model        string               `json:"model"`
	Status       string               `json:"status"`
	CreatedAt    int64                `json:"created_at"`
	Content      string               `json:"content"`
	FinishReason string               `json:"finish_reason,omitempty"`
	Usage        responses.Usage      `json:"usage"`
	ToolCalls    []responses.ToolCall `json:"tool_calls"`
	Raw          map[string]any       `json:"raw,omitempty"`
}

// NewGenerateResponse flattens a result for the web client
func NewGenerateResponse(sessionID string, res *responses.Result, includeRaw bool) GenerateResponse {
	calls := res.ToolCalls()
	if calls == nil {
		calls = []responses.ToolCall{}
	}
	out := GenerateResponse{
		SessionID:    sessionID,
		ID:           res.ID(),
		Model:        res.Model(),
		Status:       res.Status(),
		CreatedAt:    res.CreatedAt(),
		Content:      res.Content(),
		FinishReason: res.FinishReason(),
		Usage:        res.Usage(),
		ToolCalls:    calls,
	}
	if includeRaw {
		out.Raw = res.Raw()
	}
	return out
}

// TokenEstimateRequest is the body of the token estimate endpoint
type TokenEstimateRequest struct {
	Text string `json:"text" binding:"required"`
}

// TokenEstimateResponse reports a local token count
type TokenEstimateResponse struct {
	Encoding string `json:"encoding"`
	Tokens   int    `json:"tokens"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides error details
type ErrorDetail struct {
	Message    string   `json:"message"`
	Type       string   `json:"type"`
	Code       string   `json:"code,omitempty"`
	Param      string   `json:"param,omitempty"`
	Allowed    []string `json:"allowed,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
}
