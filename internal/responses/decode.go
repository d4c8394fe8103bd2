package responses

import (
	"encoding/json"
	"fmt"
)

// Usage holds token counters of one exchange.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolCall is a tool invocation reported in the output list. Function and
// HostedTool carry the same action data since the item type alone does not
// say which kind of tool produced it.
type ToolCall struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	CallID     string         `json:"call_id,omitempty"`
	Function   map[string]any `json:"function,omitempty"`
	HostedTool map[string]any `json:"hosted_tool,omitempty"`
}

var toolCallTypes = map[string]bool{
	"web_search_call": true,
	"function_call":   true,
}

// Result is a read-only view over a raw reply. Every accessor reads the raw
// payload again, nothing is cached.
type Result struct {
	raw map[string]any
}

// NewResult wraps a decoded reply.
func NewResult(raw map[string]any) *Result {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Result{raw: raw}
}

// DecodeResult parses a JSON reply body.
func DecodeResult(body []byte) (*Result, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &APIError{Message: "invalid JSON in response", Err: err}
	}
	return NewResult(raw), nil
}

func (r *Result) Raw() map[string]any { return r.raw }
func (r *Result) ID() string          { return str(r.raw["id"]) }
func (r *Result) Model() string       { return str(r.raw["model"]) }
func (r *Result) Status() string      { return str(r.raw["status"]) }
func (r *Result) CreatedAt() int64    { return int64(num(r.raw["created_at"])) }

// contentStrategy extracts generated text from one known reply layout.
type contentStrategy struct {
	name    string
	extract func(raw map[string]any) (string, bool)
}

// contentStrategies are tried in order; the first hit wins.
var contentStrategies = []contentStrategy{
	{"message_item", messageItemText},
	{"first_output", firstOutputText},
	{"text_field", topLevelText},
	// Chat-completions layout. Not produced by the responses endpoint as far
	// as we know; kept for older backends.
	{"choices", choicesText},
}

// Content returns the generated text, or "" when no layout matches.
func (r *Result) Content() string {
	for _, s := range contentStrategies {
		if text, ok := s.extract(r.raw); ok {
			return text
		}
	}
	return ""
}

// FinishReason reads output[0].finish_reason, then choices[0].finish_reason.
func (r *Result) FinishReason() string {
	if first, ok := index(r.raw["output"], 0); ok {
		if s, ok := first["finish_reason"].(string); ok {
			return s
		}
	}
	if first, ok := index(r.raw["choices"], 0); ok {
		return str(first["finish_reason"])
	}
	return ""
}

// Usage reads usage.{input,output,total}_tokens, defaulting to zero.
func (r *Result) Usage() Usage {
	u, _ := r.raw["usage"].(map[string]any)
	return Usage{
		PromptTokens:     int(num(u["input_tokens"])),
		CompletionTokens: int(num(u["output_tokens"])),
		TotalTokens:      int(num(u["total_tokens"])),
	}
}

// ToolCalls lists web_search_call and function_call items of the output.
// It returns nil when there are none.
func (r *Result) ToolCalls() []ToolCall {
	items, _ := r.raw["output"].([]any)
	var calls []ToolCall
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok || !toolCallTypes[str(item["type"])] {
			continue
		}
		action := actionOf(item)
		calls = append(calls, ToolCall{
			ID:         str(item["id"]),
			Type:       str(item["type"]),
			CallID:     str(item["call_id"]),
			Function:   action,
			HostedTool: copyMap(action),
		})
	}
	return calls
}

// MarshalJSON renders the normalized view.
func (r *Result) MarshalJSON() ([]byte, error) {
	calls := r.ToolCalls()
	if calls == nil {
		calls = []ToolCall{}
	}
	return json.Marshal(struct {
		ID           string     `json:"id"`
		Model        string     `json:"model"`
		Status       string     `json:"status"`
		CreatedAt    int64      `json:"created_at"`
		Content      string     `json:"content"`
		FinishReason string     `json:"finish_reason,omitempty"`
		Usage        Usage      `json:"usage"`
		ToolCalls    []ToolCall `json:"tool_calls"`
	}{r.ID(), r.Model(), r.Status(), r.CreatedAt(), r.Content(), r.FinishReason(), r.Usage(), calls})
}

func messageItemText(raw map[string]any) (string, bool) {
	items, _ := raw["output"].([]any)
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok || str(item["type"]) != "message" {
			continue
		}
		if text, ok := firstContentText(item); ok {
			return text, true
		}
	}
	return "", false
}

func firstOutputText(raw map[string]any) (string, bool) {
	first, ok := index(raw["output"], 0)
	if !ok {
		return "", false
	}
	return firstContentText(first)
}

func topLevelText(raw map[string]any) (string, bool) {
	switch v := raw["text"].(type) {
	case string:
		return v, v != ""
	case map[string]any:
		s, ok := v["content"].(string)
		return s, ok && s != ""
	}
	return "", false
}

func choicesText(raw map[string]any) (string, bool) {
	first, ok := index(raw["choices"], 0)
	if !ok {
		return "", false
	}
	msg, _ := first["message"].(map[string]any)
	s, ok := msg["content"].(string)
	return s, ok
}

func firstContentText(item map[string]any) (string, bool) {
	c, ok := index(item["content"], 0)
	if !ok {
		return "", false
	}
	s, ok := c["text"].(string)
	return s, ok
}

// actionOf returns the item's action object. Items without one (plain
// function_call items) fall back to their name/arguments fields.
func actionOf(item map[string]any) map[string]any {
	if a, ok := item["action"].(map[string]any); ok {
		return copyMap(a)
	}
	out := map[string]any{}
	for _, k := range []string{"name", "arguments", "call_id"} {
		if v, ok := item[k]; ok {
			out[k] = v
		}
	}
	return out
}

func index(v any, i int) (map[string]any, bool) {
	list, ok := v.([]any)
	if !ok || i >= len(list) {
		return nil, false
	}
	m, ok := list[i].(map[string]any)
	return m, ok
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
