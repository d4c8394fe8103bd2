package responses

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolTypeFunction marks a caller-defined function tool.
const ToolTypeFunction = "function"

// HostedToolTypes are the tool identifiers implemented by the service itself.
var HostedToolTypes = []string{
	"code_interpreter",
	"file_search",
	"web_search_preview",
	"web_search_preview_2025_03_11",
	"image_generation",
	"mcp",
	"computer_use_preview",
}

// ToolTypes is every accepted Tool.Type value.
var ToolTypes = append([]string{ToolTypeFunction}, HostedToolTypes...)

// ToolFunction describes a function tool. Parameters is a JSON schema
// object and is passed through as is.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool is one entry of the request's tool list.
type Tool struct {
	Type     string        `json:"type"`
	Function *ToolFunction `json:"function,omitempty"`
}

// FunctionTool builds a function tool.
func FunctionTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type:     ToolTypeFunction,
		Function: &ToolFunction{Name: name, Description: description, Parameters: parameters},
	}
}

// HostedTool references a service-side tool by its identifier.
func HostedTool(toolType string) Tool {
	return Tool{Type: toolType}
}

// Validate checks the tool type and, for function tools, the function block.
func (t Tool) Validate() error {
	found := false
	for _, v := range ToolTypes {
		if v == t.Type {
			found = true
			break
		}
	}
	if !found {
		return &ValidationError{Field: "tools.type", Value: t.Type, Allowed: ToolTypes}
	}
	if t.Type != ToolTypeFunction {
		return nil
	}
	if t.Function == nil {
		return &ValidationError{Field: "tools.function", Message: "is required for function tools"}
	}
	if strings.TrimSpace(t.Function.Name) == "" {
		return &ValidationError{Field: "tools.function.name", Message: "is required"}
	}
	if t.Function.Parameters == nil {
		return &ValidationError{Field: "tools.function.parameters", Message: "must be a JSON schema object"}
	}
	return nil
}

// NormalizeTools converts every accepted input shape (Tool, *Tool or a
// plain mapping) into a validated Tool.
func NormalizeTools(items []any) ([]Tool, error) {
	out := make([]Tool, 0, len(items))
	for _, item := range items {
		t, err := normalizeTool(item)
		if err != nil {
			return nil, err
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func normalizeTool(item any) (Tool, error) {
	switch v := item.(type) {
	case Tool:
		return v, nil
	case *Tool:
		if v == nil {
			return Tool{}, &ValidationError{Field: "tools", Message: "nil tool"}
		}
		return *v, nil
	case map[string]any:
		// Round trip through JSON so nested function maps land in ToolFunction.
		raw, err := json.Marshal(v)
		if err != nil {
			return Tool{}, &ValidationError{Field: "tools", Message: err.Error()}
		}
		var t Tool
		if err := json.Unmarshal(raw, &t); err != nil {
			return Tool{}, &ValidationError{Field: "tools", Message: "malformed tool: " + err.Error()}
		}
		return t, nil
	default:
		return Tool{}, &ValidationError{Field: "tools", Value: fmt.Sprintf("%T", item), Message: "unsupported tool value"}
	}
}

// Tool choice modes.
const (
	ToolChoiceModeAuto     = "auto"
	ToolChoiceModeNone     = "none"
	ToolChoiceModeRequired = "required"
)

// ToolChoice is either a mode string or an explicit tool selector object.
type ToolChoice struct {
	Mode     string
	Selector map[string]any
}

var (
	ToolChoiceAuto     = &ToolChoice{Mode: ToolChoiceModeAuto}
	ToolChoiceNone     = &ToolChoice{Mode: ToolChoiceModeNone}
	ToolChoiceRequired = &ToolChoice{Mode: ToolChoiceModeRequired}
)

// ToolChoiceFunction forces the named function tool.
func ToolChoiceFunction(name string) *ToolChoice {
	return &ToolChoice{Selector: map[string]any{
		"type":     ToolTypeFunction,
		"function": map[string]any{"name": name},
	}}
}

// ParseToolChoice accepts a mode string, a selector mapping or a *ToolChoice.
func ParseToolChoice(v any) (*ToolChoice, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case *ToolChoice:
		if c == nil {
			return nil, nil
		}
		return c, c.Validate()
	case string:
		if c == "" {
			return nil, nil
		}
		tc := &ToolChoice{Mode: strings.ToLower(c)}
		return tc, tc.Validate()
	case map[string]any:
		tc := &ToolChoice{Selector: c}
		return tc, tc.Validate()
	default:
		return nil, &ValidationError{Field: "tool_choice", Value: fmt.Sprintf("%T", v), Message: "must be a string or an object"}
	}
}

// Validate checks the mode or, for selectors, that a type is present.
func (c *ToolChoice) Validate() error {
	if c.Selector != nil {
		if _, ok := c.Selector["type"].(string); !ok {
			return &ValidationError{Field: "tool_choice.type", Message: "selector requires a type"}
		}
		return nil
	}
	_, err := checkEnum("tool_choice", c.Mode, []string{ToolChoiceModeAuto, ToolChoiceModeNone, ToolChoiceModeRequired}, true)
	return err
}

func (c ToolChoice) MarshalJSON() ([]byte, error) {
	if c.Selector != nil {
		return json.Marshal(c.Selector)
	}
	return json.Marshal(c.Mode)
}

func (c *ToolChoice) UnmarshalJSON(data []byte) error {
	var mode string
	if err := json.Unmarshal(data, &mode); err == nil {
		c.Mode, c.Selector = mode, nil
		return nil
	}
	var sel map[string]any
	if err := json.Unmarshal(data, &sel); err != nil {
		return fmt.Errorf("tool_choice must be a string or an object: %w", err)
	}
	c.Mode, c.Selector = "", sel
	return nil
}
