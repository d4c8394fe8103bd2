package responses

import "strings"

// Request is everything needed to build one call to the service.
type Request struct {
	Prompt             string
	Format             ResponseFormat
	Model              string
	Parameters         Parameters
	Tools              []Tool
	ToolChoice         *ToolChoice
	PreviousResponseID string
	MaxOutputTokens    int
	Instructions       string
}

// Payload is the JSON body sent to the responses endpoint. Unset fields are
// omitted rather than sent as null.
type Payload struct {
	Model              string            `json:"model"`
	Input              string            `json:"input"`
	Instructions       string            `json:"instructions,omitempty"`
	Text               TextOptions       `json:"text"`
	Reasoning          *ReasoningOptions `json:"reasoning,omitempty"`
	Temperature        *float64          `json:"temperature,omitempty"`
	TopP               *float64          `json:"top_p,omitempty"`
	MaxOutputTokens    int               `json:"max_output_tokens,omitempty"`
	Tools              []Tool            `json:"tools,omitempty"`
	ToolChoice         *ToolChoice       `json:"tool_choice,omitempty"`
	PreviousResponseID string            `json:"previous_response_id,omitempty"`
}

type TextOptions struct {
	Format    TextFormat `json:"format"`
	Verbosity string     `json:"verbosity,omitempty"`
}

type TextFormat struct {
	Type string `json:"type"`
}

type ReasoningOptions struct {
	Effort string `json:"effort"`
}

// BuildPayload validates req and assembles the wire body. The parameter block
// follows the model family: reasoning models never carry temperature or
// top_p, sampling models never carry effort or verbosity.
func BuildPayload(req Request) (*Payload, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &ValidationError{Field: "prompt", Message: "must not be empty"}
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, &ValidationError{Field: "model", Message: "must not be empty"}
	}
	if _, err := req.Format.Validate(); err != nil {
		return nil, err
	}
	if req.MaxOutputTokens < 0 {
		return nil, &ValidationError{Field: "max_output_tokens", Message: "must be positive"}
	}

	params, err := resolveParameters(req.Model, req.Parameters)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		Model:              req.Model,
		Input:              req.Prompt,
		Instructions:       req.Instructions,
		Text:               TextOptions{Format: TextFormat{Type: "text"}},
		MaxOutputTokens:    req.MaxOutputTokens,
		PreviousResponseID: req.PreviousResponseID,
	}
	params.apply(p)

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			if err := t.Validate(); err != nil {
				return nil, err
			}
		}
		p.Tools = req.Tools
	}
	if req.ToolChoice != nil {
		if err := req.ToolChoice.Validate(); err != nil {
			return nil, err
		}
		p.ToolChoice = req.ToolChoice
	}
	return p, nil
}
