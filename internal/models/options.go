package models

import "github.com/jnieblas/openai-response-api-demo/internal/responses"

// Template is a quick-start prompt with a preset format
type Template struct {
	Name   string                   `json:"name"`
	Prompt string                   `json:"prompt"`
	Format responses.ResponseFormat `json:"format"`
}

// Models offered by the web UI
var Models = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo", "gpt-5", "o3-mini"}

// Templates offered by the web UI
var Templates = []Template{
	{
		Name:   "Professional Email",
		Prompt: "Write a professional email declining a meeting request from a colleague due to a scheduling conflict",
		Format: responses.ResponseFormat{Type: "email", Style: "professional", Tone: "polite", Length: "short"},
	},
	{
		Name:   "Formal Letter",
		Prompt: "Write a formal letter of recommendation for a former employee",
		Format: responses.ResponseFormat{Type: "letter", Style: "formal", Tone: "professional", Length: "long"},
	},
	{
		Name:   "Casual Message",
		Prompt: "Write a friendly message to congratulate someone on their promotion",
		Format: responses.ResponseFormat{Type: "message", Style: "casual", Tone: "friendly", Length: "short"},
	},
	{
		Name:   "Thank You Note",
		Prompt: "Write a thank you message for a birthday gift from a friend",
		Format: responses.ResponseFormat{Type: "message", Style: "casual", Tone: "enthusiastic", Length: "medium"},
	},
	{
		Name:   "Meeting Confirmation",
		Prompt: "Write a brief email confirming receipt of an important document",
		Format: responses.ResponseFormat{Type: "email", Style: "professional", Tone: "neutral", Length: "short"},
	},
	{
		Name:   "Celebration",
		Prompt: "Write a creative story about a magical forest",
		Format: responses.ResponseFormat{Type: "message", Style: "casual", Tone: "enthusiastic", Length: "long"},
	},
}

// Options lists every value the UI can pick from
type Options struct {
	Types             []string `json:"types"`
	Styles            []string `json:"styles"`
	Tones             []string `json:"tones"`
	Lengths           []string `json:"lengths"`
	Levels            []string `json:"levels"`
	Models            []string `json:"models"`
	ToolTypes         []string `json:"tool_types"`
	ToolChoices       []string `json:"tool_choices"`
	ReasoningPrefixes []string `json:"reasoning_prefixes"`
	DefaultModel      string   `json:"default_model"`
}

// DefaultOptions builds the option lists from the client's allowed values
func DefaultOptions(defaultModel string) Options {
	return Options{
		Types:             responses.FormatTypes,
		Styles:            responses.FormatStyles,
		Tones:             responses.FormatTones,
		Lengths:           responses.FormatLengths,
		Levels:            responses.Levels,
		Models:            Models,
		ToolTypes:         responses.ToolTypes,
		ToolChoices:       []string{responses.ToolChoiceModeAuto, responses.ToolChoiceModeNone, responses.ToolChoiceModeRequired},
		ReasoningPrefixes: responses.ReasoningPrefixes,
		DefaultModel:      defaultModel,
	}
}
