package responses

import (
	"fmt"
	"strings"
)

// Family is the parameter dialect a model expects.
type Family string

const (
	// FamilySampling models take temperature and top_p.
	FamilySampling Family = "sampling"
	// FamilyReasoning models take reasoning effort and verbosity.
	FamilyReasoning Family = "reasoning"
)

// ReasoningPrefixes are the model name prefixes of the reasoning family.
var ReasoningPrefixes = []string{"gpt-5", "o1", "o3", "o4"}

// Levels accepted for effort and verbosity.
var Levels = []string{"low", "medium", "high"}

// FamilyOf reports which parameter dialect model uses.
func FamilyOf(model string) Family {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, p := range ReasoningPrefixes {
		if strings.HasPrefix(m, p) {
			return FamilyReasoning
		}
	}
	return FamilySampling
}

// Parameters is the generation parameter block of a request. The concrete
// type is either SamplingParams or ReasoningParams.
type Parameters interface {
	Family() Family
	validate() (Parameters, error)
	apply(p *Payload)
}

// SamplingParams controls classic sampling models.
type SamplingParams struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

func (SamplingParams) Family() Family { return FamilySampling }

func (s SamplingParams) validate() (Parameters, error) {
	if s.Temperature < 0 || s.Temperature > 2 {
		return nil, &ValidationError{Field: "temperature", Value: fmt.Sprint(s.Temperature), Message: "must be between 0 and 2"}
	}
	if s.TopP < 0 || s.TopP > 1 {
		return nil, &ValidationError{Field: "top_p", Value: fmt.Sprint(s.TopP), Message: "must be between 0 and 1"}
	}
	return s, nil
}

func (s SamplingParams) apply(p *Payload) {
	t, tp := s.Temperature, s.TopP
	p.Temperature = &t
	p.TopP = &tp
}

// ReasoningParams controls reasoning models. Empty fields are left out of
// the request.
type ReasoningParams struct {
	Effort    string `json:"effort,omitempty"`
	Verbosity string `json:"verbosity,omitempty"`
}

func (ReasoningParams) Family() Family { return FamilyReasoning }

func (r ReasoningParams) validate() (Parameters, error) {
	effort, err := checkEnum("effort", r.Effort, Levels, false)
	if err != nil {
		return nil, err
	}
	verbosity, err := checkEnum("verbosity", r.Verbosity, Levels, false)
	if err != nil {
		return nil, err
	}
	return ReasoningParams{Effort: effort, Verbosity: verbosity}, nil
}

func (r ReasoningParams) apply(p *Payload) {
	if r.Effort != "" {
		p.Reasoning = &ReasoningOptions{Effort: r.Effort}
	}
	p.Text.Verbosity = r.Verbosity
}

// DefaultParameters returns the parameter block used when a request carries none.
func DefaultParameters(model string) Parameters {
	if FamilyOf(model) == FamilyReasoning {
		return ReasoningParams{Effort: "medium", Verbosity: "medium"}
	}
	return SamplingParams{Temperature: 0.7, TopP: 1.0}
}

// resolveParameters validates params against the model's family, filling
// defaults when params is nil.
func resolveParameters(model string, params Parameters) (Parameters, error) {
	if params == nil {
		return DefaultParameters(model), nil
	}
	if want := FamilyOf(model); params.Family() != want {
		return nil, &ValidationError{
			Field:   "parameters",
			Value:   string(params.Family()),
			Message: fmt.Sprintf("model %q expects %s parameters", model, want),
		}
	}
	return params.validate()
}
