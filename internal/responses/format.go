package responses

import (
	"fmt"
	"sort"
	"strings"
)

// Allowed values for ResponseFormat fields.
var (
	FormatTypes  = []string{"email", "letter", "message", "response", "reply", "note"}
	FormatStyles = []string{"professional", "casual", "formal", "friendly", "business"}
	FormatTones  = []string{"friendly", "polite", "assertive", "neutral", "enthusiastic", "sympathetic", "professional"}
	// FormatLengths is advisory only; Length is not validated.
	FormatLengths = []string{"short", "medium", "long"}
)

// DefaultLanguage is used when a format leaves Language empty.
const DefaultLanguage = "en"

// ResponseFormat describes the kind of text the caller wants back.
type ResponseFormat struct {
	Type         string         `json:"type"`
	Style        string         `json:"style,omitempty"`
	Tone         string         `json:"tone,omitempty"`
	Length       string         `json:"length,omitempty"`
	Language     string         `json:"language,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// Validate returns a canonical copy of f: type, style and tone lowercased
// and checked against their allowed sets, language defaulted.
// Validating an already canonical format returns it unchanged.
func (f ResponseFormat) Validate() (ResponseFormat, error) {
	out := f

	typ, err := checkEnum("format.type", f.Type, FormatTypes, true)
	if err != nil {
		return ResponseFormat{}, err
	}
	out.Type = typ

	if out.Style, err = checkEnum("format.style", f.Style, FormatStyles, false); err != nil {
		return ResponseFormat{}, err
	}
	if out.Tone, err = checkEnum("format.tone", f.Tone, FormatTones, false); err != nil {
		return ResponseFormat{}, err
	}

	out.Length = strings.TrimSpace(f.Length)
	out.Language = strings.TrimSpace(f.Language)
	if out.Language == "" {
		out.Language = DefaultLanguage
	}
	return out, nil
}

// Instructions renders the format as a short directive for the model.
func (f ResponseFormat) Instructions() string {
	var b strings.Builder
	b.WriteString("Write the response as ")
	if f.Style != "" {
		b.WriteString(article(f.Style) + " " + f.Style + " " + f.Type)
	} else {
		b.WriteString(article(f.Type) + " " + f.Type)
	}
	if f.Tone != "" {
		b.WriteString(" with a " + f.Tone + " tone")
	}
	b.WriteString(".")
	if f.Length != "" {
		b.WriteString(" Keep it " + f.Length + ".")
	}
	if f.Language != "" {
		b.WriteString(" Respond in language: " + f.Language + ".")
	}
	if len(f.CustomFields) > 0 {
		keys := make([]string, 0, len(f.CustomFields))
		for k := range f.CustomFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" Additional requirements:")
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s: %v;", k, f.CustomFields[k]))
		}
	}
	return b.String()
}

// ParseFormat converts a loosely typed mapping into a validated format.
func ParseFormat(m map[string]any) (ResponseFormat, error) {
	var f ResponseFormat
	for key, v := range m {
		switch key {
		case "type", "style", "tone", "length", "language":
			s, ok := v.(string)
			if !ok && v != nil {
				return ResponseFormat{}, &ValidationError{Field: "format." + key, Value: fmt.Sprint(v), Message: "must be a string"}
			}
			switch key {
			case "type":
				f.Type = s
			case "style":
				f.Style = s
			case "tone":
				f.Tone = s
			case "length":
				f.Length = s
			case "language":
				f.Language = s
			}
		case "custom_fields":
			if v == nil {
				continue
			}
			cf, ok := v.(map[string]any)
			if !ok {
				return ResponseFormat{}, &ValidationError{Field: "format.custom_fields", Message: "must be a mapping"}
			}
			f.CustomFields = cf
		}
		// other keys are ignored
	}
	return f.Validate()
}

// checkEnum lowercases v and checks it against allowed. An empty value is
// accepted unless required.
func checkEnum(field, v string, allowed []string, required bool) (string, error) {
	canon := strings.ToLower(strings.TrimSpace(v))
	if canon == "" {
		if required {
			return "", &ValidationError{Field: field, Message: "is required", Allowed: allowed}
		}
		return "", nil
	}
	for _, a := range allowed {
		if a == canon {
			return canon, nil
		}
	}
	return "", &ValidationError{Field: field, Value: v, Allowed: allowed}
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an"
	}
	return "a"
}
