package responses

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolValidate(t *testing.T) {
	for _, typ := range HostedToolTypes {
		assert.NoError(t, HostedTool(typ).Validate(), typ)
	}

	err := HostedTool("browser").Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "tools.type", verr.Field)
	assert.Contains(t, verr.Allowed, "function")

	err = Tool{Type: "function", Function: &ToolFunction{Name: "calc"}}.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "tools.function.parameters", verr.Field)

	err = Tool{Type: "function", Function: &ToolFunction{Parameters: map[string]any{}}}.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "tools.function.name", verr.Field)
}

func TestNormalizeTools_MixedShapes(t *testing.T) {
	calc := FunctionTool("calculate", "Basic math", map[string]any{"type": "object"})
	tools, err := NormalizeTools([]any{
		calc,
		&Tool{Type: "file_search"},
		map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":       "get_weather",
				"parameters": map[string]any{"type": "object", "required": []any{"location"}},
			},
		},
		map[string]any{"type": "web_search_preview"},
	})
	require.NoError(t, err)
	require.Len(t, tools, 4)

	assert.Equal(t, calc, tools[0])
	assert.Equal(t, "file_search", tools[1].Type)
	require.NotNil(t, tools[2].Function)
	assert.Equal(t, "get_weather", tools[2].Function.Name)
	assert.Equal(t, []any{"location"}, tools[2].Function.Parameters["required"])
	assert.Nil(t, tools[3].Function)
}

func TestNormalizeTools_Rejects(t *testing.T) {
	_, err := NormalizeTools([]any{"web_search_preview"})
	assert.True(t, errors.Is(err, ErrClient))

	_, err = NormalizeTools([]any{map[string]any{"type": "function"}})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "tools.function", verr.Field)

	_, err = NormalizeTools([]any{map[string]any{"type": "function", "function": "oops"}})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "tools", verr.Field)
}

func TestParseToolChoice(t *testing.T) {
	c, err := ParseToolChoice("AUTO")
	require.NoError(t, err)
	assert.Equal(t, "auto", c.Mode)

	c, err = ParseToolChoice(nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = ParseToolChoice(map[string]any{"type": "function", "function": map[string]any{"name": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "function", c.Selector["type"])

	_, err = ParseToolChoice("sometimes")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "tool_choice", verr.Field)

	_, err = ParseToolChoice(map[string]any{"function": "x"})
	require.True(t, errors.As(err, &verr))

	_, err = ParseToolChoice(42)
	require.True(t, errors.As(err, &verr))
}

func TestToolChoiceJSON(t *testing.T) {
	var c ToolChoice
	require.NoError(t, json.Unmarshal([]byte(`"none"`), &c))
	assert.Equal(t, "none", c.Mode)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"file_search"}`), &c))
	assert.Equal(t, "", c.Mode)
	assert.Equal(t, "file_search", c.Selector["type"])

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"file_search"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`12`), &c))
}
