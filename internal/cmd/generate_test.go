package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jnieblas/openai-response-api-demo/internal/config"
	"github.com/jnieblas/openai-response-api-demo/internal/responses"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replyBody = `{
	"id": "resp_cli",
	"model": "gpt-4o",
	"output": [{"type": "message", "content": [{"type": "output_text", "text": "Hello from the CLI"}]}],
	"usage": {"input_tokens": 3, "output_tokens": 4, "total_tokens": 7}
}`

// runCLI runs the generate command against a fake endpoint and returns the
// payload it received with the command's stdout.
func runCLI(t *testing.T, args ...string) (map[string]any, string, error) {
	t.Helper()

	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = io.WriteString(w, replyBody)
	}))
	t.Cleanup(srv.Close)

	t.Setenv(responses.APIKeyEnv, "sk-test")
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.Setup(filepath.Join(t.TempDir(), "config.yaml"))
	viper.Set("openai.base_url", srv.URL)
	viper.Set("openai.max_retries", 0)

	cmd := newGenerateCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return payload, out.String(), err
}

func TestGenerateCmd_Basic(t *testing.T) {
	payload, out, err := runCLI(t, "--type", "Email", "--tone", "polite", "--instructions", "Decline", "the", "meeting")
	require.NoError(t, err)

	assert.Equal(t, "Hello from the CLI\n", out)
	assert.Equal(t, "Decline the meeting", payload["input"])
	assert.Equal(t, "gpt-4o", payload["model"])
	assert.Equal(t, 0.7, payload["temperature"])
	assert.Contains(t, payload["instructions"], "an email with a polite tone")
}

func TestGenerateCmd_ReasoningAndTools(t *testing.T) {
	toolsFile := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(toolsFile, []byte(`[
		{"type": "function", "function": {"name": "lookup", "parameters": {"type": "object"}}}
	]`), 0644))

	payload, _, err := runCLI(t,
		"--model", "gpt-5", "--effort", "high",
		"--tool", "web_search_preview", "--tools-file", toolsFile,
		"--tool-choice", "lookup",
		"--previous-response-id", "resp_prev",
		"Find it")
	require.NoError(t, err)

	_, hasTemp := payload["temperature"]
	assert.False(t, hasTemp)
	assert.Equal(t, map[string]any{"effort": "high"}, payload["reasoning"])
	assert.Len(t, payload["tools"], 2)
	assert.Equal(t, map[string]any{"type": "function", "function": map[string]any{"name": "lookup"}}, payload["tool_choice"])
	assert.Equal(t, "resp_prev", payload["previous_response_id"])
}

func TestGenerateCmd_JSONOutput(t *testing.T) {
	_, out, err := runCLI(t, "--json", "Hi")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "resp_cli", got["id"])
	assert.Equal(t, "Hello from the CLI", got["content"])
}

func TestGenerateCmd_InvalidFormat(t *testing.T) {
	payload, _, err := runCLI(t, "--type", "memo", "Hi")
	require.Error(t, err)

	var verr *responses.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Nil(t, payload)
}

func TestGenerateCmd_ToolChoiceMode(t *testing.T) {
	for flag, want := range map[string]string{"Required": "required", "none": "none", "AUTO": "auto"} {
		t.Run(flag, func(t *testing.T) {
			payload, _, err := runCLI(t, "--tool", "web_search_preview", "--tool-choice", flag, "Hi")
			require.NoError(t, err)
			assert.Equal(t, want, payload["tool_choice"])
		})
	}
}
