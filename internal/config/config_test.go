package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T, cfgFile string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	Setup(cfgFile)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	setupTest(t, filepath.Join(t.TempDir(), "config.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8501, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "gpt-4o", cfg.Defaults.Model)
	assert.Equal(t, 0.7, cfg.Defaults.Temperature)
	assert.Equal(t, 1.0, cfg.Defaults.TopP)
	assert.Equal(t, 3, cfg.OpenAI.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, filepath.Join("data", "history"), cfg.Storage.HistoryDir)
	assert.Equal(t, filepath.Join("data", "usage"), cfg.Storage.UsageDir)
	assert.Equal(t, filepath.Join("logs", "responses-demo.log"), cfg.Logging.Output)
	assert.Empty(t, cfg.OpenAI.APIKey)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("RESPONSES_DEMO_SERVER_PORT", "9100")
	t.Setenv("RESPONSES_DEMO_OPENAI_MAX_RETRIES", "0")
	t.Setenv("RESPONSES_DEMO_DEFAULTS_MODEL", "gpt-5")
	setupTest(t, filepath.Join(t.TempDir(), "config.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 0, cfg.OpenAI.MaxRetries)
	assert.Equal(t, "gpt-5", cfg.Defaults.Model)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8600
storage:
  data_dir: `+dir+`
defaults:
  temperature: 0
openai:
  timeout: 45s
`), 0644))

	setupTest(t, path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8600, cfg.Server.Port)
	assert.Equal(t, 0.0, cfg.Defaults.Temperature)
	assert.Equal(t, 45*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, filepath.Join(dir, "history"), cfg.Storage.HistoryDir)
}

func TestLoad_Invalid(t *testing.T) {
	setupTest(t, filepath.Join(t.TempDir(), "config.yaml"))

	viper.Set("server.port", 70000)
	_, err := Load()
	assert.Error(t, err)

	viper.Set("server.port", 8501)
	viper.Set("defaults.effort", "extreme")
	_, err = Load()
	assert.Error(t, err)

	viper.Set("defaults.effort", "low")
	viper.Set("openai.base_url", "not a url")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadOrCreate_WritesFileWithoutAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	setupTest(t, path)

	cfg, err := LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", cfg.OpenAI.APIKey)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
	assert.NotContains(t, string(data), "api_key")

	t.Setenv("OPENAI_API_KEY", "")
	setupTest(t, path)
	require.NoError(t, viper.ReadInConfig())
	reloaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Server, reloaded.Server)
	assert.Equal(t, cfg.Defaults, reloaded.Defaults)
	assert.Equal(t, cfg.OpenAI.Timeout, reloaded.OpenAI.Timeout)
}
