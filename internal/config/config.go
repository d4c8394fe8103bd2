package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override except the OpenAI key
const EnvPrefix = "RESPONSES_DEMO"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"gte=0"`
}

type SecurityConfig struct {
	// AccessKey guards /api when set
	AccessKey      string   `mapstructure:"access_key"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format        string `mapstructure:"format" validate:"oneof=json console"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size" validate:"gte=1"`
	MaxBackups    int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAge        int    `mapstructure:"max_age" validate:"gte=0"`
	Compress      bool   `mapstructure:"compress"`
}

type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir" validate:"required"`
	HistoryDir   string `mapstructure:"history_dir"`
	UsageDir     string `mapstructure:"usage_dir"`
	LogsDir      string `mapstructure:"logs_dir"`
	HistoryLimit int    `mapstructure:"history_limit" validate:"gte=0"`
}

type OpenAIConfig struct {
	// APIKey comes from OPENAI_API_KEY and is never written to disk
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url" validate:"required,url"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries         int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	UserAgent          string        `mapstructure:"user_agent"`
	FormatInstructions bool          `mapstructure:"format_instructions"`
	IncludeRaw         bool          `mapstructure:"include_raw"`
}

type DefaultsConfig struct {
	Model           string  `mapstructure:"model" validate:"required"`
	Temperature     float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP            float64 `mapstructure:"top_p" validate:"gte=0,lte=1"`
	Effort          string  `mapstructure:"effort" validate:"omitempty,oneof=low medium high"`
	Verbosity       string  `mapstructure:"verbosity" validate:"omitempty,oneof=low medium high"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" validate:"gte=0"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" validate:"gte=1"`
	Burst             int  `mapstructure:"burst" validate:"gte=1"`
}

// Setup points viper at the config file and the environment. An empty
// cfgFile searches ./, ./data and $HOME/.responses-demo for config.yaml.
func Setup(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./data")
		viper.AddConfigPath("$HOME/.responses-demo")
	}

	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
}

// Load loads the configuration from file and environment
func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	derivePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrCreate loads the configuration and writes a default config file
// when none exists yet.
func LoadOrCreate() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "./config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		return cfg, nil
	}

	fmt.Println("\n⚠️  Config file not found, creating default config...")
	if err := SaveConfig(cfg, configFile); err != nil {
		fmt.Printf("\n⚠️  Warning: Failed to save config file: %v\n", err)
		fmt.Println("   Continuing with in-memory config...")
	} else {
		fmt.Printf("\n✅ Config file created: %s\n", configFile)
	}
	return cfg, nil
}

// SaveConfig writes the user-facing settings to path. The OpenAI API key is
// left out on purpose; it is read from the environment only.
func SaveConfig(cfg *Config, path string) error {
	out := viper.New()

	out.Set("server.host", cfg.Server.Host)
	out.Set("server.port", cfg.Server.Port)
	out.Set("server.mode", cfg.Server.Mode)
	out.Set("server.read_timeout", cfg.Server.ReadTimeout.String())
	out.Set("server.write_timeout", cfg.Server.WriteTimeout.String())
	out.Set("server.max_body_bytes", cfg.Server.MaxBodyBytes)

	out.Set("security.access_key", cfg.Security.AccessKey)
	out.Set("security.enable_cors", cfg.Security.EnableCORS)
	out.Set("security.allowed_origins", cfg.Security.AllowedOrigins)

	out.Set("logging.level", cfg.Logging.Level)
	out.Set("logging.format", cfg.Logging.Format)
	out.Set("logging.output", cfg.Logging.Output)
	out.Set("logging.console_output", cfg.Logging.ConsoleOutput)
	out.Set("logging.max_size", cfg.Logging.MaxSize)
	out.Set("logging.max_backups", cfg.Logging.MaxBackups)
	out.Set("logging.max_age", cfg.Logging.MaxAge)
	out.Set("logging.compress", cfg.Logging.Compress)

	out.Set("storage.data_dir", cfg.Storage.DataDir)
	out.Set("storage.history_dir", cfg.Storage.HistoryDir)
	out.Set("storage.usage_dir", cfg.Storage.UsageDir)
	out.Set("storage.logs_dir", cfg.Storage.LogsDir)
	out.Set("storage.history_limit", cfg.Storage.HistoryLimit)

	out.Set("openai.base_url", cfg.OpenAI.BaseURL)
	out.Set("openai.timeout", cfg.OpenAI.Timeout.String())
	out.Set("openai.max_retries", cfg.OpenAI.MaxRetries)
	out.Set("openai.user_agent", cfg.OpenAI.UserAgent)
	out.Set("openai.format_instructions", cfg.OpenAI.FormatInstructions)
	out.Set("openai.include_raw", cfg.OpenAI.IncludeRaw)

	out.Set("defaults.model", cfg.Defaults.Model)
	out.Set("defaults.temperature", cfg.Defaults.Temperature)
	out.Set("defaults.top_p", cfg.Defaults.TopP)
	out.Set("defaults.effort", cfg.Defaults.Effort)
	out.Set("defaults.verbosity", cfg.Defaults.Verbosity)
	out.Set("defaults.max_output_tokens", cfg.Defaults.MaxOutputTokens)

	out.Set("rate_limit.enabled", cfg.RateLimit.Enabled)
	out.Set("rate_limit.requests_per_minute", cfg.RateLimit.RequestsPerMinute)
	out.Set("rate_limit.burst", cfg.RateLimit.Burst)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return out.WriteConfigAs(path)
}

func setDefaults() {
	// server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8501)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 120*time.Second)
	viper.SetDefault("server.max_body_bytes", 1<<20)

	// security
	viper.SetDefault("security.access_key", "")
	viper.SetDefault("security.enable_cors", false)
	viper.SetDefault("security.allowed_origins", []string{"*"})

	// logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "")
	viper.SetDefault("logging.console_output", true)
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 10)
	viper.SetDefault("logging.max_age", 30)
	viper.SetDefault("logging.compress", false)

	// storage
	viper.SetDefault("storage.data_dir", "./data")
	viper.SetDefault("storage.history_dir", "")
	viper.SetDefault("storage.usage_dir", "")
	viper.SetDefault("storage.logs_dir", "./logs")
	viper.SetDefault("storage.history_limit", 50)

	// openai
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.timeout", 30*time.Second)
	viper.SetDefault("openai.max_retries", 3)
	viper.SetDefault("openai.user_agent", "")
	viper.SetDefault("openai.format_instructions", false)
	viper.SetDefault("openai.include_raw", false)

	// generation defaults
	viper.SetDefault("defaults.model", "gpt-4o")
	viper.SetDefault("defaults.temperature", 0.7)
	viper.SetDefault("defaults.top_p", 1.0)
	viper.SetDefault("defaults.effort", "medium")
	viper.SetDefault("defaults.verbosity", "medium")
	viper.SetDefault("defaults.max_output_tokens", 0)

	// rate limiting
	viper.SetDefault("rate_limit.enabled", false)
	viper.SetDefault("rate_limit.requests_per_minute", 60)
	viper.SetDefault("rate_limit.burst", 10)
}

// derivePaths fills directories left empty relative to the data and log dirs
func derivePaths(cfg *Config) {
	if cfg.Storage.HistoryDir == "" {
		cfg.Storage.HistoryDir = filepath.Join(cfg.Storage.DataDir, "history")
	}
	if cfg.Storage.UsageDir == "" {
		cfg.Storage.UsageDir = filepath.Join(cfg.Storage.DataDir, "usage")
	}
	if cfg.Storage.LogsDir == "" {
		cfg.Storage.LogsDir = "./logs"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = filepath.Join(cfg.Storage.LogsDir, "responses-demo.log")
	}
}

func validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}
